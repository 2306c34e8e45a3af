package prompttpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceStringPlaceholder(t *testing.T) {
	e := New()
	out, err := e.Replace("hello {{ name }}", map[string]interface{}{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestReplaceNestedPath(t *testing.T) {
	e := New()
	ctx := map[string]interface{}{
		"input": map[string]interface{}{"user": map[string]interface{}{"id": "u-1"}},
	}
	out, err := e.Replace("{{ input.user.id }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", out)
}

func TestReplaceMissingVariableErrors(t *testing.T) {
	e := New()
	_, err := e.Replace("{{ missing }}", map[string]interface{}{})
	assert.Error(t, err)
}

func TestReplaceRecursesThroughMapsAndSlices(t *testing.T) {
	e := New()
	ctx := map[string]interface{}{"id": "42"}
	value := map[string]interface{}{
		"headers": []interface{}{"Bearer {{ id }}"},
	}
	out, err := e.Replace(value, ctx)
	require.NoError(t, err)
	outMap, ok := out.(map[string]interface{})
	require.True(t, ok)
	headers := outMap["headers"].([]interface{})
	assert.Equal(t, "Bearer 42", headers[0])
}

func TestExtractVariables(t *testing.T) {
	e := New()
	vars := e.ExtractVariables(map[string]interface{}{
		"a": "{{ input.name }}",
		"b": []interface{}{"{{ count }}"},
	})
	assert.ElementsMatch(t, []string{"input.name", "count"}, vars)
}

func TestRenderGoTemplateWithSprig(t *testing.T) {
	e := New()
	out, err := e.RenderGoTemplate(`{{ .name | upper }}`, map[string]interface{}{"name": "gateway"})
	require.NoError(t, err)
	assert.Equal(t, "GATEWAY", out)
}

func TestRenderGoTemplateMissingKeyErrors(t *testing.T) {
	e := New()
	_, err := e.RenderGoTemplate(`{{ .missing }}`, map[string]interface{}{})
	assert.Error(t, err)
}
