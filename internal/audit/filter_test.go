package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCELFilterEmptyExprIsNil(t *testing.T) {
	f, err := newCELFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestNewCELFilterRejectsInvalidExpr(t *testing.T) {
	_, err := newCELFilter("tool startsWith(")
	assert.Error(t, err)
}

func TestCELFilterMatchesRecord(t *testing.T) {
	f, err := newCELFilter(`tool.startsWith("db_") && duration_ms > 500`)
	require.NoError(t, err)

	assert.True(t, f.matches(Record{ToolName: "db_query", DurationMS: 600}))
	assert.False(t, f.matches(Record{ToolName: "db_query", DurationMS: 100}))
	assert.False(t, f.matches(Record{ToolName: "other", DurationMS: 600}))
}

func TestCELFilterEvalErrorIsNonMatching(t *testing.T) {
	f, err := newCELFilter(`10 / duration_ms > 1`)
	require.NoError(t, err)
	assert.False(t, f.matches(Record{DurationMS: 0}))
}
