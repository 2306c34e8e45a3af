// Package prompttpl renders {{ var }} / {{ var.path }} placeholders and
// full Sprig-augmented Go templates, shared by the router's subprocess
// and REST argument substitution and the prompt service's message
// rendering.
package prompttpl

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine is stateless beyond its compiled placeholder pattern and is
// safe for concurrent use.
type Engine struct {
	pattern *regexp.Regexp
}

func New() *Engine {
	return &Engine{
		pattern: regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_.-]*)\s*\}\}`),
	}
}

// Replace substitutes every {{ var }} placeholder found in value,
// recursing through maps and slices, using context for lookups.
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.replaceString(v, context)
	case map[string]interface{}:
		return e.replaceMap(v, context)
	case []interface{}:
		return e.replaceSlice(v, context)
	default:
		return value, nil
	}
}

func (e *Engine) replaceString(tmpl string, context map[string]interface{}) (string, error) {
	matches := e.pattern.FindAllStringSubmatch(tmpl, -1)
	var missing []string
	result := tmpl

	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		path := m[1]
		val, err := e.resolvePath(path, context)
		if err != nil {
			missing = append(missing, path)
			continue
		}

		var repl string
		switch r := val.(type) {
		case string:
			repl = r
		case int, int32, int64:
			repl = fmt.Sprintf("%d", r)
		case float32, float64:
			repl = fmt.Sprintf("%v", r)
		case bool:
			repl = fmt.Sprintf("%t", r)
		default:
			repl = fmt.Sprintf("%v", r)
		}

		for _, placeholder := range []string{
			fmt.Sprintf("{{ %s }}", path),
			fmt.Sprintf("{{ .%s }}", path),
			fmt.Sprintf("{{%s}}", path),
			fmt.Sprintf("{{.%s}}", path),
		} {
			result = strings.ReplaceAll(result, placeholder, repl)
		}
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

func (e *Engine) replaceMap(m map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		rv, err := e.Replace(v, context)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func (e *Engine) replaceSlice(s []interface{}, context map[string]interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(s))
	for i, v := range s {
		rv, err := e.Replace(v, context)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = rv
	}
	return out, nil
}

// ExtractVariables returns every distinct variable path referenced by
// value, recursing through maps and slices, in no particular order.
func (e *Engine) ExtractVariables(value interface{}) []string {
	found := map[string]bool{}
	e.extract(value, found)
	out := make([]string, 0, len(found))
	for v := range found {
		out = append(out, v)
	}
	return out
}

func (e *Engine) extract(value interface{}, found map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, m := range e.pattern.FindAllStringSubmatch(v, -1) {
			if len(m) >= 2 {
				found[m[1]] = true
			}
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extract(val, found)
		}
	case []interface{}:
		for _, val := range v {
			e.extract(val, found)
		}
	}
}

func (e *Engine) resolvePath(path string, context map[string]interface{}) (interface{}, error) {
	parts := strings.Split(path, ".")
	root, ok := context[parts[0]]
	if !ok {
		return nil, fmt.Errorf("variable %q not found", parts[0])
	}
	current := root
	for _, part := range parts[1:] {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot access %q on non-object value", part)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("property %q not found", part)
		}
	}
	return current, nil
}

// RenderGoTemplate renders a full text/template with Sprig functions,
// for prompt bodies that use conditionals, loops, or sprig helpers
// instead of bare placeholders.
func (e *Engine) RenderGoTemplate(tmplStr string, context map[string]interface{}) (string, error) {
	tmpl, err := template.New("prompt").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}
