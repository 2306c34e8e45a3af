package audit

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// celFilter compiles a query's free-form CEL expression once and
// evaluates it per-record, giving dashboard users ad-hoc filtering
// ("duration_ms > 500 && tool.startsWith('db_')") beyond the
// structured Query fields.
type celFilter struct {
	program cel.Program
}

func newCELFilter(expr string) (*celFilter, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("tool", cel.StringType),
		cel.Variable("origin_server", cel.StringType),
		cel.Variable("error", cel.StringType),
		cel.Variable("duration_ms", cel.IntType),
		cel.Variable("client_id", cel.StringType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("component", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("correlation_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("building cel environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling cel expression %q: %w", expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building cel program: %w", err)
	}
	return &celFilter{program: prg}, nil
}

// matches evaluates the compiled expression against r, treating any
// evaluation error as non-matching rather than failing the query.
func (f *celFilter) matches(r Record) bool {
	out, _, err := f.program.Eval(map[string]interface{}{
		"tool":           r.ToolName,
		"origin_server":  r.OriginServer,
		"error":          r.Error,
		"duration_ms":    r.DurationMS,
		"client_id":      r.ClientID,
		"event_type":     string(r.EventType),
		"severity":       string(r.Severity),
		"component":      r.Component,
		"message":        r.Message,
		"correlation_id": r.CorrelationID,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
