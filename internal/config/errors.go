package config

import (
	"fmt"
	"strings"
)

// ValidationError is one problem with one config field. Validation
// collects every problem found in one pass over a config document into
// ValidationErrors, rather than failing on the first one, so an
// operator can fix a config file in one edit-validate cycle.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a non-empty list of ValidationError, itself an
// error.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	lines := make([]string, len(e))
	for i, v := range e {
		lines[i] = v.Error()
	}
	return strings.Join(lines, "; ")
}

func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

func fieldErr(errs *ValidationErrors, field, format string, args ...interface{}) {
	*errs = append(*errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}
