// Package validation collects field-level input problems so callers can report all of
// them at once.
package validation

import (
	"errors"
	"sort"
	"strings"
)

// Errors maps a field name to its problems.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Err returns nil when no problems were recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// First returns the first message for each field, the shape browser forms expect.
func (e Errors) First() map[string]string {
	out := make(map[string]string, len(e))
	for field, messages := range e {
		if len(messages) > 0 {
			out[field] = messages[0]
		}
	}
	return out
}

func As(err error) (Errors, bool) {
	var vErr Errors
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
