// Package validation checks user input field by field. Each form is a
// pipeline of small rule functions whose failures are collected into a
// Result keyed by field name.
package validation

import (
	"sort"
	"strings"
)

// Result maps field names to their error messages. The zero value is empty
// and ready to use.
type Result struct {
	Fields map[string][]string `json:"fields"`

	cause error
}

// Add records msg against field.
func (r *Result) Add(field, msg string) {
	if r.Fields == nil {
		r.Fields = map[string][]string{}
	}
	r.Fields[field] = append(r.Fields[field], msg)
}

// OK reports whether no errors were recorded.
func (r *Result) OK() bool {
	return r == nil || len(r.Fields) == 0
}

// Has reports whether field has at least one error.
func (r *Result) Has(field string) bool {
	return r != nil && len(r.Fields[field]) > 0
}

// Err returns r as an error, or nil when it holds no errors.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return r
}

func (r *Result) Error() string {
	fields := make([]string, 0, len(r.Fields))
	for f := range r.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(strings.Join(r.Fields[f], ", "))
	}
	return b.String()
}

// Unwrap exposes the sentinel set with WithCause, so callers can match the
// failure with errors.Is.
func (r *Result) Unwrap() error {
	return r.cause
}

// WithCause records the sentinel error behind r and returns r.
func (r *Result) WithCause(err error) *Result {
	r.cause = err
	return r
}

// FieldError builds a single-field Result.
func FieldError(field, msg string) *Result {
	r := &Result{}
	r.Add(field, msg)
	return r
}
