package validate

import (
	"fmt"
	"strings"
)

// Report collects field errors for one row, keyed by field name in the
// order fields first failed. The zero value is empty and ready to use.
type Report struct {
	order  []string
	errors map[string][]FieldError
}

// Add appends e under e.Field.
func (r *Report) Add(e FieldError) {
	if r.errors == nil {
		r.errors = make(map[string][]FieldError)
	}
	if _, seen := r.errors[e.Field]; !seen {
		r.order = append(r.order, e.Field)
	}
	r.errors[e.Field] = append(r.errors[e.Field], e)
}

// Empty reports whether no field failed. A nil report is empty.
func (r *Report) Empty() bool { return r == nil || len(r.order) == 0 }

// Len returns the number of failed fields.
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Count returns the total number of errors across all fields.
func (r *Report) Count() int {
	n := 0
	if r == nil {
		return n
	}
	for _, errs := range r.errors {
		n += len(errs)
	}
	return n
}

// Fields returns failed field names in insertion order.
func (r *Report) Fields() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Get returns the errors recorded for field.
func (r *Report) Get(field string) []FieldError {
	if r == nil {
		return nil
	}
	return r.errors[field]
}

// Has reports whether field has at least one error.
func (r *Report) Has(field string) bool { return len(r.Get(field)) > 0 }

// All returns every error, grouped by field in insertion order.
func (r *Report) All() []FieldError {
	if r == nil {
		return nil
	}
	out := make([]FieldError, 0, r.Count())
	for _, f := range r.order {
		out = append(out, r.errors[f]...)
	}
	return out
}

// CodeCounts tallies errors per code.
func (r *Report) CodeCounts() map[Code]int {
	out := make(map[Code]int)
	for _, e := range r.All() {
		out[e.Code]++
	}
	return out
}

func (r *Report) Error() string {
	if r.Empty() {
		return "validation passed"
	}
	var parts []string
	for _, e := range r.All() {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is and errors.As reach individual field errors.
func (r *Report) Unwrap() []error {
	all := r.All()
	out := make([]error, len(all))
	for i, e := range all {
		out[i] = e
	}
	return out
}
