// Package record defines the raw record: the all-optional-text mirror of a
// schema that one input row is materialized into before validation.
package record

import (
	"errors"
	"fmt"
	"strings"

	"rawcheck/internal/schema"
)

// ErrUnknownField is returned when a value is set for a name the schema does
// not declare.
var ErrUnknownField = errors.New("unknown field")

// Raw holds one row as optional text, aligned by index to the schema's
// fields. A nil entry is an absent value. Raw is not mutated after Build.
type Raw struct {
	schema *schema.Schema
	values []*string
}

// Schema returns the schema the record was built for.
func (r Raw) Schema() *schema.Schema { return r.schema }

// Len returns the number of fields, which always equals Schema().Len().
func (r Raw) Len() int { return len(r.values) }

// Value returns the value at field index i; nil means absent.
func (r Raw) Value(i int) *string {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Get returns the value of the named field and whether it is present.
func (r Raw) Get(name string) (string, bool) {
	if r.schema == nil {
		return "", false
	}
	v := r.Value(r.schema.IndexOf(name))
	if v == nil {
		return "", false
	}
	return *v, true
}

// Cells returns the values as strings in schema order, absent as "".
func (r Raw) Cells() []string {
	out := make([]string, len(r.values))
	for i, v := range r.values {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

// String renders the record as name=value pairs; absent values print as
// <nil>.
func (r Raw) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range r.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.schema.Fields[i].Name)
		b.WriteByte('=')
		if v == nil {
			b.WriteString("<nil>")
		} else {
			fmt.Fprintf(&b, "%q", *v)
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Builder assembles a Raw for a schema. Fields never set stay absent.
type Builder struct {
	schema *schema.Schema
	values []*string
}

// New returns a Builder whose fields are all absent.
func New(s *schema.Schema) *Builder {
	return &Builder{schema: s, values: make([]*string, s.Len())}
}

// Set stores a present value for name.
func (b *Builder) Set(name, value string) error {
	i := b.schema.IndexOf(name)
	if i < 0 {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	v := value
	b.values[i] = &v
	return nil
}

// SetAbsent marks name as absent.
func (b *Builder) SetAbsent(name string) error {
	i := b.schema.IndexOf(name)
	if i < 0 {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	b.values[i] = nil
	return nil
}

// Build returns the record. The Builder must not be reused afterwards.
func (b *Builder) Build() Raw {
	r := Raw{schema: b.schema, values: b.values}
	b.values = nil
	return r
}

// FromMap builds a record from name → value; a nil value is absent.
func FromMap(s *schema.Schema, m map[string]*string) (Raw, error) {
	b := New(s)
	for name, v := range m {
		if v == nil {
			if err := b.SetAbsent(name); err != nil {
				return Raw{}, err
			}
			continue
		}
		if err := b.Set(name, *v); err != nil {
			return Raw{}, err
		}
	}
	return b.Build(), nil
}

// FromCells builds a record from one delimited row using l to map source
// columns onto fields. Empty cells and columns missing from the row are
// absent.
func FromCells(l *Layout, cells []string) Raw {
	vals := make([]*string, len(l.src))
	for i, si := range l.src {
		if si < 0 || si >= len(cells) || cells[si] == "" {
			continue
		}
		v := cells[si]
		vals[i] = &v
	}
	return Raw{schema: l.schema, values: vals}
}
