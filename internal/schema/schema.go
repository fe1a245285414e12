// Package schema resolves a record declaration into immutable field
// descriptors: the scalar kind of each field, whether it is optional, and its
// declared text-length constraints.
//
// A Schema is built once, before any row is processed. Every error returned
// while building one is a configuration error.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Struct tags read by FromStruct.
const (
	TagName     = "csv"
	TagValidate = "validate"
)

var (
	// ErrNotStruct is returned when FromStruct receives a non-struct value.
	ErrNotStruct = errors.New("schema source is not a struct")
	// ErrFieldName is returned for empty, anonymous or duplicate field names.
	ErrFieldName = errors.New("invalid field name")
)

// Field describes one record field.
type Field struct {
	Name        string
	Index       int // position within Schema.Fields
	Scalar      ScalarKind
	Optional    bool
	Constraints Constraints

	// Opaque parses raw text for Opaque fields; nil otherwise.
	Opaque ParseFunc

	// GoIndex is the struct field index for schemas built by FromStruct.
	GoIndex []int
}

// Required reports whether an absent value is an error.
func (f Field) Required() bool { return !f.Optional }

// Schema is an ordered, immutable set of fields.
type Schema struct {
	Name   string
	Fields []Field

	// GoType is the source struct type, nil for contract schemas.
	GoType reflect.Type

	index map[string]int
}

// Lookup returns the field named name.
func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// IndexOf returns the position of name, or -1.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.Fields) }

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Option tunes schema construction.
type Option func(*options)

type options struct {
	strict bool
}

// WithStrict turns malformed constraint annotations into configuration
// errors instead of silently dropping them.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// FromStruct derives a schema from a struct value or pointer to struct.
//
// Exported fields are taken in declaration order. The field name is the csv
// tag (before any comma) or, when absent, the Go field name; csv:"-" skips a
// field. Constraints come from the validate tag.
func FromStruct(v any, opts ...Option) (*Schema, error) {
	o := buildOptions(opts)

	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotStruct, t)
	}

	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous {
			return nil, fmt.Errorf("%w: embedded field %s has no name", ErrFieldName, sf.Type)
		}
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}

		sk, optional, parse, err := ClassifyType(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		c, err := ParseConstraints(sf.Tag.Get(TagValidate), o.strict)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}

		fields = append(fields, Field{
			Name:        name,
			Scalar:      sk,
			Optional:    optional,
			Constraints: c,
			Opaque:      parse,
			GoIndex:     sf.Index,
		})
	}
	return newSchema(t.Name(), fields, t)
}

func newSchema(name string, fields []Field, goType reflect.Type) (*Schema, error) {
	s := &Schema{
		Name:   name,
		Fields: fields,
		GoType: goType,
		index:  make(map[string]int, len(fields)),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("%w: field %d has an empty name", ErrFieldName, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrFieldName, f.Name)
		}
		f.Index = i
		s.index[f.Name] = i
	}
	return s, nil
}
