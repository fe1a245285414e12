// Package validate turns a schema into a table of per-field rules and runs
// them against raw records.
//
// Rules are synthesized once in Compile. Each row is then checked in full:
// every field's rule runs and all failures land in a Report, so one bad cell
// never hides another. Validation is pure computation; a compiled Validator
// may be shared by any number of goroutines.
//
// Schemas come either from a JSON contract (schema.FromContract, as the CSV
// pipeline does) or from a Go struct. The struct path also decodes valid
// records back into the struct:
//
//	s, _ := schema.FromStruct(Vehicle{})
//	v := validate.Compile(s)
//	raw, _ := record.FromMap(s, cells)
//	vehicle, err := validate.DecodeAs[Vehicle](v, raw)
package validate

import (
	"fmt"
	"math/big"
	"reflect"

	"rawcheck/internal/record"
	"rawcheck/internal/schema"
)

// Validator holds the compiled rule table for one schema.
type Validator struct {
	schema *schema.Schema
	rules  []Rule
}

// Compile synthesizes one rule per schema field.
func Compile(s *schema.Schema) *Validator {
	v := &Validator{schema: s, rules: make([]Rule, len(s.Fields))}
	for i, f := range s.Fields {
		v.rules[i] = Synthesize(f)
	}
	return v
}

// Schema returns the compiled schema.
func (v *Validator) Schema() *schema.Schema { return v.schema }

// Rules returns the rule table in field order.
func (v *Validator) Rules() []Rule { return append([]Rule(nil), v.rules...) }

// Check runs every rule against r and returns the report, which is empty
// when the row is valid. The report is never nil.
//
// When r was built for a different schema its values are matched to rules
// by field name; fields r does not declare are absent.
func (v *Validator) Check(r record.Raw) *Report {
	value := r.Value
	if r.Schema() != v.schema {
		value = func(i int) *string {
			s, ok := r.Get(v.schema.Fields[i].Name)
			if !ok {
				return nil
			}
			return &s
		}
	}

	rep := &Report{}
	for i, rule := range v.rules {
		for _, fe := range rule.Check(value(i)) {
			rep.Add(fe)
		}
	}
	return rep
}

// Validate returns nil when r is valid and the *Report otherwise. Unlike
// Check it requires r to be built for the compiled schema, since Decode
// relies on positional alignment.
func (v *Validator) Validate(r record.Raw) error {
	if r.Schema() != v.schema {
		return ErrSchemaMismatch
	}
	if rep := v.Check(r); !rep.Empty() {
		return rep
	}
	return nil
}

// Decode validates r and, when valid, converts every present field into
// dst, which must be a pointer to the struct the schema was built from.
// Absent values leave the destination field untouched.
func (v *Validator) Decode(r record.Raw, dst any) error {
	if v.schema.GoType == nil {
		return fmt.Errorf("%w: schema %q has no Go type", ErrNotDecodable, v.schema.Name)
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != v.schema.GoType {
		return fmt.Errorf("%w: want *%s, got %T", ErrNotDecodable, v.schema.GoType, dst)
	}
	if err := v.Validate(r); err != nil {
		return err
	}

	out := rv.Elem()
	for i, f := range v.schema.Fields {
		raw := r.Value(i)
		if raw == nil {
			continue
		}
		val, err := Parse(f, *raw)
		if err != nil {
			// Unreachable while rules and Parse agree.
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		if err := assign(out.FieldByIndex(f.GoIndex), f, val); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

// DecodeAs is Decode into a fresh T.
func DecodeAs[T any](v *Validator, r record.Raw) (T, error) {
	var out T
	err := v.Decode(r, &out)
	return out, err
}

func assign(dst reflect.Value, f schema.Field, val any) error {
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), f, val); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	switch x := val.(type) {
	case uint64:
		dst.SetUint(x)
	case int64:
		dst.SetInt(x)
	case float64:
		dst.SetFloat(x)
	case bool:
		dst.SetBool(x)
	case string:
		if f.Scalar.Kind != schema.Text {
			return setOpaque(dst, val)
		}
		dst.SetString(x)
	case *big.Int:
		return fmt.Errorf("%s value %s does not fit a Go field", f.Scalar, x)
	default:
		return setOpaque(dst, val)
	}
	return nil
}

func setOpaque(dst reflect.Value, val any) error {
	rv := reflect.ValueOf(val)
	if !rv.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("cannot assign %s to %s", rv.Type(), dst.Type())
	}
	dst.Set(rv)
	return nil
}
