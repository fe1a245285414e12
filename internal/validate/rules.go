package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"rawcheck/internal/schema"
)

// Rule checks one field's raw value. It is built once per schema and is safe
// for concurrent use.
type Rule struct {
	Field schema.Field

	// kind runs only for present values and returns nil on success.
	kind func(v string) *FieldError
}

// Check validates a raw value: nil is absent. A required field that is
// absent yields exactly one RequiredFieldMissing error and no kind check;
// an optional absent field always passes.
func (r Rule) Check(v *string) []FieldError {
	if v == nil {
		if r.Field.Required() {
			return []FieldError{{
				Field:   r.Field.Name,
				Code:    RequiredFieldMissing,
				Message: fmt.Sprintf("field '%s' is required", r.Field.Name),
			}}
		}
		return nil
	}
	if r.kind == nil {
		return nil
	}
	if fe := r.kind(*v); fe != nil {
		return []FieldError{*fe}
	}
	return nil
}

// Synthesize builds the rule for f, choosing the parse strategy, range
// semantics and messages from its scalar kind and constraints.
func Synthesize(f schema.Field) Rule {
	r := Rule{Field: f}
	switch f.Scalar.Kind {
	case schema.Unsigned:
		r.kind = unsignedCheck(f)
	case schema.Signed:
		r.kind = signedCheck(f)
	case schema.Float:
		r.kind = floatCheck(f)
	case schema.Bool:
		r.kind = boolCheck(f)
	case schema.Text:
		r.kind = textCheck(f)
	default:
		r.kind = opaqueCheck(f)
	}
	return r
}

func fieldError(f schema.Field, code Code, v, format string, args ...any) *FieldError {
	return &FieldError{Field: f.Name, Code: code, Value: v, Message: fmt.Sprintf(format, args...)}
}

// numberError splits a numeric parse failure into malformed vs out of range.
func numberError(f schema.Field, v string, err error, rangeText string) *FieldError {
	if errors.Is(err, strconv.ErrRange) {
		return fieldError(f, OutOfRange, v, "field '%s' value (%s) exceeds the range of %s (%s)",
			f.Name, v, f.Scalar, rangeText)
	}
	return fieldError(f, MalformedNumber, v, "field '%s' value (%s) is not a number", f.Name, v)
}

func unsignedCheck(f schema.Field) func(string) *FieldError {
	_, hi := bounds(schema.Unsigned, f.Scalar.Bits)
	rangeText := "0 to " + hi.String()
	return func(v string) *FieldError {
		// Checked before parsing so "-5" is not reported as malformed.
		if strings.HasPrefix(v, "-") {
			return fieldError(f, NegativeValueForUnsigned, v,
				"field '%s' has a negative value (%s) but type %s does not accept negative values",
				f.Name, v, f.Scalar)
		}
		if _, err := parseUnsigned(v, f.Scalar.Bits); err != nil {
			return numberError(f, v, err, rangeText)
		}
		return nil
	}
}

func signedCheck(f schema.Field) func(string) *FieldError {
	lo, hi := bounds(schema.Signed, f.Scalar.Bits)
	rangeText := lo.String() + " to " + hi.String()
	return func(v string) *FieldError {
		if _, err := parseSigned(v, f.Scalar.Bits); err != nil {
			return numberError(f, v, err, rangeText)
		}
		return nil
	}
}

func floatCheck(f schema.Field) func(string) *FieldError {
	return func(v string) *FieldError {
		if _, err := parseFloat(v, f.Scalar.Bits); err != nil {
			return fieldError(f, InvalidFloat, v,
				"field '%s' value (%s) is not a valid floating point number", f.Name, v)
		}
		return nil
	}
}

func boolCheck(f schema.Field) func(string) *FieldError {
	return func(v string) *FieldError {
		if _, err := parseBool(v); err != nil {
			return fieldError(f, InvalidBoolean, v,
				"field '%s' value (%s) is not a boolean; use true/false or 1/0", f.Name, v)
		}
		return nil
	}
}

// textCheck counts runes, not bytes. With no declared bounds the value is
// always valid and the rule has no kind check at all.
func textCheck(f schema.Field) func(string) *FieldError {
	lo, hi := f.Constraints.MinLength, f.Constraints.MaxLength
	switch {
	case lo != nil && hi != nil:
		minLen, maxLen := *lo, *hi
		return func(v string) *FieldError {
			if n := utf8.RuneCountInString(v); n < minLen || n > maxLen {
				return fieldError(f, StringLengthViolation, v,
					"field '%s' length is outside the limit (%d to %d characters, got %d)", f.Name, minLen, maxLen, n)
			}
			return nil
		}
	case lo != nil:
		minLen := *lo
		return func(v string) *FieldError {
			if n := utf8.RuneCountInString(v); n < minLen {
				return fieldError(f, StringLengthViolation, v,
					"field '%s' length is below the minimum of %d characters (got %d)", f.Name, minLen, n)
			}
			return nil
		}
	case hi != nil:
		maxLen := *hi
		return func(v string) *FieldError {
			if n := utf8.RuneCountInString(v); n > maxLen {
				return fieldError(f, StringLengthViolation, v,
					"field '%s' length exceeds the maximum of %d characters (got %d)", f.Name, maxLen, n)
			}
			return nil
		}
	}
	return nil
}

func opaqueCheck(f schema.Field) func(string) *FieldError {
	return func(v string) *FieldError {
		if f.Opaque != nil {
			if _, err := f.Opaque(v); err == nil {
				return nil
			}
		}
		return fieldError(f, InvalidOpaqueValue, v,
			"field '%s' value (%s) is invalid for type %s", f.Name, v, f.Scalar)
	}
}
