package validate

import "errors"

// Code classifies a field error.
type Code string

const (
	RequiredFieldMissing     Code = "required_field_missing"
	NegativeValueForUnsigned Code = "negative_value_for_unsigned"
	MalformedNumber          Code = "malformed_number"
	OutOfRange               Code = "out_of_range"
	InvalidFloat             Code = "invalid_float"
	InvalidBoolean           Code = "invalid_boolean"
	StringLengthViolation    Code = "string_length_violation"
	InvalidOpaqueValue       Code = "invalid_opaque_value"
)

// Sentinels matched by errors.Is against a FieldError or a Report.
var (
	ErrRequired      = errors.New("field is required")
	ErrNegative      = errors.New("negative value for unsigned type")
	ErrMalformed     = errors.New("not a number")
	ErrOutOfRange    = errors.New("value exceeds type range")
	ErrInvalidFloat  = errors.New("not a valid floating point number")
	ErrInvalidBool   = errors.New("not a boolean")
	ErrLength        = errors.New("string length violation")
	ErrInvalidOpaque = errors.New("invalid value for type")

	// ErrSchemaMismatch is returned when a record built for one schema is
	// passed to a validator compiled for another.
	ErrSchemaMismatch = errors.New("record schema does not match validator")
	// ErrNotDecodable is returned by Decode for contract schemas or for a
	// destination that is not a pointer to the schema's struct type.
	ErrNotDecodable = errors.New("destination not decodable")
)

var codeErrs = map[Code]error{
	RequiredFieldMissing:     ErrRequired,
	NegativeValueForUnsigned: ErrNegative,
	MalformedNumber:          ErrMalformed,
	OutOfRange:               ErrOutOfRange,
	InvalidFloat:             ErrInvalidFloat,
	InvalidBoolean:           ErrInvalidBool,
	StringLengthViolation:    ErrLength,
	InvalidOpaqueValue:       ErrInvalidOpaque,
}

// Err returns the sentinel error for c.
func (c Code) Err() error { return codeErrs[c] }

// Codes lists every code in taxonomy order.
func Codes() []Code {
	return []Code{
		RequiredFieldMissing,
		NegativeValueForUnsigned,
		MalformedNumber,
		OutOfRange,
		InvalidFloat,
		InvalidBoolean,
		StringLengthViolation,
		InvalidOpaqueValue,
	}
}

// FieldError is a single problem with one field's raw value.
type FieldError struct {
	Field   string
	Code    Code
	Value   string // offending raw text; empty for RequiredFieldMissing
	Message string
}

func (e FieldError) Error() string { return e.Message }

// Unwrap exposes the code's sentinel to errors.Is.
func (e FieldError) Unwrap() error { return e.Code.Err() }
