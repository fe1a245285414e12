package schema

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNestedOptional is returned for optional-of-optional declarations
	// such as **int; only one level of unwrapping is supported.
	ErrNestedOptional = errors.New("nested optional type not supported")
	// ErrUnsupportedType is returned for types that are neither builtin
	// scalars nor text-unmarshalable.
	ErrUnsupportedType = errors.New("unsupported field type")
)

// ClassifyType maps a declared Go type onto a ScalarKind.
//
// A pointer is the optional wrapper and is unwrapped once. A type whose
// pointer implements encoding.TextUnmarshaler is Opaque and parse is its
// UnmarshalText; otherwise builtin kinds map by reflect kind and bit size.
// parse is nil for non-Opaque kinds.
func ClassifyType(t reflect.Type) (sk ScalarKind, optional bool, parse ParseFunc, err error) {
	if t == nil {
		return ScalarKind{}, false, nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}
	if t.Kind() == reflect.Pointer {
		optional = true
		t = t.Elem()
		if t.Kind() == reflect.Pointer {
			return ScalarKind{}, false, nil, fmt.Errorf("%w: *%s", ErrNestedOptional, t)
		}
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return ScalarKind{Kind: Opaque, Name: t.String()}, optional, textParser(t), nil
	}

	name := t.String()
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ScalarKind{Kind: Unsigned, Bits: t.Bits(), Name: name}, optional, nil, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ScalarKind{Kind: Signed, Bits: t.Bits(), Name: name}, optional, nil, nil
	case reflect.Float32, reflect.Float64:
		return ScalarKind{Kind: Float, Bits: t.Bits(), Name: name}, optional, nil, nil
	case reflect.Bool:
		return ScalarKind{Kind: Bool, Name: name}, optional, nil, nil
	case reflect.String:
		return ScalarKind{Kind: Text, Name: name}, optional, nil, nil
	}
	return ScalarKind{}, false, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}
