package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Constraint keys recognized in a validate annotation.
const (
	KeyMinLength = "min_length"
	KeyMaxLength = "max_length"
)

// ErrConstraint marks a malformed or unrecognized constraint annotation.
// It is only returned in strict mode.
var ErrConstraint = errors.New("invalid constraint")

// Constraints holds the declared text-length bounds of a field. A nil bound
// is absent.
type Constraints struct {
	MinLength *int
	MaxLength *int
}

// IsZero reports whether no bound is declared.
func (c Constraints) IsZero() bool { return c.MinLength == nil && c.MaxLength == nil }

func (c Constraints) String() string {
	var parts []string
	if c.MinLength != nil {
		parts = append(parts, KeyMinLength+"="+strconv.Itoa(*c.MinLength))
	}
	if c.MaxLength != nil {
		parts = append(parts, KeyMaxLength+"="+strconv.Itoa(*c.MaxLength))
	}
	return strings.Join(parts, ",")
}

// ParseConstraints reads a validate annotation such as
// "min_length=5,max_length=10".
//
// A bound is populated only when its value is a non-negative base-10
// integer. In lenient mode (strict == false) malformed values, unknown keys
// and stray tokens are dropped without error. In strict mode each of those
// is reported as an ErrConstraint, as is min_length > max_length.
// When a key repeats, the last well-formed value wins.
func ParseConstraints(tag string, strict bool) (Constraints, error) {
	var (
		c    Constraints
		errs []error
	)
	for _, tok := range strings.Split(tag, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key, val, ok := strings.Cut(tok, "=")
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q is not key=value", ErrConstraint, tok))
			continue
		}

		var dst **int
		switch key {
		case KeyMinLength:
			dst = &c.MinLength
		case KeyMaxLength:
			dst = &c.MaxLength
		default:
			errs = append(errs, fmt.Errorf("%w: unknown key %q", ErrConstraint, key))
			continue
		}

		n, ok := parseLength(val)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a non-negative integer", ErrConstraint, key, val))
			continue
		}
		*dst = &n
	}

	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		errs = append(errs, fmt.Errorf("%w: %s=%d exceeds %s=%d",
			ErrConstraint, KeyMinLength, *c.MinLength, KeyMaxLength, *c.MaxLength))
	}

	if strict && len(errs) > 0 {
		return Constraints{}, errors.Join(errs...)
	}
	return c, nil
}

// parseLength accepts only plain decimal digits; signs are rejected.
func parseLength(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
