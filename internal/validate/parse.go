package validate

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"rawcheck/internal/schema"
)

// Parse converts raw text into the field's typed value. It is the same
// conversion the rules use, so any value that passes validation parses.
//
// Result types: uint64 or *big.Int (128-bit) for Unsigned, int64 or
// *big.Int for Signed, float64 for Float, bool, string, and whatever the
// opaque parser returns.
func Parse(f schema.Field, v string) (any, error) {
	switch f.Scalar.Kind {
	case schema.Unsigned:
		if strings.HasPrefix(v, "-") {
			return nil, &strconv.NumError{Func: "ParseUint", Num: v, Err: strconv.ErrSyntax}
		}
		return parseUnsigned(v, f.Scalar.Bits)
	case schema.Signed:
		return parseSigned(v, f.Scalar.Bits)
	case schema.Float:
		return parseFloat(v, f.Scalar.Bits)
	case schema.Bool:
		return parseBool(v)
	case schema.Text:
		return v, nil
	default:
		if f.Opaque == nil {
			return nil, fmt.Errorf("field %q: no parser for type %s", f.Name, f.Scalar)
		}
		return f.Opaque(v)
	}
}

// parseUnsigned accepts one optional leading '+'. Callers reject a leading
// '-' first so negatives get their own code.
func parseUnsigned(v string, bits int) (any, error) {
	digits := strings.TrimPrefix(v, "+")
	if strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
		return nil, &strconv.NumError{Func: "ParseUint", Num: v, Err: strconv.ErrSyntax}
	}
	if bits <= 64 {
		n, err := strconv.ParseUint(digits, 10, bits)
		if err != nil {
			return nil, &strconv.NumError{Func: "ParseUint", Num: v, Err: errors.Unwrap(err)}
		}
		return n, nil
	}
	n, err := parseBig(digits, "ParseUint")
	if err != nil {
		return nil, err
	}
	lo, hi := bounds(schema.Unsigned, bits)
	if n.Cmp(lo) < 0 || n.Cmp(hi) > 0 {
		return nil, &strconv.NumError{Func: "ParseUint", Num: v, Err: strconv.ErrRange}
	}
	return n, nil
}

func parseSigned(v string, bits int) (any, error) {
	if bits <= 64 {
		return strconv.ParseInt(v, 10, bits)
	}
	n, err := parseBig(v, "ParseInt")
	if err != nil {
		return nil, err
	}
	lo, hi := bounds(schema.Signed, bits)
	if n.Cmp(lo) < 0 || n.Cmp(hi) > 0 {
		return nil, &strconv.NumError{Func: "ParseInt", Num: v, Err: strconv.ErrRange}
	}
	return n, nil
}

// parseBig accepts the same syntax as strconv.ParseInt with base 10: an
// optional sign followed by decimal digits.
func parseBig(v, fn string) (*big.Int, error) {
	digits := strings.TrimLeft(v, "+-")
	if len(v)-len(digits) > 1 || digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return nil, &strconv.NumError{Func: fn, Num: v, Err: strconv.ErrSyntax}
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, &strconv.NumError{Func: fn, Num: v, Err: strconv.ErrSyntax}
	}
	return n, nil
}

// parseFloat rejects hexadecimal mantissas ("0x1p4") and maps overflow to
// a signed infinity instead of an error.
func parseFloat(v string, bits int) (float64, error) {
	mant := strings.TrimLeft(v, "+-")
	if strings.HasPrefix(mant, "0x") || strings.HasPrefix(mant, "0X") {
		return 0, &strconv.NumError{Func: "ParseFloat", Num: v, Err: strconv.ErrSyntax}
	}
	f, err := strconv.ParseFloat(v, bits)
	if err != nil && errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
		return f, nil
	}
	return f, err
}

// parseBool accepts true, false, 1 and 0, ignoring case.
func parseBool(v string) (bool, error) {
	switch {
	case v == "1" || strings.EqualFold(v, "true"):
		return true, nil
	case v == "0" || strings.EqualFold(v, "false"):
		return false, nil
	}
	return false, &strconv.NumError{Func: "parseBool", Num: v, Err: strconv.ErrSyntax}
}

// bounds returns the representable range of an integer kind of the given
// width.
func bounds(k schema.Kind, bits int) (lo, hi *big.Int) {
	one := big.NewInt(1)
	if k == schema.Unsigned {
		hi = new(big.Int).Lsh(one, uint(bits))
		return big.NewInt(0), hi.Sub(hi, one)
	}
	hi = new(big.Int).Lsh(one, uint(bits-1))
	lo = new(big.Int).Neg(hi)
	return lo, hi.Sub(hi, one)
}
