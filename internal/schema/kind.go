package schema

import (
	"fmt"
	"strconv"
)

// Kind is the closed classification of a field's target scalar type.
type Kind uint8

const (
	// Opaque covers any type not recognized by name. Values are checked by
	// attempting the declared type's own text parser.
	Opaque Kind = iota
	Unsigned
	Signed
	Float
	Bool
	Text
)

func (k Kind) String() string {
	switch k {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Text:
		return "text"
	default:
		return "opaque"
	}
}

// ScalarKind is a Kind plus its width and the declared type name used in
// error messages (e.g. "uint16", "time.Time").
type ScalarKind struct {
	Kind Kind
	Bits int // 8..128 for integers, 32/64 for floats, 0 otherwise
	Name string
}

func (s ScalarKind) String() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Bits > 0 {
		return s.Kind.String() + strconv.Itoa(s.Bits)
	}
	return s.Kind.String()
}

// names is the fixed table of recognized scalar type names. Aliases resolve
// to the canonical Go spelling so messages stay consistent.
var names = func() map[string]ScalarKind {
	m := make(map[string]ScalarKind, 48)
	for _, bits := range []int{8, 16, 32, 64, 128} {
		u := ScalarKind{Kind: Unsigned, Bits: bits, Name: fmt.Sprintf("uint%d", bits)}
		i := ScalarKind{Kind: Signed, Bits: bits, Name: fmt.Sprintf("int%d", bits)}
		m[u.Name] = u
		m[i.Name] = i
		m[fmt.Sprintf("u%d", bits)] = u
		m[fmt.Sprintf("i%d", bits)] = i
	}
	for _, bits := range []int{32, 64} {
		f := ScalarKind{Kind: Float, Bits: bits, Name: fmt.Sprintf("float%d", bits)}
		m[f.Name] = f
		m[fmt.Sprintf("f%d", bits)] = f
	}
	m["uint"] = ScalarKind{Kind: Unsigned, Bits: strconv.IntSize, Name: "uint"}
	m["int"] = ScalarKind{Kind: Signed, Bits: strconv.IntSize, Name: "int"}
	m["byte"] = m["uint8"]
	m["rune"] = m["int32"]
	m["bool"] = ScalarKind{Kind: Bool, Name: "bool"}
	m["string"] = ScalarKind{Kind: Text, Name: "string"}
	m["text"] = m["string"]
	return m
}()

// ClassifyName looks name up in the fixed scalar table by exact match.
// Unmatched names classify as Opaque and report ok == false.
func ClassifyName(name string) (ScalarKind, bool) {
	if sk, ok := names[name]; ok {
		return sk, true
	}
	return ScalarKind{Kind: Opaque, Name: name}, false
}
