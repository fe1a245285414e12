package schema

import (
	"encoding"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ParseFunc converts raw text into a typed value for an Opaque field.
type ParseFunc func(string) (any, error)

var (
	opaqueMu sync.RWMutex
	opaque   = map[string]ParseFunc{
		"date": func(s string) (any, error) { return time.Parse(time.DateOnly, s) },
		"datetime": func(s string) (any, error) {
			return time.Parse(time.RFC3339, s)
		},
		"timestamp": func(s string) (any, error) {
			return time.Parse(time.RFC3339, s)
		},
		"duration": func(s string) (any, error) { return time.ParseDuration(s) },
		"uuid":     func(s string) (any, error) { return uuid.Parse(s) },
	}
)

// RegisterOpaque installs a parser for a contract type name that is not in
// the scalar table. Registering an existing name overrides it.
func RegisterOpaque(name string, fn ParseFunc) {
	if name == "" || fn == nil {
		return
	}
	opaqueMu.Lock()
	opaque[name] = fn
	opaqueMu.Unlock()
}

// LookupOpaque returns the parser registered for name.
func LookupOpaque(name string) (ParseFunc, bool) {
	opaqueMu.RLock()
	defer opaqueMu.RUnlock()
	fn, ok := opaque[name]
	return fn, ok
}

// OpaqueNames lists registered opaque type names, sorted.
func OpaqueNames() []string {
	opaqueMu.RLock()
	defer opaqueMu.RUnlock()
	out := make([]string, 0, len(opaque))
	for k := range opaque {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// textParser builds a ParseFunc for t, which must implement
// encoding.TextUnmarshaler through its pointer. The returned value has type t.
func textParser(t reflect.Type) ParseFunc {
	return func(s string) (any, error) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return p.Elem().Interface(), nil
	}
}
