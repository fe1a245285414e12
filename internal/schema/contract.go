package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is returned when a contract names a type that is neither in
// the scalar table nor registered as an opaque parser.
var ErrUnknownType = errors.New("unknown field type")

// ContractField declares one field of a JSON contract.
type ContractField struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "uint16" | "int32" | "float64" | "bool" | "string" | "date" | ...
	Optional bool   `json:"optional,omitempty"`
	Validate string `json:"validate,omitempty"` // e.g. "min_length=5,max_length=10"
}

// Contract is a record declaration loaded from configuration.
type Contract struct {
	Name      string            `json:"name"`
	Strict    bool              `json:"strict,omitempty"`
	Fields    []ContractField   `json:"fields"`
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// FromContract builds a schema from a contract. The contract's Strict flag is
// combined with WithStrict: either one enables strict constraint parsing.
func FromContract(c Contract, opts ...Option) (*Schema, error) {
	o := buildOptions(opts)
	strict := o.strict || c.Strict

	fields := make([]Field, 0, len(c.Fields))
	for i, cf := range c.Fields {
		typ := strings.TrimSpace(cf.Type)
		sk, ok := ClassifyName(typ)
		var parse ParseFunc
		if !ok {
			parse, ok = LookupOpaque(typ)
			if !ok {
				return nil, fmt.Errorf("fields[%d] %q: %w %q", i, cf.Name, ErrUnknownType, cf.Type)
			}
		}
		cons, err := ParseConstraints(cf.Validate, strict)
		if err != nil {
			return nil, fmt.Errorf("fields[%d] %q: %w", i, cf.Name, err)
		}
		fields = append(fields, Field{
			Name:        cf.Name,
			Scalar:      sk,
			Optional:    cf.Optional,
			Constraints: cons,
			Opaque:      parse,
		})
	}
	return newSchema(c.Name, fields, nil)
}
