package manifest

import (
	"sort"
	"strings"
)

// Kind is the primitive/array/object kind of a parameter.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// ParseKind normalises a schema "type" string. Names coming from other
// languages' type systems are folded onto the JSON-schema kinds; anything
// unrecognised is treated as a string.
func ParseKind(t string) Kind {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "integer", "int", "int32", "int64", "long", "short", "uint", "byte":
		return KindInteger
	case "number", "float", "double", "decimal", "float32", "float64":
		return KindNumber
	case "boolean", "bool":
		return KindBoolean
	case "object", "map", "dict":
		return KindObject
	case "array", "list", "slice":
		return KindArray
	default:
		return KindString
	}
}

// Schema mirrors the JSON-schema-like parameter description carried by a tool.
type Schema struct {
	Type        string             `json:"type,omitempty" yaml:"type,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Title       string             `json:"title,omitempty" yaml:"title,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     any                `json:"default,omitempty" yaml:"default,omitempty"`
	Format      string             `json:"format,omitempty" yaml:"format,omitempty"`
}

// Parameter is one node of a tool's parameter tree.
type Parameter struct {
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required"`
	Default     any         `json:"default,omitempty"`
	Children    []Parameter `json:"children,omitempty"`
}

// Parameters derives the parameter tree of an object schema. Properties are
// returned with required ones first, each group sorted by name, so rendering
// and positional binding are stable.
func (s *Schema) Parameters() []Parameter {
	if s == nil || len(s.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})
	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		params = append(params, s.Properties[name].parameter(name, required[name]))
	}
	return params
}

func (s *Schema) parameter(name string, required bool) Parameter {
	if s == nil {
		return Parameter{Name: name, Kind: KindString, Required: required}
	}
	p := Parameter{
		Name:        name,
		Kind:        ParseKind(s.Type),
		Description: s.Description,
		Required:    required,
		Default:     s.Default,
	}
	switch p.Kind {
	case KindObject:
		p.Children = s.Parameters()
	case KindArray:
		if s.Items != nil {
			p.Children = []Parameter{s.Items.parameter("items", false)}
		}
	}
	return p
}

// ObjectSchema builds an object schema from a flat parameter list. It is the
// inverse of Parameters for generated manifests.
func ObjectSchema(params []Parameter) Schema {
	s := Schema{Type: string(KindObject), Properties: map[string]*Schema{}}
	for _, p := range params {
		s.Properties[p.Name] = p.schema()
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func (p Parameter) schema() *Schema {
	s := &Schema{Type: string(p.Kind), Description: p.Description, Default: p.Default}
	switch p.Kind {
	case KindObject:
		if len(p.Children) > 0 {
			obj := ObjectSchema(p.Children)
			s.Properties = obj.Properties
			s.Required = obj.Required
		}
	case KindArray:
		if len(p.Children) > 0 {
			s.Items = p.Children[0].schema()
		}
	}
	return s
}
