package binding

import (
	"reflect"
	"strings"

	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
)

// ParamSpec declares one parameter of a bound method.
type ParamSpec struct {
	Name        string
	Description string
	Kind        manifest.Kind
	Required    bool
	Default     any
}

// ParamOption customises a ParamSpec.
type ParamOption func(*ParamSpec)

// Param declares a required parameter. Its kind is derived from the Go type
// of the method argument it is bound to.
func Param(name string, opts ...ParamOption) ParamSpec {
	p := ParamSpec{Name: name, Required: true}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Optional marks the parameter optional with the given default. A nil default
// means the Go zero value.
func Optional(def any) ParamOption {
	return func(p *ParamSpec) {
		p.Required = false
		p.Default = def
	}
}

// Describe attaches a description rendered into manifests and prompts.
func Describe(text string) ParamOption {
	return func(p *ParamSpec) { p.Description = text }
}

// AsKind overrides the derived kind.
func AsKind(k manifest.Kind) ParamOption {
	return func(p *ParamSpec) { p.Kind = k }
}

func (p ParamSpec) parameter() manifest.Parameter {
	return manifest.Parameter{
		Name:        p.Name,
		Kind:        p.Kind,
		Description: p.Description,
		Required:    p.Required,
		Default:     p.Default,
	}
}

func withKind[T any](p ParamSpec) ParamSpec {
	if p.Kind == "" {
		p.Kind = kindOf(reflect.TypeOf((*T)(nil)).Elem())
	}
	if strings.TrimSpace(p.Name) == "" {
		panic("binding: parameter name is required")
	}
	return p
}

func kindOf(t reflect.Type) manifest.Kind {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return manifest.KindBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return manifest.KindInteger
	case reflect.Float32, reflect.Float64:
		return manifest.KindNumber
	case reflect.Slice, reflect.Array:
		return manifest.KindArray
	case reflect.Map, reflect.Struct:
		return manifest.KindObject
	default:
		return manifest.KindString
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
