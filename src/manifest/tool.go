package manifest

import (
	"fmt"
	"strings"
)

// Tool holds the metadata for a single callable method of a process.
type Tool struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Owner       string   `json:"class,omitempty" yaml:"class,omitempty"`
	Parameters  Schema   `json:"parameters" yaml:"parameters"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// QualifiedName returns "Owner.Name", or just Name when the tool has no owner.
func (t Tool) QualifiedName() string {
	if t.Owner == "" || strings.HasPrefix(t.Name, t.Owner+".") {
		return t.Name
	}
	return t.Owner + "." + t.Name
}

// Params returns the tool's parameter tree.
func (t Tool) Params() []Parameter {
	return t.Parameters.Parameters()
}

// Signature renders the tool as "Name(a: string, b?: integer)".
func (t Tool) Signature() string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteByte('(')
	for i, p := range t.Params() {
		if i > 0 {
			b.WriteString(", ")
		}
		writeParam(&b, p)
	}
	b.WriteByte(')')
	return b.String()
}

func writeParam(b *strings.Builder, p Parameter) {
	b.WriteString(p.Name)
	if !p.Required {
		b.WriteByte('?')
	}
	b.WriteString(": ")
	switch p.Kind {
	case KindObject:
		if len(p.Children) == 0 {
			b.WriteString("object")
			return
		}
		b.WriteString("{")
		for i, c := range p.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			writeParam(b, c)
		}
		b.WriteString("}")
	case KindArray:
		if len(p.Children) == 0 {
			b.WriteString("array")
			return
		}
		fmt.Fprintf(b, "%s[]", p.Children[0].Kind)
	default:
		b.WriteString(string(p.Kind))
	}
}

// Render returns a one-line, human readable description of the tool.
func (t Tool) Render() string {
	if t.Description == "" {
		return t.Signature()
	}
	return t.Signature() + " - " + t.Description
}
