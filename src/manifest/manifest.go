// Package manifest describes what a process exposes: a module id and the tools
// (methods) callable on it, each with a JSON-schema-like parameter tree.
package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Version is the manifest format version written by generators.
const Version = "1.0"

// Module is one logical component inside a composite manifest.
type Module struct {
	ModuleID    string `json:"moduleId" yaml:"moduleId"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Tools       []Tool `json:"tools" yaml:"tools"`
}

// Manifest is the callable surface a process advertises. It is treated as
// immutable once loaded.
type Manifest struct {
	ModuleID    string   `json:"moduleId" yaml:"moduleId"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tools       []Tool   `json:"tools" yaml:"tools"`
	Modules     []Module `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// Normalize flattens a composite manifest into a single tool list. Tools
// inherit their module id as owner when they do not name one. Module id of a
// composite without one of its own becomes the first module's id.
func (m *Manifest) Normalize() {
	if m.Version == "" {
		m.Version = Version
	}
	for _, mod := range m.Modules {
		for _, t := range mod.Tools {
			if t.Owner == "" {
				t.Owner = mod.ModuleID
			}
			m.Tools = append(m.Tools, t)
		}
		if m.ModuleID == "" {
			m.ModuleID = mod.ModuleID
		}
	}
	m.Modules = nil
}

// Validate enforces the load-time invariants: a module id, named tools and
// names unique within the manifest.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.ModuleID) == "" {
		return errors.New("manifest: moduleId is required")
	}
	seen := make(map[string]struct{}, len(m.Tools))
	var dups []string
	for i, t := range m.Tools {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("manifest %s: tool #%d has no name", m.ModuleID, i)
		}
		if _, ok := seen[t.Name]; ok {
			dups = append(dups, t.Name)
			continue
		}
		seen[t.Name] = struct{}{}
	}
	if len(dups) > 0 {
		return fmt.Errorf("manifest %s: duplicate tool names: %s", m.ModuleID, strings.Join(dups, ", "))
	}
	return nil
}

// Lookup finds a tool by plain name or by "Owner.Name".
func (m *Manifest) Lookup(name string) (Tool, bool) {
	for _, t := range m.Tools {
		if t.Name == name {
			return t, true
		}
	}
	for _, t := range m.Tools {
		if t.QualifiedName() == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Names returns the tool names in manifest order.
func (m *Manifest) Names() []string {
	out := make([]string, 0, len(m.Tools))
	for _, t := range m.Tools {
		out = append(out, t.Name)
	}
	return out
}

// Render lists every tool, one per line, for prompts and CLI output.
func Render(tools []Tool) string {
	var b strings.Builder
	for _, t := range tools {
		b.WriteString("- ")
		b.WriteString(t.Render())
		b.WriteByte('\n')
	}
	return b.String()
}
