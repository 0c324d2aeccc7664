package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

// Format selects the encoding of a manifest document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type loadConfig struct {
	transform func(any) any
}

// LoadOption customises Parse and LoadFile.
type LoadOption func(*loadConfig)

// WithTransform runs fn over the decoded document tree before it is bound to a
// Manifest. Variable substitution plugs in here.
func WithTransform(fn func(any) any) LoadOption {
	return func(cfg *loadConfig) {
		cfg.transform = fn
	}
}

// FormatFor picks the format from a file extension; JSON is the default.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads, normalises and validates a manifest file.
func LoadFile(path string, opts ...LoadOption) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read manifest %q: %w", path, err)
	}
	m, err := Parse(data, FormatFor(path), opts...)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest document, normalises composite modules and checks
// the manifest invariants.
func Parse(data []byte, format Format, opts ...LoadOption) (*Manifest, error) {
	cfg := &loadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	if cfg.transform != nil {
		raw = cfg.transform(raw)
	}

	blob, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest structure: %w", err)
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
