package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
)

// VariableNotFoundError is returned when a variable has no value anywhere.
type VariableNotFoundError struct {
	Name string
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf("variable %q not found: set it in the environment, an env file or the variables section", e.Name)
}

// VariableSource is any variable-loading strategy.
type VariableSource interface {
	// Load returns all variables available from this source.
	Load() (map[string]string, error)
	// Get returns a single variable value or an error if not present.
	Get(key string) (string, error)
}

// DotEnv reads variables from a .env file.
type DotEnv struct {
	Path string
}

// NewDotEnv returns a source backed by the file at path.
func NewDotEnv(path string) *DotEnv {
	return &DotEnv{Path: path}
}

// Load reads the file.
func (d *DotEnv) Load() (map[string]string, error) {
	return godotenv.Read(d.Path)
}

// Get loads the file and looks up key.
func (d *DotEnv) Get(key string) (string, error) {
	vars, err := d.Load()
	if err != nil {
		return "", err
	}
	if val, ok := vars[key]; ok {
		return val, nil
	}
	return "", &VariableNotFoundError{Name: key}
}

// Resolver looks variables up in inline values, then each source in order,
// then the process environment.
type Resolver struct {
	Variables map[string]string
	Sources   []VariableSource
	getenv    func(string) string
}

// NewResolver creates a resolver.
func NewResolver(vars map[string]string, sources ...VariableSource) *Resolver {
	return &Resolver{Variables: vars, Sources: sources, getenv: os.Getenv}
}

var varRe = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// Lookup resolves a single variable.
func (r *Resolver) Lookup(key string) (string, error) {
	if v, ok := r.Variables[key]; ok {
		return v, nil
	}
	for _, src := range r.Sources {
		if val, err := src.Get(key); err == nil && val != "" {
			return val, nil
		}
	}
	if env := r.getenv(key); env != "" {
		return env, nil
	}
	return "", &VariableNotFoundError{Name: key}
}

// SubstituteString replaces ${VAR} and $VAR references in s. Unresolved
// references are left as written.
func (r *Resolver) SubstituteString(s string) string {
	return varRe.ReplaceAllStringFunc(s, func(match string) string {
		g := varRe.FindStringSubmatch(match)
		name := g[1]
		if name == "" {
			name = g[2]
		}
		val, err := r.Lookup(name)
		if err != nil {
			return match
		}
		return val
	})
}

// Substitute walks strings, maps and lists, substituting every string. It is
// shaped for manifest.WithTransform.
func (r *Resolver) Substitute(x any) any {
	switch v := x.(type) {
	case string:
		return r.SubstituteString(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = r.Substitute(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = r.Substitute(e)
		}
		return out
	default:
		return x
	}
}
