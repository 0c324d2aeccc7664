// Package registry maps logical instance names to the native objects that own
// callable methods. Each entry carries its own mutex so that a non-reentrant
// object is only ever driven by one call at a time.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// Instance is a registered native object.
type Instance struct {
	ID       string
	TypeName string
	Value    any

	mu sync.Mutex
}

// Invoke runs fn with exclusive access to the instance.
func (i *Instance) Invoke(fn func(value any) (any, error)) (any, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return fn(i.Value)
}

// Option customises a registration.
type Option func(*Instance)

// WithTypeName sets the capability type the instance is dispatched as. The
// default is the instance id.
func WithTypeName(name string) Option {
	return func(i *Instance) {
		if strings.TrimSpace(name) != "" {
			i.TypeName = name
		}
	}
}

// Registry is the capability registry. The zero value is not usable; call New.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// Register binds id to value. A later registration under the same id replaces
// the earlier one. The registry keeps a reference; the caller owns lifetime.
func (r *Registry) Register(id string, value any, opts ...Option) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("registry: instance id is required")
	}
	if value == nil {
		return errors.New("registry: instance value is nil")
	}
	inst := &Instance{ID: id, TypeName: id, Value: value}
	for _, opt := range opts {
		opt(inst)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[id] = inst
	return nil
}

// Resolve looks up id. A missing id yields an InstanceNotFound error.
func (r *Registry) Resolve(id string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, protocol.Errorf(protocol.KindInstanceNotFound, "no instance registered as %q", id)
	}
	return inst, nil
}

// Unregister removes id and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[id]; !ok {
		return false
	}
	delete(r.instances, id)
	return true
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instances))
	for id := range r.instances {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
