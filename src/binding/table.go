package binding

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Table is the capability table: type name to bound methods. Lookups return
// the first method registered under a name; later duplicates are kept but
// never reached.
type Table struct {
	mu     sync.RWMutex
	types  map[string][]Method
	logger *zap.Logger
}

// TableOption customises a Table.
type TableOption func(*Table)

// WithTableLogger sets the logger used to report duplicate registrations.
func WithTableLogger(l *zap.Logger) TableOption {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTable returns an empty capability table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{types: make(map[string][]Method), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add registers methods for typeName. It returns an error when a method
// declares more than MaxArgs parameters or has no invoker.
func (t *Table) Add(typeName string, methods ...Method) error {
	if typeName == "" {
		return fmt.Errorf("binding: type name is required")
	}
	for _, m := range methods {
		if m.invoke == nil {
			return fmt.Errorf("binding: %s.%s has no invoker; build it with Func* or Proc*", typeName, m.Name)
		}
		if len(m.Params) > MaxArgs {
			return fmt.Errorf("binding: %s.%s declares %d parameters, at most %d are supported", typeName, m.Name, len(m.Params), MaxArgs)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range methods {
		for _, existing := range t.types[typeName] {
			if existing.Name == m.Name {
				t.logger.Warn("duplicate method name; calls resolve to the first registration",
					zap.String("type", typeName), zap.String("method", m.Name))
				break
			}
		}
		t.types[typeName] = append(t.types[typeName], m)
	}
	return nil
}

// MustAdd is Add that panics on error, for static tables built at startup.
func (t *Table) MustAdd(typeName string, methods ...Method) {
	if err := t.Add(typeName, methods...); err != nil {
		panic(err)
	}
}

// Lookup finds the first method called name on typeName.
func (t *Table) Lookup(typeName, name string) (Method, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.types[typeName] {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Methods returns the reachable methods of typeName in registration order.
func (t *Table) Methods(typeName string) []Method {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	var out []Method
	for _, m := range t.types[typeName] {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out
}

// Types returns the registered type names in sorted order.
func (t *Table) Types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.types))
	for name := range t.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
