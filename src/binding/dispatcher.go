package binding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/registry"
)

// Command is the JSON shape accepted by ExecuteCommand.
type Command struct {
	Method string          `json:"method"`
	Class  string          `json:"class,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Dispatcher executes JSON calls against registered instances.
type Dispatcher struct {
	registry *registry.Registry
	table    *Table
	logger   *zap.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher binds a registry of instances to a capability table.
func NewDispatcher(reg *registry.Registry, table *Table, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: reg, table: table, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the capability registry the dispatcher resolves through.
func (d *Dispatcher) Registry() *registry.Registry { return d.registry }

// Call resolves and invokes method. class is the optional explicit owner tag;
// without it the owner is taken from a "Owner.Method" name.
func (d *Dispatcher) Call(ctx context.Context, method, class string, args json.RawMessage) (any, error) {
	owner, name, err := splitOwner(method, class)
	if err != nil {
		return nil, err
	}
	inst, err := d.registry.Resolve(owner)
	if err != nil {
		return nil, err
	}
	m, ok := d.table.Lookup(inst.TypeName, name)
	if !ok {
		return nil, protocol.Errorf(protocol.KindMethodNotFound, "%s has no method %q", owner, name)
	}
	values, err := bindArgs(m.Params, args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, protocol.Wrap(protocol.KindInvocationError, err, "%s.%s not started", owner, name)
	}

	d.logger.Debug("invoke", zap.String("instance", owner), zap.String("method", name))
	return inst.Invoke(func(v any) (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("native method panicked",
					zap.String("instance", owner), zap.String("method", name), zap.Any("panic", r))
				out, err = nil, protocol.Errorf(protocol.KindInvocationError, "%s.%s panicked: %v", owner, name, r)
			}
		}()
		out, err = m.invoke(v, values)
		if err != nil {
			if protocol.KindOf(err) == protocol.KindUnknown {
				err = &protocol.Error{Kind: protocol.KindInvocationError, Err: err}
			}
			return nil, err
		}
		return out, nil
	})
}

// Supports reports whether method (optionally tagged with class) resolves to
// a bound method.
func (d *Dispatcher) Supports(method, class string) bool {
	owner, name, err := splitOwner(method, class)
	if err != nil {
		return false
	}
	inst, err := d.registry.Resolve(owner)
	if err != nil {
		return false
	}
	_, ok := d.table.Lookup(inst.TypeName, name)
	return ok
}

// Execute runs method and returns {"result": ...} or {"error": "..."}. It
// never panics and never returns a nil slice.
func (d *Dispatcher) Execute(ctx context.Context, method string, args json.RawMessage) []byte {
	return d.envelope(d.Call(ctx, method, "", args))
}

// ExecuteCommand is Execute for a whole JSON command {"method","class","args"}.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, command []byte) []byte {
	var cmd Command
	if err := json.Unmarshal(command, &cmd); err != nil {
		return d.envelope(nil, protocol.Wrap(protocol.KindProtocolParseError, err, "command is not valid JSON"))
	}
	return d.envelope(d.Call(ctx, cmd.Method, cmd.Class, cmd.Args))
}

func (d *Dispatcher) envelope(result any, err error) []byte {
	if err == nil {
		out, merr := json.Marshal(map[string]any{"result": result})
		if merr == nil {
			return out
		}
		err = protocol.Wrap(protocol.KindInvocationError, merr, "result is not JSON encodable")
	}
	out, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return []byte(`{"error":"InvocationError: unencodable error"}`)
	}
	return out
}

// Manifest describes every registered instance as tools of moduleID. Method
// names exposed by more than one instance are qualified as "Owner.Method".
func (d *Dispatcher) Manifest(moduleID string) *manifest.Manifest {
	type entry struct {
		owner  string
		method Method
	}
	var entries []entry
	count := make(map[string]int)
	for _, id := range d.registry.IDs() {
		inst, err := d.registry.Resolve(id)
		if err != nil {
			continue
		}
		for _, m := range d.table.Methods(inst.TypeName) {
			entries = append(entries, entry{owner: id, method: m})
			count[m.Name]++
		}
	}

	m := &manifest.Manifest{ModuleID: moduleID, Version: manifest.Version}
	for _, e := range entries {
		tool := e.method.Tool(e.owner)
		if count[tool.Name] > 1 {
			tool.Name = e.owner + "." + tool.Name
		}
		m.Tools = append(m.Tools, tool)
	}
	return m
}

func splitOwner(method, class string) (owner, name string, err error) {
	method = strings.TrimSpace(method)
	class = strings.TrimSpace(class)
	if method == "" {
		return "", "", protocol.Errorf(protocol.KindInvalidCommand, "method name is required")
	}
	if class != "" {
		return class, strings.TrimPrefix(method, class+"."), nil
	}
	i := strings.LastIndex(method, ".")
	if i <= 0 || i == len(method)-1 {
		return "", "", protocol.Errorf(protocol.KindInvalidCommand,
			"cannot resolve owner of %q: use Owner.Method or pass a class", method)
	}
	return method[:i], method[i+1:], nil
}

// String implements fmt.Stringer for logs.
func (c Command) String() string {
	if c.Class == "" {
		return c.Method
	}
	return fmt.Sprintf("%s.%s", c.Class, strings.TrimPrefix(c.Method, c.Class+"."))
}
