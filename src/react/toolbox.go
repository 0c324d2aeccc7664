package react

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/binding"
	"github.com/RAIL-Suite/RAIL-sub001/src/broker"
	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

// Toolbox is the action vocabulary of the loop and the way to execute it.
type Toolbox interface {
	Tools(ctx context.Context) ([]manifest.Tool, error)
	Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// LocalToolbox calls methods of this process through a Dispatcher.
type LocalToolbox struct {
	dispatcher *binding.Dispatcher
	moduleID   string
}

// NewLocalToolbox exposes d under moduleID.
func NewLocalToolbox(d *binding.Dispatcher, moduleID string) *LocalToolbox {
	return &LocalToolbox{dispatcher: d, moduleID: moduleID}
}

// Tools lists the methods bound to registered instances.
func (t *LocalToolbox) Tools(ctx context.Context) ([]manifest.Tool, error) {
	return t.dispatcher.Manifest(t.moduleID).Tools, nil
}

// Call resolves the owning instance from the manifest and dispatches.
func (t *LocalToolbox) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	class := ""
	if tool, ok := t.dispatcher.Manifest(t.moduleID).Lookup(name); ok {
		name, class = tool.Name, tool.Owner
	} else if !strings.Contains(name, ".") {
		return nil, protocol.Errorf(protocol.KindMethodNotFound, "unknown method %q", name)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindArgumentError, err, "encode arguments")
	}
	result, err := t.dispatcher.Call(ctx, name, class, raw)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindInvocationError, err, "encode result of %s", name)
	}
	return out, nil
}

// BrokerToolbox routes calls through a Broker running in this process.
type BrokerToolbox struct {
	broker *broker.Broker
}

// NewBrokerToolbox wraps b.
func NewBrokerToolbox(b *broker.Broker) *BrokerToolbox {
	return &BrokerToolbox{broker: b}
}

// Tools returns the union of tools advertised by live sessions.
func (t *BrokerToolbox) Tools(ctx context.Context) ([]manifest.Tool, error) {
	return t.broker.Tools(), nil
}

// Call routes to the session that most recently advertised name.
func (t *BrokerToolbox) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	return t.broker.Route(ctx, name, "", args)
}

// RemoteToolbox reaches a broker in another process over the transport.
type RemoteToolbox struct {
	client   *transport.Client
	endpoint protocol.Endpoint
}

// NewRemoteToolbox talks to the broker at ep.
func NewRemoteToolbox(c *transport.Client, ep protocol.Endpoint) *RemoteToolbox {
	return &RemoteToolbox{client: c, endpoint: ep}
}

// Tools asks the broker for its sessions and merges their tools. Later
// sessions win for duplicate names, matching broker routing.
func (t *RemoteToolbox) Tools(ctx context.Context) ([]manifest.Tool, error) {
	resp, err := t.client.List(ctx, t.endpoint)
	if err != nil {
		return nil, err
	}
	var list broker.ListResult
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	var tools []manifest.Tool
	for _, s := range list.Sessions {
		tools = mergeTools(tools, s.Tools)
	}
	return tools, nil
}

// Call sends an EXECUTE to the broker.
func (t *RemoteToolbox) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	return t.client.Execute(ctx, t.endpoint, name, "", args)
}

// Router prefers the broker and falls back to local methods when no broker
// client advertises the method or the broker cannot be reached. A call that
// may already have reached the broker is never retried locally.
type Router struct {
	remote Toolbox
	local  Toolbox
	logger *zap.Logger
}

// NewRouter combines remote and local. Either may be nil.
func NewRouter(remote, local Toolbox, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{remote: remote, local: local, logger: logger}
}

// Tools merges both vocabularies; broker tools shadow local ones.
func (r *Router) Tools(ctx context.Context) ([]manifest.Tool, error) {
	var tools []manifest.Tool
	if r.local != nil {
		local, err := r.local.Tools(ctx)
		if err != nil {
			return nil, err
		}
		tools = mergeTools(tools, local)
	}
	if r.remote != nil {
		remote, err := r.remote.Tools(ctx)
		switch {
		case err == nil:
			tools = mergeTools(tools, remote)
		case r.local != nil && fallsBack(err):
			r.logger.Warn("broker unavailable, using local tools only", zap.Error(err))
		default:
			return nil, err
		}
	}
	return tools, nil
}

// Call tries the broker first.
func (r *Router) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if r.remote == nil {
		return r.local.Call(ctx, name, args)
	}
	result, err := r.remote.Call(ctx, name, args)
	if err == nil || r.local == nil || !callFallsBack(err) {
		return result, err
	}
	r.logger.Debug("falling back to local dispatch", zap.String("method", name), zap.Error(err))
	return r.local.Call(ctx, name, args)
}

// callFallsBack is the narrower rule for Call: only errors raised before the
// request left this process.
func callFallsBack(err error) bool {
	return protocol.KindOf(err) == protocol.KindNoCapableClient || transport.IsConnectFailure(err)
}

func fallsBack(err error) bool {
	switch protocol.KindOf(err) {
	case protocol.KindNoCapableClient, protocol.KindConnectionTimeout, protocol.KindConnectionBroken:
		return true
	}
	return false
}

func mergeTools(base, overlay []manifest.Tool) []manifest.Tool {
	byName := make(map[string]manifest.Tool, len(base)+len(overlay))
	for _, t := range base {
		byName[t.Name] = t
	}
	for _, t := range overlay {
		byName[t.Name] = t
	}
	out := make([]manifest.Tool, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
