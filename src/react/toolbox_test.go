package react

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAIL-Suite/RAIL-sub001/src/binding"
	"github.com/RAIL-Suite/RAIL-sub001/src/broker"
	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/llm"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/provider"
	"github.com/RAIL-Suite/RAIL-sub001/src/registry"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

func serve(t *testing.T, ln net.Listener, run func(context.Context, net.Listener) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = run(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// startRemoteStockroom serves a stockroom holding qty of M1 and registers it
// with b.
func startRemoteStockroom(t *testing.T, b *broker.Broker, qty int) {
	t.Helper()
	table := binding.NewTable()
	table.MustAdd("Stockroom", binding.Func1("CheckInventory", (*stockroom).Check, binding.Param("code")))
	reg := registry.New()
	require.NoError(t, reg.Register("Remote", &stockroom{stock: map[string]int{"M1": qty}}, registry.WithTypeName("Stockroom")))
	d := binding.NewDispatcher(reg, table)
	m := d.Manifest("remote")
	srv := provider.NewServer(d, m)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serve(t, ln, srv.Serve)
	b.Register(m, transport.EndpointOf(ln))
}

func startBroker(t *testing.T, b *broker.Broker) protocol.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serve(t, ln, b.Serve)
	return transport.EndpointOf(ln)
}

func deadEndpoint(t *testing.T) protocol.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := transport.EndpointOf(ln)
	require.NoError(t, ln.Close())
	return ep
}

func callString(t *testing.T, tb Toolbox, name string, args map[string]any) string {
	t.Helper()
	raw, err := tb.Call(context.Background(), name, args)
	require.NoError(t, err)
	return string(raw)
}

func TestLocalToolbox(t *testing.T) {
	local := newLocalToolbox(t)
	tools, err := local.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	assert.Equal(t, "12", callString(t, local, "CheckInventory", map[string]any{"code": "M1"}))
	assert.Equal(t, "12", callString(t, local, "Inventory.CheckInventory", map[string]any{"code": "M1"}))

	_, err = local.Call(context.Background(), "Teleport", nil)
	assert.ErrorIs(t, err, protocol.ErrMethodNotFound)
}

func TestRouterPrefersBroker(t *testing.T) {
	b := broker.New()
	startRemoteStockroom(t, b, 99)
	r := NewRouter(NewBrokerToolbox(b), newLocalToolbox(t), nil)

	assert.Equal(t, "99", callString(t, r, "CheckInventory", map[string]any{"code": "M1"}))
	// Restock is only served locally.
	assert.Equal(t, "13", callString(t, r, "Restock", map[string]any{"code": "M1", "qty": 1}))

	tools, err := r.Tools(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"CheckInventory", "Restock"}, names)
	assert.Equal(t, "Remote", tools[0].Owner, "broker tools shadow local ones")
}

func TestRouterFallsBackWhenBrokerDown(t *testing.T) {
	remote := NewRemoteToolbox(transport.NewClient(), deadEndpoint(t))
	r := NewRouter(remote, newLocalToolbox(t), nil)

	assert.Equal(t, "12", callString(t, r, "CheckInventory", map[string]any{"code": "M1"}))
	tools, err := r.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestRouterKeepsRemoteDispatchErrors(t *testing.T) {
	remoteErr := protocol.Errorf(protocol.KindArgumentError, "bad qty")
	remote := &stubToolbox{
		tools: []manifest.Tool{{Name: "Restock", Owner: "Elsewhere"}},
		err:   remoteErr,
	}
	r := NewRouter(remote, newLocalToolbox(t), nil)

	_, err := r.Call(context.Background(), "Restock", map[string]any{"code": "M1", "qty": 1})
	assert.Same(t, remoteErr, err)
}

func TestRouterDoesNotRetryAfterRequestSent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"peer closed mid-call", protocol.Errorf(protocol.KindConnectionBroken, "await response: connection closed by peer")},
		{"response timed out", protocol.Errorf(protocol.KindConnectionTimeout, "await response: deadline exceeded")},
		{"caller cancelled", protocol.Wrap(protocol.KindConnectionBroken, context.Canceled, "await response")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			local := newLocalToolbox(t)
			r := NewRouter(&stubToolbox{err: tc.err}, local, nil)

			_, err := r.Call(context.Background(), "Restock", map[string]any{"code": "M1", "qty": 1})
			assert.Same(t, tc.err, err)
			assert.Equal(t, "12", callString(t, local, "CheckInventory", map[string]any{"code": "M1"}),
				"local Restock must not run")
		})
	}
}

func TestRouterWithoutLocal(t *testing.T) {
	r := NewRouter(NewBrokerToolbox(broker.New()), nil, nil)
	_, err := r.Call(context.Background(), "CheckInventory", nil)
	assert.ErrorIs(t, err, protocol.ErrNoCapableClient)

	r = NewRouter(NewRemoteToolbox(transport.NewClient(), deadEndpoint(t)), nil, nil)
	_, err = r.Tools(context.Background())
	assert.ErrorIs(t, err, protocol.ErrConnectionBroken)
}

func TestRemoteToolboxThroughBroker(t *testing.T) {
	b := broker.New()
	startRemoteStockroom(t, b, 7)
	ep := startBroker(t, b)
	remote := NewRemoteToolbox(transport.NewClient(), ep)

	tools, err := remote.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "CheckInventory", tools[0].Name)

	assert.Equal(t, "7", callString(t, remote, "CheckInventory", map[string]any{"code": "M1"}))
	_, err = remote.Call(context.Background(), "Restock", nil)
	assert.ErrorIs(t, err, protocol.ErrNoCapableClient)
}

func TestEngineOverRouter(t *testing.T) {
	b := broker.New()
	startRemoteStockroom(t, b, 5)
	ep := startBroker(t, b)
	r := NewRouter(NewRemoteToolbox(transport.NewClient(), ep), newLocalToolbox(t), nil)

	model := llm.NewScripted(
		"Thought: remote first\nAction: CheckInventory(code=\"M1\")",
		"Thought: top up locally\nAction: Restock(code=\"M1\", qty=3)",
		"Thought: done\nAction: FINISH\nAnswer: remote 5, local 15",
	)
	s, err := NewEngine(model, r).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, []string{"5", "15"}, s.Observations())
}

type stubToolbox struct {
	tools []manifest.Tool
	err   error
}

func (s *stubToolbox) Tools(context.Context) ([]manifest.Tool, error) { return s.tools, nil }

func (s *stubToolbox) Call(context.Context, string, map[string]any) (json.RawMessage, error) {
	return nil, s.err
}
