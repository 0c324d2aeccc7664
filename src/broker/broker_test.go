package broker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAIL-Suite/RAIL-sub001/src/binding"
	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/observability"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/provider"
	"github.com/RAIL-Suite/RAIL-sub001/src/registry"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

type warehouse struct{ name string }

func (w *warehouse) Check(code string) (string, error) { return w.name + ":" + code, nil }

func (w *warehouse) Whoami() (string, error) { return w.name, nil }

// startProvider serves a warehouse called name and returns its manifest and
// endpoint.
func startProvider(t *testing.T, name string) (*manifest.Manifest, protocol.Endpoint) {
	t.Helper()
	table := binding.NewTable()
	table.MustAdd("Warehouse",
		binding.Func1("CheckInventory", (*warehouse).Check, binding.Param("code")),
		binding.Func0("Whoami", (*warehouse).Whoami))
	reg := registry.New()
	require.NoError(t, reg.Register("Inventory", &warehouse{name: name}, registry.WithTypeName("Warehouse")))
	d := binding.NewDispatcher(reg, table)
	m := d.Manifest(name)
	srv := provider.NewServer(d, m)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, transport.EndpointOf(ln)
}

func startBroker(t *testing.T, b *Broker) protocol.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("broker did not stop")
		}
	})
	return transport.EndpointOf(ln)
}

func decodeString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestRouteLastRegisteredWins(t *testing.T) {
	b := New()
	mA, epA := startProvider(t, "east")
	mB, epB := startProvider(t, "west")

	first := b.Register(mA, epA)
	second := b.Register(mB, epB)
	assert.Same(t, second, b.FindClientForMethod("CheckInventory"))
	assert.Same(t, second, b.FindClientForMethod("Inventory.CheckInventory"))

	raw, err := b.Route(context.Background(), "CheckInventory", "", map[string]any{"code": "M1"})
	require.NoError(t, err)
	assert.Equal(t, "west:M1", decodeString(t, raw))

	require.True(t, b.Unregister(second.InstanceID))
	assert.Same(t, first, b.FindClientForMethod("CheckInventory"), "routing falls back to the remaining session")

	raw, err = b.Route(context.Background(), "CheckInventory", "Inventory", map[string]any{"code": "M2"})
	require.NoError(t, err)
	assert.Equal(t, "east:M2", decodeString(t, raw))
}

func TestRouteNoCapableClient(t *testing.T) {
	b := New()
	_, err := b.Route(context.Background(), "ShipOrder", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrNoCapableClient)
	assert.Contains(t, err.Error(), "no client supports ShipOrder")
	assert.Nil(t, b.FindClientForMethod("ShipOrder"))
}

func TestRouteLazilyPrunesDeadSession(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := transport.EndpointOf(ln)
	require.NoError(t, ln.Close())

	m := observability.NewMetrics()
	b := New(WithMetrics(m))
	s := b.Register(&manifest.Manifest{ModuleID: "gone", Tools: []manifest.Tool{{Name: "Vanish", Owner: "Ghost"}}}, dead)
	require.Len(t, b.Sessions(), 1)

	_, err = b.Route(context.Background(), "Vanish", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrConnectionBroken)

	_, ok := b.Session(s.InstanceID)
	assert.False(t, ok)
	assert.Empty(t, b.Sessions())

	_, err = b.Route(context.Background(), "Vanish", "", nil)
	assert.ErrorIs(t, err, protocol.ErrNoCapableClient)
}

func TestRemoteErrorKeepsSession(t *testing.T) {
	b := New()
	m, ep := startProvider(t, "east")
	m.Tools = append(m.Tools, manifest.Tool{Name: "Phantom", Owner: "Inventory"})
	s := b.Register(m, ep)

	_, err := b.Route(context.Background(), "Phantom", "", nil)
	assert.ErrorIs(t, err, protocol.ErrMethodNotFound)
	_, ok := b.Session(s.InstanceID)
	assert.True(t, ok)
}

func TestExecuteAsync(t *testing.T) {
	b := New()
	m, ep := startProvider(t, "east")
	s := b.Register(m, ep)

	raw, err := b.ExecuteAsync(context.Background(), s.InstanceID, "Whoami", nil)
	require.NoError(t, err)
	assert.Equal(t, "east", decodeString(t, raw))

	_, err = b.ExecuteAsync(context.Background(), "missing", "Whoami", nil)
	assert.ErrorIs(t, err, protocol.ErrInstanceNotFound)
}

func TestToolsUnion(t *testing.T) {
	b := New()
	b.Register(&manifest.Manifest{ModuleID: "a", Tools: []manifest.Tool{
		{Name: "Ship", Description: "old", Owner: "A"},
		{Name: "Bill", Owner: "A"},
	}}, protocol.DefaultBrokerEndpoint())
	b.Register(&manifest.Manifest{ModuleID: "b", Tools: []manifest.Tool{
		{Name: "Ship", Description: "new", Owner: "B"},
	}}, protocol.DefaultBrokerEndpoint())

	tools := b.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "Bill", tools[0].Name)
	assert.Equal(t, "Ship", tools[1].Name)
	assert.Equal(t, "new", tools[1].Description)
}

func TestServeRegistrationLifecycle(t *testing.T) {
	b := New()
	brokerEP := startBroker(t, b)
	m, providerEP := startProvider(t, "east")

	ctx, cancel := context.WithCancel(context.Background())
	reg, err := provider.Announce(ctx, brokerEP, m, providerEP)
	require.NoError(t, err)
	require.NotEmpty(t, reg.InstanceID())

	s, ok := b.Session(reg.InstanceID())
	require.True(t, ok)
	assert.Equal(t, providerEP, s.Endpoint)

	c := transport.NewClient()
	raw, err := c.Execute(context.Background(), brokerEP, "CheckInventory", "", map[string]any{"code": "M9"})
	require.NoError(t, err)
	assert.Equal(t, "east:M9", decodeString(t, raw))

	resp, err := c.List(context.Background(), brokerEP)
	require.NoError(t, err)
	var list ListResult
	require.NoError(t, resp.Decode(&list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, reg.InstanceID(), list.Sessions[0].InstanceID)
	assert.Equal(t, "east", list.Sessions[0].ModuleID)
	assert.Equal(t, providerEP.String(), list.Sessions[0].Endpoint)
	require.Len(t, list.Sessions[0].Tools, 2)

	_, err = c.Execute(context.Background(), brokerEP, "Teleport", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrNoCapableClient)
	assert.Contains(t, err.Error(), "no client supports Teleport")

	cancel()
	<-reg.Done()
	assert.Eventually(t, func() bool { return len(b.Sessions()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeDropsSessionWhenRegistrationConnectionCloses(t *testing.T) {
	b := New()
	brokerEP := startBroker(t, b)

	conn, err := net.Dial(brokerEP.Network, brokerEP.Address)
	require.NoError(t, err)
	own := protocol.Endpoint{Network: protocol.NetworkTCP, Address: "127.0.0.1:1"}
	require.NoError(t, protocol.WriteMessage(conn, &protocol.Request{
		Type:      protocol.TypeRegister,
		RequestID: "r1",
		Manifest:  &manifest.Manifest{ModuleID: "raw", Tools: []manifest.Tool{{Name: "Echo"}}},
		Endpoint:  &own,
	}))
	var ack protocol.Response
	require.NoError(t, protocol.ReadMessage(conn, 0, &ack))
	assert.Equal(t, protocol.StatusOK, ack.Status)
	assert.Equal(t, "r1", ack.RequestID)
	require.NotEmpty(t, ack.InstanceID)

	req, err := protocol.NewExecute("Echo", "", nil)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteMessage(conn, req))
	var rejected protocol.Response
	require.NoError(t, protocol.ReadMessage(conn, 0, &rejected))
	assert.ErrorIs(t, rejected.Err(), protocol.ErrInvalidCommand)

	assert.NotNil(t, b.FindClientForMethod("Echo"))
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return b.FindClientForMethod("Echo") == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestServeRejectsInvalidManifest(t *testing.T) {
	b := New()
	brokerEP := startBroker(t, b)

	conn, err := net.Dial(brokerEP.Network, brokerEP.Address)
	require.NoError(t, err)
	defer conn.Close()
	own := protocol.Endpoint{Network: protocol.NetworkTCP, Address: "127.0.0.1:1"}
	require.NoError(t, protocol.WriteMessage(conn, &protocol.Request{
		Type:     protocol.TypeRegister,
		Manifest: &manifest.Manifest{ModuleID: "dup", Tools: []manifest.Tool{{Name: "X"}, {Name: "X"}}},
		Endpoint: &own,
	}))
	var resp protocol.Response
	require.NoError(t, protocol.ReadMessage(conn, 0, &resp))
	err = resp.Err()
	assert.ErrorIs(t, err, protocol.ErrInvalidCommand)
	assert.Contains(t, err.Error(), "duplicate tool names")
	assert.Empty(t, b.Sessions())
}

func TestServeMalformedFrame(t *testing.T) {
	b := New()
	brokerEP := startBroker(t, b)

	conn, err := net.Dial(brokerEP.Network, brokerEP.Address)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, protocol.WriteFrame(conn, []byte(`{"type":`)))
	var resp protocol.Response
	require.NoError(t, protocol.ReadMessage(conn, 0, &resp))
	assert.ErrorIs(t, resp.Err(), protocol.ErrProtocolParseError)
}

func TestServePing(t *testing.T) {
	b := New()
	brokerEP := startBroker(t, b)
	c := transport.NewClient()
	require.NoError(t, c.Ping(context.Background(), brokerEP))

	resp, err := c.Call(context.Background(), brokerEP, &protocol.Request{Type: protocol.TypePing})
	require.NoError(t, err)
	var pong string
	require.NoError(t, resp.Decode(&pong))
	assert.Equal(t, "pong", pong)
}

func TestCallerCancelKeepsSession(t *testing.T) {
	b := New()
	m, ep := startProvider(t, "east")
	s := b.Register(m, ep)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.ExecuteAsync(ctx, s.InstanceID, "CheckInventory", map[string]any{"code": "M1"})
	require.Error(t, err)
	_, err = b.Route(ctx, "CheckInventory", "", map[string]any{"code": "M1"})
	require.Error(t, err)

	_, ok := b.Session(s.InstanceID)
	require.True(t, ok, "a caller giving up must not evict a live provider")

	raw, err := b.Route(context.Background(), "CheckInventory", "", map[string]any{"code": "M1"})
	require.NoError(t, err)
	assert.Equal(t, "east:M1", decodeString(t, raw))
}
