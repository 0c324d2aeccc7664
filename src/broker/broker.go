// Package broker hosts many provider sessions. Providers register their
// manifest over a long-lived connection; callers send EXECUTE frames which the
// broker routes to the session that most recently advertised the method.
package broker

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/observability"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

// Broker is the multi-client host.
type Broker struct {
	logger   *zap.Logger
	metrics  *observability.Metrics
	client   *transport.Client
	maxFrame int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	index    map[string]*Session
	seq      uint64

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// Option customises a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// WithTransport sets the client used to forward calls to sessions.
func WithTransport(c *transport.Client) Option {
	return func(b *Broker) {
		if c != nil {
			b.client = c
		}
	}
}

// WithMaxFrameSize caps inbound frames.
func WithMaxFrameSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.maxFrame = n
		}
	}
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		logger:   zap.NewNop(),
		maxFrame: protocol.DefaultMaxFrameSize,
		now:      time.Now,
		sessions: make(map[string]*Session),
		index:    make(map[string]*Session),
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		b.client = transport.NewClient(transport.WithMetrics(b.metrics))
	}
	return b
}

// Register adds a session for m served at ep. Tools it advertises take over
// routing for their names from any earlier session.
func (b *Broker) Register(m *manifest.Manifest, ep protocol.Endpoint) *Session {
	return b.register(m, ep, nil)
}

func (b *Broker) register(m *manifest.Manifest, ep protocol.Endpoint, conn net.Conn) *Session {
	b.mu.Lock()
	b.seq++
	s := &Session{
		InstanceID:  uuid.NewString(),
		Endpoint:    ep,
		Manifest:    m,
		ConnectedAt: b.now(),
		seq:         b.seq,
		conn:        conn,
	}
	b.sessions[s.InstanceID] = s
	b.indexSession(s)
	n := len(b.sessions)
	b.mu.Unlock()

	b.metrics.SetBrokerSessions(n)
	b.logger.Info("session registered",
		zap.String("instance_id", s.InstanceID),
		zap.String("module", s.ModuleID()),
		zap.String("endpoint", ep.String()),
		zap.Int("tools", len(m.Tools)))
	return s
}

// Unregister removes a session. Names it owned fall back to the most recent
// remaining session advertising them.
func (b *Broker) Unregister(instanceID string) bool {
	b.mu.Lock()
	s, ok := b.sessions[instanceID]
	if ok {
		delete(b.sessions, instanceID)
		b.rebuildIndex()
	}
	n := len(b.sessions)
	b.mu.Unlock()

	if !ok {
		return false
	}
	if s.conn != nil {
		s.conn.Close()
	}
	b.metrics.SetBrokerSessions(n)
	b.logger.Info("session removed", zap.String("instance_id", instanceID), zap.String("module", s.ModuleID()))
	return true
}

// indexSession must be called with b.mu held.
func (b *Broker) indexSession(s *Session) {
	for _, t := range s.Manifest.Tools {
		b.index[t.Name] = s
		b.index[t.QualifiedName()] = s
	}
}

// rebuildIndex must be called with b.mu held.
func (b *Broker) rebuildIndex() {
	ordered := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	b.index = make(map[string]*Session, len(b.index))
	for _, s := range ordered {
		b.indexSession(s)
	}
}

// Session returns the session with the given id.
func (b *Broker) Session(instanceID string) (*Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[instanceID]
	return s, ok
}

// Sessions returns the live sessions in registration order.
func (b *Broker) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Tools returns every routable tool, each taken from the session that wins
// routing for its name, sorted by name.
func (b *Broker) Tools() []manifest.Tool {
	sessions := b.Sessions()
	byName := make(map[string]manifest.Tool)
	for _, s := range sessions {
		for _, t := range s.Manifest.Tools {
			byName[t.Name] = t
		}
	}
	out := make([]manifest.Tool, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindClientForMethod returns the session serving method, or nil.
func (b *Broker) FindClientForMethod(method string) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index[method]
}

// Route sends a call to the session serving method. owner, when set, narrows
// the lookup to "owner.method" first.
func (b *Broker) Route(ctx context.Context, method, owner string, args any) (json.RawMessage, error) {
	var s *Session
	if owner != "" {
		s = b.FindClientForMethod(owner + "." + method)
	}
	if s == nil {
		s = b.FindClientForMethod(method)
	}
	if s == nil {
		b.metrics.RecordBrokerCall("no_client", 0)
		return nil, protocol.Errorf(protocol.KindNoCapableClient, "no client supports %s", method)
	}
	return b.execute(ctx, s, method, owner, args)
}

// ExecuteAsync sends a call to a specific session. The call blocks until the
// session answers or ctx ends.
func (b *Broker) ExecuteAsync(ctx context.Context, instanceID, method string, args any) (json.RawMessage, error) {
	s, ok := b.Session(instanceID)
	if !ok {
		return nil, protocol.Errorf(protocol.KindInstanceNotFound, "no session %s", instanceID)
	}
	return b.execute(ctx, s, method, "", args)
}

func (b *Broker) execute(ctx context.Context, s *Session, method, owner string, args any) (json.RawMessage, error) {
	class := owner
	name := method
	if t, ok := s.Tool(method); ok {
		name = t.Name
		if t.Owner != "" {
			class = t.Owner
		}
	} else if owner != "" {
		if t, ok := s.Tool(owner + "." + method); ok {
			name = t.Name
			if t.Owner != "" {
				class = t.Owner
			}
		}
	}

	start := time.Now()
	result, err := b.client.Execute(ctx, s.Endpoint, name, class, args)
	took := time.Since(start)
	fields := []zap.Field{
		zap.String("instance_id", s.InstanceID),
		zap.String("method", name),
		zap.Duration("took", took),
	}
	if err != nil {
		if transport.IsConnectFailure(err) && ctx.Err() == nil {
			b.logger.Warn("session unreachable, pruning", append(fields, zap.Error(err))...)
			b.Unregister(s.InstanceID)
			b.metrics.RecordBrokerCall("pruned", took)
			return nil, err
		}
		b.metrics.RecordBrokerCall("error", took)
		b.logger.Info("routed call failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	b.metrics.RecordBrokerCall("ok", took)
	b.logger.Debug("routed call", fields...)
	return result, nil
}

// List returns the LIST view of all sessions.
func (b *Broker) List() ListResult {
	sessions := b.Sessions()
	out := ListResult{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, s.Info())
	}
	return out
}
