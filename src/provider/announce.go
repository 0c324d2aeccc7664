package provider

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// Registration is a live session on a broker. It lasts as long as its
// connection stays open.
type Registration struct {
	instanceID string
	conn       net.Conn
	done       chan struct{}

	mu  sync.Mutex
	err error
}

// InstanceID is the id the broker assigned.
func (r *Registration) InstanceID() string { return r.instanceID }

// Done is closed once the session has ended.
func (r *Registration) Done() <-chan struct{} { return r.done }

// Err reports why the session ended: nil after a requested shutdown,
// otherwise the connection failure.
func (r *Registration) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Announce registers m, reachable at own, with the broker at brokerEP. The
// registration is withdrawn when ctx is cancelled.
func Announce(ctx context.Context, brokerEP protocol.Endpoint, m *manifest.Manifest, own protocol.Endpoint, opts ...Option) (*Registration, error) {
	cfg := newConfig(opts)
	if m == nil {
		return nil, protocol.Errorf(protocol.KindInvalidCommand, "manifest is required")
	}
	if err := brokerEP.Validate(); err != nil {
		return nil, protocol.Wrap(protocol.KindConnectionBroken, err, "invalid broker endpoint")
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, brokerEP.Network, brokerEP.Address)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, protocol.Wrap(protocol.KindConnectionTimeout, err, "connect broker %s", brokerEP)
		}
		return nil, protocol.Wrap(protocol.KindConnectionBroken, err, "connect broker %s", brokerEP)
	}

	req := &protocol.Request{
		Type:      protocol.TypeRegister,
		RequestID: protocol.NewRequestID(),
		Manifest:  m,
		Endpoint:  &own,
	}
	_ = conn.SetDeadline(time.Now().Add(cfg.connectTimeout))
	if err := protocol.WriteMessage(conn, req); err != nil {
		conn.Close()
		return nil, protocol.Wrap(protocol.KindConnectionBroken, err, "send registration")
	}
	var resp protocol.Response
	if err := protocol.ReadMessage(conn, cfg.maxFrame, &resp); err != nil {
		conn.Close()
		return nil, protocol.Wrap(protocol.KindConnectionBroken, err, "await registration ack")
	}
	if err := resp.Err(); err != nil {
		conn.Close()
		return nil, err
	}
	if resp.InstanceID == "" {
		conn.Close()
		return nil, protocol.Errorf(protocol.KindProtocolParseError, "registration ack carries no instanceId")
	}
	_ = conn.SetDeadline(time.Time{})

	reg := &Registration{instanceID: resp.InstanceID, conn: conn, done: make(chan struct{})}
	cfg.logger.Info("registered with broker",
		zap.String("instance_id", reg.instanceID),
		zap.String("module", m.ModuleID),
		zap.String("endpoint", brokerEP.String()))
	go reg.hold(ctx, cfg)
	return reg, nil
}

func (r *Registration) hold(ctx context.Context, cfg config) {
	defer close(r.done)
	closed := make(chan error, 1)
	go func() {
		buf := make([]byte, 512)
		for {
			if _, err := r.conn.Read(buf); err != nil {
				closed <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = r.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = protocol.WriteMessage(r.conn, &protocol.Request{
			Type:       protocol.TypeUnregister,
			RequestID:  protocol.NewRequestID(),
			InstanceID: r.instanceID,
		})
		r.conn.Close()
		<-closed
		cfg.logger.Info("unregistered from broker", zap.String("instance_id", r.instanceID))
	case err := <-closed:
		r.conn.Close()
		r.mu.Lock()
		r.err = protocol.Wrap(protocol.KindConnectionBroken, err, "broker closed the registration")
		r.mu.Unlock()
		cfg.logger.Warn("broker connection lost", zap.String("instance_id", r.instanceID), zap.Error(err))
	}
}
