// Package transport performs single framed request/response calls against a
// broker or provider endpoint. Every call opens its own connection; nothing is
// pooled or retried here.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/observability"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// Defaults for a Client.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultPingTimeout    = 100 * time.Millisecond
	DefaultCallTimeout    = 30 * time.Second
)

// DialFunc opens a stream connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Client is the transport client. It is safe for concurrent use; concurrent
// calls never share a connection.
type Client struct {
	logger         func(format string, args ...interface{})
	connectTimeout time.Duration
	pingTimeout    time.Duration
	callTimeout    time.Duration
	maxFrame       int
	metrics        *observability.Metrics
	dial           DialFunc
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets a printf-style debug logger.
func WithLogger(logger func(format string, args ...interface{})) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithPingTimeout bounds Ping.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// WithCallTimeout bounds the exchange once connected.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithMaxFrameSize caps the accepted response size.
func WithMaxFrameSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxFrame = n
		}
	}
}

// WithMetrics records failures by kind.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		logger:         func(format string, args ...interface{}) {},
		connectTimeout: DefaultConnectTimeout,
		pingTimeout:    DefaultPingTimeout,
		callTimeout:    DefaultCallTimeout,
		maxFrame:       protocol.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		d := &net.Dialer{}
		c.dial = d.DialContext
	}
	return c
}

// ConnectTimeout reports the configured connect bound.
func (c *Client) ConnectTimeout() time.Duration { return c.connectTimeout }

func (c *Client) connect(ctx context.Context, ep protocol.Endpoint, timeout time.Duration) (net.Conn, error) {
	if err := ep.Validate(); err != nil {
		return nil, protocol.Wrap(protocol.KindConnectionBroken, err, "invalid endpoint")
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dial(dialCtx, ep.Network, ep.Address)
	if err != nil {
		// A caller that gave up says nothing about the peer.
		if ctx.Err() != nil {
			return nil, ioError(ctx, err, "connect %s", ep)
		}
		if isTimeout(err) {
			return nil, protocol.Wrap(protocol.KindConnectionTimeout, &connectError{err}, "connect %s: no answer after %s", ep, time.Since(start).Round(time.Millisecond))
		}
		return nil, protocol.Wrap(protocol.KindConnectionBroken, &connectError{err}, "connect %s", ep)
	}
	return conn, nil
}

type connectError struct{ err error }

func (e *connectError) Error() string { return e.err.Error() }

func (e *connectError) Unwrap() error { return e.err }

// IsConnectFailure reports whether err happened before a connection was
// established, meaning the peer is gone rather than slow or misbehaving.
func IsConnectFailure(err error) bool {
	var ce *connectError
	return errors.As(err, &ce)
}

// Call sends req to ep and waits for one response frame.
func (c *Client) Call(ctx context.Context, ep protocol.Endpoint, req *protocol.Request) (*protocol.Response, error) {
	if req.RequestID == "" {
		req.RequestID = protocol.NewRequestID()
	}
	resp, err := c.call(ctx, ep, req)
	if err != nil {
		c.metrics.RecordTransportError(string(protocol.KindOf(err)))
		c.logger("transport: %s to %s failed: %v", req, ep, err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) call(ctx context.Context, ep protocol.Endpoint, req *protocol.Request) (*protocol.Response, error) {
	conn, err := c.connect(ctx, ep, c.connectTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c.logger("transport: -> %s %s", ep, req)
	if err := protocol.WriteMessage(conn, req); err != nil {
		return nil, ioError(ctx, err, "send %s", req.Type)
	}

	var resp protocol.Response
	if err := protocol.ReadMessage(conn, c.maxFrame, &resp); err != nil {
		if protocol.KindOf(err) == protocol.KindProtocolParseError && !isTimeout(err) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return nil, ioError(ctx, err, "await response to %s", req.Type)
	}
	if resp.RequestID != "" && resp.RequestID != req.RequestID {
		return nil, protocol.Errorf(protocol.KindProtocolParseError, "response id %s does not match request %s", resp.RequestID, req.RequestID)
	}
	c.logger("transport: <- %s %s", ep, req.RequestID)
	return &resp, nil
}

// Execute sends an EXECUTE request and returns the raw result. A failed
// response is returned as its typed error.
func (c *Client) Execute(ctx context.Context, ep protocol.Endpoint, method, class string, args any) (json.RawMessage, error) {
	req, err := protocol.NewExecute(method, class, args)
	if err != nil {
		return nil, err
	}
	resp, err := c.Call(ctx, ep, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return json.RawMessage(`null`), nil
	}
	return resp.Result, nil
}

// List sends a LIST request.
func (c *Client) List(ctx context.Context, ep protocol.Endpoint) (*protocol.Response, error) {
	resp, err := c.Call(ctx, ep, &protocol.Request{Type: protocol.TypeList})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Ping checks that ep accepts connections. Nothing is sent.
func (c *Client) Ping(ctx context.Context, ep protocol.Endpoint) error {
	conn, err := c.connect(ctx, ep, c.pingTimeout)
	if err != nil {
		c.metrics.RecordTransportError(string(protocol.KindOf(err)))
		return err
	}
	return conn.Close()
}

func ioError(ctx context.Context, err error, format string, args ...any) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.Wrap(protocol.KindConnectionTimeout, ctx.Err(), format, args...)
		}
		return protocol.Wrap(protocol.KindConnectionBroken, ctx.Err(), format, args...)
	}
	if isTimeout(err) {
		return protocol.Wrap(protocol.KindConnectionTimeout, err, format, args...)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return protocol.Wrap(protocol.KindConnectionBroken, err, format+": connection closed by peer", args...)
	}
	return protocol.Wrap(protocol.KindConnectionBroken, err, format, args...)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
