// Package provider is the process side of the protocol: it serves a
// Dispatcher on a local endpoint and announces the process manifest to a
// broker.
package provider

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/binding"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

type config struct {
	logger         *zap.Logger
	maxFrame       int
	connectTimeout time.Duration
}

// Option customises a Server or an announcement.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxFrameSize caps the accepted request size.
func WithMaxFrameSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFrame = n
		}
	}
}

// WithConnectTimeout bounds the broker dial in Announce.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

func newConfig(opts []Option) config {
	c := config{logger: zap.NewNop(), maxFrame: protocol.DefaultMaxFrameSize, connectTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Server answers EXECUTE, LIST and PING frames through a Dispatcher.
type Server struct {
	dispatcher *binding.Dispatcher
	manifest   *manifest.Manifest
	cfg        config

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer builds a server for d advertising m on LIST.
func NewServer(d *binding.Dispatcher, m *manifest.Manifest, opts ...Option) *Server {
	return &Server{
		dispatcher: d,
		manifest:   m,
		cfg:        newConfig(opts),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Manifest returns the advertised manifest.
func (s *Server) Manifest() *manifest.Manifest { return s.manifest }

// Serve accepts connections on ln until ctx is cancelled, then closes open
// connections and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	s.cfg.logger.Info("provider listening", zap.String("endpoint", ln.Addr().String()),
		zap.String("module", s.manifest.ModuleID))

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !errors.Is(aerr, net.ErrClosed) {
				err = aerr
			}
			break
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.serveConn(ctx, conn)
		}()
	}

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
	conn.Close()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	for {
		var req protocol.Request
		if err := protocol.ReadMessage(conn, s.cfg.maxFrame, &req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			s.cfg.logger.Warn("bad frame", zap.Error(err))
			_ = protocol.WriteMessage(conn, protocol.ErrorResponse("", err))
			return
		}
		if err := protocol.WriteMessage(conn, s.Handle(ctx, &req)); err != nil {
			s.cfg.logger.Debug("write response", zap.Error(err))
			return
		}
	}
}

// Handle answers a single request.
func (s *Server) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	if err := req.Validate(); err != nil {
		return protocol.ErrorResponse(req.RequestID, err)
	}
	switch req.Type {
	case protocol.TypeExecute:
		start := time.Now()
		result, err := s.dispatcher.Call(ctx, req.Method, req.Class, req.Args)
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("request_id", req.RequestID),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			s.cfg.logger.Info("execute failed", append(fields, zap.Error(err))...)
			return protocol.ErrorResponse(req.RequestID, err)
		}
		s.cfg.logger.Debug("execute", fields...)
		return protocol.ResultResponse(req.RequestID, result)
	case protocol.TypeList:
		return protocol.ResultResponse(req.RequestID, s.manifest)
	case protocol.TypePing:
		return protocol.ResultResponse(req.RequestID, "pong")
	default:
		return protocol.ErrorResponse(req.RequestID,
			protocol.Errorf(protocol.KindInvalidCommand, "%s is not served by a provider", req.Type))
	}
}
