package broker

import (
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

// ListenAndServe listens on ep and serves until ctx is cancelled.
func (b *Broker) ListenAndServe(ctx context.Context, ep protocol.Endpoint) error {
	ln, err := transport.Listen(ep)
	if err != nil {
		return err
	}
	return b.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On return every
// connection is closed and its handler has finished.
func (b *Broker) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	b.logger.Info("broker listening", zap.String("endpoint", ln.Addr().String()))

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !errors.Is(aerr, net.ErrClosed) {
				err = aerr
			}
			break
		}
		b.track(conn, true)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.track(conn, false)
			b.serveConn(ctx, conn)
		}()
	}

	b.connMu.Lock()
	for c := range b.conns {
		c.Close()
	}
	b.connMu.Unlock()
	b.wg.Wait()
	b.logger.Info("broker stopped")
	return err
}

func (b *Broker) track(conn net.Conn, add bool) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if add {
		b.conns[conn] = struct{}{}
		return
	}
	delete(b.conns, conn)
	conn.Close()
}

// serveConn runs one connection. A REGISTER frame turns it into a
// registration connection whose lifetime is the session's.
func (b *Broker) serveConn(ctx context.Context, conn net.Conn) {
	var session *Session
	defer func() {
		if session != nil {
			b.Unregister(session.InstanceID)
		}
	}()

	for {
		var req protocol.Request
		if err := protocol.ReadMessage(conn, b.maxFrame, &req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			if protocol.KindOf(err) == protocol.KindProtocolParseError {
				b.logger.Warn("malformed frame", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
				_ = protocol.WriteMessage(conn, protocol.ErrorResponse("", err))
			}
			return
		}

		resp, registered, closeConn := b.handle(ctx, conn, &req, session)
		if registered != nil {
			session = registered
		}
		if resp != nil {
			if err := protocol.WriteMessage(conn, resp); err != nil {
				b.logger.Debug("write response", zap.Error(err))
				return
			}
		}
		if closeConn {
			return
		}
	}
}

func (b *Broker) handle(ctx context.Context, conn net.Conn, req *protocol.Request, session *Session) (resp *protocol.Response, registered *Session, closeConn bool) {
	if err := req.Validate(); err != nil {
		return protocol.ErrorResponse(req.RequestID, err), nil, false
	}

	switch req.Type {
	case protocol.TypeRegister:
		if session != nil {
			return protocol.ErrorResponse(req.RequestID,
				protocol.Errorf(protocol.KindInvalidCommand, "connection already registered as %s", session.InstanceID)), nil, false
		}
		m := req.Manifest
		m.Normalize()
		if err := m.Validate(); err != nil {
			return protocol.ErrorResponse(req.RequestID, protocol.Wrap(protocol.KindInvalidCommand, err, "rejected manifest")), nil, true
		}
		s := b.register(m, *req.Endpoint, conn)
		return &protocol.Response{RequestID: req.RequestID, Status: protocol.StatusOK, InstanceID: s.InstanceID}, s, false

	case protocol.TypeUnregister:
		id := req.InstanceID
		if id == "" && session != nil {
			id = session.InstanceID
		}
		if session != nil && id == session.InstanceID {
			return nil, nil, true
		}
		if !b.Unregister(id) {
			return protocol.ErrorResponse(req.RequestID, protocol.Errorf(protocol.KindInstanceNotFound, "no session %s", id)), nil, false
		}
		return &protocol.Response{RequestID: req.RequestID, Status: protocol.StatusOK, InstanceID: id}, nil, false

	case protocol.TypeExecute:
		if session != nil {
			return protocol.ErrorResponse(req.RequestID,
				protocol.Errorf(protocol.KindInvalidCommand, "EXECUTE is not accepted on a registration connection")), nil, false
		}
		result, err := b.Route(ctx, req.Method, req.Class, req.Args)
		if err != nil {
			return protocol.ErrorResponse(req.RequestID, err), nil, false
		}
		return protocol.RawResultResponse(req.RequestID, result), nil, false

	case protocol.TypeList:
		return protocol.ResultResponse(req.RequestID, b.List()), nil, false

	case protocol.TypePing:
		return protocol.ResultResponse(req.RequestID, "pong"), nil, false
	}
	return protocol.ErrorResponse(req.RequestID, protocol.Errorf(protocol.KindInvalidCommand, "unsupported request %s", req.Type)), nil, false
}
