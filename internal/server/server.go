// Package server implements the request/response network front-end:
// accept connections, decode one framed request, route it through the
// async façade, encode one framed response, close.
package server

import (
	"errors"
	"net"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/kvsdb/kvs/internal/async"
	"github.com/kvsdb/kvs/internal/wire"
)

// Server dispatches decoded requests to a Facade and encodes replies.
type Server struct {
	facade *async.Facade
}

// New builds a Server backed by facade.
func New(facade *async.Facade) *Server {
	return &Server{facade: facade}
}

// Serve accepts connections from ln until Accept fails: it returns nil
// once ln has been closed and the Accept error otherwise (temporary
// Accept errors are not retried). Each connection is handled on its own
// goroutine; a connection-level error never stops the accept loop.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	// Tags every log line for this connection so interleaved concurrent
	// requests can be told apart in the server's output.
	cid := uuid.NewString()

	payload, err := wire.ReadFrame(conn)
	if err != nil {
		klog.Errorf("server[%s]: reading request from %s: %v", cid, conn.RemoteAddr(), err)
		return
	}

	var req wire.Request
	if err := wire.Unmarshal(payload, &req); err != nil {
		klog.Errorf("server[%s]: decoding request from %s: %v", cid, conn.RemoteAddr(), err)
		return
	}

	klog.V(2).Infof("server[%s]: %s %q from %s", cid, req.Cmd, req.Key, conn.RemoteAddr())
	resp := s.dispatch(req)

	out, err := wire.Marshal(resp)
	if err != nil {
		klog.Errorf("server[%s]: encoding response for %s: %v", cid, conn.RemoteAddr(), err)
		return
	}
	if err := wire.WriteFrame(conn, out); err != nil {
		klog.Errorf("server[%s]: writing response to %s: %v", cid, conn.RemoteAddr(), err)
		return
	}
}

func (s *Server) dispatch(req wire.Request) wire.Response {
	switch req.Cmd {
	case "Get":
		res := s.facade.GetAsync(req.Key).Wait()
		if res.Err != nil {
			return wire.ErrResponse(res.Err.Error())
		}
		if !res.Found {
			return wire.OkResponse()
		}
		return wire.OkValResponse(res.Value)
	case "Set":
		res := s.facade.SetAsync(req.Key, req.Val).Wait()
		if res.Err != nil {
			return wire.ErrResponse(res.Err.Error())
		}
		return wire.OkResponse()
	case "Remove":
		res := s.facade.RemoveAsync(req.Key).Wait()
		if res.Err != nil {
			return wire.ErrResponse(res.Err.Error())
		}
		return wire.OkResponse()
	default:
		return wire.ErrResponse("unknown command " + req.Cmd)
	}
}
