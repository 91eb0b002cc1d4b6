package framed

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/transport/tcp"
)

// Handler answers framed requests by calling an executor.
type Handler struct {
	svc   service.Service
	codec protocol.Codec
}

// NewHandler creates a handler dispatching to svc.
func NewHandler(svc service.Service, codec protocol.Codec) *Handler {
	if codec == nil {
		codec = protocol.NewCodec()
	}
	return &Handler{svc: svc, codec: codec}
}

// Handle decodes one request frame and returns the response frame. Executor
// errors are carried in the response; only an undecodable request or an
// unencodable response is returned as an error.
func (h *Handler) Handle(ctx context.Context, frame []byte) ([]byte, error) {
	req, err := h.codec.DecodeRequest(frame)
	if err != nil {
		return nil, err
	}

	return h.codec.EncodeResponse(h.Respond(ctx, req))
}

// Respond runs one decoded request. A failed call yields a response whose
// Error is set and whose payload is empty.
func (h *Handler) Respond(ctx context.Context, req *protocol.Request) *protocol.Response {
	resp := &protocol.Response{ID: req.ID}
	if err := h.dispatch(ctx, req, resp); err != nil {
		resp.Data, resp.Count = nil, 0
		resp.Error = protocol.AsTransportError(err)
	}
	return resp
}

func (h *Handler) dispatch(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	var err error
	switch req.Method {
	case service.MethodGetInfo:
		var info *service.Info
		if info, err = h.svc.GetInfo(ctx, req.Configuration); err == nil {
			resp.Data, err = h.codec.EncodeInfo(info)
		}
	case service.MethodExecuteNonQuery:
		var n int
		n, err = h.svc.ExecuteNonQuery(ctx, req.Configuration, req.Data)
		resp.Count = int64(n)
	case service.MethodExecuteScalar:
		resp.Data, err = h.svc.ExecuteScalar(ctx, req.Configuration, req.Data)
	case service.MethodExecuteReader:
		resp.Data, err = h.svc.ExecuteReader(ctx, req.Configuration, req.Data)
	case service.MethodExecuteBatch:
		err = h.svc.ExecuteBatch(ctx, req.Configuration, req.Data)
	default:
		err = protocol.NewTransportError(protocol.ErrorCodeUnknownMethod, "unknown method "+req.Method, nil)
	}
	return err
}

// Server serves framed requests on TCP connections.
type Server struct {
	handler *Handler

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a server around h.
func NewServer(h *Handler) *Server {
	return &Server{handler: h, conns: make(map[net.Conn]struct{})}
}

// Serve accepts connections until l is closed or Close is called. Each
// connection handles its frames in order.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		frame, err := tcp.ReadFrame(r)
		if err != nil {
			return
		}
		out, err := s.handler.Handle(context.Background(), frame)
		if err != nil {
			return
		}
		if err := tcp.WriteFrame(conn, out); err != nil {
			return
		}
	}
}

// ActiveConnections returns how many connections are being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting work and closes open connections.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
