package ivd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"imgview/internal/version"
)

type Options struct {
	Listen   string
	Handlers HandlerOptions
	Logger   *slog.Logger
}

type Server struct {
	opts   Options
	h      *Handlers
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listener  net.Listener
	conns     sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:7341"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Handlers.Logger == nil {
		opts.Handlers.Logger = logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		h:      NewHandlers(opts.Handlers),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Handlers() *Handlers { return s.h }

func (s *Server) Run() error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}

	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("ivd listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting, cancels in-flight waits and ends every session.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.conns.Wait()
	s.h.Close()
	return err
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.closed:
			_ = conn.Close()
		case <-done:
		}
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	defer func() { _ = w.Flush() }()

	for {
		line, err := ReadOneLine(r)
		if err != nil {
			if errors.Is(err, ErrLineTooLong) {
				_ = WriteOneLine(w, Response{
					JSONRPC: "2.0",
					ID:      json.RawMessage("null"),
					Error:   &ErrorObject{Code: codeInvalidRequest, Message: err.Error()},
				})
			}
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = WriteOneLine(w, Response{
				JSONRPC: "2.0",
				ID:      json.RawMessage("null"),
				Error:   &ErrorObject{Code: codeParse, Message: "parse error"},
			})
			_ = w.Flush()
			continue
		}

		if len(req.ID) == 0 {
			// Notification: no response.
			_ = s.dispatch(s.ctx, req)
			continue
		}

		_ = WriteOneLine(w, s.dispatch(s.ctx, req))
		_ = w.Flush()
	}
}

// bind decodes req.Params into p, reporting invalid params on resp.
func bind[T any](req Request, resp *Response, p *T) bool {
	if len(req.Params) == 0 {
		return true
	}
	if err := json.Unmarshal(req.Params, p); err != nil {
		resp.Error = &ErrorObject{Code: codeInvalidParams, Message: "invalid params"}
		return false
	}
	return true
}

func reply[T any](resp *Response, v T, err error) {
	if err != nil {
		resp.Error = &ErrorObject{Code: codeServer, Message: err.Error()}
		return
	}
	resp.Result = v
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		resp.Error = &ErrorObject{Code: codeInvalidRequest, Message: "invalid jsonrpc version"}
		return resp
	}

	s.logger.Debug("rpc", "method", req.Method)
	switch req.Method {
	case "ping":
		resp.Result = "pong"
	case "version":
		resp.Result = version.String()
	case "session.open":
		var p SessionOpenParams
		if bind(req, &resp, &p) {
			v, err := s.h.SessionOpen(ctx, p)
			reply(&resp, v, err)
		}
	case "session.close":
		var p SessionParams
		if bind(req, &resp, &p) {
			v, err := s.h.SessionClose(p)
			reply(&resp, v, err)
		}
	case "session.status":
		var p SessionParams
		if bind(req, &resp, &p) {
			v, err := s.h.SessionStatus(p)
			reply(&resp, v, err)
		}
	case "nav.next", "nav.prev":
		var p NavParams
		if bind(req, &resp, &p) {
			v, err := s.h.Advance(ctx, p, req.Method == "nav.next")
			reply(&resp, v, err)
		}
	case "nav.first":
		var p NavParams
		if bind(req, &resp, &p) {
			v, err := s.h.First(ctx, p)
			reply(&resp, v, err)
		}
	case "nav.last":
		var p NavParams
		if bind(req, &resp, &p) {
			v, err := s.h.Last(ctx, p)
			reply(&resp, v, err)
		}
	case "nav.jump":
		var p JumpParams
		if bind(req, &resp, &p) {
			v, err := s.h.Jump(ctx, p)
			reply(&resp, v, err)
		}
	case "nav.step":
		var p StepParams
		if bind(req, &resp, &p) {
			v, err := s.h.Step(ctx, p)
			reply(&resp, v, err)
		}
	case "scroll.tick":
		var p ScrollTickParams
		if bind(req, &resp, &p) {
			v, err := s.h.ScrollTick(ctx, p)
			reply(&resp, v, err)
		}
	case "scroll.policy":
		var p ScrollPolicyParams
		if bind(req, &resp, &p) {
			v, err := s.h.ScrollPolicy(p)
			reply(&resp, v, err)
		}
	case "viewport.resize":
		var p ResizeParams
		if bind(req, &resp, &p) {
			v, err := s.h.Resize(ctx, p)
			reply(&resp, v, err)
		}
	case "sort.set":
		var p SortSetParams
		if bind(req, &resp, &p) {
			v, err := s.h.SortSet(ctx, p)
			reply(&resp, v, err)
		}
	case "slideshow.set":
		var p SlideShowParams
		if bind(req, &resp, &p) {
			v, err := s.h.SlideShow(p)
			reply(&resp, v, err)
		}
	case "watch.start":
		var p WatchStartParams
		if bind(req, &resp, &p) {
			v, err := s.h.WatchStart(p)
			reply(&resp, v, err)
		}
	case "watch.stop":
		var p SessionParams
		if bind(req, &resp, &p) {
			v, err := s.h.WatchStop(p)
			reply(&resp, v, err)
		}
	case "watch.status":
		var p SessionParams
		if bind(req, &resp, &p) {
			v, err := s.h.WatchStatus(p)
			reply(&resp, v, err)
		}
	default:
		resp.Error = &ErrorObject{Code: codeMethodNotFound, Message: "method not found"}
	}

	return resp
}
