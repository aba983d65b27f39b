package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPServer serves the engine API with graceful shutdown.
type HTTPServer struct {
	srv  *http.Server
	addr string
}

// NewHTTPServer creates an HTTPServer for the given handler and address.
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		addr: addr,
	}
}

// Address returns the configured listen address.
func (s *HTTPServer) Address() string {
	return s.addr
}

// Start binds through the listener and serves until Stop is called.
func (s *HTTPServer) Start(l Listener) error {
	listener, err := l.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
