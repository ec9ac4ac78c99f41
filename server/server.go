// File: server/server.go
// Package server exposes the server role: accept WebSocket upgrades on
// a listening socket and serve them from a dedicated reactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"

	"github.com/momentics/reactor-ws/api"
	"github.com/momentics/reactor-ws/internal/sockets"
	"github.com/momentics/reactor-ws/reactor"
)

// Server couples one listening socket with one reactor. Each Server
// owns its reactor outright, so independent servers (tests included)
// never share scheduler state.
type Server struct {
	r  *reactor.Reactor
	h  api.Handler
	fd int
}

// New constructs a server delivering events to h.
func New(h api.Handler, opts ...reactor.Option) (*Server, error) {
	r, err := reactor.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Server{r: r, h: h, fd: -1}, nil
}

// Listen binds the listening socket and registers it with the reactor.
func (s *Server) Listen(addr string) error {
	fd, err := sockets.Listen(addr)
	if err != nil {
		return err
	}
	if err := s.r.RegisterListener(fd, s.h); err != nil {
		_ = sockets.Close(fd)
		return err
	}
	s.fd = fd
	return nil
}

// Addr reports the bound address, useful after listening on ":0".
func (s *Server) Addr() (string, error) {
	if s.fd < 0 {
		return "", fmt.Errorf("server: not listening")
	}
	return sockets.LocalAddr(s.fd)
}

// Run drives the reactor loop. It blocks until Shutdown or a fatal
// poller error.
func (s *Server) Run() error { return s.r.Run() }

// Shutdown stops the reactor, aborting live connections.
func (s *Server) Shutdown() { s.r.Shutdown() }

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int { return s.r.ConnCount() }

// Stats returns a snapshot of the reactor's cumulative counters.
func (s *Server) Stats() reactor.Stats { return s.r.Stats() }

// Serve is the convenience entry point: listen on addr and run until a
// fatal error. It never returns nil.
func Serve(addr string, h api.Handler, opts ...reactor.Option) error {
	s, err := New(h, opts...)
	if err != nil {
		return err
	}
	if err := s.Listen(addr); err != nil {
		return err
	}
	if err := s.Run(); err != nil {
		return err
	}
	return fmt.Errorf("server: reactor stopped")
}
