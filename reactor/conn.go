// File: reactor/conn.go
// Package reactor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is the application-facing handle bound to one fd. The protocol
// state machine behind it is owned by the reactor goroutine; public
// methods route mutations through the reactor mailbox, which makes them
// safe from any goroutine, including handler callbacks.

package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/reactor-ws/api"
	"github.com/momentics/reactor-ws/protocol"
)

// Conn implements api.Conn.
type Conn struct {
	id      uint64
	fd      int
	pc      *protocol.Conn
	handler api.Handler
	reactor *Reactor

	// opened resolves once: nil when the handshake completes, the
	// fatal error when the connection dies first. Dial waits on it.
	opened   chan error
	openOnce sync.Once

	// closed flips when OnClose dispatches; send operations afterwards
	// fail synchronously.
	closed atomic.Bool

	// path is set on the loop goroutine before OnOpen fires.
	path string

	// Loop-owned bookkeeping.
	connecting bool
	wantWrite  bool
	shutWrite  bool
}

var _ api.Conn = (*Conn)(nil)

// ID returns the reactor-unique connection token.
func (c *Conn) ID() uint64 { return c.id }

// Role reports the handshake side of this connection.
func (c *Conn) Role() api.Role { return c.pc.Role() }

// Path returns the request path; valid from OnOpen onward.
func (c *Conn) Path() string { return c.path }

// SendText queues a text message.
func (c *Conn) SendText(s string) error {
	return c.send(api.TextMessage, []byte(s))
}

// SendBinary queues a binary message.
func (c *Conn) SendBinary(p []byte) error {
	return c.send(api.BinaryMessage, p)
}

func (c *Conn) send(kind api.MessageKind, payload []byte) error {
	if c.closed.Load() {
		return api.ErrConnClosed
	}
	return c.reactor.submit(func() {
		if err := c.pc.Send(kind, payload); err != nil {
			return
		}
		c.reactor.flush(c)
		c.reactor.rearm(c)
	})
}

// Ping queues a ping frame. Payloads above 125 bytes are rejected
// synchronously.
func (c *Conn) Ping(payload []byte) error {
	if len(payload) > protocol.MaxControlPayloadLen {
		return protocol.ErrControlTooLarge
	}
	if c.closed.Load() {
		return api.ErrConnClosed
	}
	return c.reactor.submit(func() {
		if err := c.pc.SendPing(payload); err != nil {
			return
		}
		c.reactor.flush(c)
		c.reactor.rearm(c)
	})
}

// Close starts the close handshake. The connection reports OnClose once
// the peer echoes or the grace period expires.
func (c *Conn) Close(code uint16, reason string) error {
	if c.closed.Load() {
		return api.ErrConnClosed
	}
	return c.reactor.submit(func() {
		if err := c.pc.Close(code, reason, time.Now()); err != nil {
			return
		}
		c.reactor.flush(c)
		c.reactor.rearm(c)
	})
}

// Abort hard-closes without a close handshake, discarding unflushed
// outbound bytes.
func (c *Conn) Abort() {
	_ = c.reactor.submit(func() {
		c.reactor.dispatch(c, c.pc.ForceClose(api.KindApplication, nil))
		c.reactor.finalize(c)
	})
}

// Opened resolves when the handshake completes (nil) or the connection
// fails beforehand (the fatal error).
func (c *Conn) Opened() <-chan error { return c.opened }

func (c *Conn) resolveOpen(err error) {
	c.openOnce.Do(func() { c.opened <- err })
}

func (c *Conn) markClosed() {
	c.closed.Store(true)
}
