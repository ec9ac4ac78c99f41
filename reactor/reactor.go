// File: reactor/reactor.go
// Package reactor implements the readiness-driven connection multiplexer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/reactor-ws/api"
	"github.com/momentics/reactor-ws/internal/sockets"
	"github.com/momentics/reactor-ws/protocol"
)

const (
	// maxEvents bounds readiness notifications handled per wakeup.
	maxEvents = 128
	// readChunk bounds bytes read per connection per wakeup. Level-
	// triggered polling re-notifies for the remainder, which keeps
	// dispatch fair across connections.
	readChunk = 64 * 1024
)

// Config tunes a Reactor.
type Config struct {
	// Limits is applied to every connection this reactor owns.
	Limits protocol.Limits
	// PollInterval caps the poll timeout so deadline sweeps always run.
	PollInterval time.Duration
}

// Option mutates the reactor configuration.
type Option func(*Config)

// WithLimits overrides the per-connection protocol limits.
func WithLimits(l protocol.Limits) Option {
	return func(c *Config) { c.Limits = l }
}

// WithPollInterval overrides the maximum poll timeout.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// Reactor owns the poller, the connection registry and the event loop.
// Multiple independent reactors may coexist in one process; nothing
// here is global.
type Reactor struct {
	cfg  Config
	poll poller

	// Owned exclusively by the loop goroutine.
	conns     map[int]*Conn
	listeners map[int]api.Handler
	readBuf   []byte
	stopped   bool

	// Mailbox for commands submitted from other goroutines.
	mu      sync.Mutex
	pending []func()
	closed  bool

	done   chan struct{}
	nextID atomic.Uint64
	count  atomic.Int64
	stats  statCounters
}

// New constructs a reactor. Run must be called to start the loop.
func New(opts ...Option) (*Reactor, error) {
	cfg := Config{
		Limits:       protocol.DefaultLimits(),
		PollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Reactor{
		cfg:       cfg,
		poll:      p,
		conns:     make(map[int]*Conn),
		listeners: make(map[int]api.Handler),
		readBuf:   make([]byte, readChunk),
		done:      make(chan struct{}),
	}, nil
}

// ConnCount reports the number of live connections.
func (r *Reactor) ConnCount() int { return int(r.count.Load()) }

// Limits returns the per-connection limits this reactor applies.
func (r *Reactor) Limits() protocol.Limits { return r.cfg.Limits }

// Done is closed when the loop has exited.
func (r *Reactor) Done() <-chan struct{} { return r.done }

// submit hands fn to the loop goroutine. It never blocks.
func (r *Reactor) submit(fn func()) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return api.ErrReactorClosed
	}
	r.pending = append(r.pending, fn)
	r.mu.Unlock()
	return r.poll.Wakeup()
}

// runPending drains the mailbox on the loop goroutine.
func (r *Reactor) runPending() {
	r.mu.Lock()
	cmds := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, fn := range cmds {
		fn()
	}
}

// RegisterListener adds a listening socket; accepted connections are
// served as server-role WebSocket connections with handler h.
func (r *Reactor) RegisterListener(fd int, h api.Handler) error {
	return r.submit(func() {
		if err := r.poll.Add(fd, false); err != nil {
			_ = sockets.Close(fd)
			return
		}
		r.listeners[fd] = h
	})
}

// RegisterClientConn adopts an outbound socket in Connecting state. The
// returned Conn's opened channel resolves when the handshake completes
// or the connection dies first.
func (r *Reactor) RegisterClientConn(fd int, pc *protocol.Conn, h api.Handler, connecting bool) (*Conn, error) {
	c := r.newConn(fd, pc, h)
	c.connecting = connecting
	err := r.submit(func() {
		// Write interest from the start: the connect completion and
		// the queued handshake request both surface as writability.
		if err := r.poll.Add(fd, true); err != nil {
			_ = sockets.Close(fd)
			c.resolveOpen(err)
			return
		}
		c.wantWrite = true
		r.conns[fd] = c
		r.count.Add(1)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Shutdown stops the loop, aborting every live connection.
func (r *Reactor) Shutdown() {
	_ = r.submit(func() { r.stopped = true })
}

// Run executes the event loop until Shutdown. It owns all connection
// state; per-connection failures never abort the loop.
func (r *Reactor) Run() error {
	defer close(r.done)
	defer r.cleanup()

	// The loop owns all connection state; pinning it to one OS thread
	// keeps the readiness path off the scheduler's migration churn.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	events := make([]pollEvent, maxEvents)
	for {
		r.runPending()
		if r.stopped {
			return nil
		}

		n, err := r.poll.Wait(events, r.pollTimeout())
		if err != nil {
			return err
		}
		now := time.Now()
		for i := 0; i < n; i++ {
			r.handleEvent(events[i], now)
		}
		r.sweep(now)
	}
}

// cleanup aborts every connection and releases the poller. Runs on the
// loop goroutine as Run unwinds.
func (r *Reactor) cleanup() {
	r.mu.Lock()
	r.closed = true
	r.pending = nil
	r.mu.Unlock()

	for fd, c := range r.conns {
		r.dispatch(c, c.pc.ForceClose(api.KindApplication, api.ErrReactorClosed))
		_ = r.poll.Del(fd)
		_ = sockets.Close(fd)
		r.count.Add(-1)
	}
	r.conns = make(map[int]*Conn)
	for fd := range r.listeners {
		_ = r.poll.Del(fd)
		_ = sockets.Close(fd)
	}
	r.listeners = make(map[int]api.Handler)
	_ = r.poll.Close()
}

// pollTimeout clamps the poll interval to the nearest close deadline so
// grace periods expire promptly.
func (r *Reactor) pollTimeout() int {
	timeout := r.cfg.PollInterval
	now := time.Now()
	for _, c := range r.conns {
		dl := c.pc.CloseDeadline()
		if dl.IsZero() {
			continue
		}
		if until := dl.Sub(now); until < timeout {
			timeout = until
		}
	}
	if timeout < 0 {
		timeout = 0
	}
	return int(timeout / time.Millisecond)
}

func (r *Reactor) handleEvent(ev pollEvent, now time.Time) {
	if ev.fd == r.poll.WakeFD() {
		r.poll.DrainWake()
		return
	}
	if h, ok := r.listeners[ev.fd]; ok {
		r.acceptAll(ev.fd, h)
		return
	}
	c, ok := r.conns[ev.fd]
	if !ok {
		return
	}

	if ev.errored {
		err := sockets.SockErr(c.fd)
		if err == nil {
			err = api.ErrConnClosed
		}
		r.dispatch(c, c.pc.FailIO(err))
		r.finalize(c)
		return
	}

	if c.connecting && ev.writable {
		if err := sockets.SockErr(c.fd); err != nil {
			r.dispatch(c, c.pc.FailIO(err))
			r.finalize(c)
			return
		}
		c.connecting = false
	}

	if ev.readable {
		r.readReady(c, now)
	}
	if ev.writable || c.pc.HasOutbound() {
		r.flush(c)
	}
	r.rearm(c)
	r.finalize(c)
}

// acceptAll drains the accept queue, registering each new socket as a
// server-role connection in Connecting state.
func (r *Reactor) acceptAll(lfd int, h api.Handler) {
	for {
		fd, err := sockets.Accept(lfd)
		if err != nil {
			// ErrAgain means the queue is drained; anything else is a
			// transient accept failure. Either way the listener stays.
			return
		}
		c := r.newConn(fd, protocol.NewServerConn(r.cfg.Limits), h)
		if err := r.poll.Add(fd, false); err != nil {
			_ = sockets.Close(fd)
			continue
		}
		r.conns[fd] = c
		r.count.Add(1)
		r.stats.accepted.Add(1)
	}
}

// readReady performs one bounded read and drives the state machine over
// whatever arrived.
func (r *Reactor) readReady(c *Conn, now time.Time) {
	n, err := sockets.Read(c.fd, r.readBuf)
	switch {
	case err == sockets.ErrAgain:
		return
	case err != nil:
		r.dispatch(c, c.pc.FailIO(err))
		return
	case n == 0:
		r.dispatch(c, c.pc.ReceiveEOF())
		return
	}
	r.stats.bytesRead.Add(int64(n))
	r.dispatch(c, c.pc.Receive(r.readBuf[:n], now))
	r.flush(c)
}

// flush writes as much pending outbound as the socket accepts and
// half-closes the write side once a sent close frame has drained.
func (r *Reactor) flush(c *Conn) {
	for {
		buf := c.pc.OutboundBytes()
		if len(buf) == 0 {
			break
		}
		n, err := sockets.Write(c.fd, buf)
		if err == sockets.ErrAgain {
			break
		}
		if err != nil {
			r.dispatch(c, c.pc.FailIO(err))
			return
		}
		c.pc.ConsumeOutbound(n)
		r.stats.bytesWritten.Add(int64(n))
		if n < len(buf) {
			break
		}
	}
	if c.pc.WantWriteShutdown() && !c.shutWrite {
		c.shutWrite = true
		_ = sockets.ShutdownWrite(c.fd)
	}
}

// rearm updates the fd's interest set to match pending outbound state.
func (r *Reactor) rearm(c *Conn) {
	want := c.pc.HasOutbound() || c.connecting
	if want == c.wantWrite {
		return
	}
	if err := r.poll.Mod(c.fd, want); err != nil {
		return
	}
	c.wantWrite = want
}

// finalize deregisters a connection once it is Closed with its outbound
// buffer flushed or abandoned.
func (r *Reactor) finalize(c *Conn) {
	if !c.pc.Done() {
		return
	}
	if _, ok := r.conns[c.fd]; !ok {
		return
	}
	delete(r.conns, c.fd)
	_ = r.poll.Del(c.fd)
	_ = sockets.Close(c.fd)
	r.count.Add(-1)
}

// sweep advances time-driven transitions across all connections.
func (r *Reactor) sweep(now time.Time) {
	var expired []*Conn
	for _, c := range r.conns {
		if dl := c.pc.CloseDeadline(); !dl.IsZero() && !now.Before(dl) {
			expired = append(expired, c)
		}
	}
	for _, c := range expired {
		r.dispatch(c, c.pc.Tick(now))
		r.rearm(c)
		r.finalize(c)
	}
}

// dispatch translates state machine events into handler callbacks.
// Handler panics are contained so one connection cannot take down the
// loop.
func (r *Reactor) dispatch(c *Conn, evs []protocol.Event) {
	for _, ev := range evs {
		func() {
			defer func() { _ = recover() }()
			switch ev.Type {
			case protocol.EventOpen:
				c.path = c.pc.Path()
				r.stats.opened.Add(1)
				c.resolveOpen(nil)
				c.handler.OnOpen(c)
			case protocol.EventMessage:
				r.stats.messages.Add(1)
				c.handler.OnMessage(c, ev.Message)
			case protocol.EventPing:
				c.handler.OnPing(c, ev.Payload)
			case protocol.EventPong:
				c.handler.OnPong(c, ev.Payload)
			case protocol.EventClosed:
				r.stats.closed.Add(1)
				c.markClosed()
				c.resolveOpen(closeErr(ev.Close))
				if ev.Close.Err != nil {
					c.handler.OnError(c, ev.Close.Err)
				}
				c.handler.OnClose(c, ev.Close)
			}
		}()
	}
}

func closeErr(info api.CloseInfo) error {
	if info.Err != nil {
		return info.Err
	}
	return api.ErrConnClosed
}

func (r *Reactor) newConn(fd int, pc *protocol.Conn, h api.Handler) *Conn {
	return &Conn{
		id:      r.nextID.Add(1),
		fd:      fd,
		pc:      pc,
		handler: h,
		reactor: r,
		opened:  make(chan error, 1),
	}
}
