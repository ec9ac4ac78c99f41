// File: protocol/connection.go
// Package protocol implements the per-connection WebSocket state machine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn composes the handshake negotiator, frame codec and message
// assembler into one state machine with states Connecting, Open,
// Closing and Closed. It is driven entirely through byte buffers:
// Receive consumes whatever the socket produced this wakeup and
// OutboundBytes exposes whatever is ready to write. Partial reads and
// partial writes therefore suspend naturally between reactor wakeups,
// with no continuation state beyond the two buffers.
//
// Exactly one of the handshake state and the post-open codec state is
// live at any time: hs is dropped and asm created at the moment the
// connection opens.

package protocol

import (
	"io"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/reactor-ws/api"
)

// State is the connection lifecycle position.
type State byte

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// EventType tags events produced by the state machine.
type EventType byte

const (
	EventOpen EventType = iota + 1
	EventMessage
	EventPing
	EventPong
	EventClosed
)

// Event is one application-visible occurrence. The reactor translates
// events into api.Handler callbacks.
type Event struct {
	Type    EventType
	Message api.Message // EventMessage
	Payload []byte      // EventPing, EventPong
	Close   api.CloseInfo
}

// Conn is the protocol state machine for one connection. It performs no
// I/O and is not safe for concurrent use; a single reactor goroutine
// owns it.
type Conn struct {
	role   api.Role
	state  State
	limits Limits
	path   string

	hs  *Handshake
	asm *Assembler

	inbound  []byte
	outbound []byte
	// outq holds frames queued for transmission until the next
	// serialization into outbound, mirroring the pending-frame list the
	// outbound path accumulates between writable wakeups.
	outq *queue.Queue

	closeSent     bool
	closeRcvd     bool
	closeInfo     api.CloseInfo
	closeDeadline time.Time
	closedEmitted bool
}

// NewServerConn returns a Conn in Connecting state for an accepted socket.
func NewServerConn(limits Limits) *Conn {
	limits = limits.withDefaults()
	return &Conn{
		role:   api.RoleServer,
		limits: limits,
		hs:     NewServerHandshake(limits),
		outq:   queue.New(),
	}
}

// NewClientConn returns a Conn in Connecting state whose outbound
// buffer already carries the upgrade request for path on host.
func NewClientConn(path, host string, limits Limits) (*Conn, error) {
	limits = limits.withDefaults()
	hs, err := NewClientHandshake(path, host, limits)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		role:   api.RoleClient,
		limits: limits,
		hs:     hs,
		outq:   queue.New(),
	}
	c.outbound = append(c.outbound, hs.Request()...)
	c.path = path
	return c, nil
}

// State returns the current lifecycle state.
func (c *Conn) State() State { return c.state }

// Role returns the connection role.
func (c *Conn) Role() api.Role { return c.role }

// Path returns the request path negotiated during the handshake.
func (c *Conn) Path() string { return c.path }

// CloseDeadline returns the zero time or the instant at which Tick will
// force-close the connection.
func (c *Conn) CloseDeadline() time.Time { return c.closeDeadline }

// Receive consumes bytes read from the socket and returns the events
// they produced. Incomplete frames and header blocks stay buffered; the
// next Receive resumes exactly where this one suspended.
func (c *Conn) Receive(data []byte, now time.Time) []Event {
	if c.state == StateClosed {
		return nil
	}
	c.inbound = append(c.inbound, data...)

	var evs []Event
	if c.state == StateConnecting {
		consumed, resp, complete, err := c.hs.Feed(c.inbound)
		c.outbound = append(c.outbound, resp...)
		if err != nil {
			return c.failHandshake(err, now)
		}
		if !complete {
			return nil
		}
		c.inbound = c.inbound[consumed:]
		c.path = c.hs.Path()
		c.hs = nil
		c.asm = NewAssembler(c.limits.MaxMessagePayload)
		c.state = StateOpen
		evs = append(evs, Event{Type: EventOpen})
	}

	for c.state == StateOpen || c.state == StateClosing {
		f, n, err := DecodeFrame(c.inbound, c.limits.MaxFramePayload)
		if err != nil {
			return append(evs, c.failProtocol(err, now)...)
		}
		if f == nil {
			break
		}
		c.inbound = c.inbound[n:]

		fevs, ferr := c.handleFrame(f)
		evs = append(evs, fevs...)
		if ferr != nil {
			return append(evs, c.failProtocol(ferr, now)...)
		}
	}
	if len(c.inbound) == 0 {
		c.inbound = nil
	}
	return evs
}

// handleFrame routes one decoded frame: masking-direction check first,
// then control frames directly, data frames through the assembler.
func (c *Conn) handleFrame(f *Frame) ([]Event, error) {
	if c.role == api.RoleServer && !f.Masked {
		return nil, ErrMaskRequired
	}
	if c.role == api.RoleClient && f.Masked {
		return nil, ErrMaskUnexpected
	}

	if IsControl(f.Opcode) {
		return c.handleControl(f)
	}

	msg, err := c.asm.Feed(f)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	return []Event{{Type: EventMessage, Message: *msg}}, nil
}

// handleControl processes ping, pong and close frames. Pings arriving
// while Closing are still answered; only new pings are suppressed.
func (c *Conn) handleControl(f *Frame) ([]Event, error) {
	switch f.Opcode {
	case OpcodePing:
		c.enqueue(c.newFrame(OpcodePong, f.Payload))
		return []Event{{Type: EventPing, Payload: f.Payload}}, nil

	case OpcodePong:
		return []Event{{Type: EventPong, Payload: f.Payload}}, nil

	case OpcodeClose:
		code, reason, err := ParseClosePayload(f.Payload)
		if err != nil {
			return nil, err
		}
		c.closeRcvd = true
		if c.closeInfo.Code == 0 {
			c.closeInfo = api.CloseInfo{Code: code, Reason: reason}
		}
		if !c.closeSent {
			// Peer-initiated close: echo the code before closing.
			c.enqueue(c.newFrame(OpcodeClose, EncodeClosePayload(code, "")))
			c.closeSent = true
		}
		// Both directions have now exchanged close frames.
		c.state = StateClosed
		return c.emitClosed(), nil

	default:
		return nil, ErrInvalidOpcode
	}
}

// Send queues a complete text or binary message as a single frame.
func (c *Conn) Send(kind api.MessageKind, payload []byte) error {
	if c.state != StateOpen {
		return api.ErrConnClosed
	}
	op := byte(OpcodeText)
	if kind == api.BinaryMessage {
		op = OpcodeBinary
	}
	c.enqueue(c.newFrame(op, payload))
	return nil
}

// SendPing queues a ping with the given payload.
func (c *Conn) SendPing(payload []byte) error {
	if c.state != StateOpen {
		return api.ErrConnClosed
	}
	if len(payload) > MaxControlPayloadLen {
		return ErrControlTooLarge
	}
	c.enqueue(c.newFrame(OpcodePing, payload))
	return nil
}

// Close starts the application-initiated close handshake. The
// connection enters Closing and waits for the peer's echo until the
// grace deadline.
func (c *Conn) Close(code uint16, reason string, now time.Time) error {
	if c.state != StateOpen {
		return api.ErrConnClosed
	}
	c.enqueue(c.newFrame(OpcodeClose, EncodeClosePayload(code, reason)))
	c.closeSent = true
	c.closeInfo = api.CloseInfo{Code: code, Reason: reason}
	c.closeDeadline = now.Add(c.limits.CloseGrace)
	c.state = StateClosing
	return nil
}

// ReceiveEOF records that the peer shut the read direction down.
func (c *Conn) ReceiveEOF() []Event {
	if c.state == StateClosed {
		// Close handshake already complete; EOF is the expected end.
		return nil
	}
	return c.fail(api.CloseInfo{
		Code: CloseAbnormalClosure,
		Kind: c.eofKind(),
		Err:  io.ErrUnexpectedEOF,
	})
}

func (c *Conn) eofKind() api.ErrorKind {
	if c.state == StateConnecting {
		return api.KindHandshake
	}
	return api.KindIO
}

// FailIO force-closes after a socket error. Unflushed outbound bytes
// are abandoned; no further writes will be attempted.
func (c *Conn) FailIO(err error) []Event {
	if c.state == StateClosed && !c.closedEmitted {
		// Flush phase failed after logical close; abandon the tail.
		c.discardOutbound()
		return c.emitClosed()
	}
	evs := c.fail(api.CloseInfo{Code: CloseAbnormalClosure, Kind: api.KindIO, Err: err})
	c.discardOutbound()
	return evs
}

// ForceClose aborts without a close handshake, discarding unflushed
// outbound bytes. Used for application aborts and reactor shutdown.
func (c *Conn) ForceClose(kind api.ErrorKind, err error) []Event {
	if c.state == StateClosed && c.closedEmitted {
		return nil
	}
	evs := c.fail(api.CloseInfo{Code: CloseAbnormalClosure, Kind: kind, Err: err})
	c.discardOutbound()
	return evs
}

// Tick advances time-driven transitions: the close-handshake grace
// period, and abandoning a best-effort flush that never drained.
func (c *Conn) Tick(now time.Time) []Event {
	if c.closeDeadline.IsZero() || now.Before(c.closeDeadline) {
		return nil
	}
	switch c.state {
	case StateClosing:
		// Peer never echoed our close frame.
		info := c.closeInfo
		info.Kind = api.KindIO
		info.Err = ErrCloseTimeout
		return c.fail(info)
	case StateClosed:
		// A best-effort flush that never drained is abandoned so the
		// connection can deregister.
		c.discardOutbound()
		return c.emitClosed()
	}
	return nil
}

// failProtocol handles a fatal protocol violation: best-effort close
// frame with the mapped code, then Closed.
func (c *Conn) failProtocol(err error, now time.Time) []Event {
	code := CloseCodeFor(err)
	if !c.closeSent {
		c.enqueue(c.newFrame(OpcodeClose, EncodeClosePayload(code, "")))
		c.closeSent = true
	}
	// Bound the best-effort flush of the close frame.
	c.closeDeadline = now.Add(c.limits.CloseGrace)
	return c.fail(api.CloseInfo{Code: code, Kind: api.KindProtocol, Err: err})
}

// failHandshake terminates a connection that never reached Open. Any
// HTTP error response queued by the negotiator stays in outbound for a
// best-effort flush bounded by the grace deadline; no close frame is
// sent.
func (c *Conn) failHandshake(err error, now time.Time) []Event {
	c.closeDeadline = now.Add(c.limits.CloseGrace)
	return c.fail(api.CloseInfo{
		Code: CloseAbnormalClosure,
		Kind: api.KindHandshake,
		Err:  err,
	})
}

func (c *Conn) fail(info api.CloseInfo) []Event {
	if c.state == StateClosed && c.closedEmitted {
		return nil
	}
	if c.closeInfo.Code == 0 || info.Err != nil {
		c.closeInfo = info
	}
	c.state = StateClosed
	return c.emitClosed()
}

func (c *Conn) emitClosed() []Event {
	if c.closedEmitted {
		return nil
	}
	c.closedEmitted = true
	return []Event{{Type: EventClosed, Close: c.closeInfo}}
}

// newFrame builds an outgoing frame, masked iff this is the client side.
func (c *Conn) newFrame(op byte, payload []byte) *Frame {
	f := &Frame{Fin: true, Opcode: op, Payload: payload}
	if c.role == api.RoleClient {
		f.Masked = true
		f.MaskKey = NewMaskKey()
	}
	return f
}

func (c *Conn) enqueue(f *Frame) { c.outq.Add(f) }

// serializeQueue encodes queued frames into the outbound byte buffer.
// Deferred until the bytes are actually wanted so that a burst of sends
// between wakeups serializes in one pass.
func (c *Conn) serializeQueue() {
	for c.outq.Length() > 0 {
		f := c.outq.Remove().(*Frame)
		c.outbound = AppendFrame(c.outbound, f)
	}
}

// OutboundBytes returns the encoded bytes awaiting transmission. The
// caller reports progress through ConsumeOutbound; partial writes are
// normal and resume on the next writable wakeup.
func (c *Conn) OutboundBytes() []byte {
	c.serializeQueue()
	return c.outbound
}

// ConsumeOutbound removes the written prefix from the outbound buffer.
func (c *Conn) ConsumeOutbound(n int) {
	c.outbound = c.outbound[n:]
	if len(c.outbound) == 0 {
		c.outbound = nil
	}
}

// HasOutbound reports whether encoded or queued bytes await writing.
func (c *Conn) HasOutbound() bool { return c.hasOutbound() }

func (c *Conn) hasOutbound() bool {
	return len(c.outbound) > 0 || c.outq.Length() > 0
}

func (c *Conn) discardOutbound() {
	c.outbound = nil
	for c.outq.Length() > 0 {
		c.outq.Remove()
	}
}

// WantWriteShutdown reports that the write direction of the socket can
// be shut down: the close handshake has finished and every outbound
// byte has flushed. While Closing the write side must stay open, since
// in-flight pings still get answered until the peer's close arrives.
func (c *Conn) WantWriteShutdown() bool {
	return c.closeSent && !c.hasOutbound() && c.state == StateClosed
}

// Done reports that the connection may be deregistered: Closed, with
// the outbound buffer flushed or abandoned.
func (c *Conn) Done() bool {
	return c.state == StateClosed && !c.hasOutbound()
}
