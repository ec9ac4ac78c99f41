// File: api/events.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event callbacks delivered by the reactor and the message types they carry.

package api

// MessageKind distinguishes text and binary WebSocket messages.
type MessageKind byte

const (
	TextMessage MessageKind = iota + 1
	BinaryMessage
)

func (k MessageKind) String() string {
	switch k {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is a fully assembled application-level unit. For TextMessage
// the payload is valid UTF-8; validation happens once, when the final
// fragment arrives. Ownership of Payload transfers to the receiver.
type Message struct {
	Kind    MessageKind
	Payload []byte
}

// Text returns the payload as a string.
func (m Message) Text() string { return string(m.Payload) }

// CloseInfo describes how a connection terminated.
type CloseInfo struct {
	// Code is the WebSocket close code exchanged or implied.
	// CloseNoStatusReceived when the peer sent an empty close payload,
	// CloseAbnormalClosure when the socket died without a close frame.
	Code uint16
	// Reason is the UTF-8 close reason, possibly empty.
	Reason string
	// Kind classifies the termination cause.
	Kind ErrorKind
	// Err is the underlying error for abnormal terminations, nil for a
	// clean close handshake.
	Err error
}

// Handler receives connection events. All callbacks run on the reactor
// goroutine that owns the connection; they must not block. Calling Conn
// send methods from inside a callback is allowed.
type Handler interface {
	// OnOpen fires once the handshake completes and the connection is Open.
	OnOpen(Conn)
	// OnMessage delivers each assembled text or binary message in wire order.
	OnMessage(Conn, Message)
	// OnPing fires after the engine has already queued the answering pong.
	OnPing(Conn, []byte)
	// OnPong delivers pong payloads as liveness signals.
	OnPong(Conn, []byte)
	// OnError reports a fatal per-connection error before OnClose.
	OnError(Conn, error)
	// OnClose fires exactly once, when the connection reaches Closed.
	// Connections that never complete the handshake also report here,
	// with Kind == KindHandshake.
	OnClose(Conn, CloseInfo)
}

// NopHandler implements Handler with empty callbacks. Embed it to
// implement only the events of interest.
type NopHandler struct{}

func (NopHandler) OnOpen(Conn)             {}
func (NopHandler) OnMessage(Conn, Message) {}
func (NopHandler) OnPing(Conn, []byte)     {}
func (NopHandler) OnPong(Conn, []byte)     {}
func (NopHandler) OnError(Conn, error)     {}
func (NopHandler) OnClose(Conn, CloseInfo) {}
