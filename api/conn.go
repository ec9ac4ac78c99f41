// File: api/conn.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Role selects the masking direction and the handshake side of a
// connection. Role-specific behavior is chosen by switching on this
// value, there is no per-role type hierarchy.
type Role byte

const (
	RoleServer Role = iota + 1
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// Conn is the application-facing handle for one WebSocket connection.
// Implementations route every mutation through the reactor that owns
// the connection state, so all methods are safe from any goroutine.
type Conn interface {
	// ID is a token unique within the owning reactor for the lifetime
	// of the connection.
	ID() uint64
	// Role reports which side of the handshake this connection is.
	Role() Role
	// Path is the request path negotiated during the handshake.
	Path() string

	// SendText queues a text message for transmission.
	SendText(s string) error
	// SendBinary queues a binary message for transmission.
	SendBinary(p []byte) error
	// Ping queues a ping frame carrying payload (at most 125 bytes).
	Ping(payload []byte) error
	// Close starts the close handshake with the given code and reason.
	Close(code uint16, reason string) error
	// Abort force-closes the connection without a close handshake,
	// discarding unflushed outbound bytes.
	Abort()
}
