// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error classification shared across the library.

package api

import "errors"

// ErrorKind partitions fatal connection errors by origin.
type ErrorKind byte

const (
	// KindNone marks a clean close handshake.
	KindNone ErrorKind = iota
	// KindProtocol covers RFC 6455 violations by the peer: malformed
	// frames, bad opcodes, oversized control frames, invalid UTF-8,
	// masking in the wrong direction. Always fatal to the connection.
	KindProtocol
	// KindHandshake covers failures before the connection ever reached
	// Open: missing upgrade headers, bad version, digest mismatch.
	KindHandshake
	// KindIO covers socket errors and unexpected EOF.
	KindIO
	// KindApplication covers caller mistakes reported synchronously,
	// such as sending on a closed connection.
	KindApplication
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindProtocol:
		return "protocol"
	case KindHandshake:
		return "handshake"
	case KindIO:
		return "io"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Errors reported synchronously to callers.
var (
	// ErrConnClosed is returned by send operations once the connection
	// has left the Open state.
	ErrConnClosed = errors.New("reactor-ws: connection closed")
	// ErrReactorClosed is returned when submitting work to a reactor
	// that has shut down.
	ErrReactorClosed = errors.New("reactor-ws: reactor closed")
	// ErrNotSupported is returned on platforms without a readiness
	// poller implementation.
	ErrNotSupported = errors.New("reactor-ws: not supported on this platform")
)
