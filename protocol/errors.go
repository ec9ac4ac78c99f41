// File: protocol/errors.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sentinel errors for protocol and handshake violations, and the
// mapping from errors to WebSocket close codes.

package protocol

import "errors"

// Protocol violations. Each is fatal to the connection and triggers a
// best-effort close frame with the code reported by CloseCodeFor.
var (
	ErrInvalidOpcode          = errors.New("ws: invalid opcode")
	ErrReservedBits           = errors.New("ws: reserved bits must be zero")
	ErrControlFragmented      = errors.New("ws: control frame must not be fragmented")
	ErrControlTooLarge        = errors.New("ws: control frame payload exceeds 125 bytes")
	ErrInvalidLength          = errors.New("ws: invalid 64-bit payload length")
	ErrFrameTooLarge          = errors.New("ws: frame payload exceeds maximum size")
	ErrMessageTooLarge        = errors.New("ws: message exceeds maximum size")
	ErrUnexpectedContinuation = errors.New("ws: continuation frame without open fragment sequence")
	ErrInterleavedData        = errors.New("ws: data frame interleaved in fragment sequence")
	ErrMaskRequired           = errors.New("ws: client frames must be masked")
	ErrMaskUnexpected         = errors.New("ws: server frames must not be masked")
	ErrInvalidUTF8            = errors.New("ws: invalid UTF-8 in text message")
	ErrBadClosePayload        = errors.New("ws: malformed close frame payload")
	ErrBadCloseCode           = errors.New("ws: invalid close code")
)

// Handshake failures. The connection never reaches Open and no close
// frame is exchanged.
var (
	ErrInvalidUpgradeHeaders = errors.New("ws: invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey   = errors.New("ws: missing Sec-WebSocket-Key header")
	ErrBadWebSocketVersion   = errors.New("ws: unsupported WebSocket version; only '13' is supported")
	ErrBadHandshakeMethod    = errors.New("ws: handshake request method must be GET")
	ErrHandshakeTooLarge     = errors.New("ws: handshake headers too large")
	ErrBadHandshakeStatus    = errors.New("ws: handshake response status is not 101")
	ErrBadAcceptKey          = errors.New("ws: Sec-WebSocket-Accept mismatch")
	ErrCloseTimeout          = errors.New("ws: close handshake timed out")
)

// CloseCodeFor maps a protocol violation to the close code carried by
// the best-effort close frame sent before the connection is dropped.
func CloseCodeFor(err error) uint16 {
	switch {
	case errors.Is(err, ErrInvalidUTF8):
		return CloseInvalidPayloadData
	case errors.Is(err, ErrFrameTooLarge), errors.Is(err, ErrMessageTooLarge):
		return CloseMessageTooBig
	default:
		return CloseProtocolError
	}
}
