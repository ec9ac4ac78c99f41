// File: protocol/limits.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "time"

// Limits bounds per-connection resource usage. Zero values are
// replaced by the defaults below.
type Limits struct {
	// MaxFramePayload caps a single frame payload. Larger frames are a
	// fatal error with close code 1009.
	MaxFramePayload int64
	// MaxMessagePayload caps the sum of fragment payloads of one message.
	MaxMessagePayload int64
	// MaxHandshakeBytes caps the upgrade request/response header block.
	MaxHandshakeBytes int
	// CloseGrace bounds the wait for the peer's close echo before the
	// connection is force-closed.
	CloseGrace time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxFramePayload:   1 << 20, // 1 MiB
		MaxMessagePayload: 4 << 20,
		MaxHandshakeBytes: 8192,
		CloseGrace:        5 * time.Second,
	}
}

// withDefaults fills unset fields.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxFramePayload <= 0 {
		l.MaxFramePayload = d.MaxFramePayload
	}
	if l.MaxMessagePayload <= 0 {
		l.MaxMessagePayload = d.MaxMessagePayload
	}
	if l.MaxHandshakeBytes <= 0 {
		l.MaxHandshakeBytes = d.MaxHandshakeBytes
	}
	if l.CloseGrace <= 0 {
		l.CloseGrace = d.CloseGrace
	}
	return l
}
