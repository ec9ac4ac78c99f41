// File: protocol/frame.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame is the decoded wire-level unit and the input to the encoder.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"unicode/utf8"
)

// Frame represents one WebSocket frame, decoded or about to be encoded.
type Frame struct {
	Fin              bool
	Rsv1, Rsv2, Rsv3 bool
	Opcode           byte
	Masked           bool
	MaskKey          [4]byte
	Payload          []byte
}

// ApplyMask XORs data in place with key[i%4]. The transform is
// self-inverse: masking and unmasking are the same operation.
func ApplyMask(data []byte, key [4]byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}

// NewMaskKey returns a fresh random masking key for a client frame.
func NewMaskKey() [4]byte {
	var key [4]byte
	// rand.Read never fails on supported platforms.
	_, _ = rand.Read(key[:])
	return key
}

// EncodeClosePayload packs a close code and reason into a close frame
// payload. CloseNoStatusReceived yields an empty payload, since 1005 is
// never sent on the wire.
func EncodeClosePayload(code uint16, reason string) []byte {
	if code == CloseNoStatusReceived {
		return nil
	}
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, code)
	copy(p[2:], reason)
	return p
}

// ParseClosePayload unpacks a received close frame payload. An empty
// payload means the peer sent no status; a 1-byte payload, a reserved
// code, or a non-UTF-8 reason is a protocol error.
func ParseClosePayload(p []byte) (code uint16, reason string, err error) {
	switch {
	case len(p) == 0:
		return CloseNoStatusReceived, "", nil
	case len(p) == 1:
		return 0, "", ErrBadClosePayload
	}
	code = binary.BigEndian.Uint16(p)
	if !validCloseCode(code) {
		return 0, "", ErrBadCloseCode
	}
	if !utf8.Valid(p[2:]) {
		return 0, "", ErrInvalidUTF8
	}
	return code, string(p[2:]), nil
}

// validCloseCode reports whether code may appear on the wire,
// RFC 6455 section 7.4.
func validCloseCode(code uint16) bool {
	switch {
	case code >= 3000 && code <= 4999:
		return true
	case code < 1000:
		return false
	case code == CloseNoStatusReceived, code == CloseAbnormalClosure:
		return false // reserved, never sent
	case code >= 1000 && code <= 1011 && code != 1004:
		return true
	default:
		return false
	}
}
