// File: protocol/constants.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants.

package protocol

const (
	// Data opcodes (<0x8) and control opcodes (>=0x8).
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA

	// Frame limit settings.
	MaxControlPayloadLen = 125
	MaxFrameHeaderLen    = 14 // extended payload length plus masking key

	// Bit masks for the first two header bytes.
	FinBit  = 0x80
	RsvBits = 0x70
	MaskBit = 0x80

	// Payload-length encoding markers.
	payloadLen16Bit = 126
	payloadLen64Bit = 127

	// Close codes, RFC 6455 section 7.4.1.
	CloseNormalClosure      = 1000
	CloseGoingAway          = 1001
	CloseProtocolError      = 1002
	CloseUnsupportedData    = 1003
	CloseNoStatusReceived   = 1005
	CloseAbnormalClosure    = 1006
	CloseInvalidPayloadData = 1007
	ClosePolicyViolation    = 1008
	CloseMessageTooBig      = 1009
	CloseMissingExtension   = 1010
	CloseInternalServerErr  = 1011
)

// WebSocketGUID is the fixed GUID mixed into the accept-key digest,
// RFC 6455 section 1.3.
const WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// IsControl reports whether op is a control opcode (close, ping, pong
// or a reserved control code).
func IsControl(op byte) bool { return op&0x08 != 0 }

// IsData reports whether op is a data opcode.
func IsData(op byte) bool {
	return op == OpcodeContinuation || op == OpcodeText || op == OpcodeBinary
}

// ValidOpcode reports whether op is defined by RFC 6455. Opcodes
// 0x3-0x7 and 0xB-0xF are reserved and constitute a protocol error.
func ValidOpcode(op byte) bool {
	switch op {
	case OpcodeContinuation, OpcodeText, OpcodeBinary,
		OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}
