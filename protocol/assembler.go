// File: protocol/assembler.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Assembler reassembles fragmented data frames into logical messages.
// Control frames never reach the assembler; the connection routes them
// directly, so an interleaved ping cannot disturb an open sequence.

package protocol

import (
	"unicode/utf8"

	"github.com/momentics/reactor-ws/api"
)

// Assembler accumulates the fragments of one in-progress message.
type Assembler struct {
	maxMessage int64
	kind       api.MessageKind
	buf        []byte
	open       bool
}

// NewAssembler returns an assembler enforcing the given message size cap.
func NewAssembler(maxMessage int64) *Assembler {
	return &Assembler{maxMessage: maxMessage}
}

// InProgress reports whether a fragment sequence is open.
func (a *Assembler) InProgress() bool { return a.open }

// Feed consumes one data frame. It returns a completed message on the
// final fragment, nil while the sequence is still open, or a protocol
// error. Fragment payloads are concatenated in arrival order; UTF-8 is
// validated once, when a text message completes.
func (a *Assembler) Feed(f *Frame) (*api.Message, error) {
	switch f.Opcode {
	case OpcodeContinuation:
		if !a.open {
			return nil, ErrUnexpectedContinuation
		}
	case OpcodeText, OpcodeBinary:
		if a.open {
			return nil, ErrInterleavedData
		}
		a.open = true
		a.kind = api.TextMessage
		if f.Opcode == OpcodeBinary {
			a.kind = api.BinaryMessage
		}
	default:
		return nil, ErrInvalidOpcode
	}

	if int64(len(a.buf))+int64(len(f.Payload)) > a.maxMessage {
		a.reset()
		return nil, ErrMessageTooLarge
	}
	a.buf = append(a.buf, f.Payload...)

	if !f.Fin {
		return nil, nil
	}

	if a.kind == api.TextMessage && !utf8.Valid(a.buf) {
		a.reset()
		return nil, ErrInvalidUTF8
	}
	msg := &api.Message{Kind: a.kind, Payload: a.buf}
	a.buf = nil
	a.open = false
	return msg, nil
}

func (a *Assembler) reset() {
	a.buf = nil
	a.open = false
}
