// File: protocol/frame_codec.go
// Package protocol implements the frame codec with payload size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DecodeFrame never consumes a partial frame: on insufficient input it
// returns (nil, 0, nil) so the caller can retry once more bytes arrive.
// The encoder always selects the minimal-width payload length encoding;
// the decoder accepts any width.

package protocol

import "encoding/binary"

// DecodeFrame parses the first complete frame in buf and returns it
// together with the number of bytes consumed. An incomplete frame
// yields (nil, 0, nil); a malformed one yields a protocol error.
// Masked payloads are unmasked during decode. The returned payload
// does not alias buf.
func DecodeFrame(buf []byte, maxPayload int64) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}

	f := &Frame{
		Fin:    buf[0]&FinBit != 0,
		Rsv1:   buf[0]&0x40 != 0,
		Rsv2:   buf[0]&0x20 != 0,
		Rsv3:   buf[0]&0x10 != 0,
		Opcode: buf[0] & 0x0F,
		Masked: buf[1]&MaskBit != 0,
	}

	if !ValidOpcode(f.Opcode) {
		return nil, 0, ErrInvalidOpcode
	}
	// No extensions are negotiated, so any RSV bit is a violation.
	if f.Rsv1 || f.Rsv2 || f.Rsv3 {
		return nil, 0, ErrReservedBits
	}
	if IsControl(f.Opcode) && !f.Fin {
		return nil, 0, ErrControlFragmented
	}

	length := int64(buf[1] & 0x7F)
	offset := 2
	switch length {
	case payloadLen16Bit:
		if len(buf) < offset+2 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case payloadLen64Bit:
		if len(buf) < offset+8 {
			return nil, 0, nil
		}
		u := binary.BigEndian.Uint64(buf[offset:])
		if u&(1<<63) != 0 {
			return nil, 0, ErrInvalidLength
		}
		length = int64(u)
		offset += 8
	}

	if IsControl(f.Opcode) && length > MaxControlPayloadLen {
		return nil, 0, ErrControlTooLarge
	}
	if length > maxPayload {
		return nil, 0, ErrFrameTooLarge
	}

	if f.Masked {
		if len(buf) < offset+4 {
			return nil, 0, nil
		}
		copy(f.MaskKey[:], buf[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(buf) < total {
		return nil, 0, nil
	}

	f.Payload = make([]byte, length)
	copy(f.Payload, buf[offset:total])
	if f.Masked {
		ApplyMask(f.Payload, f.MaskKey)
	}
	return f, total, nil
}

// EncodeFrame serializes f into a fresh buffer.
func EncodeFrame(f *Frame) []byte {
	return AppendFrame(nil, f)
}

// AppendFrame serializes f and appends the wire bytes to dst, returning
// the extended slice. f.Payload is left untouched; when f.Masked is set
// the masking transform is applied to the copy inside dst.
func AppendFrame(dst []byte, f *Frame) []byte {
	b0 := f.Opcode & 0x0F
	if f.Fin {
		b0 |= FinBit
	}
	if f.Rsv1 {
		b0 |= 0x40
	}
	if f.Rsv2 {
		b0 |= 0x20
	}
	if f.Rsv3 {
		b0 |= 0x10
	}

	var maskBit byte
	if f.Masked {
		maskBit = MaskBit
	}

	plen := len(f.Payload)
	var hdr [10]byte
	hdr[0] = b0
	var header []byte
	switch {
	case plen <= MaxControlPayloadLen:
		hdr[1] = maskBit | byte(plen)
		header = hdr[:2]
	case plen <= 0xFFFF:
		hdr[1] = maskBit | payloadLen16Bit
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
		header = hdr[:4]
	default:
		hdr[1] = maskBit | payloadLen64Bit
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
		header = hdr[:10]
	}

	dst = append(dst, header...)
	if f.Masked {
		dst = append(dst, f.MaskKey[:]...)
	}
	start := len(dst)
	dst = append(dst, f.Payload...)
	if f.Masked {
		ApplyMask(dst[start:], f.MaskKey)
	}
	return dst
}
