// File: protocol/frame_codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func mustDecode(t *testing.T, raw []byte) (*Frame, int) {
	t.Helper()
	f, n, err := DecodeFrame(raw, DefaultLimits().MaxFramePayload)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if f == nil {
		t.Fatalf("DecodeFrame returned incomplete for %d bytes", len(raw))
	}
	return f, n
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("a"), 125),
		bytes.Repeat([]byte("b"), 126),
		bytes.Repeat([]byte("c"), 65535),
		bytes.Repeat([]byte("d"), 65536),
	}
	opcodes := []byte{OpcodeText, OpcodeBinary, OpcodeContinuation}

	for _, opcode := range opcodes {
		for _, masked := range []bool{false, true} {
			for _, fin := range []bool{false, true} {
				for _, payload := range payloads {
					f := &Frame{Fin: fin, Opcode: opcode, Payload: payload}
					if masked {
						f.Masked = true
						f.MaskKey = NewMaskKey()
					}
					raw := EncodeFrame(f)
					got, n, err := DecodeFrame(raw, int64(len(payload))+1)
					if err != nil {
						t.Fatalf("op=%d masked=%v fin=%v len=%d: %v",
							opcode, masked, fin, len(payload), err)
					}
					if got == nil {
						t.Fatalf("op=%d len=%d: incomplete on full frame", opcode, len(payload))
					}
					if n != len(raw) {
						t.Errorf("consumed %d of %d bytes", n, len(raw))
					}
					if got.Fin != fin || got.Opcode != opcode || got.Masked != masked {
						t.Errorf("header mismatch: %+v", got)
					}
					if !bytes.Equal(got.Payload, payload) {
						t.Errorf("payload mismatch at len=%d", len(payload))
					}
				}
			}
		}
	}
}

func TestControlFrameRoundTrip(t *testing.T) {
	for _, opcode := range []byte{OpcodeClose, OpcodePing, OpcodePong} {
		payload := bytes.Repeat([]byte("p"), MaxControlPayloadLen)
		f := &Frame{Fin: true, Opcode: opcode, Payload: payload}
		got, _ := mustDecode(t, EncodeFrame(f))
		if got.Opcode != opcode || !bytes.Equal(got.Payload, payload) {
			t.Errorf("control frame op=%d did not round-trip", opcode)
		}
	}
}

// TestDecodePartialInput feeds every strict prefix of a valid frame and
// expects NeedMoreData with nothing consumed, regardless of chunking.
func TestDecodePartialInput(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpcodeBinary, Masked: true, MaskKey: NewMaskKey(),
		Payload: bytes.Repeat([]byte("z"), 300)} // 16-bit length + mask
	raw := EncodeFrame(f)

	for cut := 0; cut < len(raw); cut++ {
		got, n, err := DecodeFrame(raw[:cut], DefaultLimits().MaxFramePayload)
		if err != nil {
			t.Fatalf("prefix %d: unexpected error %v", cut, err)
		}
		if got != nil || n != 0 {
			t.Fatalf("prefix %d: consumed %d bytes of a partial frame", cut, n)
		}
	}

	// Decoding is idempotent on insufficient input: the same prefix fed
	// twice, then completed, still parses.
	half := raw[:len(raw)/2]
	for i := 0; i < 2; i++ {
		if got, n, _ := DecodeFrame(half, DefaultLimits().MaxFramePayload); got != nil || n != 0 {
			t.Fatal("partial decode consumed input")
		}
	}
	got, n := mustDecode(t, raw)
	if n != len(raw) || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatal("completed frame did not decode")
	}
}

func TestMinimalLengthEncoding(t *testing.T) {
	cases := []struct {
		plen      int
		headerLen int
	}{
		{0, 2}, {125, 2}, {126, 4}, {65535, 4}, {65536, 10},
	}
	for _, tc := range cases {
		raw := EncodeFrame(&Frame{Fin: true, Opcode: OpcodeBinary,
			Payload: make([]byte, tc.plen)})
		if len(raw) != tc.headerLen+tc.plen {
			t.Errorf("plen=%d: header is %d bytes, want %d",
				tc.plen, len(raw)-tc.plen, tc.headerLen)
		}
	}
}

// TestDecodeNonMinimalLength verifies the decoder accepts any length
// width the peer chose, not only the minimal one.
func TestDecodeNonMinimalLength(t *testing.T) {
	payload := []byte("short")
	raw := []byte{FinBit | OpcodeText, payloadLen16Bit, 0, byte(len(payload))}
	raw = append(raw, payload...)
	got, _ := mustDecode(t, raw)
	if !bytes.Equal(got.Payload, payload) {
		t.Fatal("16-bit encoding of short payload rejected")
	}
}

func TestMaskIsSelfInverse(t *testing.T) {
	key := NewMaskKey()
	payload := []byte("The quick brown fox jumps over the lazy dog")
	data := append([]byte(nil), payload...)
	ApplyMask(data, key)
	if bytes.Equal(data, payload) {
		t.Fatal("mask left payload unchanged")
	}
	ApplyMask(data, key)
	if !bytes.Equal(data, payload) {
		t.Fatal("mask+unmask is not the identity")
	}
}

func TestDecodeProtocolViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want error
	}{
		{"reserved opcode", []byte{FinBit | 0x3, 0}, ErrInvalidOpcode},
		{"reserved control opcode", []byte{FinBit | 0xB, 0}, ErrInvalidOpcode},
		{"rsv bit set", []byte{FinBit | 0x40 | OpcodeText, 0}, ErrReservedBits},
		{"fragmented ping", []byte{OpcodePing, 0}, ErrControlFragmented},
	}
	for _, tc := range cases {
		if _, _, err := DecodeFrame(tc.raw, 1024); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	// Control frame with a 126-byte payload.
	over := EncodeFrame(&Frame{Fin: true, Opcode: OpcodePing,
		Payload: make([]byte, MaxControlPayloadLen+1)})
	if _, _, err := DecodeFrame(over, 1024); !errors.Is(err, ErrControlTooLarge) {
		t.Errorf("oversized control frame: got %v", err)
	}

	// 64-bit length with the high bit set.
	bad := []byte{FinBit | OpcodeBinary, payloadLen64Bit, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint64(bad[2:], 1<<63|16)
	if _, _, err := DecodeFrame(bad, 1024); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("high-bit length: got %v", err)
	}
}

func TestDecodeFrameTooLarge(t *testing.T) {
	raw := EncodeFrame(&Frame{Fin: true, Opcode: OpcodeBinary, Payload: make([]byte, 512)})
	if _, _, err := DecodeFrame(raw, 256); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestAppendFrameDoesNotMutatePayload(t *testing.T) {
	payload := []byte("immutable")
	want := append([]byte(nil), payload...)
	f := &Frame{Fin: true, Opcode: OpcodeText, Masked: true, MaskKey: NewMaskKey(), Payload: payload}
	_ = EncodeFrame(f)
	if !bytes.Equal(payload, want) {
		t.Fatal("encoder masked the caller's payload in place")
	}
}
