// File: protocol/codec_bench_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"strconv"
	"testing"
	"time"
)

func benchPayloadSizes() []int { return []int{16, 512, 16 * 1024, 256 * 1024} }

func BenchmarkEncodeFrame(b *testing.B) {
	for _, size := range benchPayloadSizes() {
		b.Run(sizeName(size), func(b *testing.B) {
			f := &Frame{Fin: true, Opcode: OpcodeBinary, Payload: make([]byte, size)}
			dst := make([]byte, 0, size+MaxFrameHeaderLen)
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				dst = AppendFrame(dst[:0], f)
			}
		})
	}
}

func BenchmarkDecodeFrame(b *testing.B) {
	for _, size := range benchPayloadSizes() {
		b.Run(sizeName(size), func(b *testing.B) {
			raw := EncodeFrame(&Frame{
				Fin: true, Opcode: OpcodeBinary, Masked: true,
				MaskKey: NewMaskKey(), Payload: make([]byte, size),
			})
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := DecodeFrame(raw, int64(size)+1); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkApplyMask(b *testing.B) {
	key := NewMaskKey()
	data := make([]byte, 64*1024)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		ApplyMask(data, key)
	}
}

// BenchmarkConnEcho drives the full state machine: receive one masked
// text frame, queue the echo, drain the outbound buffer.
func BenchmarkConnEcho(b *testing.B) {
	c := NewServerConn(DefaultLimits())
	now := time.Unix(1700000000, 0)
	if evs := c.Receive([]byte(sampleUpgradeRequest), now); len(evs) != 1 {
		b.Fatal("handshake failed")
	}
	c.ConsumeOutbound(len(c.OutboundBytes()))

	payload := make([]byte, 512)
	raw := EncodeFrame(&Frame{
		Fin: true, Opcode: OpcodeText, Masked: true,
		MaskKey: NewMaskKey(), Payload: payload,
	})
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		evs := c.Receive(raw, now)
		if len(evs) != 1 {
			b.Fatal("no message event")
		}
		if err := c.Send(evs[0].Message.Kind, evs[0].Message.Payload); err != nil {
			b.Fatal(err)
		}
		c.ConsumeOutbound(len(c.OutboundBytes()))
	}
}

func sizeName(n int) string {
	if n >= 1024 {
		return strconv.Itoa(n/1024) + "KiB"
	}
	return strconv.Itoa(n) + "B"
}
