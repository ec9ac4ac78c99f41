// File: protocol/frame_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"errors"
	"testing"
)

func TestClosePayloadRoundTrip(t *testing.T) {
	cases := []struct {
		code   uint16
		reason string
	}{
		{CloseNormalClosure, ""},
		{CloseNormalClosure, "bye"},
		{CloseGoingAway, "shutting down"},
		{CloseProtocolError, ""},
		{3000, "registered"},
		{4999, "private"},
	}
	for _, tc := range cases {
		p := EncodeClosePayload(tc.code, tc.reason)
		code, reason, err := ParseClosePayload(p)
		if err != nil {
			t.Fatalf("code=%d: %v", tc.code, err)
		}
		if code != tc.code || reason != tc.reason {
			t.Errorf("got (%d, %q), want (%d, %q)", code, reason, tc.code, tc.reason)
		}
	}
}

func TestClosePayloadNoStatus(t *testing.T) {
	// 1005 is a synthesized code and must never appear on the wire.
	if p := EncodeClosePayload(CloseNoStatusReceived, "ignored"); len(p) != 0 {
		t.Fatalf("1005 encoded to %d bytes", len(p))
	}
	code, reason, err := ParseClosePayload(nil)
	if err != nil || code != CloseNoStatusReceived || reason != "" {
		t.Fatalf("empty close payload: code=%d reason=%q err=%v", code, reason, err)
	}
}

func TestParseClosePayloadErrors(t *testing.T) {
	cases := []struct {
		name string
		p    []byte
		want error
	}{
		{"single byte", []byte{0x03}, ErrBadClosePayload},
		{"code below 1000", []byte{0x00, 0x64}, ErrBadCloseCode},
		{"reserved 1005", []byte{0x03, 0xED}, ErrBadCloseCode},
		{"reserved 1006", []byte{0x03, 0xEE}, ErrBadCloseCode},
		{"reserved 1004", []byte{0x03, 0xEC}, ErrBadCloseCode},
		{"unassigned 2000", []byte{0x07, 0xD0}, ErrBadCloseCode},
		{"invalid utf8 reason", []byte{0x03, 0xE8, 0xFF, 0xFE}, ErrInvalidUTF8},
	}
	for _, tc := range cases {
		if _, _, err := ParseClosePayload(tc.p); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
