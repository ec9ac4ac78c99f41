// File: protocol/handshake.go
// Package protocol implements the HTTP upgrade handshake with strict validation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The negotiator consumes header bytes incrementally: Feed tolerates
// the header block arriving across any number of reads and consumes
// nothing until the terminating CRLFCRLF is present. Server role
// validates the upgrade request and emits the 101 response; client role
// emits the request and verifies the accept digest. The HTTP layer here
// is deliberately minimal, just the single upgrade exchange.

package protocol

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/momentics/reactor-ws/api"
)

var headerTerminator = []byte("\r\n\r\n")

// Handshake holds the negotiation state for one connection. It is
// discarded as soon as the connection reaches Open.
type Handshake struct {
	role      api.Role
	limits    Limits
	path      string
	host      string
	clientKey string
}

// NewServerHandshake returns a negotiator for an accepted connection.
func NewServerHandshake(limits Limits) *Handshake {
	return &Handshake{role: api.RoleServer, limits: limits.withDefaults()}
}

// NewClientHandshake returns a negotiator that will request an upgrade
// of path on host, with a fresh random key.
func NewClientHandshake(path, host string, limits Limits) (*Handshake, error) {
	key, err := GenerateClientKey()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = "/"
	}
	return &Handshake{
		role:      api.RoleClient,
		limits:    limits.withDefaults(),
		path:      path,
		host:      host,
		clientKey: key,
	}, nil
}

// Path returns the request path once the server-role handshake has
// parsed the request line, or the configured path for client role.
func (h *Handshake) Path() string { return h.path }

// Request returns the upgrade request bytes for client role.
func (h *Handshake) Request() []byte {
	return []byte(fmt.Sprintf(
		"GET %s HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Key: %s\r\n"+
			"Sec-WebSocket-Version: 13\r\n\r\n",
		h.path, h.host, h.clientKey))
}

// Feed scans buf for a complete header block. Until the terminator is
// seen it consumes nothing and reports incomplete. Once complete, it
// returns the number of bytes consumed (frames may follow in the same
// buffer), the response bytes to transmit (server role), and whether
// the connection may open. A non-nil error is fatal; for server role it
// is accompanied by an HTTP error response to flush before closing.
func (h *Handshake) Feed(buf []byte) (consumed int, response []byte, complete bool, err error) {
	idx := bytes.Index(buf, headerTerminator)
	if idx < 0 {
		if len(buf) > h.limits.MaxHandshakeBytes {
			return 0, nil, false, ErrHandshakeTooLarge
		}
		return 0, nil, false, nil
	}
	if idx+len(headerTerminator) > h.limits.MaxHandshakeBytes {
		return 0, nil, false, ErrHandshakeTooLarge
	}

	head := string(buf[:idx])
	consumed = idx + len(headerTerminator)

	switch h.role {
	case api.RoleServer:
		response, err = h.acceptRequest(head)
		if err != nil {
			return consumed, errorResponse(), false, err
		}
		return consumed, response, true, nil
	default:
		if err = h.checkResponse(head); err != nil {
			return consumed, nil, false, err
		}
		return consumed, nil, true, nil
	}
}

// acceptRequest validates the client's upgrade request and builds the
// 101 response.
func (h *Handshake) acceptRequest(head string) ([]byte, error) {
	lines := strings.Split(head, "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) != 3 || fields[0] != "GET" {
		return nil, ErrBadHandshakeMethod
	}
	h.path = fields[1]

	headers := parseHeaderLines(lines[1:])
	if !containsToken(headers["connection"], "upgrade") ||
		!containsToken(headers["upgrade"], "websocket") {
		return nil, ErrInvalidUpgradeHeaders
	}
	if headers["sec-websocket-version"] != "13" {
		return nil, ErrBadWebSocketVersion
	}
	key := headers["sec-websocket-key"]
	if key == "" {
		return nil, ErrMissingWebSocketKey
	}

	resp := fmt.Sprintf(
		"HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: %s\r\n\r\n",
		ComputeAcceptKey(key))
	return []byte(resp), nil
}

// checkResponse validates the server's 101 response against the key we
// sent. A digest mismatch is fatal: the connection never reaches Open.
func (h *Handshake) checkResponse(head string) error {
	lines := strings.Split(head, "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) < 2 || fields[1] != "101" {
		return ErrBadHandshakeStatus
	}

	headers := parseHeaderLines(lines[1:])
	if !containsToken(headers["connection"], "upgrade") ||
		!containsToken(headers["upgrade"], "websocket") {
		return ErrInvalidUpgradeHeaders
	}
	if headers["sec-websocket-accept"] != ComputeAcceptKey(h.clientKey) {
		return ErrBadAcceptKey
	}
	return nil
}

// ComputeAcceptKey derives the Sec-WebSocket-Accept value from the
// client's key, RFC 6455 section 1.3.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// GenerateClientKey returns a fresh base64-encoded 16-byte random key.
func GenerateClientKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate websocket key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// parseHeaderLines folds header lines into a lower-cased map, joining
// repeated headers with commas so token scans see every value.
func parseHeaderLines(lines []string) map[string]string {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		sep := strings.Index(line, ":")
		if sep <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:sep]))
		val := strings.TrimSpace(line[sep+1:])
		if prev, ok := headers[key]; ok {
			headers[key] = prev + ", " + val
		} else {
			headers[key] = val
		}
	}
	return headers
}

// containsToken reports whether the comma-separated header value
// contains token, case-insensitive.
func containsToken(headerValue, token string) bool {
	for _, p := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}

// errorResponse is flushed to clients whose upgrade request failed
// validation before the connection is dropped.
func errorResponse() []byte {
	return []byte("HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
}
