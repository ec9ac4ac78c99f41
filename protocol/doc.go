// Package protocol implements the RFC 6455 wire protocol: frame codec,
// message assembly, upgrade handshake, and the per-connection state
// machine that composes them.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Everything in this package is pure byte-in/byte-out. A Conn consumes
// raw inbound bytes via Receive and exposes encoded outbound bytes via
// OutboundBytes/ConsumeOutbound; it never touches a socket. The reactor
// package owns the sockets and drives Conn from readiness events, which
// keeps the whole state machine testable without any I/O.
package protocol
