// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package reactor multiplexes many WebSocket connections over one
// readiness-polling goroutine.
//
// A Reactor owns the poller, the fd-keyed connection registry and every
// per-connection protocol state machine. All of that state is mutated
// only on the reactor goroutine, so no per-connection locking exists.
// External goroutines communicate with the loop through a command
// mailbox drained on each wakeup; Conn methods and Shutdown go through
// it. Each wakeup reads what the sockets have, drives the state
// machines, flushes what the sockets will take, and re-arms interest.
// Work per connection per wakeup is bounded by the bytes actually
// available, so one busy connection cannot starve the rest.
package reactor
