// File: reactor/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cumulative reactor counters. The loop goroutine is the only writer;
// atomics make snapshots safe from any goroutine.

package reactor

import "sync/atomic"

// Stats is a point-in-time snapshot of reactor activity.
type Stats struct {
	// Accepted counts sockets taken off listening sockets.
	Accepted int64
	// Opened counts connections that completed the upgrade handshake.
	Opened int64
	// Closed counts connections that reached Closed, cleanly or not.
	Closed int64
	// Messages counts assembled inbound messages delivered to handlers.
	Messages int64
	// BytesRead and BytesWritten count socket payload traffic, handshake
	// bytes included.
	BytesRead    int64
	BytesWritten int64
}

type statCounters struct {
	accepted     atomic.Int64
	opened       atomic.Int64
	closed       atomic.Int64
	messages     atomic.Int64
	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
}

func (s *statCounters) snapshot() Stats {
	return Stats{
		Accepted:     s.accepted.Load(),
		Opened:       s.opened.Load(),
		Closed:       s.closed.Load(),
		Messages:     s.messages.Load(),
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
	}
}

// Stats returns a snapshot of the cumulative counters.
func (r *Reactor) Stats() Stats { return r.stats.snapshot() }
