// File: reactor/poller.go
// Package reactor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral readiness poller contract. The Linux implementation
// uses epoll; other platforms report api.ErrNotSupported.

package reactor

// pollEvent is one readiness notification.
type pollEvent struct {
	fd       int
	readable bool
	writable bool
	errored  bool
}

// poller abstracts the OS readiness mechanism.
type poller interface {
	// Add registers fd for read readiness, plus write readiness when
	// writable is set.
	Add(fd int, writable bool) error
	// Mod re-arms the interest set for an already registered fd.
	Mod(fd int, writable bool) error
	// Del removes fd from the watch set.
	Del(fd int) error
	// Wait blocks up to timeoutMs (-1 blocks indefinitely) and fills
	// evs with ready descriptors.
	Wait(evs []pollEvent, timeoutMs int) (int, error)
	// WakeFD identifies the self-wakeup descriptor surfaced by Wait.
	WakeFD() int
	// Wakeup forces a Wait in progress to return. Safe from any goroutine.
	Wakeup() error
	// DrainWake consumes a pending wakeup signal.
	DrainWake()
	// Close releases poller resources.
	Close() error
}
