// File: internal/sockets/sockets.go
// Package sockets
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import "errors"

// ErrAgain reports that a non-blocking operation would block; the
// caller resumes on the next readiness notification.
var ErrAgain = errors.New("sockets: operation would block")
