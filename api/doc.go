// Package api
// Author: momentics <momentics@gmail.com>
//
// Public surface of reactor-ws: connection handle, event handler,
// message and error types shared by the protocol and reactor layers.
//
// The reactor itself is never exposed here. Applications implement
// Handler and receive callbacks on the reactor goroutine; Conn methods
// are safe to call from any goroutine.
package api
