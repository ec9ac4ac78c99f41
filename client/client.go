// File: client/client.go
// Package client exposes the client role: dial a ws:// URL and drive
// the connection from a dedicated reactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/momentics/reactor-ws/api"
	"github.com/momentics/reactor-ws/internal/sockets"
	"github.com/momentics/reactor-ws/protocol"
	"github.com/momentics/reactor-ws/reactor"
)

// Dialer owns a reactor shared by every connection it dials. The loop
// starts with the first Dial and stops on Close.
type Dialer struct {
	r    *reactor.Reactor
	once sync.Once
}

// NewDialer constructs a dialer with its own reactor.
func NewDialer(opts ...reactor.Option) (*Dialer, error) {
	r, err := reactor.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Dialer{r: r}, nil
}

// Dial connects to a ws:// URL, performs the upgrade handshake, and
// returns once the connection is Open. Events flow to h on the dialer's
// reactor goroutine.
func (d *Dialer) Dial(ctx context.Context, rawURL string, h api.Handler) (api.Conn, error) {
	hostport, path, err := splitWSURL(rawURL)
	if err != nil {
		return nil, err
	}

	pc, err := protocol.NewClientConn(path, hostport, d.r.Limits())
	if err != nil {
		return nil, err
	}

	fd, inProgress, err := sockets.Connect(hostport)
	if err != nil {
		return nil, err
	}

	d.once.Do(func() {
		go func() { _ = d.r.Run() }()
	})

	conn, err := d.r.RegisterClientConn(fd, pc, h, inProgress)
	if err != nil {
		_ = sockets.Close(fd)
		return nil, err
	}

	select {
	case err := <-conn.Opened():
		if err != nil {
			return nil, fmt.Errorf("websocket dial %s: %w", rawURL, err)
		}
		return conn, nil
	case <-ctx.Done():
		conn.Abort()
		return nil, ctx.Err()
	}
}

// Close stops the dialer's reactor, aborting its connections.
func (d *Dialer) Close() {
	d.r.Shutdown()
}

// splitWSURL reduces a ws:// URL to the host:port to connect and the
// request path for the handshake. Only the pieces the upgrade needs are
// parsed; this is not an HTTP client.
func splitWSURL(rawURL string) (hostport, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" {
		return "", "", fmt.Errorf("unsupported scheme %q; only ws:// is supported", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		// JoinHostPort re-brackets IPv6 literals.
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	path = u.RequestURI()
	if path == "" {
		path = "/"
	}
	return host, path, nil
}
