//go:build linux

// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interop tests against a conforming peer implementation
// (github.com/gorilla/websocket) over real sockets.

package server

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/momentics/reactor-ws/api"
)

const testTimeout = 5 * time.Second

// recordingHandler forwards events to channels so the test goroutine
// can observe them. Channels are buffered; callbacks never block.
type recordingHandler struct {
	api.NopHandler
	opened   chan api.Conn
	messages chan api.Message
	pings    chan []byte
	closed   chan api.CloseInfo
	echo     bool
	closeOn  string // message text that triggers a server-side Close
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened:   make(chan api.Conn, 8),
		messages: make(chan api.Message, 8),
		pings:    make(chan []byte, 8),
		closed:   make(chan api.CloseInfo, 8),
	}
}

func (h *recordingHandler) OnOpen(c api.Conn) { h.opened <- c }

func (h *recordingHandler) OnMessage(c api.Conn, msg api.Message) {
	h.messages <- msg
	if h.closeOn != "" && msg.Kind == api.TextMessage && msg.Text() == h.closeOn {
		_ = c.Close(1000, "server done")
		return
	}
	if h.echo {
		if msg.Kind == api.TextMessage {
			_ = c.SendText(msg.Text())
		} else {
			_ = c.SendBinary(msg.Payload)
		}
	}
}

func (h *recordingHandler) OnPing(_ api.Conn, p []byte) {
	h.pings <- append([]byte(nil), p...)
}

func (h *recordingHandler) OnClose(_ api.Conn, info api.CloseInfo) { h.closed <- info }

// startServer listens on an ephemeral port and runs the reactor until
// the test ends.
func startServer(t *testing.T, h api.Handler) (*Server, string) {
	t.Helper()
	s, err := New(h)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	addr, err := s.Addr()
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = s.Run() }()
	t.Cleanup(s.Shutdown)
	return s, addr
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(testTimeout))
	return ws
}

func waitClose(t *testing.T, h *recordingHandler) api.CloseInfo {
	t.Helper()
	select {
	case info := <-h.closed:
		return info
	case <-time.After(testTimeout):
		t.Fatal("no OnClose within timeout")
		return api.CloseInfo{}
	}
}

func TestEchoRoundTrip(t *testing.T) {
	h := newRecordingHandler()
	h.echo = true
	s, addr := startServer(t, h)
	ws := dialWS(t, addr)

	select {
	case c := <-h.opened:
		if c.Role() != api.RoleServer || c.Path() != "/" {
			t.Fatalf("opened conn: role=%v path=%q", c.Role(), c.Path())
		}
	case <-time.After(testTimeout):
		t.Fatal("no OnOpen")
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	mt, p, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if mt != websocket.TextMessage || string(p) != "hello" {
		t.Fatalf("echo: type=%d payload=%q", mt, p)
	}

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{0, 1, 2, 0xFF}); err != nil {
		t.Fatal(err)
	}
	mt, p, err = ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if mt != websocket.BinaryMessage || len(p) != 4 {
		t.Fatalf("binary echo: type=%d len=%d", mt, len(p))
	}

	stats := s.Stats()
	if stats.Accepted != 1 || stats.Opened != 1 || stats.Messages != 2 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.BytesRead == 0 || stats.BytesWritten == 0 {
		t.Fatalf("byte counters not advancing: %+v", stats)
	}
}

// A fragmented client message must arrive as one assembled message.
func TestFragmentedMessageAssembled(t *testing.T) {
	h := newRecordingHandler()
	_, addr := startServer(t, h)
	ws := dialWS(t, addr)

	w, err := ws.NextWriter(websocket.TextMessage)
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{"frag", "mented ", "message"} {
		if _, err := w.Write([]byte(part)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-h.messages:
		if msg.Text() != "fragmented message" {
			t.Fatalf("assembled %q", msg.Text())
		}
	case <-time.After(testTimeout):
		t.Fatal("message never delivered")
	}
}

func TestPingAnswered(t *testing.T) {
	h := newRecordingHandler()
	h.echo = true
	_, addr := startServer(t, h)
	ws := dialWS(t, addr)

	pong := make(chan string, 1)
	ws.SetPongHandler(func(data string) error {
		pong <- data
		return nil
	})

	deadline := time.Now().Add(testTimeout)
	if err := ws.WriteControl(websocket.PingMessage, []byte("tick"), deadline); err != nil {
		t.Fatal(err)
	}
	// The pong is processed while reading the echo of this message.
	if err := ws.WriteMessage(websocket.TextMessage, []byte("after-ping")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-pong:
		if data != "tick" {
			t.Fatalf("pong payload %q", data)
		}
	case <-time.After(testTimeout):
		t.Fatal("no pong")
	}
	select {
	case p := <-h.pings:
		if string(p) != "tick" {
			t.Fatalf("OnPing payload %q", p)
		}
	default:
		t.Fatal("OnPing not delivered")
	}
}

func TestClientInitiatedClose(t *testing.T) {
	h := newRecordingHandler()
	s, addr := startServer(t, h)
	ws := dialWS(t, addr)
	<-h.opened

	deadline := time.Now().Add(testTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	if err := ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		t.Fatal(err)
	}

	// The server echoes the close frame.
	_, _, err := ws.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	if !ok || ce.Code != websocket.CloseNormalClosure {
		t.Fatalf("expected close 1000, got %v", err)
	}

	info := waitClose(t, h)
	if info.Code != 1000 || info.Reason != "bye" || info.Err != nil {
		t.Fatalf("close info: %+v", info)
	}

	waitConnCount(t, s, 0)
}

func TestServerInitiatedClose(t *testing.T) {
	h := newRecordingHandler()
	h.closeOn = "quit"
	s, addr := startServer(t, h)
	ws := dialWS(t, addr)
	<-h.opened

	if err := ws.WriteMessage(websocket.TextMessage, []byte("quit")); err != nil {
		t.Fatal(err)
	}

	// The peer library echoes the close frame automatically, completing
	// the handshake the server started.
	_, _, err := ws.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	if !ok || ce.Code != websocket.CloseNormalClosure || ce.Text != "server done" {
		t.Fatalf("expected close 1000 %q, got %v", "server done", err)
	}

	info := waitClose(t, h)
	if info.Code != 1000 {
		t.Fatalf("close info: %+v", info)
	}
	waitConnCount(t, s, 0)
}

// A peer may keep pinging between receiving our close frame and echoing
// it. The server must answer those pings, which means the write side
// stays open until the echo arrives; the handshake still ends cleanly
// with 1000 on both sides.
func TestPingWhileServerClosing(t *testing.T) {
	h := newRecordingHandler()
	h.closeOn = "quit"
	s, addr := startServer(t, h)
	ws := dialWS(t, addr)
	<-h.opened

	ws.SetCloseHandler(func(code int, _ string) error {
		deadline := time.Now().Add(testTimeout)
		if err := ws.WriteControl(websocket.PingMessage, []byte("still here"), deadline); err != nil {
			return err
		}
		msg := websocket.FormatCloseMessage(code, "")
		return ws.WriteControl(websocket.CloseMessage, msg, deadline)
	})

	if err := ws.WriteMessage(websocket.TextMessage, []byte("quit")); err != nil {
		t.Fatal(err)
	}
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	info := waitClose(t, h)
	if info.Code != 1000 || info.Err != nil || info.Kind != api.KindNone {
		t.Fatalf("close info: %+v", info)
	}
	select {
	case p := <-h.pings:
		if string(p) != "still here" {
			t.Fatalf("ping payload %q", p)
		}
	case <-time.After(testTimeout):
		t.Fatal("ping during Closing never delivered")
	}
	waitConnCount(t, s, 0)
}

func TestConcurrentConnections(t *testing.T) {
	h := newRecordingHandler()
	h.echo = true
	s, addr := startServer(t, h)

	conns := make([]*websocket.Conn, 4)
	for i := range conns {
		conns[i] = dialWS(t, addr)
		<-h.opened
	}
	waitConnCount(t, s, len(conns))

	for i, ws := range conns {
		text := strings.Repeat("x", i+1)
		if err := ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			t.Fatal(err)
		}
		_, p, err := ws.ReadMessage()
		if err != nil || string(p) != text {
			t.Fatalf("conn %d: %q %v", i, p, err)
		}
	}

	for _, ws := range conns {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(testTimeout))
		_, _, _ = ws.ReadMessage()
	}
	waitConnCount(t, s, 0)
}

// A plain HTTP request that is not an upgrade gets a 400 and the socket
// is dropped.
func TestNonUpgradeRequestRejected(t *testing.T) {
	h := newRecordingHandler()
	_, addr := startServer(t, h)

	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	status, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 400 ") {
		t.Fatalf("status line %q", status)
	}

	info := waitClose(t, h)
	if info.Kind != api.KindHandshake {
		t.Fatalf("close info: %+v", info)
	}
}

// An unmasked client frame is a protocol violation; the server must
// close with 1002.
func TestUnmaskedFrameClosed1002(t *testing.T) {
	h := newRecordingHandler()
	_, addr := startServer(t, h)

	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))

	req := "GET / HTTP/1.1\r\n" +
		"Host: x\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	if err != nil || !strings.HasPrefix(status, "HTTP/1.1 101 ") {
		t.Fatalf("status %q err %v", status, err)
	}
	for { // skip remaining response headers
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if line == "\r\n" {
			break
		}
	}

	// Unmasked text frame "hi".
	if _, err := conn.Write([]byte{0x81, 0x02, 'h', 'i'}); err != nil {
		t.Fatal(err)
	}

	// Expect a close frame with code 1002: FIN|opcode 8, length 2.
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		t.Fatal(err)
	}
	if hdr[0] != 0x88 || hdr[1] != 0x02 {
		t.Fatalf("frame header % x", hdr[:2])
	}
	if code := uint16(hdr[2])<<8 | uint16(hdr[3]); code != 1002 {
		t.Fatalf("close code %d", code)
	}

	info := waitClose(t, h)
	if info.Code != 1002 || info.Kind != api.KindProtocol {
		t.Fatalf("close info: %+v", info)
	}
}

// waitConnCount polls the live-connection gauge; deregistration happens
// on the reactor goroutine shortly after the close completes.
func waitConnCount(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if s.ConnCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ConnCount stuck at %d, want %d", s.ConnCount(), want)
}
