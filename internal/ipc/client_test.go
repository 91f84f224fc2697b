package ipc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// startI3Server answers every framed request on a unix socket with the
// payload echoed back and the type bumped by 100. closeAfter limits how many
// replies each connection serves before the server hangs up; 0 means no
// limit. Returns the socket path and the accepted-connection count.
func startI3Server(t *testing.T, closeAfter int) (string, *atomic.Int32) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "control.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				w := bufio.NewWriter(conn)
				for served := 0; closeAfter == 0 || served < closeAfter; served++ {
					msg, err := I3Framing{}.ReadMessage(r)
					if err != nil {
						return
					}
					reply := Message{Type: msg.Type + 100, Payload: msg.Payload}
					if err := (I3Framing{}).WriteMessage(w, reply); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}()
		}
	}()
	return path, &accepted
}

// startRawServer serves hyprctl-style exchanges: read the request until the
// client closes its write side, answer "ok: "+request, hang up.
func startRawServer(t *testing.T) (string, *atomic.Int32) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "control.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				defer conn.Close()
				req, err := io.ReadAll(conn)
				if err != nil {
					return
				}
				conn.Write(append([]byte("ok: "), req...))
			}()
		}
	}()
	return path, &accepted
}

func TestClientPersistentReusesConnection(t *testing.T) {
	t.Parallel()

	path, accepted := startI3Server(t, 0)
	c := NewClient(ClientConfig{Path: path, Framing: I3Framing{}})
	defer c.Close()

	for i := 0; i < 3; i++ {
		reply, err := c.Roundtrip(context.Background(), Message{Type: 1, Payload: []byte("ping")})
		if err != nil {
			t.Fatalf("roundtrip %d: %v", i, err)
		}
		if reply.Type != 101 || string(reply.Payload) != "ping" {
			t.Fatalf("roundtrip %d reply = type %d payload %q", i, reply.Type, reply.Payload)
		}
	}
	if n := accepted.Load(); n != 1 {
		t.Errorf("server accepted %d connections, want 1", n)
	}
}

func TestClientRedialsAfterConnectionLoss(t *testing.T) {
	t.Parallel()

	path, accepted := startI3Server(t, 1)
	c := NewClient(ClientConfig{Path: path, Framing: I3Framing{}, Timeout: 2 * time.Second})
	defer c.Close()

	if _, err := c.Roundtrip(context.Background(), Message{Type: 1}); err != nil {
		t.Fatalf("first roundtrip: %v", err)
	}

	// The server hung up after one reply. The next exchange fails and tears
	// the connection down; the one after redials.
	var redialed bool
	for i := 0; i < 2; i++ {
		if _, err := c.Roundtrip(context.Background(), Message{Type: 1}); err == nil {
			redialed = true
			break
		}
	}
	if !redialed {
		t.Fatal("client never recovered after server hangup")
	}
	if n := accepted.Load(); n != 2 {
		t.Errorf("server accepted %d connections, want 2", n)
	}
}

func TestClientDialPerRequest(t *testing.T) {
	t.Parallel()

	path, accepted := startRawServer(t)
	c := NewClient(ClientConfig{Path: path, Framing: RawFraming{}, DialPerRequest: true})
	defer c.Close()

	for i, req := range []string{"dispatch workspace 3", "j/monitors"} {
		reply, err := c.Roundtrip(context.Background(), Message{Payload: []byte(req)})
		if err != nil {
			t.Fatalf("roundtrip %d: %v", i, err)
		}
		if string(reply.Payload) != "ok: "+req {
			t.Fatalf("roundtrip %d reply = %q", i, reply.Payload)
		}
	}
	if n := accepted.Load(); n != 2 {
		t.Errorf("server accepted %d connections, want 2 (one per request)", n)
	}
}

func TestClientClosed(t *testing.T) {
	t.Parallel()

	path, _ := startI3Server(t, 0)
	c := NewClient(ClientConfig{Path: path, Framing: I3Framing{}})
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	_, err := c.Roundtrip(context.Background(), Message{Type: 1})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("roundtrip after close = %v, want %v", err, ErrClosed)
	}
}
