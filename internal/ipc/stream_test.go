package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func recvMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed while waiting for a message")
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return Message{}
}

func waitClosed(t *testing.T, ch <-chan Message) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the event channel to close")
		}
	}
}

func TestEventStreamDeliversUntilEOF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("one\ntwo\nthree\n"))
		conn.Close()
	}()

	s := NewEventStream(StreamConfig{Path: path, Framing: NewlineFraming{}})
	ch, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, want := range []string{"one", "two", "three"} {
		msg := recvMessage(t, ch)
		if string(msg.Payload) != want {
			t.Errorf("payload = %q, want %q", msg.Payload, want)
		}
	}
	waitClosed(t, ch)

	if err := s.Err(); !errors.Is(err, io.EOF) {
		t.Errorf("Err() = %v, want EOF", err)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
}

func TestEventStreamSubscribeHandshake(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	subscribed := make(chan Message, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		w := bufio.NewWriter(conn)

		sub, err := I3Framing{}.ReadMessage(r)
		if err != nil {
			return
		}
		subscribed <- sub

		I3Framing{}.WriteMessage(w, Message{Type: 2, Payload: []byte(`{"success":true}`)})
		I3Framing{}.WriteMessage(w, Message{Type: 0x80000000, Payload: []byte(`{"change":"focus"}`)})
		w.Flush()
	}()

	s := NewEventStream(StreamConfig{
		Path:    path,
		Framing: I3Framing{},
		Hello:   &Message{Type: 2, Payload: []byte(`["workspace"]`)},
		SkipAck: true,
	})
	ch, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	sub := <-subscribed
	if sub.Type != 2 || !bytes.Equal(sub.Payload, []byte(`["workspace"]`)) {
		t.Errorf("subscription = type %d payload %q", sub.Type, sub.Payload)
	}

	// The ack is consumed by the handshake; the first delivered message is
	// the event.
	msg := recvMessage(t, ch)
	if msg.Type != 0x80000000 || string(msg.Payload) != `{"change":"focus"}` {
		t.Errorf("first message = type %#x payload %q", msg.Type, msg.Payload)
	}
	if got := s.State(); got != StateConnected {
		t.Errorf("State() = %v, want %v", got, StateConnected)
	}
}

func TestEventStreamCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Hold the connection open without writing; only cancellation can
		// unblock the stream.
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewEventStream(StreamConfig{Path: path, Framing: NewlineFraming{}})
	ch, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	cancel()
	waitClosed(t, ch)

	if err := s.Err(); !errors.Is(err, context.Canceled) {
		t.Errorf("Err() = %v, want %v", err, context.Canceled)
	}
}

func TestEventStreamClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	s := NewEventStream(StreamConfig{Path: path, Framing: NewlineFraming{}})
	ch, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitClosed(t, ch)
	if got := s.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
}
