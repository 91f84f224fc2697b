package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/logger"
)

// State is the lifecycle of an event stream connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// StreamConfig describes one inbound event channel.
type StreamConfig struct {
	// Path is the unix socket path.
	Path string
	// Framing decodes inbound records.
	Framing Framing
	// Hello, when set, is sent once after connecting (a subscription
	// request on protocols that need one).
	Hello *Message
	// SkipAck discards the first inbound frame, the reply to Hello.
	SkipAck bool
	// DialTimeout bounds the connect. Zero means DefaultTimeout.
	DialTimeout time.Duration
}

// EventStream reads an append-only feed of framed records from the
// compositor's event socket and delivers them on a channel. It never
// reconnects on its own: on any read failure the channel closes, Err
// reports the cause, and the owner decides what to do.
type EventStream struct {
	cfg   StreamConfig
	log   *zerolog.Logger
	state atomic.Int32

	mu   sync.Mutex
	conn net.Conn
	err  error
	done chan struct{}
}

// NewEventStream creates a stream for the given event channel.
func NewEventStream(cfg StreamConfig) *EventStream {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultTimeout
	}
	return &EventStream{
		cfg: cfg,
		log: logger.WithComponent("ipc-stream"),
	}
}

// eventChanCapacity buffers inbound records so short consumer stalls do not
// block the socket read.
const eventChanCapacity = 64

// Start connects, performs the optional subscription handshake, and begins
// pumping records. The returned channel closes when the stream terminates
// for any reason; call Err afterwards for the cause. Cancelling ctx closes
// the socket and so unblocks the pump.
func (s *EventStream) Start(ctx context.Context) (<-chan Message, error) {
	s.state.Store(int32(StateConnecting))

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "unix", s.cfg.Path)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return nil, fmt.Errorf("failed to dial %s: %w", s.cfg.Path, err)
	}

	reader := bufio.NewReader(conn)
	if s.cfg.Hello != nil {
		writer := bufio.NewWriter(conn)
		if err := s.cfg.Framing.WriteMessage(writer, *s.cfg.Hello); err != nil {
			conn.Close()
			s.state.Store(int32(StateDisconnected))
			return nil, fmt.Errorf("failed to send subscription: %w", err)
		}
		if err := writer.Flush(); err != nil {
			conn.Close()
			s.state.Store(int32(StateDisconnected))
			return nil, fmt.Errorf("failed to flush subscription: %w", err)
		}
		if s.cfg.SkipAck {
			if _, err := s.cfg.Framing.ReadMessage(reader); err != nil {
				conn.Close()
				s.state.Store(int32(StateDisconnected))
				return nil, fmt.Errorf("failed to read subscription ack: %w", err)
			}
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.err = nil
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	s.state.Store(int32(StateConnected))
	s.log.Debug().Str("path", s.cfg.Path).Msg("event stream connected")

	out := make(chan Message, eventChanCapacity)

	// Closing the socket is the only way to unblock a pending read.
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer s.state.Store(int32(StateDisconnected))
		defer close(done)
		for {
			msg, err := s.cfg.Framing.ReadMessage(reader)
			if err != nil {
				s.setErr(ctx, err)
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				s.setErr(ctx, ctx.Err())
				return
			}
		}
	}()

	return out, nil
}

func (s *EventStream) setErr(ctx context.Context, err error) {
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Err returns the terminal cause after the event channel closed.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State reports the current connection state.
func (s *EventStream) State() State {
	return State(s.state.Load())
}

// Close tears the stream down and unblocks the pump.
func (s *EventStream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
