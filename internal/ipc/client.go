package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/logger"
)

// ErrClosed is returned by operations on a closed client or stream.
var ErrClosed = errors.New("ipc: closed")

// DefaultTimeout bounds a single request/reply exchange when the caller's
// context carries no deadline.
const DefaultTimeout = 5 * time.Second

// ClientConfig describes one control channel.
type ClientConfig struct {
	// Path is the unix socket path.
	Path string
	// Framing encodes requests and decodes replies.
	Framing Framing
	// DialPerRequest opens a fresh connection for every exchange. Hyprland
	// and Niri close the control socket after one reply; Sway keeps it open.
	DialPerRequest bool
	// Timeout bounds one exchange. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client performs synchronous request/reply exchanges on a compositor
// control socket. One request is outstanding at a time; concurrent callers
// queue on an internal mutex, which matches the half-duplex protocols on the
// other side.
type Client struct {
	cfg ClientConfig
	log *zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn // persistent mode only
	reader *bufio.Reader
	writer *bufio.Writer
	closed bool
}

// NewClient creates a client for the given control channel. No connection is
// made until the first request.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		log: logger.WithComponent("ipc-client"),
	}
}

// Roundtrip sends one request and returns its reply. Mid-exchange failures
// tear down any persistent connection so the next call redials.
func (c *Client) Roundtrip(ctx context.Context, req Message) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Message{}, ErrClosed
	}

	if c.cfg.DialPerRequest {
		return c.roundtripFresh(ctx, req)
	}
	return c.roundtripPersistent(ctx, req)
}

func (c *Client) roundtripFresh(ctx context.Context, req Message) (Message, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return Message{}, err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	reply, err := c.exchange(ctx, conn, reader, writer, req)
	if err != nil {
		return Message{}, err
	}
	return reply, nil
}

func (c *Client) roundtripPersistent(ctx context.Context, req Message) (Message, error) {
	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return Message{}, err
		}
		c.conn = conn
		c.reader = bufio.NewReader(conn)
		c.writer = bufio.NewWriter(conn)
	}

	reply, err := c.exchange(ctx, c.conn, c.reader, c.writer, req)
	if err != nil {
		c.teardownLocked()
		return Message{}, err
	}
	return reply, nil
}

func (c *Client) exchange(ctx context.Context, conn net.Conn, reader *bufio.Reader, writer *bufio.Writer, req Message) (Message, error) {
	if err := conn.SetDeadline(c.deadline(ctx)); err != nil {
		return Message{}, fmt.Errorf("failed to set deadline: %w", err)
	}
	if err := c.cfg.Framing.WriteMessage(writer, req); err != nil {
		return Message{}, fmt.Errorf("failed to write request: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return Message{}, fmt.Errorf("failed to flush request: %w", err)
	}
	// Hyprland answers a raw request only after seeing the write side close.
	if _, raw := c.cfg.Framing.(RawFraming); raw {
		if uc, ok := conn.(*net.UnixConn); ok {
			if err := uc.CloseWrite(); err != nil {
				return Message{}, fmt.Errorf("failed to close write side: %w", err)
			}
		}
	}
	reply, err := c.cfg.Framing.ReadMessage(reader)
	if err != nil {
		return Message{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return reply, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.cfg.Path, err)
	}
	return conn, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
		c.writer = nil
	}
}

// Close releases any persistent connection. Subsequent requests fail with
// ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.teardownLocked()
	c.log.Debug().Str("path", c.cfg.Path).Msg("client closed")
	return nil
}
