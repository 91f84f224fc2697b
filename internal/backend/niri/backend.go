// Package niri implements the compositor backend for niri's IPC:
// newline-delimited JSON with one request per connection, and a dedicated
// connection turned into an event stream by the EventStream request.
package niri

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/ipc"
	"github.com/wmbridge/wmbridge/internal/logger"
	"github.com/wmbridge/wmbridge/internal/wm"
)

const eventBufferSize = 64

var eventStreamRequest = ipc.Message{Payload: []byte(`"EventStream"`)}

// Config holds the connection settings. An empty Socket falls back to
// NIRI_SOCKET.
type Config struct {
	Socket string
	Getenv func(string) string
}

// Backend is a niri session.
type Backend struct {
	cfg   Config
	log   *zerolog.Logger
	codec *codec

	mu        sync.Mutex
	connected bool
	control   *ipc.Client
	stream    *ipc.EventStream
	events    chan wm.Event
	done      chan struct{}
}

// New creates a disconnected backend.
func New(cfg Config) *Backend {
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	return &Backend{
		cfg:   cfg,
		log:   logger.WithComponent("niri"),
		codec: newCodec(),
	}
}

// Name implements the backend contract.
func (b *Backend) Name() string { return "niri" }

// Capabilities reports everything except pinning, which this compositor
// does not have.
func (b *Backend) Capabilities() wm.Capabilities {
	var ops []wm.Op
	for _, op := range wm.Ops() {
		if op == wm.OpTogglePin {
			continue
		}
		ops = append(ops, op)
	}
	return wm.NewCapabilities(ops...)
}

func (b *Backend) socketPath() (string, error) {
	if b.cfg.Socket != "" {
		return b.cfg.Socket, nil
	}
	if path := b.cfg.Getenv("NIRI_SOCKET"); path != "" {
		return path, nil
	}
	return "", errors.New("NIRI_SOCKET is not set")
}

// Connect dials the socket twice: once per request for control, and once
// upgraded to the event stream. The compositor acknowledges the stream
// request before the first event.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return errors.New("already connected")
	}

	path, err := b.socketPath()
	if err != nil {
		return fmt.Errorf("failed to locate niri socket: %w", err)
	}

	stream := ipc.NewEventStream(ipc.StreamConfig{
		Path:    path,
		Framing: ipc.NewlineFraming{},
		Hello:   &eventStreamRequest,
		SkipAck: true,
	})
	msgs, err := stream.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event stream: %w", err)
	}

	b.control = ipc.NewClient(ipc.ClientConfig{
		Path:           path,
		Framing:        ipc.NewlineFraming{},
		DialPerRequest: true,
	})
	b.stream = stream
	b.events = make(chan wm.Event, eventBufferSize)
	b.done = make(chan struct{})
	b.connected = true

	go b.translate(msgs, b.events, b.done)

	b.log.Debug().Str("socket", path).Msg("connected")
	return nil
}

func (b *Backend) translate(msgs <-chan ipc.Message, out chan<- wm.Event, done <-chan struct{}) {
	defer close(out)
	for msg := range msgs {
		events, err := b.codec.DecodeEvent(msg.Payload)
		if err != nil {
			b.log.Warn().Err(err).Msg("dropping undecodable event")
			continue
		}
		for _, ev := range events {
			select {
			case out <- ev:
			case <-done:
				return
			}
		}
	}
}

// Events implements the backend contract.
func (b *Backend) Events() <-chan wm.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events
}

// Err reports why the event feed stopped.
func (b *Backend) Err() error {
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Err()
}

// Close tears down all connections. Safe to call repeatedly.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil
	}
	b.connected = false
	close(b.done)
	if b.stream != nil {
		b.stream.Close()
	}
	if b.control != nil {
		return b.control.Close()
	}
	return nil
}

func (b *Backend) client() (*ipc.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || b.control == nil {
		return nil, wm.ErrConnectionClosed
	}
	return b.control, nil
}

// replyEnvelope is the Ok/Err result wrapper around every reply.
type replyEnvelope struct {
	Ok  json.RawMessage `json:"Ok"`
	Err *string         `json:"Err"`
}

func (b *Backend) request(ctx context.Context, client *ipc.Client, req []byte, out any) error {
	resp, err := client.Roundtrip(ctx, ipc.Message{Payload: req})
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", req, err)
	}
	var env replyEnvelope
	if err := json.Unmarshal(resp.Payload, &env); err != nil {
		return fmt.Errorf("failed to decode reply to %s: %w", req, err)
	}
	if env.Err != nil {
		return fmt.Errorf("%s rejected: %s", req, *env.Err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Ok, out); err != nil {
		return fmt.Errorf("failed to decode reply body to %s: %w", req, err)
	}
	return nil
}

// Snapshot assembles the full model from the outputs, workspaces, and
// windows listings. Monitor focus is derived from the focused workspace;
// outputs do not carry it themselves.
func (b *Backend) Snapshot(ctx context.Context) (wm.Snapshot, error) {
	client, err := b.client()
	if err != nil {
		return wm.Snapshot{}, err
	}

	var outBody struct {
		Outputs map[string]output `json:"Outputs"`
	}
	if err := b.request(ctx, client, []byte(`"Outputs"`), &outBody); err != nil {
		return wm.Snapshot{}, err
	}
	var wsBody struct {
		Workspaces []workspace `json:"Workspaces"`
	}
	if err := b.request(ctx, client, []byte(`"Workspaces"`), &wsBody); err != nil {
		return wm.Snapshot{}, err
	}
	var winBody struct {
		Windows []window `json:"Windows"`
	}
	if err := b.request(ctx, client, []byte(`"Windows"`), &winBody); err != nil {
		return wm.Snapshot{}, err
	}

	b.codec.noteWorkspaces(wsBody.Workspaces)

	monitors := make(map[wm.MonitorID]*wm.Monitor, len(outBody.Outputs))
	for _, o := range outBody.Outputs {
		if o.Logical == nil {
			continue
		}
		m := o.toMonitor()
		monitors[m.ID] = &m
	}

	var snap wm.Snapshot
	for _, w := range wsBody.Workspaces {
		if w.Output == nil {
			continue
		}
		ws := w.toWorkspace()
		snap.Workspaces = append(snap.Workspaces, ws)
		mon, ok := monitors[ws.Monitor]
		if !ok {
			continue
		}
		if w.IsActive {
			mon.ActiveWorkspace = ws.ID
		}
		if w.IsFocused {
			mon.Focused = true
		}
	}
	for _, m := range monitors {
		snap.Monitors = append(snap.Monitors, *m)
	}
	snap.Windows = placedWindows(winBody.Windows)
	snap.Sort()
	return snap, nil
}

// Dispatch issues one action request; the compositor answers Ok or Err.
func (b *Backend) Dispatch(ctx context.Context, cmd wm.Command) error {
	client, err := b.client()
	if err != nil {
		return err
	}
	req, err := b.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return b.request(ctx, client, req, nil)
}
