// Package sway implements the compositor backend for the i3-ipc protocol as
// spoken by Sway: framed binary messages on one persistent control
// connection, plus a second connection subscribed to event broadcasts.
package sway

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

var subscribePayload = []byte(`["workspace","window","output"]`)

// Config holds the connection settings. An empty Socket falls back to
// SWAYSOCK.
type Config struct {
	Socket string
	Getenv func(string) string
}

// Backend is a Sway session.
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
		log:   logger.WithComponent("sway"),
		codec: newCodec(),
	}
}

// Name implements the backend contract.
func (b *Backend) Name() string { return "sway" }

// Capabilities reports every command operation; pinning maps to sticky.
func (b *Backend) Capabilities() wm.Capabilities {
	return wm.NewCapabilities(wm.Ops()...)
}

func (b *Backend) socketPath() (string, error) {
	if b.cfg.Socket != "" {
		return b.cfg.Socket, nil
	}
	if path := b.cfg.Getenv("SWAYSOCK"); path != "" {
		return path, nil
	}
	return "", errors.New("SWAYSOCK is not set")
}

// Connect dials the control socket and a second connection subscribed to
// workspace, window, and output events.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return errors.New("already connected")
	}

	path, err := b.socketPath()
	if err != nil {
		return fmt.Errorf("failed to locate sway socket: %w", err)
	}

	stream := ipc.NewEventStream(ipc.StreamConfig{
		Path:    path,
		Framing: ipc.I3Framing{},
		Hello:   &ipc.Message{Type: msgSubscribe, Payload: subscribePayload},
		SkipAck: true,
	})
	msgs, err := stream.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	b.control = ipc.NewClient(ipc.ClientConfig{
		Path:    path,
		Framing: ipc.I3Framing{},
	})
	b.stream = stream
	b.events = make(chan wm.Event, eventBufferSize)
	b.done = make(chan struct{})
	b.connected = true

	go b.translate(msgs, b.events, b.done)

	b.log.Debug().Str("socket", path).Msg("connected")
	return nil
}

// translate decodes event messages, filling in tree or output refetches for
// the events that need them.
func (b *Backend) translate(msgs <-chan ipc.Message, out chan<- wm.Event, done <-chan struct{}) {
	defer close(out)
	for msg := range msgs {
		events, ref, err := b.codec.DecodeEvent(msg)
		if err != nil {
			b.log.Warn().Err(err).Msg("dropping undecodable event")
			continue
		}
		switch ref {
		case refreshTree:
			ev, err := b.windowsReset(context.Background())
			if err != nil {
				b.log.Warn().Err(err).Msg("tree refresh failed")
			} else {
				events = append(events, ev)
			}
		case refreshOutputs:
			evs, err := b.outputsReset(context.Background())
			if err != nil {
				b.log.Warn().Err(err).Msg("output refresh failed")
			} else {
				events = append(events, evs...)
			}
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

// Close tears down both connections. Safe to call repeatedly.
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

func (b *Backend) request(ctx context.Context, client *ipc.Client, msgType uint32, payload []byte, out any) error {
	resp, err := client.Roundtrip(ctx, ipc.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to send message type %d: %w", msgType, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("failed to decode reply to message type %d: %w", msgType, err)
	}
	return nil
}

// windowsReset fetches the layout tree and reports the full window section.
func (b *Backend) windowsReset(ctx context.Context) (wm.Event, error) {
	client, err := b.client()
	if err != nil {
		return nil, err
	}
	var root treeNode
	if err := b.request(ctx, client, msgGetTree, nil, &root); err != nil {
		return nil, err
	}
	return wm.WindowsReset{Windows: collectWindows(root)}, nil
}

// outputsReset fetches outputs and workspaces together; output changes move
// workspaces around, so both sections are replaced.
func (b *Backend) outputsReset(ctx context.Context) ([]wm.Event, error) {
	client, err := b.client()
	if err != nil {
		return nil, err
	}
	monitors, workspaces, _, err := b.fetchLayout(ctx, client)
	if err != nil {
		return nil, err
	}
	return []wm.Event{
		wm.MonitorsReset{Monitors: monitors},
		wm.WorkspacesReset{Workspaces: workspaces},
	}, nil
}

// fetchLayout retrieves outputs and workspaces and maps them to model
// entities, feeding the codec's name index along the way.
func (b *Backend) fetchLayout(ctx context.Context, client *ipc.Client) ([]wm.Monitor, []wm.Workspace, map[string]wm.WorkspaceID, error) {
	var outputs []outputInfo
	if err := b.request(ctx, client, msgGetOutputs, nil, &outputs); err != nil {
		return nil, nil, nil, err
	}
	var listed []workspaceInfo
	if err := b.request(ctx, client, msgGetWorkspaces, nil, &listed); err != nil {
		return nil, nil, nil, err
	}

	byName := make(map[string]wm.WorkspaceID, len(listed))
	workspaces := make([]wm.Workspace, 0, len(listed))
	for _, w := range listed {
		if w.Name == scratchWorkspace {
			continue
		}
		ws := wm.Workspace{
			ID:      workspaceID(w.ID),
			Name:    w.Name,
			Monitor: monitorID(w.Output),
			Urgent:  w.Urgent,
		}
		b.codec.noteWorkspace(ws.ID, ws.Name)
		byName[w.Name] = ws.ID
		workspaces = append(workspaces, ws)
	}

	monitors := make([]wm.Monitor, 0, len(outputs))
	for _, o := range outputs {
		if !o.Active || o.Name == scratchOutput {
			continue
		}
		m := wm.Monitor{
			ID:       monitorID(o.Name),
			Name:     o.Name,
			Geometry: o.Rect.toRect(),
			Scale:    o.Scale,
			Focused:  o.Focused,
		}
		if id, ok := byName[o.CurrentWorkspace]; ok {
			m.ActiveWorkspace = id
		}
		monitors = append(monitors, m)
	}
	return monitors, workspaces, byName, nil
}

// Snapshot assembles the full model from the outputs, workspaces, and tree
// listings.
func (b *Backend) Snapshot(ctx context.Context) (wm.Snapshot, error) {
	client, err := b.client()
	if err != nil {
		return wm.Snapshot{}, err
	}
	monitors, workspaces, _, err := b.fetchLayout(ctx, client)
	if err != nil {
		return wm.Snapshot{}, err
	}
	var root treeNode
	if err := b.request(ctx, client, msgGetTree, nil, &root); err != nil {
		return wm.Snapshot{}, err
	}
	snap := wm.Snapshot{
		Monitors:   monitors,
		Workspaces: workspaces,
		Windows:    collectWindows(root),
	}
	snap.Sort()
	return snap, nil
}

// Dispatch runs one command and checks the per-command results.
func (b *Backend) Dispatch(ctx context.Context, cmd wm.Command) error {
	client, err := b.client()
	if err != nil {
		return err
	}
	payload, err := b.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	var results []commandResult
	if err := b.request(ctx, client, msgRunCommand, []byte(payload), &results); err != nil {
		return fmt.Errorf("failed to run %q: %w", payload, err)
	}
	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("%q rejected: %s", payload, r.Error)
		}
	}
	return nil
}
