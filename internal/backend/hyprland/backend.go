// Package hyprland implements the compositor backend for Hyprland's IPC:
// a request/reply control socket accepting one textual request per
// connection, and a second socket streaming newline-delimited event lines.
package hyprland

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/ipc"
	"github.com/wmbridge/wmbridge/internal/logger"
	"github.com/wmbridge/wmbridge/internal/wm"
)

const (
	controlSocketName = ".socket.sock"
	eventSocketName   = ".socket2.sock"

	eventBufferSize = 64
)

// Config holds the connection settings. Zero values resolve from the
// session environment.
type Config struct {
	ControlSocket string
	EventSocket   string
	Getenv        func(string) string
}

// Backend is a Hyprland session. Connect and Close may alternate across
// reconnect attempts; the workspace name index survives them.
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
		log:   logger.WithComponent("hyprland"),
		codec: newCodec(),
	}
}

// Name implements the backend contract.
func (b *Backend) Name() string { return "hyprland" }

// Capabilities reports every command operation; Hyprland supports them all.
func (b *Backend) Capabilities() wm.Capabilities {
	return wm.NewCapabilities(wm.Ops()...)
}

// socketDir locates the per-instance IPC directory. Release 0.40 moved it
// from /tmp/hypr to $XDG_RUNTIME_DIR/hypr.
func socketDir(getenv func(string) string) (string, error) {
	sig := getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return "", errors.New("HYPRLAND_INSTANCE_SIGNATURE is not set")
	}
	if runtimeDir := getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		dir := filepath.Join(runtimeDir, "hypr", sig)
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}
	dir := filepath.Join("/tmp", "hypr", sig)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	return "", fmt.Errorf("no socket directory for instance %s", sig)
}

func (b *Backend) socketPaths() (control, event string, err error) {
	control = b.cfg.ControlSocket
	event = b.cfg.EventSocket
	if control != "" && event != "" {
		return control, event, nil
	}
	dir, err := socketDir(b.cfg.Getenv)
	if err != nil {
		return "", "", err
	}
	if control == "" {
		control = filepath.Join(dir, controlSocketName)
	}
	if event == "" {
		event = filepath.Join(dir, eventSocketName)
	}
	return control, event, nil
}

// Connect dials the event socket and prepares the control client. The
// control socket is dialed per request, as the compositor closes it after
// each reply.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return errors.New("already connected")
	}

	controlPath, eventPath, err := b.socketPaths()
	if err != nil {
		return fmt.Errorf("failed to locate hyprland sockets: %w", err)
	}

	stream := ipc.NewEventStream(ipc.StreamConfig{
		Path:    eventPath,
		Framing: ipc.NewlineFraming{},
	})
	msgs, err := stream.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect event socket: %w", err)
	}

	b.control = ipc.NewClient(ipc.ClientConfig{
		Path:           controlPath,
		Framing:        ipc.RawFraming{},
		DialPerRequest: true,
	})
	b.stream = stream
	b.events = make(chan wm.Event, eventBufferSize)
	b.done = make(chan struct{})
	b.connected = true

	go b.translate(msgs, b.events, b.done)

	b.log.Debug().Str("control", controlPath).Str("events", eventPath).Msg("connected")
	return nil
}

// translate decodes raw event lines into normalized events. Undecodable
// lines are logged and skipped; they never tear the session down.
func (b *Backend) translate(msgs <-chan ipc.Message, out chan<- wm.Event, done <-chan struct{}) {
	defer close(out)
	for msg := range msgs {
		events, err := b.codec.DecodeEvent(string(msg.Payload))
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

// Close tears down both channels. Safe to call repeatedly.
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

func (b *Backend) requestJSON(ctx context.Context, client *ipc.Client, req string, out any) error {
	resp, err := client.Roundtrip(ctx, ipc.Message{Payload: []byte(req)})
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", req, err)
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s reply: %w", req, err)
	}
	return nil
}

// Snapshot assembles the full model from the j/ listing requests. It also
// seeds the codec's workspace name index so name-keyed events resolve.
func (b *Backend) Snapshot(ctx context.Context) (wm.Snapshot, error) {
	client, err := b.client()
	if err != nil {
		return wm.Snapshot{}, err
	}

	var monitors []monitorInfo
	if err := b.requestJSON(ctx, client, "j/monitors", &monitors); err != nil {
		return wm.Snapshot{}, err
	}
	var workspaces []workspaceInfo
	if err := b.requestJSON(ctx, client, "j/workspaces", &workspaces); err != nil {
		return wm.Snapshot{}, err
	}
	var clients []clientInfo
	if err := b.requestJSON(ctx, client, "j/clients", &clients); err != nil {
		return wm.Snapshot{}, err
	}
	// Returns an empty object when nothing is focused.
	var active clientInfo
	if err := b.requestJSON(ctx, client, "j/activewindow", &active); err != nil {
		return wm.Snapshot{}, err
	}

	var snap wm.Snapshot
	for _, m := range monitors {
		if m.Disabled {
			continue
		}
		snap.Monitors = append(snap.Monitors, m.toMonitor())
	}
	for _, w := range workspaces {
		ws := w.toWorkspace()
		b.codec.noteWorkspace(ws.Name, ws.ID)
		snap.Workspaces = append(snap.Workspaces, ws)
	}
	focused := windowID(active.Address)
	for _, cl := range clients {
		snap.Windows = append(snap.Windows, cl.toWindow(focused))
	}
	snap.Sort()
	return snap, nil
}

// Dispatch issues the control requests for one command, stopping at the
// first failure. The compositor answers "ok" on success and an error string
// otherwise.
func (b *Backend) Dispatch(ctx context.Context, cmd wm.Command) error {
	client, err := b.client()
	if err != nil {
		return err
	}
	reqs, err := b.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		resp, err := client.Roundtrip(ctx, ipc.Message{Payload: []byte(req)})
		if err != nil {
			return fmt.Errorf("failed to send %q: %w", req, err)
		}
		if reply := strings.TrimSpace(string(resp.Payload)); reply != "ok" {
			return fmt.Errorf("%q rejected: %s", req, reply)
		}
	}
	return nil
}
