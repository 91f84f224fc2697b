// Package backend defines the compositor backend contract and the probe
// that picks an implementation from the session environment.
package backend

import (
	"context"
	"fmt"

	"github.com/wmbridge/wmbridge/internal/backend/hyprland"
	"github.com/wmbridge/wmbridge/internal/backend/niri"
	"github.com/wmbridge/wmbridge/internal/backend/sway"
	"github.com/wmbridge/wmbridge/internal/wm"
)

// Backend is a live session with one compositor. Connect establishes the
// control and event channels; afterwards Events delivers normalized events
// until the connection drops, at which point the channel closes and Err
// reports why. A backend never reconnects itself; the bridge owns that.
type Backend interface {
	// Name identifies the compositor, e.g. "hyprland".
	Name() string

	// Capabilities lists the command operations this compositor supports.
	Capabilities() wm.Capabilities

	// Connect dials the compositor sockets and starts the event feed.
	Connect(ctx context.Context) error

	// Close tears down all connections. Safe to call more than once.
	Close() error

	// Snapshot fetches the compositor's full current state.
	Snapshot(ctx context.Context) (wm.Snapshot, error)

	// Events returns the normalized event feed. The channel closes when the
	// event connection fails or the backend is closed.
	Events() <-chan wm.Event

	// Err reports why the event feed stopped, nil before that.
	Err() error

	// Dispatch executes one command. Targets are compositor entity IDs.
	Dispatch(ctx context.Context, cmd wm.Command) error
}

// Config carries socket overrides shared by all backends. Empty fields fall
// back to environment-based discovery.
type Config struct {
	// Socket overrides the control socket path.
	Socket string

	// EventSocket overrides the event socket path for compositors that use
	// a separate one.
	EventSocket string

	// Getenv resolves environment lookups, defaulting to os.Getenv.
	Getenv func(string) string
}

// New builds a backend of the given kind.
func New(kind Kind, cfg Config) (Backend, error) {
	switch kind {
	case KindHyprland:
		return hyprland.New(hyprland.Config{
			ControlSocket: cfg.Socket,
			EventSocket:   cfg.EventSocket,
			Getenv:        cfg.Getenv,
		}), nil
	case KindSway:
		return sway.New(sway.Config{
			Socket: cfg.Socket,
			Getenv: cfg.Getenv,
		}), nil
	case KindNiri:
		return niri.New(niri.Config{
			Socket: cfg.Socket,
			Getenv: cfg.Getenv,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}
