package niri

import (
	"strconv"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// Wire structs mirror the compositor's IPC JSON. Optional fields are
// pointers; the compositor serializes Rust Options as null.

type window struct {
	ID          uint64       `json:"id"`
	Title       *string      `json:"title"`
	AppID       *string      `json:"app_id"`
	PID         *int32       `json:"pid"`
	WorkspaceID *uint64      `json:"workspace_id"`
	IsFocused   bool         `json:"is_focused"`
	IsFloating  bool         `json:"is_floating"`
	IsUrgent    bool         `json:"is_urgent"`
	Layout      windowLayout `json:"layout"`
}

// vec2f and vec2i decode the (x, y) tuples the compositor emits as
// two-element arrays.
type (
	vec2f [2]float64
	vec2i [2]int32
)

type windowLayout struct {
	TileSize               vec2f  `json:"tile_size"`
	WindowSize             vec2i  `json:"window_size"`
	TilePosInWorkspaceView *vec2f `json:"tile_pos_in_workspace_view"`
}

type workspace struct {
	ID             uint64  `json:"id"`
	Index          uint8   `json:"idx"`
	Name           *string `json:"name"`
	Output         *string `json:"output"`
	IsUrgent       bool    `json:"is_urgent"`
	IsActive       bool    `json:"is_active"`
	IsFocused      bool    `json:"is_focused"`
	ActiveWindowID *uint64 `json:"active_window_id"`
}

type output struct {
	Name    string         `json:"name"`
	Make    string         `json:"make"`
	Model   string         `json:"model"`
	Logical *logicalOutput `json:"logical"`
}

type logicalOutput struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

func monitorID(name string) wm.MonitorID {
	return wm.MonitorID(name)
}

func workspaceID(id uint64) wm.WorkspaceID {
	return wm.WorkspaceID(strconv.FormatUint(id, 10))
}

func windowID(id uint64) wm.WindowID {
	return wm.WindowID(strconv.FormatUint(id, 10))
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// toWorkspace maps a workspace with a connected output. Unnamed workspaces
// display as their one-based position on the output.
func (w workspace) toWorkspace() wm.Workspace {
	name := deref(w.Name)
	if name == "" {
		name = strconv.Itoa(int(w.Index))
	}
	return wm.Workspace{
		ID:         workspaceID(w.ID),
		Name:       name,
		Monitor:    monitorID(deref(w.Output)),
		Urgent:     w.IsUrgent,
		Persistent: w.Name != nil,
	}
}

func (w window) toWindow() wm.Window {
	win := wm.Window{
		ID:        windowID(w.ID),
		Workspace: workspaceID(deref(w.WorkspaceID)),
		Title:     deref(w.Title),
		Class:     deref(w.AppID),
		PID:       int(deref(w.PID)),
		Floating:  w.IsFloating,
		Urgent:    w.IsUrgent,
		Focused:   w.IsFocused,
	}
	if pos := w.Layout.TilePosInWorkspaceView; pos != nil {
		win.Geometry = wm.Rect{
			X:      int(pos[0]),
			Y:      int(pos[1]),
			Width:  int(w.Layout.TileSize[0]),
			Height: int(w.Layout.TileSize[1]),
		}
	}
	return win
}

func (o output) toMonitor() wm.Monitor {
	m := wm.Monitor{
		ID:   monitorID(o.Name),
		Name: o.Name,
	}
	if o.Logical != nil {
		m.Geometry = wm.Rect{
			X:      o.Logical.X,
			Y:      o.Logical.Y,
			Width:  o.Logical.Width,
			Height: o.Logical.Height,
		}
		m.Scale = o.Logical.Scale
	}
	return m
}
