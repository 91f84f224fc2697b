package niri

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// codec translates event stream payloads and renders action requests.
// Workspace activation events name only the workspace, so the codec keeps a
// workspace-to-output index fed by workspace listings.
type codec struct {
	mu      sync.Mutex
	outputs map[wm.WorkspaceID]wm.MonitorID
}

func newCodec() *codec {
	return &codec{outputs: make(map[wm.WorkspaceID]wm.MonitorID)}
}

func (c *codec) noteWorkspaces(wss []workspace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs = make(map[wm.WorkspaceID]wm.MonitorID, len(wss))
	for _, w := range wss {
		if w.Output != nil {
			c.outputs[workspaceID(w.ID)] = monitorID(*w.Output)
		}
	}
}

func (c *codec) workspaceOutput(id wm.WorkspaceID) (wm.MonitorID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mon, ok := c.outputs[id]
	return mon, ok
}

// DecodeEvent turns one event line into normalized events. The compositor
// wraps each event in a single-key object naming the variant; listing-style
// variants become section resets. Unknown variants decode to nothing.
func (c *codec) DecodeEvent(payload []byte) ([]wm.Event, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	for name, raw := range env {
		switch name {
		case "WorkspacesChanged":
			var body struct {
				Workspaces []workspace `json:"workspaces"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			return c.workspacesChanged(body.Workspaces), nil

		case "WorkspaceActivated":
			var body struct {
				ID      uint64 `json:"id"`
				Focused bool   `json:"focused"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			id := workspaceID(body.ID)
			// Activation happens on the workspace's own output; fall back to
			// the focused monitor when the index has not seen it yet.
			mon, known := c.workspaceOutput(id)
			var events []wm.Event
			if body.Focused && known {
				events = append(events, wm.MonitorFocused{ID: mon})
			}
			events = append(events, wm.WorkspaceActivated{Monitor: mon, Workspace: id})
			return events, nil

		case "WorkspaceUrgencyChanged":
			var body struct {
				ID     uint64 `json:"id"`
				Urgent bool   `json:"urgent"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			return []wm.Event{wm.WorkspaceUrgencyChanged{ID: workspaceID(body.ID), Urgent: body.Urgent}}, nil

		case "WindowsChanged":
			var body struct {
				Windows []window `json:"windows"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			return []wm.Event{wm.WindowsReset{Windows: placedWindows(body.Windows)}}, nil

		case "WindowOpenedOrChanged":
			var body struct {
				Window window `json:"window"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			// A window without a workspace is mid-move; drop it until it
			// lands somewhere.
			if body.Window.WorkspaceID == nil {
				return []wm.Event{wm.WindowDestroyed{ID: windowID(body.Window.ID)}}, nil
			}
			return []wm.Event{wm.WindowCreated{Window: body.Window.toWindow()}}, nil

		case "WindowClosed":
			var body struct {
				ID uint64 `json:"id"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			return []wm.Event{wm.WindowDestroyed{ID: windowID(body.ID)}}, nil

		case "WindowFocusChanged":
			var body struct {
				ID *uint64 `json:"id"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			var id wm.WindowID
			if body.ID != nil {
				id = windowID(*body.ID)
			}
			return []wm.Event{wm.WindowFocused{ID: id}}, nil

		case "WindowUrgencyChanged":
			var body struct {
				ID     uint64 `json:"id"`
				Urgent bool   `json:"urgent"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			return []wm.Event{wm.WindowFlagChanged{
				ID: windowID(body.ID), Flag: wm.FlagUrgent, Value: body.Urgent,
			}}, nil
		}
	}
	return nil, nil
}

// workspacesChanged maps a full workspace listing to a section reset plus
// the activation and focus facts the listing carries.
func (c *codec) workspacesChanged(wss []workspace) []wm.Event {
	c.noteWorkspaces(wss)

	workspaces := make([]wm.Workspace, 0, len(wss))
	var activations []wm.Event
	var focusedMon wm.MonitorID
	for _, w := range wss {
		if w.Output == nil {
			continue
		}
		ws := w.toWorkspace()
		workspaces = append(workspaces, ws)
		if w.IsActive {
			activations = append(activations, wm.WorkspaceActivated{Monitor: ws.Monitor, Workspace: ws.ID})
		}
		if w.IsFocused {
			focusedMon = ws.Monitor
		}
	}

	events := []wm.Event{wm.WorkspacesReset{Workspaces: workspaces}}
	if focusedMon != "" {
		events = append(events, wm.MonitorFocused{ID: focusedMon})
	}
	return append(events, activations...)
}

// placedWindows drops windows that are not on any workspace.
func placedWindows(wins []window) []wm.Window {
	out := make([]wm.Window, 0, len(wins))
	for _, w := range wins {
		if w.WorkspaceID == nil {
			continue
		}
		out = append(out, w.toWindow())
	}
	return out
}

func parseID(s string, what string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s id %q", what, s)
	}
	return id, nil
}

// EncodeCommand renders one action request. Pinning has no counterpart in
// this compositor.
func (c *codec) EncodeCommand(cmd wm.Command) ([]byte, error) {
	action := func(name string, body any) ([]byte, error) {
		return json.Marshal(map[string]any{"Action": map[string]any{name: body}})
	}

	switch cmd.Op {
	case wm.OpFocusWindow:
		id, err := parseID(string(cmd.Window), "window")
		if err != nil {
			return nil, err
		}
		return action("FocusWindow", map[string]any{"id": id})

	case wm.OpCloseWindow:
		id, err := parseID(string(cmd.Window), "window")
		if err != nil {
			return nil, err
		}
		return action("CloseWindow", map[string]any{"id": id})

	case wm.OpMoveWindowToWorkspace:
		win, err := parseID(string(cmd.Window), "window")
		if err != nil {
			return nil, err
		}
		ws, err := parseID(string(cmd.Workspace), "workspace")
		if err != nil {
			return nil, err
		}
		return action("MoveWindowToWorkspace", map[string]any{
			"window_id": win,
			"reference": map[string]any{"Id": ws},
			"focus":     false,
		})

	case wm.OpToggleFloating:
		id, err := parseID(string(cmd.Window), "window")
		if err != nil {
			return nil, err
		}
		return action("ToggleWindowFloating", map[string]any{"id": id})

	case wm.OpToggleFullscreen:
		id, err := parseID(string(cmd.Window), "window")
		if err != nil {
			return nil, err
		}
		return action("FullscreenWindow", map[string]any{"id": id})

	case wm.OpSwitchActiveWorkspace:
		ws, err := parseID(string(cmd.Workspace), "workspace")
		if err != nil {
			return nil, err
		}
		return action("FocusWorkspace", map[string]any{
			"reference": map[string]any{"Id": ws},
		})
	}
	return nil, fmt.Errorf("%w: %s", wm.ErrNotSupported, cmd.Op)
}
