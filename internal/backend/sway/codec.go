package sway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wmbridge/wmbridge/internal/ipc"
	"github.com/wmbridge/wmbridge/internal/wm"
)

// refresh tells the backend which listing to refetch when an event does not
// carry enough detail to update the model incrementally.
type refresh int

const (
	refreshNone refresh = iota
	refreshTree
	refreshOutputs
)

// codec translates i3-ipc event payloads and renders commands. Commands
// address workspaces by display name while the model keys them by container
// id, so the codec keeps an id-to-name index fed by snapshots and workspace
// lifecycle events.
type codec struct {
	mu    sync.Mutex
	names map[wm.WorkspaceID]string
}

func newCodec() *codec {
	return &codec{names: make(map[wm.WorkspaceID]string)}
}

func (c *codec) noteWorkspace(id wm.WorkspaceID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

func (c *codec) forgetWorkspace(id wm.WorkspaceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, id)
}

func (c *codec) workspaceName(id wm.WorkspaceID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[id]
	return name, ok
}

// DecodeEvent turns one event message into normalized events. Window
// creation and movement payloads omit the containing workspace, so those
// report a tree refresh instead; output changes report an output refresh.
func (c *codec) DecodeEvent(msg ipc.Message) ([]wm.Event, refresh, error) {
	switch msg.Type {
	case eventWorkspace:
		var ev workspaceEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, refreshNone, fmt.Errorf("failed to decode workspace event: %w", err)
		}
		return c.decodeWorkspaceEvent(ev)

	case eventWindow:
		var ev windowEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, refreshNone, fmt.Errorf("failed to decode window event: %w", err)
		}
		return decodeWindowEvent(ev)

	case eventOutput:
		return nil, refreshOutputs, nil
	}
	return nil, refreshNone, nil
}

func (c *codec) decodeWorkspaceEvent(ev workspaceEvent) ([]wm.Event, refresh, error) {
	if ev.Change == "reload" {
		return nil, refreshNone, nil
	}
	if ev.Current == nil {
		return nil, refreshNone, errors.New("workspace event without current container")
	}
	id := workspaceID(ev.Current.ID)

	switch ev.Change {
	case "init":
		ws := ev.Current.toWorkspace()
		c.noteWorkspace(ws.ID, ws.Name)
		return []wm.Event{wm.WorkspaceCreated{Workspace: ws}}, refreshNone, nil

	case "empty":
		c.forgetWorkspace(id)
		return []wm.Event{wm.WorkspaceDestroyed{ID: id}}, refreshNone, nil

	case "focus":
		mon := monitorID(ev.Current.Output)
		events := make([]wm.Event, 0, 3)
		if mon != "" {
			events = append(events, wm.MonitorFocused{ID: mon})
		}
		events = append(events, wm.WorkspaceActivated{Monitor: mon, Workspace: id})
		// Focus lands on the workspace container first; a window focus
		// event follows only when the workspace has windows.
		events = append(events, wm.WindowFocused{})
		return events, refreshNone, nil

	case "move":
		return []wm.Event{wm.WorkspaceMoved{ID: id, Monitor: monitorID(ev.Current.Output)}}, refreshNone, nil

	case "rename":
		c.noteWorkspace(id, ev.Current.Name)
		return []wm.Event{wm.WorkspaceRenamed{ID: id, Name: ev.Current.Name}}, refreshNone, nil

	case "urgent":
		return []wm.Event{wm.WorkspaceUrgencyChanged{ID: id, Urgent: ev.Current.Urgent}}, refreshNone, nil
	}
	return nil, refreshNone, nil
}

func decodeWindowEvent(ev windowEvent) ([]wm.Event, refresh, error) {
	id := windowID(ev.Container.ID)
	switch ev.Change {
	case "new", "move":
		// The container payload lacks the workspace; rebuild from the tree.
		return nil, refreshTree, nil
	case "close":
		return []wm.Event{wm.WindowDestroyed{ID: id}}, refreshNone, nil
	case "focus":
		return []wm.Event{wm.WindowFocused{ID: id}}, refreshNone, nil
	case "title":
		return []wm.Event{wm.WindowTitleChanged{ID: id, Title: ev.Container.Name}}, refreshNone, nil
	case "fullscreen_mode":
		return []wm.Event{wm.WindowFlagChanged{
			ID: id, Flag: wm.FlagFullscreen, Value: ev.Container.FullscreenMode > 0,
		}}, refreshNone, nil
	case "floating":
		return []wm.Event{wm.WindowFlagChanged{
			ID: id, Flag: wm.FlagFloating, Value: ev.Container.Type == "floating_con",
		}}, refreshNone, nil
	case "urgent":
		return []wm.Event{wm.WindowFlagChanged{
			ID: id, Flag: wm.FlagUrgent, Value: ev.Container.Urgent,
		}}, refreshNone, nil
	}
	return nil, refreshNone, nil
}

// EncodeCommand renders one RUN_COMMAND payload. Workspace names may contain
// spaces; both workspace commands take the name as the rest of the line.
func (c *codec) EncodeCommand(cmd wm.Command) (string, error) {
	switch cmd.Op {
	case wm.OpFocusWindow:
		return fmt.Sprintf("[con_id=%s] focus", cmd.Window), nil
	case wm.OpCloseWindow:
		return fmt.Sprintf("[con_id=%s] kill", cmd.Window), nil
	case wm.OpMoveWindowToWorkspace:
		name, ok := c.workspaceName(cmd.Workspace)
		if !ok {
			return "", fmt.Errorf("no known name for workspace %s", cmd.Workspace)
		}
		return fmt.Sprintf("[con_id=%s] move container to workspace %s", cmd.Window, name), nil
	case wm.OpToggleFloating:
		return fmt.Sprintf("[con_id=%s] floating toggle", cmd.Window), nil
	case wm.OpToggleFullscreen:
		return fmt.Sprintf("[con_id=%s] fullscreen toggle", cmd.Window), nil
	case wm.OpTogglePin:
		return fmt.Sprintf("[con_id=%s] sticky toggle", cmd.Window), nil
	case wm.OpSwitchActiveWorkspace:
		name, ok := c.workspaceName(cmd.Workspace)
		if !ok {
			return "", fmt.Errorf("no known name for workspace %s", cmd.Workspace)
		}
		return "workspace " + name, nil
	}
	return "", fmt.Errorf("%w: %s", wm.ErrNotSupported, cmd.Op)
}
