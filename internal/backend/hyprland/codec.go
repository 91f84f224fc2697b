package hyprland

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// codec translates between the compositor's textual wire protocol and
// normalized events and commands. Event payloads identify workspaces by name
// in some places and by id in others, so the codec keeps a name index fed by
// snapshots and workspace lifecycle events.
type codec struct {
	mu    sync.Mutex
	names map[string]wm.WorkspaceID
}

func newCodec() *codec {
	return &codec{names: make(map[string]wm.WorkspaceID)}
}

func (c *codec) noteWorkspace(name string, id wm.WorkspaceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = id
}

func (c *codec) forgetWorkspace(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, name)
}

// renameWorkspace drops any names mapping to id before recording the new one.
func (c *codec) renameWorkspace(id wm.WorkspaceID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, v := range c.names {
		if v == id {
			delete(c.names, n)
		}
	}
	c.names[name] = id
}

// lookupWorkspace resolves a workspace name to its id. Unnamed workspaces use
// their numeric id as the name, so a numeric fallback covers workspaces whose
// creation predates the index.
func (c *codec) lookupWorkspace(name string) (wm.WorkspaceID, bool) {
	c.mu.Lock()
	id, ok := c.names[name]
	c.mu.Unlock()
	if ok {
		return id, true
	}
	if n, err := strconv.Atoi(name); err == nil {
		return workspaceID(n), true
	}
	return "", false
}

// DecodeEvent turns one event line into normalized events. Event lines look
// like NAME>>PAYLOAD with comma-separated payload fields. The compositor
// emits legacy and v2 twins for most events; only one twin of each pair is
// decoded. Unknown event names decode to nothing.
func (c *codec) DecodeEvent(line string) ([]wm.Event, error) {
	name, payload, ok := strings.Cut(line, ">>")
	if !ok {
		return nil, fmt.Errorf("malformed event line %q", line)
	}

	switch name {
	case "openwindow":
		// ADDRESS,WORKSPACENAME,CLASS,TITLE; the title may contain commas.
		parts := strings.SplitN(payload, ",", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("openwindow: want 4 fields, got %q", payload)
		}
		wsID, ok := c.lookupWorkspace(parts[1])
		if !ok {
			return nil, fmt.Errorf("openwindow: unknown workspace name %q", parts[1])
		}
		return []wm.Event{wm.WindowCreated{Window: wm.Window{
			ID:        windowID(parts[0]),
			Workspace: wsID,
			Class:     parts[2],
			Title:     parts[3],
		}}}, nil

	case "closewindow":
		return []wm.Event{wm.WindowDestroyed{ID: windowID(payload)}}, nil

	case "movewindowv2":
		// ADDRESS,WORKSPACEID,WORKSPACENAME
		parts := strings.SplitN(payload, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("movewindowv2: want 3 fields, got %q", payload)
		}
		id, err := parseWorkspaceID(parts[1])
		if err != nil {
			return nil, fmt.Errorf("movewindowv2: %w", err)
		}
		c.noteWorkspace(parts[2], id)
		return []wm.Event{wm.WindowMoved{ID: windowID(parts[0]), Workspace: id}}, nil

	case "activewindowv2":
		// Empty payload means focus left every tracked window.
		addr := strings.TrimSuffix(payload, ",")
		return []wm.Event{wm.WindowFocused{ID: windowID(addr)}}, nil

	case "windowtitlev2":
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("windowtitlev2: want 2 fields, got %q", payload)
		}
		return []wm.Event{wm.WindowTitleChanged{ID: windowID(parts[0]), Title: parts[1]}}, nil

	case "changefloatingmode":
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("changefloatingmode: want 2 fields, got %q", payload)
		}
		return []wm.Event{wm.WindowFlagChanged{
			ID: windowID(parts[0]), Flag: wm.FlagFloating, Value: parts[1] == "1",
		}}, nil

	case "fullscreen":
		// Carries only the new state; applies to the focused window.
		return []wm.Event{wm.WindowFlagChanged{
			Flag: wm.FlagFullscreen, Value: payload == "1",
		}}, nil

	case "pin":
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("pin: want 2 fields, got %q", payload)
		}
		return []wm.Event{wm.WindowFlagChanged{
			ID: windowID(parts[0]), Flag: wm.FlagPinned, Value: parts[1] == "1",
		}}, nil

	case "urgent":
		return []wm.Event{wm.WindowFlagChanged{
			ID: windowID(payload), Flag: wm.FlagUrgent, Value: true,
		}}, nil

	case "createworkspacev2":
		id, wsName, err := parseWorkspacePair(payload)
		if err != nil {
			return nil, fmt.Errorf("createworkspacev2: %w", err)
		}
		c.noteWorkspace(wsName, id)
		return []wm.Event{wm.WorkspaceCreated{Workspace: wm.Workspace{
			ID:      id,
			Name:    wsName,
			Special: strings.HasPrefix(wsName, "special"),
		}}}, nil

	case "destroyworkspacev2":
		id, wsName, err := parseWorkspacePair(payload)
		if err != nil {
			return nil, fmt.Errorf("destroyworkspacev2: %w", err)
		}
		c.forgetWorkspace(wsName)
		return []wm.Event{wm.WorkspaceDestroyed{ID: id}}, nil

	case "moveworkspacev2":
		// WORKSPACEID,WORKSPACENAME,MONITORNAME
		parts := strings.SplitN(payload, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("moveworkspacev2: want 3 fields, got %q", payload)
		}
		id, err := parseWorkspaceID(parts[0])
		if err != nil {
			return nil, fmt.Errorf("moveworkspacev2: %w", err)
		}
		c.noteWorkspace(parts[1], id)
		return []wm.Event{wm.WorkspaceMoved{ID: id, Monitor: monitorID(parts[2])}}, nil

	case "renameworkspace":
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("renameworkspace: want 2 fields, got %q", payload)
		}
		id, err := parseWorkspaceID(parts[0])
		if err != nil {
			return nil, fmt.Errorf("renameworkspace: %w", err)
		}
		c.renameWorkspace(id, parts[1])
		return []wm.Event{wm.WorkspaceRenamed{ID: id, Name: parts[1]}}, nil

	case "workspacev2":
		// Fires on the focused monitor.
		id, wsName, err := parseWorkspacePair(payload)
		if err != nil {
			return nil, fmt.Errorf("workspacev2: %w", err)
		}
		c.noteWorkspace(wsName, id)
		return []wm.Event{wm.WorkspaceActivated{Workspace: id}}, nil

	case "focusedmonv2":
		// MONITORNAME,WORKSPACEID
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("focusedmonv2: want 2 fields, got %q", payload)
		}
		id, err := parseWorkspaceID(parts[1])
		if err != nil {
			return nil, fmt.Errorf("focusedmonv2: %w", err)
		}
		mon := monitorID(parts[0])
		return []wm.Event{
			wm.MonitorFocused{ID: mon},
			wm.WorkspaceActivated{Monitor: mon, Workspace: id},
		}, nil

	case "monitoradded":
		return []wm.Event{wm.MonitorAdded{Monitor: wm.Monitor{
			ID:   monitorID(payload),
			Name: payload,
		}}}, nil

	case "monitorremoved":
		return []wm.Event{wm.MonitorRemoved{ID: monitorID(payload)}}, nil

	case "openwindowv2", "movewindow", "activewindow", "windowtitle",
		"createworkspace", "destroyworkspace", "moveworkspace", "workspace",
		"focusedmon", "monitoraddedv2", "monitorremovedv2":
		// Twin of an event decoded above.
		return nil, nil
	}

	return nil, nil
}

func parseWorkspaceID(s string) (wm.WorkspaceID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return "", fmt.Errorf("bad workspace id %q", s)
	}
	return workspaceID(n), nil
}

// parseWorkspacePair parses the WORKSPACEID,WORKSPACENAME payload shared by
// the v2 workspace lifecycle events. Names may contain commas.
func parseWorkspacePair(payload string) (wm.WorkspaceID, string, error) {
	parts := strings.SplitN(payload, ",", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("want 2 fields, got %q", payload)
	}
	id, err := parseWorkspaceID(parts[0])
	if err != nil {
		return "", "", err
	}
	return id, parts[1], nil
}

// EncodeCommand renders a command as the control requests to issue in order.
// Fullscreen has no per-window dispatcher form, so it becomes a focus
// followed by a fullscreen toggle.
func (c *codec) EncodeCommand(cmd wm.Command) ([]string, error) {
	switch cmd.Op {
	case wm.OpFocusWindow:
		return []string{"dispatch focuswindow address:" + string(cmd.Window)}, nil
	case wm.OpCloseWindow:
		return []string{"dispatch closewindow address:" + string(cmd.Window)}, nil
	case wm.OpMoveWindowToWorkspace:
		return []string{fmt.Sprintf("dispatch movetoworkspacesilent %s,address:%s", cmd.Workspace, cmd.Window)}, nil
	case wm.OpToggleFloating:
		return []string{"dispatch togglefloating address:" + string(cmd.Window)}, nil
	case wm.OpToggleFullscreen:
		return []string{
			"dispatch focuswindow address:" + string(cmd.Window),
			"dispatch fullscreen 0",
		}, nil
	case wm.OpTogglePin:
		return []string{"dispatch pin address:" + string(cmd.Window)}, nil
	case wm.OpSwitchActiveWorkspace:
		return []string{"dispatch workspace " + string(cmd.Workspace)}, nil
	}
	return nil, fmt.Errorf("%w: %s", wm.ErrNotSupported, cmd.Op)
}
