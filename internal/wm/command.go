package wm

import (
	"fmt"
	"sort"
)

// Op names a normalized window-manipulation command.
type Op string

const (
	OpFocusWindow           Op = "focus_window"
	OpCloseWindow           Op = "close_window"
	OpMoveWindowToWorkspace Op = "move_window_to_workspace"
	OpToggleFloating        Op = "toggle_floating"
	OpToggleFullscreen      Op = "toggle_fullscreen"
	OpTogglePin             Op = "toggle_pin"
	OpSwitchActiveWorkspace Op = "switch_active_workspace"
)

// Ops lists every normalized command.
func Ops() []Op {
	return []Op{
		OpFocusWindow,
		OpCloseWindow,
		OpMoveWindowToWorkspace,
		OpToggleFloating,
		OpToggleFullscreen,
		OpTogglePin,
		OpSwitchActiveWorkspace,
	}
}

// Command is a normalized window-manipulation request. Which target fields
// are required depends on the op; Validate checks them.
type Command struct {
	Op        Op          `json:"op"`
	Window    WindowID    `json:"window,omitempty"`
	Workspace WorkspaceID `json:"workspace,omitempty"`
	Monitor   MonitorID   `json:"monitor,omitempty"`
}

// Validate checks that the op is known and its required targets are set.
func (c Command) Validate() error {
	switch c.Op {
	case OpFocusWindow, OpCloseWindow, OpToggleFloating, OpToggleFullscreen, OpTogglePin:
		if c.Window == "" {
			return fmt.Errorf("%s: window target is required", c.Op)
		}
	case OpMoveWindowToWorkspace:
		if c.Window == "" || c.Workspace == "" {
			return fmt.Errorf("%s: window and workspace targets are required", c.Op)
		}
	case OpSwitchActiveWorkspace:
		if c.Workspace == "" {
			return fmt.Errorf("%s: workspace target is required", c.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", c.Op)
	}
	return nil
}

func (c Command) String() string {
	s := string(c.Op)
	if c.Window != "" {
		s += " window=" + string(c.Window)
	}
	if c.Workspace != "" {
		s += " workspace=" + string(c.Workspace)
	}
	if c.Monitor != "" {
		s += " monitor=" + string(c.Monitor)
	}
	return s
}

// Capabilities is the set of ops a backend advertises. Commands outside the
// set fail fast without touching the transport.
type Capabilities []Op

// NewCapabilities builds a sorted, deduplicated capability set.
func NewCapabilities(ops ...Op) Capabilities {
	seen := make(map[Op]bool, len(ops))
	out := make(Capabilities, 0, len(ops))
	for _, op := range ops {
		if !seen[op] {
			seen[op] = true
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether the op is in the set.
func (c Capabilities) Has(op Op) bool {
	for _, have := range c {
		if have == op {
			return true
		}
	}
	return false
}
