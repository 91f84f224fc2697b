package wm

import "sort"

// MonitorID identifies a monitor. Backends normalize to the output name,
// which is the only identifier all compositors key their events by.
type MonitorID string

// WorkspaceID identifies a workspace within a session.
type WorkspaceID string

// WindowID identifies a window within a session.
type WindowID string

// Rect is a position and size in layout pixels.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Monitor is a physical output known to the compositor.
type Monitor struct {
	ID              MonitorID     `json:"id" yaml:"id"`
	Name            string        `json:"name" yaml:"name"`
	Geometry        Rect          `json:"geometry" yaml:"geometry"`
	Scale           float64       `json:"scale,omitempty" yaml:"scale,omitempty"`
	Focused         bool          `json:"focused" yaml:"focused"`
	ActiveWorkspace WorkspaceID   `json:"active_workspace,omitempty" yaml:"active_workspace,omitempty"`
	Workspaces      []WorkspaceID `json:"workspaces,omitempty" yaml:"workspaces,omitempty"`
}

// Workspace is a container of windows assigned to one monitor at a time.
type Workspace struct {
	ID         WorkspaceID `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Monitor    MonitorID   `json:"monitor" yaml:"monitor"`
	Windows    []WindowID  `json:"windows,omitempty" yaml:"windows,omitempty"`
	Special    bool        `json:"special,omitempty" yaml:"special,omitempty"`
	Persistent bool        `json:"persistent,omitempty" yaml:"persistent,omitempty"`
	Urgent     bool        `json:"urgent,omitempty" yaml:"urgent,omitempty"`
}

// Window is a mapped client window owned by exactly one workspace.
type Window struct {
	ID           WindowID    `json:"id" yaml:"id"`
	Workspace    WorkspaceID `json:"workspace" yaml:"workspace"`
	Title        string      `json:"title" yaml:"title"`
	Class        string      `json:"class" yaml:"class"`
	InitialClass string      `json:"initial_class,omitempty" yaml:"initial_class,omitempty"`
	Geometry     Rect        `json:"geometry" yaml:"geometry"`
	PID          int         `json:"pid,omitempty" yaml:"pid,omitempty"`
	Floating     bool        `json:"floating,omitempty" yaml:"floating,omitempty"`
	Fullscreen   bool        `json:"fullscreen,omitempty" yaml:"fullscreen,omitempty"`
	Pinned       bool        `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	Urgent       bool        `json:"urgent,omitempty" yaml:"urgent,omitempty"`
	Focused      bool        `json:"focused" yaml:"focused"`
}

// Snapshot is an immutable deep copy of the whole model. Consumers receive
// snapshots and deltas, never references into the live model.
type Snapshot struct {
	Seq        uint64      `json:"seq" yaml:"seq"`
	Stale      bool        `json:"stale,omitempty" yaml:"stale,omitempty"`
	Monitors   []Monitor   `json:"monitors" yaml:"monitors"`
	Workspaces []Workspace `json:"workspaces" yaml:"workspaces"`
	Windows    []Window    `json:"windows" yaml:"windows"`
}

// Clone returns a deep copy of the monitor.
func (m Monitor) Clone() Monitor {
	out := m
	out.Workspaces = append([]WorkspaceID(nil), m.Workspaces...)
	return out
}

// Clone returns a deep copy of the workspace.
func (w Workspace) Clone() Workspace {
	out := w
	out.Windows = append([]WindowID(nil), w.Windows...)
	return out
}

// Equal reports whether two monitors carry the same state.
func (m Monitor) Equal(other Monitor) bool {
	if m.ID != other.ID || m.Name != other.Name || m.Geometry != other.Geometry ||
		m.Scale != other.Scale || m.Focused != other.Focused ||
		m.ActiveWorkspace != other.ActiveWorkspace ||
		len(m.Workspaces) != len(other.Workspaces) {
		return false
	}
	for i := range m.Workspaces {
		if m.Workspaces[i] != other.Workspaces[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two workspaces carry the same state.
func (w Workspace) Equal(other Workspace) bool {
	if w.ID != other.ID || w.Name != other.Name || w.Monitor != other.Monitor ||
		w.Special != other.Special || w.Persistent != other.Persistent ||
		w.Urgent != other.Urgent || len(w.Windows) != len(other.Windows) {
		return false
	}
	for i := range w.Windows {
		if w.Windows[i] != other.Windows[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two windows carry the same state.
func (w Window) Equal(other Window) bool {
	return w == other
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Monitors = make([]Monitor, len(s.Monitors))
	for i, m := range s.Monitors {
		out.Monitors[i] = m.Clone()
	}
	out.Workspaces = make([]Workspace, len(s.Workspaces))
	for i, w := range s.Workspaces {
		out.Workspaces[i] = w.Clone()
	}
	out.Windows = append([]Window(nil), s.Windows...)
	return out
}

// Monitor looks up a monitor by ID.
func (s Snapshot) Monitor(id MonitorID) (Monitor, bool) {
	for _, m := range s.Monitors {
		if m.ID == id {
			return m, true
		}
	}
	return Monitor{}, false
}

// Workspace looks up a workspace by ID.
func (s Snapshot) Workspace(id WorkspaceID) (Workspace, bool) {
	for _, w := range s.Workspaces {
		if w.ID == id {
			return w, true
		}
	}
	return Workspace{}, false
}

// Window looks up a window by ID.
func (s Snapshot) Window(id WindowID) (Window, bool) {
	for _, w := range s.Windows {
		if w.ID == id {
			return w, true
		}
	}
	return Window{}, false
}

// FocusedWindow returns the focused window, if any.
func (s Snapshot) FocusedWindow() (Window, bool) {
	for _, w := range s.Windows {
		if w.Focused {
			return w, true
		}
	}
	return Window{}, false
}

// FocusedMonitor returns the focused monitor, if any.
func (s Snapshot) FocusedMonitor() (Monitor, bool) {
	for _, m := range s.Monitors {
		if m.Focused {
			return m, true
		}
	}
	return Monitor{}, false
}

// Sort orders all entity slices by ID so that equal models compare equal.
func (s *Snapshot) Sort() {
	sort.Slice(s.Monitors, func(i, j int) bool { return s.Monitors[i].ID < s.Monitors[j].ID })
	sort.Slice(s.Workspaces, func(i, j int) bool { return s.Workspaces[i].ID < s.Workspaces[j].ID })
	sort.Slice(s.Windows, func(i, j int) bool { return s.Windows[i].ID < s.Windows[j].ID })
	for i := range s.Monitors {
		sortWorkspaceIDs(s.Monitors[i].Workspaces)
	}
	for i := range s.Workspaces {
		sortWindowIDs(s.Workspaces[i].Windows)
	}
}

func sortWorkspaceIDs(ids []WorkspaceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortWindowIDs(ids []WindowID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
