package wm

import "strconv"

// WorkspaceState classifies a workspace slot for pager-style consumers.
type WorkspaceState string

const (
	// StateActive: the visible workspace on the focused monitor.
	StateActive WorkspaceState = "active"
	// StateVisible: the visible workspace on an unfocused monitor.
	StateVisible WorkspaceState = "visible"
	// StateUrgent: a workspace holding a window demanding attention.
	StateUrgent WorkspaceState = "urgent"
	// StateOccupied: has windows but is not visible.
	StateOccupied WorkspaceState = "occupied"
	// StateEmpty: no such workspace, or it has no windows.
	StateEmpty WorkspaceState = "empty"
)

// DefaultWorkspaceSlots is the number of workspace slots rendered per
// monitor by pager consumers.
const DefaultWorkspaceSlots = 10

// WorkspaceView is one pager slot on a monitor. Number is the absolute
// workspace number the slot maps to (monitor index * slots + slot), so two
// monitors both render slots 1..10 while addressing distinct workspaces.
type WorkspaceView struct {
	Slot      int            `json:"slot"`
	Number    int            `json:"number"`
	Workspace WorkspaceID    `json:"workspace,omitempty"`
	Name      string         `json:"name,omitempty"`
	State     WorkspaceState `json:"state"`
	Windows   int            `json:"windows"`
	Class     string         `json:"class,omitempty"`
}

// WorkspaceViews derives the fixed-length pager view for one monitor.
// Workspaces are matched to slots by the numeric prefix of their name,
// falling back to a numeric ID; workspaces on the monitor that fit no slot
// (named, special) are ignored here and reachable through the snapshot
// itself.
func WorkspaceViews(snap Snapshot, monitor MonitorID, slots int) []WorkspaceView {
	if slots <= 0 {
		slots = DefaultWorkspaceSlots
	}

	monitorIdx := -1
	var mon Monitor
	for i, m := range snap.Monitors {
		if m.ID == monitor {
			monitorIdx = i
			mon = m
			break
		}
	}
	if monitorIdx < 0 {
		return nil
	}

	byNumber := make(map[int]Workspace)
	for _, ws := range snap.Workspaces {
		if ws.Monitor != monitor || ws.Special {
			continue
		}
		if n, ok := workspaceNumber(ws); ok {
			byNumber[n] = ws
		}
	}

	views := make([]WorkspaceView, 0, slots)
	base := monitorIdx * slots
	for slot := 1; slot <= slots; slot++ {
		view := WorkspaceView{
			Slot:   slot,
			Number: base + slot,
			State:  StateEmpty,
		}
		if ws, ok := byNumber[view.Number]; ok {
			view.Workspace = ws.ID
			view.Name = ws.Name
			view.Windows = len(ws.Windows)
			view.State = workspaceState(snap, mon, ws)
			view.Class = dominantClass(snap, ws)
		}
		views = append(views, view)
	}
	return views
}

func workspaceState(snap Snapshot, mon Monitor, ws Workspace) WorkspaceState {
	switch {
	case mon.ActiveWorkspace == ws.ID && mon.Focused:
		return StateActive
	case mon.ActiveWorkspace == ws.ID:
		return StateVisible
	case ws.Urgent || anyWindowUrgent(snap, ws):
		return StateUrgent
	case len(ws.Windows) > 0:
		return StateOccupied
	default:
		return StateEmpty
	}
}

// workspaceNumber resolves the number a workspace is addressed by. The name
// wins because compositors that key workspaces by container or creation ID
// still carry the number in the name ("5", "5: web"); a plain numeric ID is
// the fallback.
func workspaceNumber(ws Workspace) (int, bool) {
	if n, ok := nameNumber(ws.Name); ok {
		return n, true
	}
	if n, err := strconv.Atoi(string(ws.ID)); err == nil {
		return n, true
	}
	return 0, false
}

// nameNumber parses the "N" and "N: label" naming conventions.
func nameNumber(name string) (int, bool) {
	digits := 0
	for digits < len(name) && name[digits] >= '0' && name[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if digits < len(name) && name[digits] != ':' {
		return 0, false
	}
	n, err := strconv.Atoi(name[:digits])
	if err != nil {
		return 0, false
	}
	return n, true
}

func anyWindowUrgent(snap Snapshot, ws Workspace) bool {
	for _, id := range ws.Windows {
		if w, ok := snap.Window(id); ok && w.Urgent {
			return true
		}
	}
	return false
}

// dominantClass picks the class shown on a pager slot: the focused window's
// class when the workspace holds it, otherwise the first window's.
func dominantClass(snap Snapshot, ws Workspace) string {
	var first string
	for _, id := range ws.Windows {
		w, ok := snap.Window(id)
		if !ok {
			continue
		}
		if w.Focused {
			return w.Class
		}
		if first == "" {
			first = w.Class
		}
	}
	return first
}
