package state

import (
	"fmt"
	"sort"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// Apply folds one normalized event into the model and returns the resulting
// delta. Invariants are checked before any mutation: an event referencing an
// unknown entity returns a *wm.InvariantError and leaves the model untouched,
// signalling the caller to schedule a resync. Destroy events for entities the
// model never saw are treated as already-applied and produce an empty delta.
func (s *Store) Apply(ev wm.Event) (wm.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if full, ok := ev.(wm.FullStateSnapshot); ok {
		return s.resyncLocked(full.Snapshot), nil
	}

	ch := newChangeset()
	var err error

	switch e := ev.(type) {
	case wm.MonitorAdded:
		err = s.applyMonitorAdded(e, ch)
	case wm.MonitorRemoved:
		err = s.applyMonitorRemoved(e, ch)
	case wm.MonitorFocused:
		err = s.applyMonitorFocused(e, ch)
	case wm.WorkspaceCreated:
		err = s.applyWorkspaceCreated(e, ch)
	case wm.WorkspaceDestroyed:
		err = s.applyWorkspaceDestroyed(e, ch)
	case wm.WorkspaceActivated:
		err = s.applyWorkspaceActivated(e, ch)
	case wm.WorkspaceMoved:
		err = s.applyWorkspaceMoved(e, ch)
	case wm.WorkspaceRenamed:
		err = s.applyWorkspaceRenamed(e, ch)
	case wm.WorkspaceUrgencyChanged:
		err = s.applyWorkspaceUrgencyChanged(e, ch)
	case wm.WindowCreated:
		err = s.applyWindowCreated(e, ch)
	case wm.WindowDestroyed:
		err = s.applyWindowDestroyed(e, ch)
	case wm.WindowMoved:
		err = s.applyWindowMoved(e, ch)
	case wm.WindowFocused:
		err = s.applyWindowFocused(e, ch)
	case wm.WindowTitleChanged:
		err = s.applyWindowTitleChanged(e, ch)
	case wm.WindowFlagChanged:
		err = s.applyWindowFlagChanged(e, ch)
	case wm.MonitorsReset:
		err = s.applyMonitorsReset(e, ch)
	case wm.WorkspacesReset:
		err = s.applyWorkspacesReset(e, ch)
	case wm.WindowsReset:
		err = s.applyWindowsReset(e, ch)
	default:
		s.log.Debug().Str("kind", ev.Kind()).Msg("ignoring unhandled event kind")
	}

	if err != nil {
		return wm.Delta{}, err
	}
	if ch.empty() {
		return wm.Delta{}, nil
	}
	return s.buildDelta(ch), nil
}

func violation(ev wm.Event, format string, args ...any) error {
	return &wm.InvariantError{Event: ev.Kind(), Reason: fmt.Sprintf(format, args...)}
}

func (s *Store) applyMonitorAdded(e wm.MonitorAdded, ch *changeset) error {
	if _, ok := s.monitors[e.Monitor.ID]; ok {
		s.destroyMonitorLocked(e.Monitor.ID, ch)
	}
	m := e.Monitor.Clone()
	m.Workspaces = nil
	if m.ActiveWorkspace != "" {
		if _, ok := s.workspaces[m.ActiveWorkspace]; !ok {
			m.ActiveWorkspace = ""
		}
	}
	s.monitors[m.ID] = &m
	ch.touchMonitor(m.ID)
	return nil
}

func (s *Store) applyMonitorRemoved(e wm.MonitorRemoved, ch *changeset) error {
	if _, ok := s.monitors[e.ID]; !ok {
		s.log.Debug().Str("monitor", string(e.ID)).Msg("remove for unknown monitor, ignoring")
		return nil
	}
	s.destroyMonitorLocked(e.ID, ch)
	return nil
}

func (s *Store) applyMonitorFocused(e wm.MonitorFocused, ch *changeset) error {
	target, ok := s.monitors[e.ID]
	if !ok {
		return violation(e, "unknown monitor %q", e.ID)
	}
	for id, m := range s.monitors {
		if m.Focused && id != e.ID {
			m.Focused = false
			ch.touchMonitor(id)
		}
	}
	if !target.Focused {
		target.Focused = true
		ch.touchMonitor(target.ID)
	}
	return nil
}

func (s *Store) applyWorkspaceCreated(e wm.WorkspaceCreated, ch *changeset) error {
	monID := e.Workspace.Monitor
	if monID == "" {
		fm := s.focusedMonitorLocked()
		if fm == nil {
			return violation(e, "workspace %q created but no monitor is focused", e.Workspace.ID)
		}
		monID = fm.ID
	}
	if _, ok := s.monitors[monID]; !ok {
		return violation(e, "workspace %q references unknown monitor %q", e.Workspace.ID, monID)
	}
	if _, ok := s.workspaces[e.Workspace.ID]; ok {
		s.destroyWorkspaceLocked(e.Workspace.ID, ch)
	}
	w := e.Workspace.Clone()
	w.Monitor = monID
	w.Windows = nil
	s.workspaces[w.ID] = &w
	s.attachWorkspace(w.ID, w.Monitor)
	ch.touchWorkspace(w.ID)
	ch.touchMonitor(w.Monitor)
	return nil
}

func (s *Store) applyWorkspaceDestroyed(e wm.WorkspaceDestroyed, ch *changeset) error {
	if _, ok := s.workspaces[e.ID]; !ok {
		s.log.Debug().Str("workspace", string(e.ID)).Msg("destroy for unknown workspace, ignoring")
		return nil
	}
	s.destroyWorkspaceLocked(e.ID, ch)
	return nil
}

func (s *Store) applyWorkspaceActivated(e wm.WorkspaceActivated, ch *changeset) error {
	ws, ok := s.workspaces[e.Workspace]
	if !ok {
		return violation(e, "unknown workspace %q", e.Workspace)
	}
	monID := e.Monitor
	if monID == "" {
		fm := s.focusedMonitorLocked()
		if fm == nil {
			return violation(e, "workspace %q activated but no monitor is focused", e.Workspace)
		}
		monID = fm.ID
	}
	mon, ok := s.monitors[monID]
	if !ok {
		return violation(e, "unknown monitor %q", monID)
	}
	// Activating a workspace that lives elsewhere pulls it onto the monitor;
	// compositors emit the move and the activation in either order.
	if ws.Monitor != mon.ID {
		s.detachWorkspace(ws.ID, ws.Monitor)
		ch.touchMonitor(ws.Monitor)
		ws.Monitor = mon.ID
		s.attachWorkspace(ws.ID, mon.ID)
		ch.touchWorkspace(ws.ID)
	}
	if mon.ActiveWorkspace != ws.ID {
		mon.ActiveWorkspace = ws.ID
		ch.touchMonitor(mon.ID)
	}
	return nil
}

func (s *Store) applyWorkspaceMoved(e wm.WorkspaceMoved, ch *changeset) error {
	ws, ok := s.workspaces[e.ID]
	if !ok {
		return violation(e, "unknown workspace %q", e.ID)
	}
	if _, ok := s.monitors[e.Monitor]; !ok {
		return violation(e, "unknown monitor %q", e.Monitor)
	}
	if ws.Monitor == e.Monitor {
		return nil
	}
	s.detachWorkspace(ws.ID, ws.Monitor)
	ch.touchMonitor(ws.Monitor)
	ws.Monitor = e.Monitor
	s.attachWorkspace(ws.ID, e.Monitor)
	ch.touchWorkspace(ws.ID)
	ch.touchMonitor(e.Monitor)
	return nil
}

func (s *Store) applyWorkspaceRenamed(e wm.WorkspaceRenamed, ch *changeset) error {
	ws, ok := s.workspaces[e.ID]
	if !ok {
		return violation(e, "unknown workspace %q", e.ID)
	}
	if ws.Name == e.Name {
		return nil
	}
	ws.Name = e.Name
	ch.touchWorkspace(ws.ID)
	return nil
}

func (s *Store) applyWorkspaceUrgencyChanged(e wm.WorkspaceUrgencyChanged, ch *changeset) error {
	ws, ok := s.workspaces[e.ID]
	if !ok {
		return violation(e, "unknown workspace %q", e.ID)
	}
	if ws.Urgent == e.Urgent {
		return nil
	}
	ws.Urgent = e.Urgent
	ch.touchWorkspace(ws.ID)
	return nil
}

func (s *Store) applyWindowCreated(e wm.WindowCreated, ch *changeset) error {
	ws, ok := s.workspaces[e.Window.Workspace]
	if !ok {
		return violation(e, "window %q references unknown workspace %q", e.Window.ID, e.Window.Workspace)
	}
	if _, ok := s.windows[e.Window.ID]; ok {
		s.destroyWindowLocked(e.Window.ID, ch)
	}
	w := e.Window
	s.windows[w.ID] = &w
	ws.Windows = append(ws.Windows, w.ID)
	sortWindowIDs(ws.Windows)
	ch.touchWindow(w.ID)
	ch.touchWorkspace(ws.ID)
	if w.Focused {
		s.setFocusLocked(w.ID, ch)
	}
	return nil
}

func (s *Store) applyWindowDestroyed(e wm.WindowDestroyed, ch *changeset) error {
	if _, ok := s.windows[e.ID]; !ok {
		s.log.Debug().Str("window", string(e.ID)).Msg("destroy for unknown window, ignoring")
		return nil
	}
	s.destroyWindowLocked(e.ID, ch)
	return nil
}

func (s *Store) applyWindowMoved(e wm.WindowMoved, ch *changeset) error {
	w, ok := s.windows[e.ID]
	if !ok {
		return violation(e, "unknown window %q", e.ID)
	}
	dst, ok := s.workspaces[e.Workspace]
	if !ok {
		return violation(e, "unknown workspace %q", e.Workspace)
	}
	if w.Workspace == e.Workspace {
		return nil
	}
	if src, ok := s.workspaces[w.Workspace]; ok {
		src.Windows = removeWindowID(src.Windows, w.ID)
		ch.touchWorkspace(src.ID)
	}
	w.Workspace = dst.ID
	dst.Windows = append(dst.Windows, w.ID)
	sortWindowIDs(dst.Windows)
	ch.touchWindow(w.ID)
	ch.touchWorkspace(dst.ID)
	return nil
}

func (s *Store) applyWindowFocused(e wm.WindowFocused, ch *changeset) error {
	if e.ID == "" {
		s.clearFocusLocked(ch)
		return nil
	}
	if _, ok := s.windows[e.ID]; !ok {
		return violation(e, "unknown window %q", e.ID)
	}
	s.setFocusLocked(e.ID, ch)
	return nil
}

func (s *Store) applyWindowTitleChanged(e wm.WindowTitleChanged, ch *changeset) error {
	w, ok := s.windows[e.ID]
	if !ok {
		return violation(e, "unknown window %q", e.ID)
	}
	if w.Title == e.Title {
		return nil
	}
	w.Title = e.Title
	ch.touchWindow(w.ID)
	return nil
}

func (s *Store) applyWindowFlagChanged(e wm.WindowFlagChanged, ch *changeset) error {
	id := e.ID
	if id == "" {
		if s.focused == "" {
			return violation(e, "flag %s changed but no window is focused", e.Flag)
		}
		id = s.focused
	}
	w, ok := s.windows[id]
	if !ok {
		return violation(e, "unknown window %q", id)
	}
	var field *bool
	switch e.Flag {
	case wm.FlagFloating:
		field = &w.Floating
	case wm.FlagFullscreen:
		field = &w.Fullscreen
	case wm.FlagPinned:
		field = &w.Pinned
	case wm.FlagUrgent:
		field = &w.Urgent
	default:
		return violation(e, "unknown window flag %q", e.Flag)
	}
	if *field == e.Value {
		return nil
	}
	*field = e.Value
	ch.touchWindow(w.ID)
	return nil
}

// applyMonitorsReset replaces the monitor section wholesale. Workspaces on
// monitors that disappear cascade away; the hotplug resync that follows
// restores anything the compositor re-homed.
func (s *Store) applyMonitorsReset(e wm.MonitorsReset, ch *changeset) error {
	next := make(map[wm.MonitorID]bool, len(e.Monitors))
	for _, m := range e.Monitors {
		next[m.ID] = true
	}
	ids := make([]wm.MonitorID, 0, len(s.monitors))
	for id := range s.monitors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !next[id] {
			s.destroyMonitorLocked(id, ch)
		}
	}

	for _, m := range e.Monitors {
		incoming := m.Clone()
		old, exists := s.monitors[incoming.ID]
		if exists {
			incoming.Workspaces = old.Workspaces
			if incoming.ActiveWorkspace != "" {
				if _, ok := s.workspaces[incoming.ActiveWorkspace]; !ok {
					incoming.ActiveWorkspace = old.ActiveWorkspace
				}
			}
			if old.Equal(incoming) {
				continue
			}
			*old = incoming
			ch.touchMonitor(incoming.ID)
			continue
		}
		incoming.Workspaces = nil
		if incoming.ActiveWorkspace != "" {
			if _, ok := s.workspaces[incoming.ActiveWorkspace]; !ok {
				incoming.ActiveWorkspace = ""
			}
		}
		s.monitors[incoming.ID] = &incoming
		ch.touchMonitor(incoming.ID)
	}
	return nil
}

// applyWorkspacesReset replaces the workspace section wholesale. Windows on
// workspaces that disappear are removed with them; backends emitting section
// resets report surviving windows in a follow-up windows reset.
func (s *Store) applyWorkspacesReset(e wm.WorkspacesReset, ch *changeset) error {
	for _, w := range e.Workspaces {
		if _, ok := s.monitors[w.Monitor]; !ok {
			return violation(e, "workspace %q references unknown monitor %q", w.ID, w.Monitor)
		}
	}

	next := make(map[wm.WorkspaceID]bool, len(e.Workspaces))
	for _, w := range e.Workspaces {
		next[w.ID] = true
	}
	for _, id := range s.sortedWorkspaceIDs() {
		if !next[id] {
			s.destroyWorkspaceLocked(id, ch)
		}
	}

	for _, w := range e.Workspaces {
		incoming := w.Clone()
		old, exists := s.workspaces[incoming.ID]
		if exists {
			incoming.Windows = old.Windows
			if old.Equal(incoming) {
				continue
			}
			if old.Monitor != incoming.Monitor {
				s.detachWorkspace(old.ID, old.Monitor)
				ch.touchMonitor(old.Monitor)
				s.attachWorkspace(incoming.ID, incoming.Monitor)
				ch.touchMonitor(incoming.Monitor)
			}
			*old = incoming
			ch.touchWorkspace(incoming.ID)
			continue
		}
		incoming.Windows = nil
		s.workspaces[incoming.ID] = &incoming
		s.attachWorkspace(incoming.ID, incoming.Monitor)
		ch.touchWorkspace(incoming.ID)
		ch.touchMonitor(incoming.Monitor)
	}
	return nil
}

// applyWindowsReset replaces the window section wholesale and rebuilds
// workspace membership from the new set.
func (s *Store) applyWindowsReset(e wm.WindowsReset, ch *changeset) error {
	for _, w := range e.Windows {
		if _, ok := s.workspaces[w.Workspace]; !ok {
			return violation(e, "window %q references unknown workspace %q", w.ID, w.Workspace)
		}
	}

	next := make(map[wm.WindowID]bool, len(e.Windows))
	for _, w := range e.Windows {
		next[w.ID] = true
	}
	for _, id := range s.sortedWindowIDs() {
		if !next[id] {
			s.destroyWindowLocked(id, ch)
		}
	}

	incoming := make([]wm.Window, len(e.Windows))
	copy(incoming, e.Windows)
	sort.Slice(incoming, func(i, j int) bool { return incoming[i].ID < incoming[j].ID })

	var focused wm.WindowID
	for i := range incoming {
		w := &incoming[i]
		if w.Focused {
			if focused != "" {
				w.Focused = false
			} else {
				focused = w.ID
			}
		}
		old, exists := s.windows[w.ID]
		if exists {
			if *old == *w {
				continue
			}
			if old.Workspace != w.Workspace {
				if src, ok := s.workspaces[old.Workspace]; ok {
					src.Windows = removeWindowID(src.Windows, old.ID)
					ch.touchWorkspace(src.ID)
				}
				dst := s.workspaces[w.Workspace]
				dst.Windows = append(dst.Windows, w.ID)
				sortWindowIDs(dst.Windows)
				ch.touchWorkspace(dst.ID)
			}
			*old = *w
			ch.touchWindow(w.ID)
			continue
		}
		cp := *w
		s.windows[cp.ID] = &cp
		ws := s.workspaces[cp.Workspace]
		ws.Windows = append(ws.Windows, cp.ID)
		sortWindowIDs(ws.Windows)
		ch.touchWindow(cp.ID)
		ch.touchWorkspace(ws.ID)
	}
	s.focused = focused
	return nil
}

// setFocusLocked makes id the single focused window.
func (s *Store) setFocusLocked(id wm.WindowID, ch *changeset) {
	if s.focused != id {
		if prev, ok := s.windows[s.focused]; ok && prev.Focused {
			prev.Focused = false
			ch.touchWindow(prev.ID)
		}
		s.focused = id
	}
	if w, ok := s.windows[id]; ok && !w.Focused {
		w.Focused = true
		ch.touchWindow(id)
	}
}

func (s *Store) clearFocusLocked(ch *changeset) {
	if s.focused == "" {
		return
	}
	if prev, ok := s.windows[s.focused]; ok && prev.Focused {
		prev.Focused = false
		ch.touchWindow(prev.ID)
	}
	s.focused = ""
}

// destroyWindowLocked removes a window and its workspace membership.
func (s *Store) destroyWindowLocked(id wm.WindowID, ch *changeset) {
	w, ok := s.windows[id]
	if !ok {
		return
	}
	if ws, ok := s.workspaces[w.Workspace]; ok {
		ws.Windows = removeWindowID(ws.Windows, id)
		ch.touchWorkspace(ws.ID)
	}
	if s.focused == id {
		s.focused = ""
	}
	delete(s.windows, id)
	ch.removeWindow(id)
}

// destroyWorkspaceLocked removes a workspace and every window on it.
func (s *Store) destroyWorkspaceLocked(id wm.WorkspaceID, ch *changeset) {
	ws, ok := s.workspaces[id]
	if !ok {
		return
	}
	members := make([]wm.WindowID, len(ws.Windows))
	copy(members, ws.Windows)
	for _, winID := range members {
		s.destroyWindowLocked(winID, ch)
	}
	s.detachWorkspace(id, ws.Monitor)
	if mon, ok := s.monitors[ws.Monitor]; ok {
		ch.touchMonitor(mon.ID)
	}
	delete(s.workspaces, id)
	ch.removeWorkspace(id)
}

// destroyMonitorLocked removes a monitor and cascades through its
// workspaces. A resync following a hotplug event restores anything the
// compositor actually kept alive on another output.
func (s *Store) destroyMonitorLocked(id wm.MonitorID, ch *changeset) {
	mon, ok := s.monitors[id]
	if !ok {
		return
	}
	members := make([]wm.WorkspaceID, len(mon.Workspaces))
	copy(members, mon.Workspaces)
	for _, wsID := range members {
		s.destroyWorkspaceLocked(wsID, ch)
	}
	delete(s.monitors, id)
	ch.removeMonitor(id)
}

// attachWorkspace records workspace membership on its monitor. The monitor
// may legitimately be gone mid-cascade.
func (s *Store) attachWorkspace(ws wm.WorkspaceID, mon wm.MonitorID) {
	m, ok := s.monitors[mon]
	if !ok {
		return
	}
	for _, id := range m.Workspaces {
		if id == ws {
			return
		}
	}
	m.Workspaces = append(m.Workspaces, ws)
	sortWorkspaceIDs(m.Workspaces)
}

func (s *Store) detachWorkspace(ws wm.WorkspaceID, mon wm.MonitorID) {
	m, ok := s.monitors[mon]
	if !ok {
		return
	}
	out := m.Workspaces[:0]
	for _, id := range m.Workspaces {
		if id != ws {
			out = append(out, id)
		}
	}
	m.Workspaces = out
	if m.ActiveWorkspace == ws {
		m.ActiveWorkspace = ""
	}
}

func (s *Store) sortedWorkspaceIDs() []wm.WorkspaceID {
	ids := make([]wm.WorkspaceID, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	sortWorkspaceIDs(ids)
	return ids
}

func (s *Store) sortedWindowIDs() []wm.WindowID {
	ids := make([]wm.WindowID, 0, len(s.windows))
	for id := range s.windows {
		ids = append(ids, id)
	}
	sortWindowIDs(ids)
	return ids
}

func sortWorkspaceIDs(ids []wm.WorkspaceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortWindowIDs(ids []wm.WindowID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func removeWindowID(ids []wm.WindowID, id wm.WindowID) []wm.WindowID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
