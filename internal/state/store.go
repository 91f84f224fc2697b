// Package state holds the authoritative in-memory model of monitors,
// workspaces, and windows. A single goroutine (the bridge session loop)
// writes it by applying normalized events; everyone else reads immutable
// snapshots or receives deltas.
package state

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/logger"
	"github.com/wmbridge/wmbridge/internal/wm"
)

// Store owns every entity in the model. Entities are created on first-seen
// events or a full-state fetch, mutated in place by later events, and
// removed on destroy events or when a resync no longer reports them.
type Store struct {
	mu  sync.RWMutex
	log *zerolog.Logger

	seq        uint64
	stale      bool
	monitors   map[wm.MonitorID]*wm.Monitor
	workspaces map[wm.WorkspaceID]*wm.Workspace
	windows    map[wm.WindowID]*wm.Window
	focused    wm.WindowID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		log:        logger.WithComponent("state"),
		monitors:   make(map[wm.MonitorID]*wm.Monitor),
		workspaces: make(map[wm.WorkspaceID]*wm.Workspace),
		windows:    make(map[wm.WindowID]*wm.Window),
	}
}

// Snapshot returns an immutable deep copy of the current model.
func (s *Store) Snapshot() wm.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() wm.Snapshot {
	snap := wm.Snapshot{
		Seq:        s.seq,
		Stale:      s.stale,
		Monitors:   make([]wm.Monitor, 0, len(s.monitors)),
		Workspaces: make([]wm.Workspace, 0, len(s.workspaces)),
		Windows:    make([]wm.Window, 0, len(s.windows)),
	}
	for _, m := range s.monitors {
		snap.Monitors = append(snap.Monitors, m.Clone())
	}
	for _, w := range s.workspaces {
		snap.Workspaces = append(snap.Workspaces, w.Clone())
	}
	for _, w := range s.windows {
		snap.Windows = append(snap.Windows, *w)
	}
	snap.Sort()
	return snap
}

// SetStale flips the staleness marker kept while the compositor connection
// is down. Returns the delta to publish and whether anything changed.
func (s *Store) SetStale(stale bool) (wm.Delta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale == stale {
		return wm.Delta{}, false
	}
	s.stale = stale
	s.seq++
	v := stale
	return wm.Delta{Seq: s.seq, Stale: &v}, true
}

// Resync replaces the entire model atomically with a fresh full-state
// snapshot and computes the delta against the prior model: entities absent
// from the snapshot are destroyed, present-but-changed entities are updated.
// Resyncing also clears the stale flag.
func (s *Store) Resync(snap wm.Snapshot) wm.Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncLocked(snap)
}

func (s *Store) resyncLocked(snap wm.Snapshot) wm.Delta {
	next := normalize(snap, s.log)

	s.seq++
	delta := wm.Delta{Seq: s.seq, Resync: true}

	for id, old := range s.monitors {
		if _, ok := next.monitors[id]; !ok {
			delta.RemovedMonitors = append(delta.RemovedMonitors, old.ID)
		}
	}
	for id, m := range next.monitors {
		if old, ok := s.monitors[id]; !ok || !old.Equal(*m) {
			delta.Monitors = append(delta.Monitors, m.Clone())
		}
	}
	for id, old := range s.workspaces {
		if _, ok := next.workspaces[id]; !ok {
			delta.RemovedWorkspaces = append(delta.RemovedWorkspaces, old.ID)
		}
	}
	for id, w := range next.workspaces {
		if old, ok := s.workspaces[id]; !ok || !old.Equal(*w) {
			delta.Workspaces = append(delta.Workspaces, w.Clone())
		}
	}
	for id, old := range s.windows {
		if _, ok := next.windows[id]; !ok {
			delta.RemovedWindows = append(delta.RemovedWindows, old.ID)
		}
	}
	for id, w := range next.windows {
		if old, ok := s.windows[id]; !ok || !old.Equal(*w) {
			delta.Windows = append(delta.Windows, *w)
		}
	}

	s.monitors = next.monitors
	s.workspaces = next.workspaces
	s.windows = next.windows
	s.focused = next.focused

	if s.stale {
		s.stale = false
		v := false
		delta.Stale = &v
	}

	sortDelta(&delta)
	return delta
}

// normalized is a consistency-checked entity set built from a raw snapshot.
type normalized struct {
	monitors   map[wm.MonitorID]*wm.Monitor
	workspaces map[wm.WorkspaceID]*wm.Workspace
	windows    map[wm.WindowID]*wm.Window
	focused    wm.WindowID
}

// normalize rebuilds membership lists from ownership fields, drops entities
// whose owner is missing, and keeps at most one focused window. Compositor
// snapshots are usually consistent already; this guards against partial
// listings taken mid-transition.
func normalize(snap wm.Snapshot, log *zerolog.Logger) normalized {
	n := normalized{
		monitors:   make(map[wm.MonitorID]*wm.Monitor, len(snap.Monitors)),
		workspaces: make(map[wm.WorkspaceID]*wm.Workspace, len(snap.Workspaces)),
		windows:    make(map[wm.WindowID]*wm.Window, len(snap.Windows)),
	}

	for _, m := range snap.Monitors {
		mc := m.Clone()
		mc.Workspaces = nil
		n.monitors[m.ID] = &mc
	}

	sorted := snap.Clone()
	sorted.Sort()

	for _, w := range sorted.Workspaces {
		mon, ok := n.monitors[w.Monitor]
		if !ok {
			log.Warn().Str("workspace", string(w.ID)).Str("monitor", string(w.Monitor)).
				Msg("snapshot workspace references unknown monitor, dropping")
			continue
		}
		wc := w.Clone()
		wc.Windows = nil
		n.workspaces[w.ID] = &wc
		mon.Workspaces = append(mon.Workspaces, w.ID)
	}

	for _, w := range sorted.Windows {
		ws, ok := n.workspaces[w.Workspace]
		if !ok {
			log.Warn().Str("window", string(w.ID)).Str("workspace", string(w.Workspace)).
				Msg("snapshot window references unknown workspace, dropping")
			continue
		}
		wc := w
		if wc.Focused {
			if n.focused != "" {
				wc.Focused = false
			} else {
				n.focused = wc.ID
			}
		}
		n.windows[w.ID] = &wc
		ws.Windows = append(ws.Windows, w.ID)
	}

	// Drop active-workspace references to workspaces that were filtered out.
	for _, m := range n.monitors {
		if m.ActiveWorkspace != "" {
			if _, ok := n.workspaces[m.ActiveWorkspace]; !ok {
				m.ActiveWorkspace = ""
			}
		}
	}

	return n
}

// changeset accumulates the entities touched while applying one event so a
// delta with full entity copies can be built afterwards.
type changeset struct {
	monitors          map[wm.MonitorID]bool
	workspaces        map[wm.WorkspaceID]bool
	windows           map[wm.WindowID]bool
	removedMonitors   map[wm.MonitorID]bool
	removedWorkspaces map[wm.WorkspaceID]bool
	removedWindows    map[wm.WindowID]bool
}

func newChangeset() *changeset {
	return &changeset{
		monitors:          make(map[wm.MonitorID]bool),
		workspaces:        make(map[wm.WorkspaceID]bool),
		windows:           make(map[wm.WindowID]bool),
		removedMonitors:   make(map[wm.MonitorID]bool),
		removedWorkspaces: make(map[wm.WorkspaceID]bool),
		removedWindows:    make(map[wm.WindowID]bool),
	}
}

func (c *changeset) touchMonitor(id wm.MonitorID) {
	c.monitors[id] = true
	delete(c.removedMonitors, id)
}

func (c *changeset) touchWorkspace(id wm.WorkspaceID) {
	c.workspaces[id] = true
	delete(c.removedWorkspaces, id)
}

func (c *changeset) touchWindow(id wm.WindowID) {
	c.windows[id] = true
	delete(c.removedWindows, id)
}

func (c *changeset) removeMonitor(id wm.MonitorID) {
	delete(c.monitors, id)
	c.removedMonitors[id] = true
}

func (c *changeset) removeWorkspace(id wm.WorkspaceID) {
	delete(c.workspaces, id)
	c.removedWorkspaces[id] = true
}

func (c *changeset) removeWindow(id wm.WindowID) {
	delete(c.windows, id)
	c.removedWindows[id] = true
}

func (c *changeset) empty() bool {
	return len(c.monitors) == 0 && len(c.workspaces) == 0 && len(c.windows) == 0 &&
		len(c.removedMonitors) == 0 && len(c.removedWorkspaces) == 0 && len(c.removedWindows) == 0
}

// buildDelta turns the changeset into a delta with deep entity copies.
// Touched entities that no longer exist are silently skipped; their removal
// is already recorded.
func (s *Store) buildDelta(c *changeset) wm.Delta {
	s.seq++
	delta := wm.Delta{Seq: s.seq}
	for id := range c.monitors {
		if m, ok := s.monitors[id]; ok {
			delta.Monitors = append(delta.Monitors, m.Clone())
		}
	}
	for id := range c.workspaces {
		if w, ok := s.workspaces[id]; ok {
			delta.Workspaces = append(delta.Workspaces, w.Clone())
		}
	}
	for id := range c.windows {
		if w, ok := s.windows[id]; ok {
			delta.Windows = append(delta.Windows, *w)
		}
	}
	for id := range c.removedMonitors {
		delta.RemovedMonitors = append(delta.RemovedMonitors, id)
	}
	for id := range c.removedWorkspaces {
		delta.RemovedWorkspaces = append(delta.RemovedWorkspaces, id)
	}
	for id := range c.removedWindows {
		delta.RemovedWindows = append(delta.RemovedWindows, id)
	}
	sortDelta(&delta)
	return delta
}

func sortDelta(d *wm.Delta) {
	sort.Slice(d.Monitors, func(i, j int) bool { return d.Monitors[i].ID < d.Monitors[j].ID })
	sort.Slice(d.Workspaces, func(i, j int) bool { return d.Workspaces[i].ID < d.Workspaces[j].ID })
	sort.Slice(d.Windows, func(i, j int) bool { return d.Windows[i].ID < d.Windows[j].ID })
	sort.Slice(d.RemovedMonitors, func(i, j int) bool { return d.RemovedMonitors[i] < d.RemovedMonitors[j] })
	sort.Slice(d.RemovedWorkspaces, func(i, j int) bool { return d.RemovedWorkspaces[i] < d.RemovedWorkspaces[j] })
	sort.Slice(d.RemovedWindows, func(i, j int) bool { return d.RemovedWindows[i] < d.RemovedWindows[j] })
}

// Contains reports whether the model currently holds the given entities.
// Used by the command path to validate targets without copying the world.
func (s *Store) Contains(window wm.WindowID, workspace wm.WorkspaceID, monitor wm.MonitorID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if window != "" {
		if _, ok := s.windows[window]; !ok {
			return false
		}
	}
	if workspace != "" {
		if _, ok := s.workspaces[workspace]; !ok {
			return false
		}
	}
	if monitor != "" {
		if _, ok := s.monitors[monitor]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) focusedMonitorLocked() *wm.Monitor {
	ids := make([]wm.MonitorID, 0, len(s.monitors))
	for id := range s.monitors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if s.monitors[id].Focused {
			return s.monitors[id]
		}
	}
	return nil
}
