package wm

import "sort"

// Delta describes the net effect of one or more model mutations: full entity
// upserts plus removal lists. Applying a delta to any model that saw every
// earlier delta yields the authoritative model.
type Delta struct {
	Seq               uint64        `json:"seq"`
	Resync            bool          `json:"resync,omitempty"`
	Stale             *bool         `json:"stale,omitempty"`
	Monitors          []Monitor     `json:"monitors,omitempty"`
	Workspaces        []Workspace   `json:"workspaces,omitempty"`
	Windows           []Window      `json:"windows,omitempty"`
	RemovedMonitors   []MonitorID   `json:"removed_monitors,omitempty"`
	RemovedWorkspaces []WorkspaceID `json:"removed_workspaces,omitempty"`
	RemovedWindows    []WindowID    `json:"removed_windows,omitempty"`
}

// Empty reports whether the delta carries no change at all.
func (d Delta) Empty() bool {
	return !d.Resync && d.Stale == nil &&
		len(d.Monitors) == 0 && len(d.Workspaces) == 0 && len(d.Windows) == 0 &&
		len(d.RemovedMonitors) == 0 && len(d.RemovedWorkspaces) == 0 && len(d.RemovedWindows) == 0
}

// Clone returns a deep copy of the delta.
func (d Delta) Clone() Delta {
	out := d
	if d.Stale != nil {
		v := *d.Stale
		out.Stale = &v
	}
	out.Monitors = make([]Monitor, len(d.Monitors))
	for i, m := range d.Monitors {
		out.Monitors[i] = m.Clone()
	}
	out.Workspaces = make([]Workspace, len(d.Workspaces))
	for i, w := range d.Workspaces {
		out.Workspaces[i] = w.Clone()
	}
	out.Windows = append([]Window(nil), d.Windows...)
	out.RemovedMonitors = append([]MonitorID(nil), d.RemovedMonitors...)
	out.RemovedWorkspaces = append([]WorkspaceID(nil), d.RemovedWorkspaces...)
	out.RemovedWindows = append([]WindowID(nil), d.RemovedWindows...)
	return out
}

// Merge folds a later delta into this one so the result carries the combined
// net effect: later upserts replace earlier ones, removals cancel pending
// upserts, and a re-created entity drops off the removal list. Used when a
// slow subscriber's queue coalesces.
func (d *Delta) Merge(later Delta) {
	d.Seq = later.Seq
	d.Resync = d.Resync || later.Resync
	if later.Stale != nil {
		v := *later.Stale
		d.Stale = &v
	}

	for _, id := range later.RemovedMonitors {
		d.Monitors = dropMonitor(d.Monitors, id)
		if !containsMonitorID(d.RemovedMonitors, id) {
			d.RemovedMonitors = append(d.RemovedMonitors, id)
		}
	}
	for _, id := range later.RemovedWorkspaces {
		d.Workspaces = dropWorkspace(d.Workspaces, id)
		if !containsWorkspaceID(d.RemovedWorkspaces, id) {
			d.RemovedWorkspaces = append(d.RemovedWorkspaces, id)
		}
	}
	for _, id := range later.RemovedWindows {
		d.Windows = dropWindow(d.Windows, id)
		if !containsWindowID(d.RemovedWindows, id) {
			d.RemovedWindows = append(d.RemovedWindows, id)
		}
	}

	for _, m := range later.Monitors {
		d.Monitors = upsertMonitor(d.Monitors, m.Clone())
		d.RemovedMonitors = removeMonitorID(d.RemovedMonitors, m.ID)
	}
	for _, w := range later.Workspaces {
		d.Workspaces = upsertWorkspace(d.Workspaces, w.Clone())
		d.RemovedWorkspaces = removeWorkspaceID(d.RemovedWorkspaces, w.ID)
	}
	for _, w := range later.Windows {
		d.Windows = upsertWindow(d.Windows, w)
		d.RemovedWindows = removeWindowID(d.RemovedWindows, w.ID)
	}

	d.sort()
}

// Delta renders the whole snapshot as one resync delta: the first frame a
// new subscriber receives, applied to an empty model.
func (s Snapshot) Delta() Delta {
	stale := s.Stale
	return Delta{
		Seq:        s.Seq,
		Resync:     true,
		Stale:      &stale,
		Monitors:   s.Monitors,
		Workspaces: s.Workspaces,
		Windows:    s.Windows,
	}
}

// ApplyDelta reconstructs the next model state in place. Subscribers use it
// to keep a local model in lockstep with the authoritative one.
func (s *Snapshot) ApplyDelta(d Delta) {
	s.Seq = d.Seq
	if d.Stale != nil {
		s.Stale = *d.Stale
	}

	for _, id := range d.RemovedWindows {
		s.Windows = dropWindow(s.Windows, id)
	}
	for _, id := range d.RemovedWorkspaces {
		s.Workspaces = dropWorkspace(s.Workspaces, id)
	}
	for _, id := range d.RemovedMonitors {
		s.Monitors = dropMonitor(s.Monitors, id)
	}

	for _, m := range d.Monitors {
		s.Monitors = upsertMonitor(s.Monitors, m.Clone())
	}
	for _, w := range d.Workspaces {
		s.Workspaces = upsertWorkspace(s.Workspaces, w.Clone())
	}
	for _, w := range d.Windows {
		s.Windows = upsertWindow(s.Windows, w)
	}

	s.Sort()
}

func (d *Delta) sort() {
	sort.Slice(d.Monitors, func(i, j int) bool { return d.Monitors[i].ID < d.Monitors[j].ID })
	sort.Slice(d.Workspaces, func(i, j int) bool { return d.Workspaces[i].ID < d.Workspaces[j].ID })
	sort.Slice(d.Windows, func(i, j int) bool { return d.Windows[i].ID < d.Windows[j].ID })
	sort.Slice(d.RemovedMonitors, func(i, j int) bool { return d.RemovedMonitors[i] < d.RemovedMonitors[j] })
	sort.Slice(d.RemovedWorkspaces, func(i, j int) bool { return d.RemovedWorkspaces[i] < d.RemovedWorkspaces[j] })
	sort.Slice(d.RemovedWindows, func(i, j int) bool { return d.RemovedWindows[i] < d.RemovedWindows[j] })
}

func upsertMonitor(list []Monitor, m Monitor) []Monitor {
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return list
		}
	}
	return append(list, m)
}

func upsertWorkspace(list []Workspace, w Workspace) []Workspace {
	for i := range list {
		if list[i].ID == w.ID {
			list[i] = w
			return list
		}
	}
	return append(list, w)
}

func upsertWindow(list []Window, w Window) []Window {
	for i := range list {
		if list[i].ID == w.ID {
			list[i] = w
			return list
		}
	}
	return append(list, w)
}

func dropMonitor(list []Monitor, id MonitorID) []Monitor {
	out := list[:0]
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func dropWorkspace(list []Workspace, id WorkspaceID) []Workspace {
	out := list[:0]
	for _, w := range list {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

func dropWindow(list []Window, id WindowID) []Window {
	out := list[:0]
	for _, w := range list {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

func containsMonitorID(ids []MonitorID, id MonitorID) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

func containsWorkspaceID(ids []WorkspaceID, id WorkspaceID) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

func containsWindowID(ids []WindowID, id WindowID) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

func removeMonitorID(ids []MonitorID, id MonitorID) []MonitorID {
	out := ids[:0]
	for _, have := range ids {
		if have != id {
			out = append(out, have)
		}
	}
	return out
}

func removeWorkspaceID(ids []WorkspaceID, id WorkspaceID) []WorkspaceID {
	out := ids[:0]
	for _, have := range ids {
		if have != id {
			out = append(out, have)
		}
	}
	return out
}

func removeWindowID(ids []WindowID, id WindowID) []WindowID {
	out := ids[:0]
	for _, have := range ids {
		if have != id {
			out = append(out, have)
		}
	}
	return out
}
