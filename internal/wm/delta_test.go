package wm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMonitor(id MonitorID) Monitor {
	return Monitor{ID: id, Name: string(id), Geometry: Rect{Width: 1920, Height: 1080}}
}

func testWorkspace(id WorkspaceID, mon MonitorID) Workspace {
	return Workspace{ID: id, Name: string(id), Monitor: mon}
}

func testWindow(id WindowID, ws WorkspaceID) Window {
	return Window{ID: id, Workspace: ws, Class: "term", Title: string(id)}
}

func TestDeltaEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Delta{}.Empty())
	assert.True(t, Delta{Seq: 7}.Empty(), "a bare seq bump carries no change")

	stale := true
	assert.False(t, Delta{Stale: &stale}.Empty())
	assert.False(t, Delta{Resync: true}.Empty())
	assert.False(t, Delta{Monitors: []Monitor{testMonitor("DP-1")}}.Empty())
	assert.False(t, Delta{RemovedWindows: []WindowID{"1"}}.Empty())
}

func TestDeltaMergeUpsertReplaces(t *testing.T) {
	t.Parallel()

	earlier := testWindow("1", "ws1")
	earlier.Title = "before"
	later := testWindow("1", "ws1")
	later.Title = "after"

	d := Delta{Seq: 1, Windows: []Window{earlier}}
	d.Merge(Delta{Seq: 2, Windows: []Window{later}})

	require.Len(t, d.Windows, 1)
	assert.Equal(t, "after", d.Windows[0].Title)
	assert.Equal(t, uint64(2), d.Seq)
}

func TestDeltaMergeRemovalCancelsUpsert(t *testing.T) {
	t.Parallel()

	d := Delta{Seq: 1, Windows: []Window{testWindow("1", "ws1")}}
	d.Merge(Delta{Seq: 2, RemovedWindows: []WindowID{"1"}})

	assert.Empty(t, d.Windows)
	assert.Equal(t, []WindowID{"1"}, d.RemovedWindows)
}

func TestDeltaMergeRecreateDropsRemoval(t *testing.T) {
	t.Parallel()

	d := Delta{Seq: 1, RemovedWorkspaces: []WorkspaceID{"ws1"}}
	d.Merge(Delta{Seq: 2, Workspaces: []Workspace{testWorkspace("ws1", "DP-1")}})

	assert.Empty(t, d.RemovedWorkspaces)
	require.Len(t, d.Workspaces, 1)
	assert.Equal(t, WorkspaceID("ws1"), d.Workspaces[0].ID)
}

func TestDeltaMergeFlags(t *testing.T) {
	t.Parallel()

	staleOn := true
	staleOff := false

	d := Delta{Seq: 1, Resync: true, Stale: &staleOn}
	d.Merge(Delta{Seq: 2})
	assert.True(t, d.Resync, "resync survives later non-resync deltas")
	require.NotNil(t, d.Stale)
	assert.True(t, *d.Stale)

	d.Merge(Delta{Seq: 3, Stale: &staleOff})
	require.NotNil(t, d.Stale)
	assert.False(t, *d.Stale, "latest stale transition wins")
	assert.Equal(t, uint64(3), d.Seq)
}

// Applying deltas one at a time and applying their merged form must land on
// the same model. This is the property the subscriber queue relies on when it
// coalesces a backlog.
func TestDeltaMergeEquivalence(t *testing.T) {
	t.Parallel()

	base := Snapshot{
		Monitors:   []Monitor{testMonitor("DP-1")},
		Workspaces: []Workspace{testWorkspace("ws1", "DP-1"), testWorkspace("ws2", "DP-1")},
		Windows:    []Window{testWindow("1", "ws1"), testWindow("2", "ws2")},
	}

	renamed := testWorkspace("ws2", "DP-1")
	renamed.Name = "mail"
	moved := testWindow("2", "ws1")
	staleOn := true

	deltas := []Delta{
		{Seq: 1, Windows: []Window{testWindow("3", "ws1")}},
		{Seq: 2, RemovedWindows: []WindowID{"1"}},
		{Seq: 3, Workspaces: []Workspace{renamed}, Windows: []Window{moved}},
		{Seq: 4, Stale: &staleOn},
		{Seq: 5, Windows: []Window{testWindow("1", "ws2")}},
		{Seq: 6, RemovedWorkspaces: []WorkspaceID{"ws2"}, RemovedWindows: []WindowID{"1", "2"}},
	}

	oneAtATime := base.Clone()
	for _, d := range deltas {
		oneAtATime.ApplyDelta(d)
	}

	merged := deltas[0].Clone()
	for _, d := range deltas[1:] {
		merged.Merge(d)
	}
	coalesced := base.Clone()
	coalesced.ApplyDelta(merged)

	assert.Equal(t, oneAtATime, coalesced)
}

func TestSnapshotDeltaBootstrapsEmptyModel(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Seq:        42,
		Stale:      true,
		Monitors:   []Monitor{testMonitor("DP-1"), testMonitor("HDMI-1")},
		Workspaces: []Workspace{testWorkspace("ws1", "DP-1")},
		Windows:    []Window{testWindow("1", "ws1")},
	}
	snap.Sort()

	first := snap.Delta()
	assert.True(t, first.Resync)
	require.NotNil(t, first.Stale)
	assert.True(t, *first.Stale)

	var model Snapshot
	model.ApplyDelta(first)
	assert.Equal(t, snap, model)
}

func TestDeltaCloneIsIndependent(t *testing.T) {
	t.Parallel()

	stale := true
	d := Delta{
		Seq:        1,
		Stale:      &stale,
		Monitors:   []Monitor{testMonitor("DP-1")},
		Workspaces: []Workspace{testWorkspace("ws1", "DP-1")},
		Windows:    []Window{testWindow("1", "ws1")},
	}
	cp := d.Clone()

	cp.Monitors[0].Name = "changed"
	cp.Workspaces[0].Name = "changed"
	cp.Windows[0].Title = "changed"
	*cp.Stale = false

	assert.Equal(t, "DP-1", d.Monitors[0].Name)
	assert.Equal(t, "ws1", d.Workspaces[0].Name)
	assert.Equal(t, "1", d.Windows[0].Title)
	assert.True(t, *d.Stale)
}

func TestApplyDeltaRemovalThenUpsertSameSeq(t *testing.T) {
	t.Parallel()

	base := Snapshot{
		Monitors:   []Monitor{testMonitor("DP-1")},
		Workspaces: []Workspace{testWorkspace("ws1", "DP-1")},
		Windows:    []Window{testWindow("1", "ws1")},
	}
	base.Sort()

	// One delta both removes an entity and upserts a replacement under the
	// same ID: the upsert wins because removals apply first.
	replacement := testWindow("1", "ws1")
	replacement.Title = "reborn"
	d := Delta{Seq: 9, RemovedWindows: []WindowID{"1"}, Windows: []Window{replacement}}

	base.ApplyDelta(d)
	w, ok := base.Window("1")
	require.True(t, ok)
	assert.Equal(t, "reborn", w.Title)
}
