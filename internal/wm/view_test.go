package wm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagerSnapshot models two monitors the way the three compositors report
// them: numeric names, "N: label" names, and a special workspace that pager
// slots must skip.
func pagerSnapshot() Snapshot {
	snap := Snapshot{
		Monitors: []Monitor{
			{ID: "DP-1", Name: "DP-1", Focused: true, ActiveWorkspace: "101"},
			{ID: "HDMI-1", Name: "HDMI-1", ActiveWorkspace: "111"},
		},
		Workspaces: []Workspace{
			{ID: "101", Name: "1: web", Monitor: "DP-1", Windows: []WindowID{"w1", "w2"}},
			{ID: "103", Name: "3", Monitor: "DP-1", Windows: []WindowID{"w3"}},
			{ID: "105", Name: "5: code", Monitor: "DP-1", Windows: []WindowID{"w4"}},
			{ID: "special:magic", Name: "special:magic", Monitor: "DP-1", Special: true},
			{ID: "111", Name: "11", Monitor: "HDMI-1"},
			{ID: "113", Name: "13: mail", Monitor: "HDMI-1", Windows: []WindowID{"w5"}},
		},
		Windows: []Window{
			{ID: "w1", Workspace: "101", Class: "firefox", Focused: true},
			{ID: "w2", Workspace: "101", Class: "term"},
			{ID: "w3", Workspace: "103", Class: "mail", Urgent: true},
			{ID: "w4", Workspace: "105", Class: "code"},
			{ID: "w5", Workspace: "113", Class: "thunderbird"},
		},
	}
	snap.Sort()
	return snap
}

func TestWorkspaceViewsFocusedMonitor(t *testing.T) {
	t.Parallel()

	views := WorkspaceViews(pagerSnapshot(), "DP-1", 0)
	require.Len(t, views, DefaultWorkspaceSlots)

	for i, v := range views {
		assert.Equal(t, i+1, v.Slot)
		assert.Equal(t, i+1, v.Number, "first monitor addresses workspaces 1..10")
	}

	assert.Equal(t, StateActive, views[0].State)
	assert.Equal(t, WorkspaceID("101"), views[0].Workspace)
	assert.Equal(t, "1: web", views[0].Name)
	assert.Equal(t, 2, views[0].Windows)
	assert.Equal(t, "firefox", views[0].Class, "focused window's class wins the slot")

	assert.Equal(t, StateUrgent, views[2].State, "an urgent member window marks the slot")
	assert.Equal(t, "mail", views[2].Class)

	assert.Equal(t, StateOccupied, views[4].State)
	assert.Equal(t, "code", views[4].Class)

	for _, i := range []int{1, 3, 5, 6, 7, 8, 9} {
		assert.Equal(t, StateEmpty, views[i].State, "slot %d", i+1)
		assert.Empty(t, views[i].Workspace)
	}
}

func TestWorkspaceViewsSecondMonitor(t *testing.T) {
	t.Parallel()

	views := WorkspaceViews(pagerSnapshot(), "HDMI-1", 0)
	require.Len(t, views, DefaultWorkspaceSlots)

	for i, v := range views {
		assert.Equal(t, i+1, v.Slot)
		assert.Equal(t, 10+i+1, v.Number, "second monitor addresses workspaces 11..20")
	}

	assert.Equal(t, StateVisible, views[0].State, "active workspace on an unfocused monitor")
	assert.Equal(t, WorkspaceID("111"), views[0].Workspace)
	assert.Equal(t, 0, views[0].Windows)

	assert.Equal(t, StateOccupied, views[2].State)
	assert.Equal(t, WorkspaceID("113"), views[2].Workspace)
	assert.Equal(t, "thunderbird", views[2].Class)
}

func TestWorkspaceViewsNumberResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ws       Workspace
		wantSlot int // 0 means no slot
	}{
		{
			name:     "bare numeric name",
			ws:       Workspace{ID: "container-9", Name: "5", Monitor: "DP-1"},
			wantSlot: 5,
		},
		{
			name:     "numbered label",
			ws:       Workspace{ID: "container-9", Name: "5: web", Monitor: "DP-1"},
			wantSlot: 5,
		},
		{
			name:     "named workspace falls back to numeric id",
			ws:       Workspace{ID: "3", Name: "browser", Monitor: "DP-1"},
			wantSlot: 3,
		},
		{
			name:     "unnamed workspace uses numeric id",
			ws:       Workspace{ID: "4", Monitor: "DP-1"},
			wantSlot: 4,
		},
		{
			name:     "digits glued to a label are not a number",
			ws:       Workspace{ID: "container-9", Name: "10th", Monitor: "DP-1"},
			wantSlot: 0,
		},
		{
			name:     "no number anywhere",
			ws:       Workspace{ID: "container-9", Name: "scratch", Monitor: "DP-1"},
			wantSlot: 0,
		},
		{
			name:     "number outside the monitor's range",
			ws:       Workspace{ID: "container-9", Name: "12", Monitor: "DP-1"},
			wantSlot: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{
				Monitors:   []Monitor{{ID: "DP-1", Name: "DP-1", Focused: true}},
				Workspaces: []Workspace{tt.ws},
			}
			views := WorkspaceViews(snap, "DP-1", 0)
			require.Len(t, views, DefaultWorkspaceSlots)

			for _, v := range views {
				if v.Slot == tt.wantSlot {
					assert.Equal(t, tt.ws.ID, v.Workspace)
				} else {
					assert.Empty(t, v.Workspace, "slot %d", v.Slot)
				}
			}
		})
	}
}

func TestWorkspaceViewsUrgentFlag(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Monitors: []Monitor{{ID: "DP-1", Name: "DP-1", Focused: true, ActiveWorkspace: "1"}},
		Workspaces: []Workspace{
			{ID: "1", Name: "1", Monitor: "DP-1"},
			{ID: "2", Name: "2", Monitor: "DP-1", Urgent: true},
		},
	}
	views := WorkspaceViews(snap, "DP-1", 2)
	require.Len(t, views, 2)
	assert.Equal(t, StateActive, views[0].State)
	assert.Equal(t, StateUrgent, views[1].State, "workspace-level urgency needs no windows")
}

func TestWorkspaceViewsUnknownMonitor(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WorkspaceViews(pagerSnapshot(), "DP-9", 0))
}
