package niri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmbridge/wmbridge/internal/wm"
)

const workspaceListing = `{"WorkspacesChanged":{"workspaces":[
	{"id":1,"idx":1,"name":"web","output":"DP-1","is_urgent":false,"is_active":true,"is_focused":true,"active_window_id":7},
	{"id":2,"idx":2,"name":null,"output":"DP-1","is_urgent":false,"is_active":false,"is_focused":false,"active_window_id":null},
	{"id":3,"idx":1,"name":null,"output":"HDMI-1","is_urgent":true,"is_active":true,"is_focused":false,"active_window_id":null},
	{"id":4,"idx":1,"name":null,"output":null,"is_urgent":false,"is_active":false,"is_focused":false,"active_window_id":null}
]}}`

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   []string // decoded first to feed the output index
		payload string
		want    []wm.Event
		wantErr bool
	}{
		{
			name:    "workspaces listing resets and replays activation",
			payload: workspaceListing,
			want: []wm.Event{
				wm.WorkspacesReset{Workspaces: []wm.Workspace{
					{ID: "1", Name: "web", Monitor: "DP-1", Persistent: true},
					{ID: "2", Name: "2", Monitor: "DP-1"},
					{ID: "3", Name: "1", Monitor: "HDMI-1", Urgent: true},
				}},
				wm.MonitorFocused{ID: "DP-1"},
				wm.WorkspaceActivated{Monitor: "DP-1", Workspace: "1"},
				wm.WorkspaceActivated{Monitor: "HDMI-1", Workspace: "3"},
			},
		},
		{
			name:    "workspace activated on a known output",
			setup:   []string{workspaceListing},
			payload: `{"WorkspaceActivated":{"id":2,"focused":false}}`,
			want:    []wm.Event{wm.WorkspaceActivated{Monitor: "DP-1", Workspace: "2"}},
		},
		{
			name:    "workspace activated with focus moves the monitor",
			setup:   []string{workspaceListing},
			payload: `{"WorkspaceActivated":{"id":3,"focused":true}}`,
			want: []wm.Event{
				wm.MonitorFocused{ID: "HDMI-1"},
				wm.WorkspaceActivated{Monitor: "HDMI-1", Workspace: "3"},
			},
		},
		{
			name:    "workspace activated before any listing",
			payload: `{"WorkspaceActivated":{"id":9,"focused":true}}`,
			want:    []wm.Event{wm.WorkspaceActivated{Workspace: "9"}},
		},
		{
			name:    "workspace urgency",
			payload: `{"WorkspaceUrgencyChanged":{"id":3,"urgent":true}}`,
			want:    []wm.Event{wm.WorkspaceUrgencyChanged{ID: "3", Urgent: true}},
		},
		{
			name: "windows listing drops unplaced windows",
			payload: `{"WindowsChanged":{"windows":[
				{"id":7,"title":"vim","app_id":"foot","pid":4242,"workspace_id":1,"is_focused":true,
				 "layout":{"tile_size":[960.0,1044.0],"window_size":[960,1044],"tile_pos_in_workspace_view":[0.0,36.0]}},
				{"id":8,"title":null,"app_id":"org.mozilla.firefox","pid":null,"workspace_id":1,"is_floating":true,
				 "layout":{"tile_size":[800.0,600.0],"window_size":[800,600],"tile_pos_in_workspace_view":null}},
				{"id":9,"title":"mover","app_id":"foot","pid":null,"workspace_id":null}
			]}}`,
			want: []wm.Event{wm.WindowsReset{Windows: []wm.Window{
				{
					ID: "7", Workspace: "1", Title: "vim", Class: "foot", PID: 4242,
					Geometry: wm.Rect{Y: 36, Width: 960, Height: 1044}, Focused: true,
				},
				{ID: "8", Workspace: "1", Class: "org.mozilla.firefox", Floating: true},
			}}},
		},
		{
			name: "window opened",
			payload: `{"WindowOpenedOrChanged":{"window":
				{"id":7,"title":"vim","app_id":"foot","pid":4242,"workspace_id":1,"is_focused":true,
				 "layout":{"tile_size":[960.0,1044.0],"window_size":[960,1044],"tile_pos_in_workspace_view":[0.0,36.0]}}}}`,
			want: []wm.Event{wm.WindowCreated{Window: wm.Window{
				ID: "7", Workspace: "1", Title: "vim", Class: "foot", PID: 4242,
				Geometry: wm.Rect{Y: 36, Width: 960, Height: 1044}, Focused: true,
			}}},
		},
		{
			name:    "window mid-move leaves the model",
			payload: `{"WindowOpenedOrChanged":{"window":{"id":9,"title":"mover","app_id":"foot","workspace_id":null}}}`,
			want:    []wm.Event{wm.WindowDestroyed{ID: "9"}},
		},
		{
			name:    "window closed",
			payload: `{"WindowClosed":{"id":7}}`,
			want:    []wm.Event{wm.WindowDestroyed{ID: "7"}},
		},
		{
			name:    "window focused",
			payload: `{"WindowFocusChanged":{"id":7}}`,
			want:    []wm.Event{wm.WindowFocused{ID: "7"}},
		},
		{
			name:    "focus cleared",
			payload: `{"WindowFocusChanged":{"id":null}}`,
			want:    []wm.Event{wm.WindowFocused{}},
		},
		{
			name:    "window urgency",
			payload: `{"WindowUrgencyChanged":{"id":7,"urgent":true}}`,
			want:    []wm.Event{wm.WindowFlagChanged{ID: "7", Flag: wm.FlagUrgent, Value: true}},
		},
		{
			name:    "unknown variant is skipped",
			payload: `{"ConfigLoaded":{"failed":false}}`,
		},
		{
			name:    "malformed envelope",
			payload: `{"WindowClosed":`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			payload: `{"WindowClosed":{"id":"seven"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCodec()
			for _, payload := range tt.setup {
				_, err := c.DecodeEvent([]byte(payload))
				require.NoError(t, err)
			}

			got, err := c.DecodeEvent([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  wm.Command
		want string
	}{
		{
			name: "focus window",
			cmd:  wm.Command{Op: wm.OpFocusWindow, Window: "7"},
			want: `{"Action":{"FocusWindow":{"id":7}}}`,
		},
		{
			name: "close window",
			cmd:  wm.Command{Op: wm.OpCloseWindow, Window: "7"},
			want: `{"Action":{"CloseWindow":{"id":7}}}`,
		},
		{
			name: "move window to workspace",
			cmd:  wm.Command{Op: wm.OpMoveWindowToWorkspace, Window: "7", Workspace: "3"},
			want: `{"Action":{"MoveWindowToWorkspace":{"window_id":7,"reference":{"Id":3},"focus":false}}}`,
		},
		{
			name: "toggle floating",
			cmd:  wm.Command{Op: wm.OpToggleFloating, Window: "7"},
			want: `{"Action":{"ToggleWindowFloating":{"id":7}}}`,
		},
		{
			name: "toggle fullscreen",
			cmd:  wm.Command{Op: wm.OpToggleFullscreen, Window: "7"},
			want: `{"Action":{"FullscreenWindow":{"id":7}}}`,
		},
		{
			name: "switch active workspace",
			cmd:  wm.Command{Op: wm.OpSwitchActiveWorkspace, Workspace: "3"},
			want: `{"Action":{"FocusWorkspace":{"reference":{"Id":3}}}}`,
		},
	}

	c := newCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.EncodeCommand(tt.cmd)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	t.Run("pinning is not supported", func(t *testing.T) {
		_, err := c.EncodeCommand(wm.Command{Op: wm.OpTogglePin, Window: "7"})
		assert.ErrorIs(t, err, wm.ErrNotSupported)
	})

	t.Run("non-numeric window id", func(t *testing.T) {
		_, err := c.EncodeCommand(wm.Command{Op: wm.OpFocusWindow, Window: "0xdead"})
		assert.Error(t, err)
	})
}
