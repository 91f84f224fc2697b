package sway

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wmbridge/wmbridge/internal/ipc"
	"github.com/wmbridge/wmbridge/internal/wm"
)

func TestDecodeWorkspaceEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		payload     string
		want        []wm.Event
		wantRefresh refresh
		wantErr     bool
	}{
		{
			name:    "init",
			payload: `{"change":"init","current":{"id":10,"type":"workspace","name":"3","num":3,"output":"DP-1"}}`,
			want: []wm.Event{wm.WorkspaceCreated{Workspace: wm.Workspace{
				ID: "10", Name: "3", Monitor: "DP-1",
			}}},
		},
		{
			name:    "empty",
			payload: `{"change":"empty","current":{"id":10,"type":"workspace","name":"3"}}`,
			want:    []wm.Event{wm.WorkspaceDestroyed{ID: "10"}},
		},
		{
			name:    "focus",
			payload: `{"change":"focus","current":{"id":10,"type":"workspace","name":"3","output":"DP-1"},"old":{"id":4,"type":"workspace","name":"1"}}`,
			want: []wm.Event{
				wm.MonitorFocused{ID: "DP-1"},
				wm.WorkspaceActivated{Monitor: "DP-1", Workspace: "10"},
				wm.WindowFocused{},
			},
		},
		{
			name:    "focus without output",
			payload: `{"change":"focus","current":{"id":10,"type":"workspace","name":"3"}}`,
			want: []wm.Event{
				wm.WorkspaceActivated{Workspace: "10"},
				wm.WindowFocused{},
			},
		},
		{
			name:    "move",
			payload: `{"change":"move","current":{"id":10,"type":"workspace","name":"3","output":"HDMI-1"}}`,
			want:    []wm.Event{wm.WorkspaceMoved{ID: "10", Monitor: "HDMI-1"}},
		},
		{
			name:    "rename",
			payload: `{"change":"rename","current":{"id":10,"type":"workspace","name":"3: mail"}}`,
			want:    []wm.Event{wm.WorkspaceRenamed{ID: "10", Name: "3: mail"}},
		},
		{
			name:    "urgent",
			payload: `{"change":"urgent","current":{"id":10,"type":"workspace","name":"3","urgent":true}}`,
			want:    []wm.Event{wm.WorkspaceUrgencyChanged{ID: "10", Urgent: true}},
		},
		{
			name:    "reload is skipped",
			payload: `{"change":"reload"}`,
		},
		{
			name:    "unknown change is skipped",
			payload: `{"change":"restored","current":{"id":10,"type":"workspace","name":"3"}}`,
		},
		{
			name:    "missing current container",
			payload: `{"change":"focus"}`,
			wantErr: true,
		},
		{
			name:    "malformed payload",
			payload: `{"change":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCodec()
			msg := ipc.Message{Type: eventWorkspace, Payload: []byte(tt.payload)}
			got, ref, err := c.DecodeEvent(msg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeEvent = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("events = %#v\nwant %#v", got, tt.want)
			}
			if ref != tt.wantRefresh {
				t.Errorf("refresh = %d, want %d", ref, tt.wantRefresh)
			}
		})
	}
}

func TestDecodeWindowEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		payload     string
		want        []wm.Event
		wantRefresh refresh
	}{
		{
			name:        "new needs a tree refresh",
			payload:     `{"change":"new","container":{"id":6,"type":"con","name":"vim"}}`,
			wantRefresh: refreshTree,
		},
		{
			name:        "move needs a tree refresh",
			payload:     `{"change":"move","container":{"id":6,"type":"con","name":"vim"}}`,
			wantRefresh: refreshTree,
		},
		{
			name:    "close",
			payload: `{"change":"close","container":{"id":6,"type":"con","name":"vim"}}`,
			want:    []wm.Event{wm.WindowDestroyed{ID: "6"}},
		},
		{
			name:    "focus",
			payload: `{"change":"focus","container":{"id":6,"type":"con","name":"vim"}}`,
			want:    []wm.Event{wm.WindowFocused{ID: "6"}},
		},
		{
			name:    "title",
			payload: `{"change":"title","container":{"id":6,"type":"con","name":"vim - notes"}}`,
			want:    []wm.Event{wm.WindowTitleChanged{ID: "6", Title: "vim - notes"}},
		},
		{
			name:    "fullscreen on",
			payload: `{"change":"fullscreen_mode","container":{"id":6,"type":"con","fullscreen_mode":1}}`,
			want:    []wm.Event{wm.WindowFlagChanged{ID: "6", Flag: wm.FlagFullscreen, Value: true}},
		},
		{
			name:    "fullscreen off",
			payload: `{"change":"fullscreen_mode","container":{"id":6,"type":"con","fullscreen_mode":0}}`,
			want:    []wm.Event{wm.WindowFlagChanged{ID: "6", Flag: wm.FlagFullscreen, Value: false}},
		},
		{
			name:    "floating out",
			payload: `{"change":"floating","container":{"id":6,"type":"floating_con"}}`,
			want:    []wm.Event{wm.WindowFlagChanged{ID: "6", Flag: wm.FlagFloating, Value: true}},
		},
		{
			name:    "floating back to tiled",
			payload: `{"change":"floating","container":{"id":6,"type":"con"}}`,
			want:    []wm.Event{wm.WindowFlagChanged{ID: "6", Flag: wm.FlagFloating, Value: false}},
		},
		{
			name:    "urgent",
			payload: `{"change":"urgent","container":{"id":6,"type":"con","urgent":true}}`,
			want:    []wm.Event{wm.WindowFlagChanged{ID: "6", Flag: wm.FlagUrgent, Value: true}},
		},
		{
			name:    "unknown change is skipped",
			payload: `{"change":"mark","container":{"id":6,"type":"con"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCodec()
			msg := ipc.Message{Type: eventWindow, Payload: []byte(tt.payload)}
			got, ref, err := c.DecodeEvent(msg)
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("events = %#v\nwant %#v", got, tt.want)
			}
			if ref != tt.wantRefresh {
				t.Errorf("refresh = %d, want %d", ref, tt.wantRefresh)
			}
		})
	}
}

func TestDecodeEventRouting(t *testing.T) {
	t.Parallel()

	c := newCodec()

	events, ref, err := c.DecodeEvent(ipc.Message{Type: eventOutput, Payload: []byte(`{"change":"unspecified"}`)})
	if err != nil || events != nil || ref != refreshOutputs {
		t.Errorf("output event = (%v, %d, %v), want output refresh", events, ref, err)
	}

	// Event types the subscription never asked for decode to nothing.
	events, ref, err = c.DecodeEvent(ipc.Message{Type: eventFlag | 2, Payload: []byte(`{"change":"default"}`)})
	if err != nil || events != nil || ref != refreshNone {
		t.Errorf("mode event = (%v, %d, %v), want nothing", events, ref, err)
	}
}

func TestEncodeCommand(t *testing.T) {
	t.Parallel()

	c := newCodec()
	seed := ipc.Message{
		Type:    eventWorkspace,
		Payload: []byte(`{"change":"init","current":{"id":10,"type":"workspace","name":"3: mail","output":"DP-1"}}`),
	}
	if _, _, err := c.DecodeEvent(seed); err != nil {
		t.Fatalf("seed workspace: %v", err)
	}

	tests := []struct {
		name string
		cmd  wm.Command
		want string
	}{
		{
			name: "focus window",
			cmd:  wm.Command{Op: wm.OpFocusWindow, Window: "6"},
			want: "[con_id=6] focus",
		},
		{
			name: "close window",
			cmd:  wm.Command{Op: wm.OpCloseWindow, Window: "6"},
			want: "[con_id=6] kill",
		},
		{
			name: "move window resolves the workspace name",
			cmd:  wm.Command{Op: wm.OpMoveWindowToWorkspace, Window: "6", Workspace: "10"},
			want: "[con_id=6] move container to workspace 3: mail",
		},
		{
			name: "toggle floating",
			cmd:  wm.Command{Op: wm.OpToggleFloating, Window: "6"},
			want: "[con_id=6] floating toggle",
		},
		{
			name: "toggle fullscreen",
			cmd:  wm.Command{Op: wm.OpToggleFullscreen, Window: "6"},
			want: "[con_id=6] fullscreen toggle",
		},
		{
			name: "toggle pin maps to sticky",
			cmd:  wm.Command{Op: wm.OpTogglePin, Window: "6"},
			want: "[con_id=6] sticky toggle",
		},
		{
			name: "switch active workspace",
			cmd:  wm.Command{Op: wm.OpSwitchActiveWorkspace, Workspace: "10"},
			want: "workspace 3: mail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.EncodeCommand(tt.cmd)
			if err != nil {
				t.Fatalf("EncodeCommand: %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeCommand = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := c.EncodeCommand(wm.Command{Op: wm.OpSwitchActiveWorkspace, Workspace: "77"}); err == nil {
		t.Error("switch to unknown workspace encoded, want error")
	}
	if _, err := c.EncodeCommand(wm.Command{Op: "minimize_window", Window: "6"}); !errors.Is(err, wm.ErrNotSupported) {
		t.Errorf("unknown op error = %v, want %v", err, wm.ErrNotSupported)
	}
}

// The name index must track renames and forget destroyed workspaces, or
// workspace commands would address names the compositor no longer knows.
func TestEncodeCommandTracksWorkspaceLifecycle(t *testing.T) {
	t.Parallel()

	c := newCodec()
	decode := func(payload string) {
		t.Helper()
		msg := ipc.Message{Type: eventWorkspace, Payload: []byte(payload)}
		if _, _, err := c.DecodeEvent(msg); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
	}

	decode(`{"change":"init","current":{"id":10,"type":"workspace","name":"3"}}`)
	decode(`{"change":"rename","current":{"id":10,"type":"workspace","name":"3: web"}}`)

	got, err := c.EncodeCommand(wm.Command{Op: wm.OpSwitchActiveWorkspace, Workspace: "10"})
	if err != nil {
		t.Fatalf("EncodeCommand after rename: %v", err)
	}
	if want := "workspace 3: web"; got != want {
		t.Errorf("EncodeCommand = %q, want %q", got, want)
	}

	decode(`{"change":"empty","current":{"id":10,"type":"workspace","name":"3: web"}}`)
	if _, err := c.EncodeCommand(wm.Command{Op: wm.OpSwitchActiveWorkspace, Workspace: "10"}); err == nil {
		t.Error("switch to destroyed workspace encoded, want error")
	}
}

func TestCollectWindows(t *testing.T) {
	t.Parallel()

	appID := func(s string) *string { return &s }
	root := treeNode{
		Type: "root",
		Nodes: []treeNode{
			{
				Type: "output", Name: scratchOutput,
				Nodes: []treeNode{{
					Type: "workspace", Name: scratchWorkspace, ID: 99,
					FloatingNodes: []treeNode{
						{Type: "floating_con", ID: 50, Name: "dropdown", AppID: appID("dropdown")},
					},
				}},
			},
			{
				Type: "output", Name: "DP-1",
				Nodes: []treeNode{{
					Type: "workspace", Name: "1", ID: 4,
					Nodes: []treeNode{
						{
							Type: "con", ID: 5, Name: "split",
							Nodes: []treeNode{
								{
									Type: "con", ID: 6, Name: "vim",
									AppID: appID("foot"), PID: 4242, Focused: true,
									Rect: rect{X: 0, Y: 0, Width: 960, Height: 1080},
								},
								{
									Type: "con", ID: 7, Name: "Mozilla Firefox",
									WindowProps: &windowProperties{Class: "firefox", Instance: "Navigator"},
									Rect:        rect{X: 960, Y: 0, Width: 960, Height: 1080},
								},
							},
						},
						// A bare layout container is not a window.
						{Type: "con", ID: 9},
					},
					FloatingNodes: []treeNode{
						{
							Type: "floating_con", ID: 8, Name: "Calculator",
							AppID: appID("org.gnome.Calculator"), Sticky: true,
						},
					},
				}},
			},
		},
	}

	got := collectWindows(root)
	want := []wm.Window{
		{
			ID: "6", Workspace: "4", Title: "vim", Class: "foot", PID: 4242,
			Geometry: wm.Rect{Width: 960, Height: 1080}, Focused: true,
		},
		{
			ID: "7", Workspace: "4", Title: "Mozilla Firefox",
			Class: "firefox", InitialClass: "Navigator",
			Geometry: wm.Rect{X: 960, Width: 960, Height: 1080},
		},
		{
			ID: "8", Workspace: "4", Title: "Calculator", Class: "org.gnome.Calculator",
			Floating: true, Pinned: true,
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("collectWindows = %#v\nwant %#v", got, want)
	}
}
