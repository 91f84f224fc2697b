package sway

import (
	"strconv"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// i3-ipc message types.
const (
	msgRunCommand    uint32 = 0
	msgGetWorkspaces uint32 = 1
	msgSubscribe     uint32 = 2
	msgGetOutputs    uint32 = 3
	msgGetTree       uint32 = 4
)

// Events share the request type space with the high bit set.
const (
	eventFlag      uint32 = 0x80000000
	eventWorkspace        = eventFlag | 0
	eventOutput           = eventFlag | 1
	eventWindow           = eventFlag | 3
)

// Containers reserved for the scratchpad; windows parked there are hidden
// and stay out of the model until shown again.
const (
	scratchOutput    = "__i3"
	scratchWorkspace = "__i3_scratch"
)

type rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r rect) toRect() wm.Rect {
	return wm.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

type outputInfo struct {
	Name             string  `json:"name"`
	Active           bool    `json:"active"`
	Focused          bool    `json:"focused"`
	Scale            float64 `json:"scale"`
	Rect             rect    `json:"rect"`
	CurrentWorkspace string  `json:"current_workspace"`
}

type workspaceInfo struct {
	ID      int64  `json:"id"`
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Focused bool   `json:"focused"`
	Urgent  bool   `json:"urgent"`
	Output  string `json:"output"`
	Rect    rect   `json:"rect"`
}

// treeNode is the shape shared by layout tree nodes and the container
// payloads carried on events.
type treeNode struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	Num            int               `json:"num"`
	Output         string            `json:"output"`
	Urgent         bool              `json:"urgent"`
	Focused        bool              `json:"focused"`
	Sticky         bool              `json:"sticky"`
	FullscreenMode int               `json:"fullscreen_mode"`
	Rect           rect              `json:"rect"`
	AppID          *string           `json:"app_id"`
	PID            int               `json:"pid"`
	WindowProps    *windowProperties `json:"window_properties"`
	Nodes          []treeNode        `json:"nodes"`
	FloatingNodes  []treeNode        `json:"floating_nodes"`
}

// windowProperties is present on Xwayland windows only.
type windowProperties struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
	Title    string `json:"title"`
}

type commandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type workspaceEvent struct {
	Change  string    `json:"change"`
	Current *treeNode `json:"current"`
	Old     *treeNode `json:"old"`
}

type windowEvent struct {
	Change    string   `json:"change"`
	Container treeNode `json:"container"`
}

func monitorID(name string) wm.MonitorID {
	return wm.MonitorID(name)
}

// Workspaces and windows are identified by container id, which is stable
// across renames and moves.
func workspaceID(id int64) wm.WorkspaceID {
	return wm.WorkspaceID(strconv.FormatInt(id, 10))
}

func windowID(id int64) wm.WindowID {
	return wm.WindowID(strconv.FormatInt(id, 10))
}

func (n treeNode) toWorkspace() wm.Workspace {
	return wm.Workspace{
		ID:      workspaceID(n.ID),
		Name:    n.Name,
		Monitor: monitorID(n.Output),
		Urgent:  n.Urgent,
	}
}

// isWindow reports whether a leaf container holds an application surface.
func (n treeNode) isWindow() bool {
	if len(n.Nodes) > 0 {
		return false
	}
	if n.Type != "con" && n.Type != "floating_con" {
		return false
	}
	return n.AppID != nil || n.WindowProps != nil
}

func (n treeNode) toWindow(ws wm.WorkspaceID) wm.Window {
	win := wm.Window{
		ID:         windowID(n.ID),
		Workspace:  ws,
		Title:      n.Name,
		PID:        n.PID,
		Geometry:   n.Rect.toRect(),
		Floating:   n.Type == "floating_con",
		Fullscreen: n.FullscreenMode > 0,
		Pinned:     n.Sticky,
		Urgent:     n.Urgent,
		Focused:    n.Focused,
	}
	switch {
	case n.AppID != nil && *n.AppID != "":
		win.Class = *n.AppID
	case n.WindowProps != nil:
		win.Class = n.WindowProps.Class
		win.InitialClass = n.WindowProps.Instance
	}
	return win
}

// collectWindows walks the layout tree and flattens application windows,
// skipping the scratchpad.
func collectWindows(root treeNode) []wm.Window {
	var out []wm.Window
	walkNode(root, "", &out)
	return out
}

func walkNode(n treeNode, ws wm.WorkspaceID, out *[]wm.Window) {
	switch n.Type {
	case "output":
		if n.Name == scratchOutput {
			return
		}
	case "workspace":
		if n.Name == scratchWorkspace {
			return
		}
		ws = workspaceID(n.ID)
	case "con", "floating_con":
		if ws != "" && n.isWindow() {
			*out = append(*out, n.toWindow(ws))
		}
	}
	for _, child := range n.Nodes {
		walkNode(child, ws, out)
	}
	for _, child := range n.FloatingNodes {
		walkNode(child, ws, out)
	}
}
