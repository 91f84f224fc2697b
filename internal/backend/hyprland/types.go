package hyprland

import (
	"strconv"
	"strings"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// Wire structs mirror the JSON that hyprctl-style j/ requests return. Field
// order follows the compositor output.

type workspaceRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type monitorInfo struct {
	ID              int          `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	RefreshRate     float64      `json:"refreshRate"`
	X               int          `json:"x"`
	Y               int          `json:"y"`
	ActiveWorkspace workspaceRef `json:"activeWorkspace"`
	Scale           float64      `json:"scale"`
	Focused         bool         `json:"focused"`
	Disabled        bool         `json:"disabled"`
}

type workspaceInfo struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Monitor         string `json:"monitor"`
	MonitorID       int    `json:"monitorID"`
	Windows         int    `json:"windows"`
	HasFullscreen   bool   `json:"hasfullscreen"`
	LastWindow      string `json:"lastwindow"`
	LastWindowTitle string `json:"lastwindowtitle"`
	IsPersistent    bool   `json:"ispersistent"`
}

type clientInfo struct {
	Address      string       `json:"address"`
	Mapped       bool         `json:"mapped"`
	Hidden       bool         `json:"hidden"`
	At           []int        `json:"at"`
	Size         []int        `json:"size"`
	Workspace    workspaceRef `json:"workspace"`
	Floating     bool         `json:"floating"`
	Monitor      int          `json:"monitor"`
	Class        string       `json:"class"`
	Title        string       `json:"title"`
	InitialClass string       `json:"initialClass"`
	InitialTitle string       `json:"initialTitle"`
	PID          int          `json:"pid"`
	Xwayland     bool         `json:"xwayland"`
	Pinned       bool         `json:"pinned"`
	Fullscreen   bool         `json:"fullscreen"`
	Urgent       bool         `json:"urgent"`
}

// monitorID uses the output name; it is stable across reconnects, unlike the
// numeric id which gets reassigned on hotplug.
func monitorID(name string) wm.MonitorID {
	return wm.MonitorID(name)
}

func workspaceID(id int) wm.WorkspaceID {
	return wm.WorkspaceID(strconv.Itoa(id))
}

// windowID normalizes the address forms the compositor uses: listings carry
// a 0x prefix, event payloads do not.
func windowID(address string) wm.WindowID {
	if address == "" {
		return ""
	}
	addr := strings.ToLower(address)
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return wm.WindowID(addr)
}

func (m monitorInfo) toMonitor() wm.Monitor {
	return wm.Monitor{
		ID:   monitorID(m.Name),
		Name: m.Name,
		Geometry: wm.Rect{
			X:      m.X,
			Y:      m.Y,
			Width:  m.Width,
			Height: m.Height,
		},
		Scale:           m.Scale,
		Focused:         m.Focused,
		ActiveWorkspace: workspaceID(m.ActiveWorkspace.ID),
	}
}

func (w workspaceInfo) toWorkspace() wm.Workspace {
	return wm.Workspace{
		ID:         workspaceID(w.ID),
		Name:       w.Name,
		Monitor:    monitorID(w.Monitor),
		Special:    w.ID < 0 || strings.HasPrefix(w.Name, "special"),
		Persistent: w.IsPersistent,
	}
}

func (c clientInfo) toWindow(focusedAddr wm.WindowID) wm.Window {
	win := wm.Window{
		ID:           windowID(c.Address),
		Workspace:    workspaceID(c.Workspace.ID),
		Title:        c.Title,
		Class:        c.Class,
		InitialClass: c.InitialClass,
		PID:          c.PID,
		Floating:     c.Floating,
		Fullscreen:   c.Fullscreen,
		Pinned:       c.Pinned,
		Urgent:       c.Urgent,
	}
	if len(c.At) == 2 && len(c.Size) == 2 {
		win.Geometry = wm.Rect{X: c.At[0], Y: c.At[1], Width: c.Size[0], Height: c.Size[1]}
	}
	win.Focused = win.ID != "" && win.ID == focusedAddr
	return win
}
