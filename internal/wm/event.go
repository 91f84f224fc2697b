package wm

// Event is a normalized compositor event. The set of variants is the
// vocabulary shared by every backend; nothing above the codec layer ever
// sees backend wire formats.
type Event interface {
	// Kind names the event variant for logging.
	Kind() string

	isEvent()
}

// WindowFlag names a boolean window attribute carried by flag-change events.
type WindowFlag string

const (
	FlagFloating   WindowFlag = "floating"
	FlagFullscreen WindowFlag = "fullscreen"
	FlagPinned     WindowFlag = "pinned"
	FlagUrgent     WindowFlag = "urgent"
)

// WorkspaceCreated reports a new workspace. An empty Monitor on the embedded
// workspace means the currently focused monitor.
type WorkspaceCreated struct {
	Workspace Workspace
}

// WorkspaceDestroyed reports a workspace removal. Windows still assigned to
// it are removed with it.
type WorkspaceDestroyed struct {
	ID WorkspaceID
}

// WorkspaceActivated reports that a workspace became the visible one on a
// monitor. An empty Monitor means the currently focused monitor.
type WorkspaceActivated struct {
	Monitor   MonitorID
	Workspace WorkspaceID
}

// WorkspaceMoved reports a workspace reassigned to another monitor.
type WorkspaceMoved struct {
	ID      WorkspaceID
	Monitor MonitorID
}

// WorkspaceRenamed reports a workspace display-name change. Identity is
// unchanged.
type WorkspaceRenamed struct {
	ID   WorkspaceID
	Name string
}

// WorkspaceUrgencyChanged reports a workspace-level attention request.
type WorkspaceUrgencyChanged struct {
	ID     WorkspaceID
	Urgent bool
}

// WindowCreated reports a newly mapped window. The embedded window must name
// an existing workspace.
type WindowCreated struct {
	Window Window
}

// WindowDestroyed reports a window removal.
type WindowDestroyed struct {
	ID WindowID
}

// WindowMoved reports a window reassigned to another workspace.
type WindowMoved struct {
	ID        WindowID
	Workspace WorkspaceID
}

// WindowFocused reports the focused window. An empty ID clears focus.
type WindowFocused struct {
	ID WindowID
}

// WindowTitleChanged reports a window title update.
type WindowTitleChanged struct {
	ID    WindowID
	Title string
}

// WindowFlagChanged reports a boolean window attribute flip. An empty ID
// means the currently focused window (some compositors omit the window on
// fullscreen events).
type WindowFlagChanged struct {
	ID    WindowID
	Flag  WindowFlag
	Value bool
}

// MonitorAdded reports a hotplugged output. The embedded monitor may carry
// partial data; the session layer follows hotplug with a full resync.
type MonitorAdded struct {
	Monitor Monitor
}

// MonitorRemoved reports an unplugged output. Workspaces assigned to it are
// expected to be reassigned by subsequent events or the follow-up resync.
type MonitorRemoved struct {
	ID MonitorID
}

// MonitorFocused reports which monitor holds the input focus.
type MonitorFocused struct {
	ID MonitorID
}

// MonitorsReset replaces the whole monitor section of the model. Emitted by
// backends whose event stream reports full output listings instead of
// per-entity changes.
type MonitorsReset struct {
	Monitors []Monitor
}

// WorkspacesReset replaces the whole workspace section of the model. Emitted
// by backends whose event stream reports full workspace listings instead of
// per-entity changes.
type WorkspacesReset struct {
	Workspaces []Workspace
}

// WindowsReset replaces the whole window section of the model.
type WindowsReset struct {
	Windows []Window
}

// FullStateSnapshot replaces the entire model, as after a resync fetch.
type FullStateSnapshot struct {
	Snapshot Snapshot
}

func (WorkspaceCreated) Kind() string        { return "workspace_created" }
func (WorkspaceDestroyed) Kind() string      { return "workspace_destroyed" }
func (WorkspaceActivated) Kind() string      { return "workspace_activated" }
func (WorkspaceMoved) Kind() string          { return "workspace_moved" }
func (WorkspaceRenamed) Kind() string        { return "workspace_renamed" }
func (WorkspaceUrgencyChanged) Kind() string { return "workspace_urgency_changed" }
func (WindowCreated) Kind() string           { return "window_created" }
func (WindowDestroyed) Kind() string         { return "window_destroyed" }
func (WindowMoved) Kind() string             { return "window_moved" }
func (WindowFocused) Kind() string           { return "window_focused" }
func (WindowTitleChanged) Kind() string      { return "window_title_changed" }
func (WindowFlagChanged) Kind() string       { return "window_flag_changed" }
func (MonitorAdded) Kind() string            { return "monitor_added" }
func (MonitorRemoved) Kind() string          { return "monitor_removed" }
func (MonitorFocused) Kind() string          { return "monitor_focused" }
func (MonitorsReset) Kind() string           { return "monitors_reset" }
func (WorkspacesReset) Kind() string         { return "workspaces_reset" }
func (WindowsReset) Kind() string            { return "windows_reset" }
func (FullStateSnapshot) Kind() string       { return "full_state_snapshot" }

func (WorkspaceCreated) isEvent()        {}
func (WorkspaceDestroyed) isEvent()      {}
func (WorkspaceActivated) isEvent()      {}
func (WorkspaceMoved) isEvent()          {}
func (WorkspaceRenamed) isEvent()        {}
func (WorkspaceUrgencyChanged) isEvent() {}
func (WindowCreated) isEvent()           {}
func (WindowDestroyed) isEvent()         {}
func (WindowMoved) isEvent()             {}
func (WindowFocused) isEvent()           {}
func (WindowTitleChanged) isEvent()      {}
func (WindowFlagChanged) isEvent()       {}
func (MonitorAdded) isEvent()            {}
func (MonitorRemoved) isEvent()          {}
func (MonitorFocused) isEvent()          {}
func (MonitorsReset) isEvent()           {}
func (WorkspacesReset) isEvent()         {}
func (WindowsReset) isEvent()            {}
func (FullStateSnapshot) isEvent()       {}
