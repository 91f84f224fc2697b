package backend

import (
	"errors"
	"os"
	"strings"
)

// Kind names a supported compositor backend.
type Kind string

const (
	KindHyprland Kind = "hyprland"
	KindSway     Kind = "sway"
	KindNiri     Kind = "niri"
)

// ErrNoCompositor is returned when no supported compositor is detectable
// from the environment.
var ErrNoCompositor = errors.New("no supported compositor detected")

// Kinds lists the supported backends in detection order.
func Kinds() []Kind {
	return []Kind{KindHyprland, KindSway, KindNiri}
}

// ParseKind validates a backend name from configuration.
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case KindHyprland:
		return KindHyprland, nil
	case KindSway:
		return KindSway, nil
	case KindNiri:
		return KindNiri, nil
	}
	return "", errors.New("unknown backend " + name)
}

// Detect probes the session environment for a running compositor.
// XDG_CURRENT_DESKTOP wins when it names a supported compositor; otherwise
// the compositor-specific socket variables are checked in a fixed order so
// repeated probes in the same session agree.
func Detect(getenv func(string) string) (Kind, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	desktop := strings.ToLower(getenv("XDG_CURRENT_DESKTOP"))
	switch {
	case strings.Contains(desktop, "hyprland"):
		return KindHyprland, nil
	case strings.Contains(desktop, "sway"):
		return KindSway, nil
	case strings.Contains(desktop, "niri"):
		return KindNiri, nil
	}

	if getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return KindHyprland, nil
	}
	if getenv("SWAYSOCK") != "" {
		return KindSway, nil
	}
	if getenv("NIRI_SOCKET") != "" {
		return KindNiri, nil
	}
	return "", ErrNoCompositor
}
