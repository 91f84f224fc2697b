package backend

import (
	"errors"
	"testing"
)

func envFunc(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want Kind
		err  error
	}{
		{
			name: "hyprland via desktop",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "Hyprland"},
			want: KindHyprland,
		},
		{
			name: "sway via desktop",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "sway"},
			want: KindSway,
		},
		{
			name: "niri via desktop",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "niri"},
			want: KindNiri,
		},
		{
			name: "hyprland via instance signature",
			env:  map[string]string{"HYPRLAND_INSTANCE_SIGNATURE": "abc123"},
			want: KindHyprland,
		},
		{
			name: "sway via socket",
			env:  map[string]string{"SWAYSOCK": "/run/user/1000/sway-ipc.sock"},
			want: KindSway,
		},
		{
			name: "niri via socket",
			env:  map[string]string{"NIRI_SOCKET": "/run/user/1000/niri.sock"},
			want: KindNiri,
		},
		{
			name: "desktop wins over sockets",
			env: map[string]string{
				"XDG_CURRENT_DESKTOP": "niri",
				"SWAYSOCK":            "/run/user/1000/sway-ipc.sock",
			},
			want: KindNiri,
		},
		{
			name: "socket order is fixed",
			env: map[string]string{
				"SWAYSOCK":    "/run/user/1000/sway-ipc.sock",
				"NIRI_SOCKET": "/run/user/1000/niri.sock",
			},
			want: KindSway,
		},
		{
			name: "unrelated desktop falls through",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "GNOME"},
			err:  ErrNoCompositor,
		},
		{
			name: "nothing set",
			env:  map[string]string{},
			err:  ErrNoCompositor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(envFunc(tt.env))
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Detect() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"hyprland", KindHyprland, true},
		{"Sway", KindSway, true},
		{" niri ", KindNiri, true},
		{"", "", false},
		{"kwin", "", false},
	} {
		got, err := ParseKind(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseKind(%q) = %v, want error", tt.in, got)
		}
	}
}
