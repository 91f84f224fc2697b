package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestManager builds a manager on a throwaway config path. HOME is
// redirected because the manager prepares the default config directory even
// when an explicit path is given.
func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)
	return m, path
}

func TestNewManagerWritesDefaults(t *testing.T) {
	m, path := newTestManager(t)

	cfg := m.Get()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "auto", cfg.Backend)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Listen)
	assert.Equal(t, 16, cfg.SubscriberQueue)
	assert.Equal(t, 250, cfg.Reconnect.InitialMS)
	assert.Equal(t, 10000, cfg.Reconnect.MaxMS)

	// The default config lands on disk so users have a file to edit.
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.GetConfigPath())
	assert.Equal(t, filepath.Dir(path), m.GetConfigDir())
}

func TestNewManagerFillsPartialFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "log_level: debug\nbackend: sway\napi:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sway", cfg.Backend)
	assert.True(t, cfg.API.Enabled)

	// Required fields the file left out come back as defaults; optional
	// booleans stay at their zero value.
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Listen)
	assert.Equal(t, 16, cfg.SubscriberQueue)
	assert.Equal(t, 250, cfg.Reconnect.InitialMS)
	assert.Equal(t, 10000, cfg.Reconnect.MaxMS)
	assert.False(t, cfg.LogPretty)
}

func TestNewManagerRejectsMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [sway"), 0644))

	_, err := NewManager(path)
	require.Error(t, err)
}

func TestUpdateRoundtrips(t *testing.T) {
	m, path := newTestManager(t)

	want := &Config{
		LogLevel:  "debug",
		LogPretty: false,
		Backend:   "hyprland",
		API: APIConfig{
			Enabled: true,
			Listen:  "0.0.0.0:9000",
		},
		SubscriberQueue: 32,
		Reconnect: ReconnectConfig{
			InitialMS: 100,
			MaxMS:     5000,
		},
		Hyprland: HyprlandConfig{
			RequestSocket: "/run/hypr/sock1",
			EventSocket:   "/run/hypr/sock2",
		},
		Sway: SwayConfig{Socket: "/run/sway.sock"},
		Niri: NiriConfig{Socket: "/run/niri.sock"},
	}
	require.NoError(t, m.Update(want))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Get())
}

func TestSettersPersist(t *testing.T) {
	m, path := newTestManager(t)

	require.NoError(t, m.SetLogLevel("warn"))
	require.NoError(t, m.SetBackend("niri"))
	require.NoError(t, m.SetListen("127.0.0.1:1234"))

	cfg := m.Get()
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "niri", cfg.Backend)
	assert.Equal(t, "127.0.0.1:1234", cfg.API.Listen)

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded.Get())
}

func TestGetReturnsCopy(t *testing.T) {
	m, _ := newTestManager(t)

	cfg := m.Get()
	cfg.Backend = "mutated"
	assert.Equal(t, "auto", m.Get().Backend)
}
