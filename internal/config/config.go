package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wmbridge/wmbridge/internal/logger"
)

// Config is the on-disk daemon configuration.
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogPretty bool   `json:"log_pretty" yaml:"log_pretty"`

	// Backend picks the compositor backend explicitly; "auto" probes the
	// session environment.
	Backend string `json:"backend" yaml:"backend"`

	API APIConfig `json:"api" yaml:"api"`

	// SubscriberQueue is the per-subscriber delta buffer length. A consumer
	// that falls further behind receives coalesced net deltas.
	SubscriberQueue int `json:"subscriber_queue" yaml:"subscriber_queue"`

	Reconnect ReconnectConfig `json:"reconnect" yaml:"reconnect"`

	// Per-compositor socket overrides. Empty fields fall back to the
	// environment (HYPRLAND_INSTANCE_SIGNATURE, SWAYSOCK, NIRI_SOCKET).
	Hyprland HyprlandConfig `json:"hyprland" yaml:"hyprland"`
	Sway     SwayConfig     `json:"sway" yaml:"sway"`
	Niri     NiriConfig     `json:"niri" yaml:"niri"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Listen  string `json:"listen" yaml:"listen"`
}

// ReconnectConfig tunes the backoff between compositor reconnect attempts.
type ReconnectConfig struct {
	InitialMS int `json:"initial_ms" yaml:"initial_ms"`
	MaxMS     int `json:"max_ms" yaml:"max_ms"`
}

// HyprlandConfig overrides Hyprland socket discovery.
type HyprlandConfig struct {
	RequestSocket string `json:"request_socket" yaml:"request_socket"`
	EventSocket   string `json:"event_socket" yaml:"event_socket"`
}

// SwayConfig overrides Sway socket discovery.
type SwayConfig struct {
	Socket string `json:"socket" yaml:"socket"`
}

// NiriConfig overrides Niri socket discovery.
type NiriConfig struct {
	Socket string `json:"socket" yaml:"socket"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "wmbridge")
	defaultConfigPath := filepath.Join(configDir, "config.yaml")

	actualConfigPath := defaultConfigPath
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = m.getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("backend", m.config.Backend).
		Msg("Config loaded")

	return m, nil
}

// getDefaults returns default configuration
func (m *Manager) getDefaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogPretty: true,
		Backend:   "auto",
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8080",
		},
		SubscriberQueue: 16,
		Reconnect: ReconnectConfig{
			InitialMS: 250,
			MaxMS:     10000,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// A partial file keeps working: fill the fields the daemon cannot run
	// without.
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Backend == "" {
		cfg.Backend = "auto"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:8080"
	}
	if cfg.SubscriberQueue <= 0 {
		cfg.SubscriberQueue = 16
	}
	if cfg.Reconnect.InitialMS <= 0 {
		cfg.Reconnect.InitialMS = 250
	}
	if cfg.Reconnect.MaxMS <= 0 {
		cfg.Reconnect.MaxMS = 10000
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()

	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return m.getDefaults()
	}

	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = m.getDefaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// SetBackend sets the backend selection
func (m *Manager) SetBackend(backend string) error {
	m.mu.Lock()
	m.config.Backend = backend
	m.mu.Unlock()
	return m.Save()
}

// SetListen sets the API listen address
func (m *Manager) SetListen(listen string) error {
	m.mu.Lock()
	m.config.API.Listen = listen
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
