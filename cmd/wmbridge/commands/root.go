package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wmbridge/wmbridge/internal/backend"
	"github.com/wmbridge/wmbridge/internal/config"
	"github.com/wmbridge/wmbridge/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "wmbridge",
		Short: "wmbridge - uniform window-manager model and control",
		Long: `wmbridge connects to the running Wayland compositor (Hyprland, Sway or
Niri), maintains a normalized model of monitors, workspaces and windows,
and exposes it to bars, pagers and scripts.

Features:
  • Live normalized model with an ordered delta stream
  • Uniform commands across compositors (focus, close, move, switch)
  • Capability flags where compositors differ
  • Automatic reconnect and resync
  • REST + WebSocket API for integration`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wmbridge/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "compositor backend (auto, hyprland, sway, niri)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")

	// Bind flags to viper
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and layers flag overrides on top. Flag
// overrides are runtime-only and never written back.
func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := mgr.Get()
	if v := viper.GetString("log_level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if rootCmd.PersistentFlags().Changed("pretty") {
		cfg.LogPretty, _ = rootCmd.PersistentFlags().GetBool("pretty")
	}
	return cfg, nil
}

// initLogging configures the global logger from the resolved config.
func initLogging(cfg *config.Config) {
	logger.Init(cfg.LogLevel, cfg.LogPretty)
}

// resolveBackend picks the backend kind from config or the environment.
func resolveBackend(cfg *config.Config) (backend.Kind, error) {
	if cfg.Backend != "" && cfg.Backend != "auto" {
		return backend.ParseKind(cfg.Backend)
	}
	return backend.Detect(os.Getenv)
}

// newBackend builds the configured backend without connecting it.
func newBackend(cfg *config.Config) (backend.Backend, error) {
	kind, err := resolveBackend(cfg)
	if err != nil {
		return nil, err
	}
	return backend.New(kind, backendConfig(cfg, kind))
}

// backendConfig maps per-compositor socket overrides onto the shared
// backend config.
func backendConfig(cfg *config.Config, kind backend.Kind) backend.Config {
	switch kind {
	case backend.KindHyprland:
		return backend.Config{
			Socket:      cfg.Hyprland.RequestSocket,
			EventSocket: cfg.Hyprland.EventSocket,
		}
	case backend.KindSway:
		return backend.Config{Socket: cfg.Sway.Socket}
	case backend.KindNiri:
		return backend.Config{Socket: cfg.Niri.Socket}
	default:
		return backend.Config{}
	}
}
