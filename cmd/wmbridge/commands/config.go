package commands

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wmbridge/wmbridge/internal/backend"
	"github.com/wmbridge/wmbridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration file",
	Long: `Inspect and edit the wmbridge configuration file.

Runtime flags such as --backend and --log-level override the file for one
invocation only; 'config set' is the way to change a setting permanently.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist one setting",
	Long: `Persist one setting to the configuration file.

Keys:
  log_level   debug, info, warn or error
  backend     auto, hyprland, sway or niri
  api.listen  HTTP API listen address (host:port)`,
	Example: `  wmbridge config set backend sway
  wmbridge config set log_level debug
  wmbridge config set api.listen 127.0.0.1:9090`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := yaml.Marshal(mgr.Get())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(mgr.GetConfigPath())
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch key {
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level %q (debug, info, warn, error)", value)
		}
		if err := mgr.SetLogLevel(value); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	case "backend":
		if value != "auto" {
			if _, err := backend.ParseKind(value); err != nil {
				return err
			}
		}
		if err := mgr.SetBackend(value); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	case "api.listen":
		if _, _, err := net.SplitHostPort(value); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", value, err)
		}
		if err := mgr.SetListen(value); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	default:
		return fmt.Errorf("unknown key %q (log_level, backend, api.listen)", key)
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}
