package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmbridge/wmbridge/internal/wm"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <op>",
	Short: "Send a normalized command to the compositor",
	Long: `Send one normalized command to the compositor and report the result.

Operations:
  focus_window             focus a window (--window)
  close_window             close a window (--window)
  move_window_to_workspace move a window (--window, --workspace)
  toggle_floating          toggle floating (--window)
  toggle_fullscreen        toggle fullscreen (--window)
  toggle_pin               toggle pinned-to-all-workspaces (--window)
  switch_active_workspace  switch the visible workspace (--workspace)

Targets use the bridge's normalized IDs as printed by 'wmbridge snapshot'.
Operations outside the backend's capability set fail without touching the
compositor.`,
	Example: `  # Focus a window
  wmbridge dispatch focus_window --window 0x55d3e85a1c80

  # Move a window to workspace 3
  wmbridge dispatch move_window_to_workspace --window 0x55d3e85a1c80 --workspace 3

  # Switch the visible workspace
  wmbridge dispatch switch_active_workspace --workspace 2`,
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

var (
	dispatchWindow    string
	dispatchWorkspace string
	dispatchMonitor   string
)

func init() {
	rootCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().StringVar(&dispatchWindow, "window", "", "target window ID")
	dispatchCmd.Flags().StringVar(&dispatchWorkspace, "workspace", "", "target workspace ID")
	dispatchCmd.Flags().StringVar(&dispatchMonitor, "monitor", "", "target monitor name")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	command := wm.Command{
		Op:        wm.Op(strings.ReplaceAll(args[0], "-", "_")),
		Window:    wm.WindowID(dispatchWindow),
		Workspace: wm.WorkspaceID(dispatchWorkspace),
		Monitor:   wm.MonitorID(dispatchMonitor),
	}
	if err := command.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	b, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to select backend: %w", err)
	}
	if !b.Capabilities().Has(command.Op) {
		return fmt.Errorf("%s on %s: %w", command.Op, b.Name(), wm.ErrNotSupported)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", b.Name(), err)
	}
	defer b.Close()

	if err := b.Dispatch(ctx, command); err != nil {
		return fmt.Errorf("failed to dispatch: %w", err)
	}

	fmt.Printf("Dispatched %s\n", command)
	return nil
}
