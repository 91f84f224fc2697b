package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmbridge/wmbridge/internal/wm"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the compositor's current state",
	Long: `Connect to the compositor, fetch monitors, workspaces and windows as one
normalized snapshot, and print it.`,
	Example: `  # Print the snapshot as tables (default)
  wmbridge snapshot

  # Print the snapshot as JSON
  wmbridge snapshot --format json

  # Print the pager slots for every monitor
  wmbridge snapshot --pager`,
	RunE: runSnapshot,
}

var (
	snapshotFormat string
	snapshotPager  bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "table", "output format (table or json)")
	snapshotCmd.Flags().BoolVar(&snapshotPager, "pager", false, "print per-monitor pager slots instead of entity tables")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	b, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to select backend: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", b.Name(), err)
	}
	defer b.Close()

	snap, err := b.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	if snapshotPager {
		return printPager(snap)
	}

	switch snapshotFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snap)
	case "table":
		return printSnapshotTables(snap)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", snapshotFormat)
	}
}

func printSnapshotTables(snap wm.Snapshot) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "MONITOR\tGEOMETRY\tSCALE\tFOCUSED\tACTIVE WORKSPACE")
	fmt.Fprintln(w, "-------\t--------\t-----\t-------\t----------------")
	for _, m := range snap.Monitors {
		fmt.Fprintf(w, "%s\t%dx%d+%d+%d\t%.2f\t%s\t%s\n",
			m.ID,
			m.Geometry.Width, m.Geometry.Height, m.Geometry.X, m.Geometry.Y,
			m.Scale,
			yesNo(m.Focused),
			m.ActiveWorkspace)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "WORKSPACE\tNAME\tMONITOR\tWINDOWS\tFLAGS")
	fmt.Fprintln(w, "---------\t----\t-------\t-------\t-----")
	for _, ws := range snap.Workspaces {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			ws.ID, ws.Name, ws.Monitor, len(ws.Windows), workspaceFlags(ws))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "WINDOW\tCLASS\tTITLE\tWORKSPACE\tFLAGS")
	fmt.Fprintln(w, "------\t-----\t-----\t---------\t-----")
	for _, win := range snap.Windows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			win.ID, win.Class, truncate(win.Title, 40), win.Workspace, windowFlags(win))
	}

	return nil
}

func printPager(snap wm.Snapshot) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "MONITOR\tSLOT\tNUMBER\tWORKSPACE\tSTATE\tWINDOWS\tCLASS")
	fmt.Fprintln(w, "-------\t----\t------\t---------\t-----\t-------\t-----")
	for _, m := range snap.Monitors {
		for _, view := range wm.WorkspaceViews(snap, m.ID, 0) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%d\t%s\n",
				m.ID, view.Slot, view.Number, view.Workspace, view.State, view.Windows, view.Class)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func workspaceFlags(ws wm.Workspace) string {
	var flags []string
	if ws.Special {
		flags = append(flags, "special")
	}
	if ws.Persistent {
		flags = append(flags, "persistent")
	}
	if ws.Urgent {
		flags = append(flags, "urgent")
	}
	return strings.Join(flags, ",")
}

func windowFlags(win wm.Window) string {
	var flags []string
	if win.Focused {
		flags = append(flags, "focused")
	}
	if win.Floating {
		flags = append(flags, "floating")
	}
	if win.Fullscreen {
		flags = append(flags, "fullscreen")
	}
	if win.Pinned {
		flags = append(flags, "pinned")
	}
	if win.Urgent {
		flags = append(flags, "urgent")
	}
	return strings.Join(flags, ",")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
