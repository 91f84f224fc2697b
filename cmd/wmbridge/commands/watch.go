package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wmbridge/wmbridge/internal/logger"
	"github.com/wmbridge/wmbridge/internal/state"
	"github.com/wmbridge/wmbridge/internal/wm"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream model changes as JSON lines",
	Long: `Connect to the compositor and stream state changes to stdout, one JSON
object per line.

By default the stream carries deltas: the first line is the full model as
a resync delta, and every following line is the net change caused by one
compositor event. With --events, the raw normalized events are printed
instead, before any model validation.`,
	Example: `  # Stream deltas
  wmbridge watch

  # Stream raw normalized events
  wmbridge watch --events

  # Feed a status bar script
  wmbridge watch | while read -r delta; do update_bar "$delta"; done`,
	RunE: runWatch,
}

var watchEvents bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchEvents, "events", false, "print raw normalized events instead of deltas")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	b, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to select backend: %w", err)
	}

	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", b.Name(), err)
	}
	defer b.Close()

	// Ctrl+C closes the backend, which ends the event stream below.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		b.Close()
	}()

	enc := json.NewEncoder(os.Stdout)

	if watchEvents {
		for ev := range b.Events() {
			line := struct {
				Kind  string   `json:"kind"`
				Event wm.Event `json:"event"`
			}{ev.Kind(), ev}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return b.Err()
	}

	store := state.New()
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if err := enc.Encode(store.Resync(snap)); err != nil {
		return err
	}

	log := logger.WithComponent("watch")
	for ev := range b.Events() {
		delta, err := store.Apply(ev)
		if err != nil {
			var inv *wm.InvariantError
			if errors.As(err, &inv) {
				log.Warn().
					Str("event", inv.Event).
					Str("reason", inv.Reason).
					Msg("Model out of sync, resyncing")
				snap, serr := b.Snapshot(ctx)
				if serr != nil {
					return fmt.Errorf("failed to resync: %w", serr)
				}
				if err := enc.Encode(store.Resync(snap)); err != nil {
					return err
				}
				continue
			}
			log.Error().Err(err).Str("event", ev.Kind()).Msg("Failed to apply event")
			continue
		}
		if !delta.Empty() {
			if err := enc.Encode(delta); err != nil {
				return err
			}
		}
	}
	return b.Err()
}
