package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmbridge/wmbridge/internal/api"
	"github.com/wmbridge/wmbridge/internal/bridge"
	"github.com/wmbridge/wmbridge/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge daemon",
	Long: `Connect to the compositor, keep the normalized model in sync, and serve
it to consumers over HTTP and WebSocket.

The daemon reconnects with backoff when the compositor restarts and marks
the model stale while disconnected.`,
	Example: `  # Run against the detected compositor
  wmbridge serve

  # Pin the backend and listen address
  wmbridge serve --backend sway --listen 127.0.0.1:9090

  # Run with debug logging
  wmbridge serve --log-level debug --pretty`,
	RunE: runServe,
}

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "API listen address (host:port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.API.Listen = serveListen
	}
	initLogging(cfg)
	log := logger.WithComponent("serve")

	b, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to select backend: %w", err)
	}

	br := bridge.New(b, bridge.Options{
		SubscriberQueue:  cfg.SubscriberQueue,
		ReconnectInitial: time.Duration(cfg.Reconnect.InitialMS) * time.Millisecond,
		ReconnectMax:     time.Duration(cfg.Reconnect.MaxMS) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := br.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(br)
		go func() {
			if err := server.Start(cfg.API.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("api server failed: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info().
		Str("backend", br.BackendName()).
		Str("listen", cfg.API.Listen).
		Bool("api", cfg.API.Enabled).
		Msg("wmbridge running")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		cancel()
		return err
	}

	cancel()
	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("API shutdown failed")
		}
	}
	return nil
}
