package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wmbridge/wmbridge/internal/bridge"
	"github.com/wmbridge/wmbridge/internal/logger"
	"github.com/wmbridge/wmbridge/internal/wm"
)

// Server exposes the bridge over HTTP and WebSocket for bars, pagers and
// scripts.
type Server struct {
	router   *mux.Router
	bridge   *bridge.Bridge
	upgrader websocket.Upgrader
	log      *zerolog.Logger
	httpSrv  *http.Server
}

// NewServer creates a new API server around the bridge.
func NewServer(b *bridge.Bridge) *Server {
	s := &Server{
		router: mux.NewRouter(),
		bridge: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Local consumers; allow all origins
			},
		},
		log: logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/backend", s.handleBackend).Methods("GET")
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/monitors/{name}/workspaces", s.handleMonitorWorkspaces).Methods("GET")
	api.HandleFunc("/command", s.handleCommand).Methods("POST")
	api.HandleFunc("/stream", s.handleStream)

	s.router.HandleFunc("/", s.handleIndex)
}

// Start serves HTTP on the given address until Shutdown is called.
func (s *Server) Start(listen string) error {
	s.httpSrv = &http.Server{
		Addr:    listen,
		Handler: s.enableCORS(s.router),
	}
	s.log.Info().Str("listen", listen).Msg("API server starting")
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops the HTTP server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"backend":     s.bridge.BackendName(),
		"connected":   s.bridge.Connected(),
		"subscribers": s.bridge.Subscribers(),
	})
}

func (s *Server) handleBackend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"name":         s.bridge.BackendName(),
		"capabilities": s.bridge.Capabilities(),
		"connected":    s.bridge.Connected(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bridge.Snapshot())
}

func (s *Server) handleMonitorWorkspaces(w http.ResponseWriter, r *http.Request) {
	monitor := wm.MonitorID(mux.Vars(r)["name"])

	slots := 0
	if raw := r.URL.Query().Get("slots"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "slots must be a positive integer", http.StatusBadRequest)
			return
		}
		slots = n
	}

	views := wm.WorkspaceViews(s.bridge.Snapshot(), monitor, slots)
	if views == nil {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return
	}
	writeJSON(w, views)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd wm.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := cmd.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.bridge.Execute(r.Context(), cmd); err != nil {
		http.Error(w, err.Error(), commandStatus(err))
		return
	}

	writeJSON(w, map[string]string{"status": "success"})
}

// commandStatus maps command failures onto HTTP codes. Anything unclassified
// is a compositor-side rejection, which this server merely relays.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, wm.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, wm.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wm.ErrConnectionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// handleStream upgrades to WebSocket and streams deltas. The first frame is
// the full model as a resync delta; applying every subsequent frame keeps
// the client's copy authoritative.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	snap, sub := s.bridge.Subscribe()
	defer s.bridge.Unsubscribe(sub)

	if err := conn.WriteJSON(snap.Delta()); err != nil {
		s.log.Debug().Err(err).Msg("WebSocket write failed")
		return
	}

	// Clients send nothing; the read loop only notices the close. Dropping
	// the subscription ends the delta range below.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.bridge.Unsubscribe(sub)
				return
			}
		}
	}()

	for delta := range sub.Deltas() {
		if err := conn.WriteJSON(delta); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>wmbridge</title>
    <style>
        body { font-family: monospace; max-width: 640px; margin: 50px auto; padding: 20px; }
        code { background: #f0f0f0; padding: 2px 6px; border-radius: 3px; }
        li { margin: 6px 0; }
    </style>
</head>
<body>
    <h1>wmbridge</h1>
    <p>Uniform window-manager model and control for Hyprland, Sway and Niri.</p>
    <ul>
        <li><a href="/api/health">/api/health</a> - daemon health</li>
        <li><a href="/api/backend">/api/backend</a> - active backend and capabilities</li>
        <li><a href="/api/snapshot">/api/snapshot</a> - full model snapshot</li>
        <li><code>/api/monitors/{name}/workspaces</code> - per-monitor pager view</li>
        <li><code>POST /api/command</code> - dispatch a normalized command</li>
        <li><code>/api/stream</code> - WebSocket delta stream</li>
    </ul>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
