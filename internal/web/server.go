package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/camera"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/history"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/monitor"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/photos"
	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-device UI, no cross-origin concerns
	},
}

// Deps bundles the services the server fronts.
type Deps struct {
	Session    *camera.Session
	Supervisor *camera.Supervisor
	Importer   *camera.Importer
	Interval   *camera.Interval
	Mirror     *camera.Mirror
	Photos     *photos.Store
	History    *history.Log
	Monitor    *monitor.Service
}

// Server represents the web server
type Server struct {
	cfg  *config.Config
	deps Deps

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:     cfg,
		deps:    deps,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully, stopping jobs and camera subprocesses.
func (s *Server) Start(ctx context.Context) error {
	metricsChan := s.deps.Monitor.Start(ctx)
	go s.broadcastLoop(ctx, metricsChan)

	mux := http.NewServeMux()

	// Static UI
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/",
		http.FileServer(http.Dir(filepath.Join(s.cfg.Paths.Www, "static")))))

	// Capture & images
	mux.HandleFunc("/api/capture", s.handleCapture)
	mux.HandleFunc("/latest.jpg", s.handleLatestJPEG)
	mux.HandleFunc("/api/latest_info", s.handleLatestInfo)
	mux.HandleFunc("/live.jpg", s.handleLiveFrame)
	mux.HandleFunc("/live_stream.mjpg", s.handleLiveStream)

	// Live view hold
	mux.HandleFunc("/api/live/start", s.handleLiveStart)
	mux.HandleFunc("/api/live/stop", s.handleLiveStop)
	mux.HandleFunc("/api/live/status", s.handleLiveStatus)
	mux.HandleFunc("/api/live_stream/stop", s.handleLiveStreamStop)

	// Jobs
	mux.HandleFunc("/api/import/start", s.handleImportStart)
	mux.HandleFunc("/api/import/status", s.handleImportStatus)
	mux.HandleFunc("/api/import/stop", s.handleImportStop)
	mux.HandleFunc("/api/interval/start", s.handleIntervalStart)
	mux.HandleFunc("/api/interval/stop", s.handleIntervalStop)
	mux.HandleFunc("/api/interval/status", s.handleIntervalStatus)

	// Camera settings
	mux.HandleFunc("/api/config/quick", s.handleQuickConfig)
	mux.HandleFunc("/api/config/quick/force", s.handleQuickConfigForce)
	mux.HandleFunc("/api/config/set", s.handleConfigSet)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/presets/apply", s.handlePresetsApply)

	// Status & misc
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/cameras", s.handleCameras)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/mirror/config", s.handleMirrorConfig)
	mux.HandleFunc("/api/history", s.handleHistory)

	// Gallery
	mux.HandleFunc("/api/gallery", s.handleGallery)
	mux.HandleFunc("/file/", s.handleFile)
	mux.HandleFunc("/api/gallery/bulk-delete", s.handleBulkDelete)
	mux.HandleFunc("/api/gallery/bulk-move", s.handleBulkMove)

	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf("%s:%d", s.cfg.Web.Host, s.cfg.Web.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Info().Str("address", addr).Msg("Starting web server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Web server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.deps.Importer.Stop()
	s.deps.Interval.Stop()
	s.deps.Supervisor.StopAll()

	return server.Shutdown(shutdownCtx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.Paths.Www, "index.html"))
}

// writeJSON sends v as a JSON response.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError sends a JSON error body the UI log box can show verbatim.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	log.Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	// Send initial snapshots
	s.sendToClient(conn, models.WSMessage{Type: "import", Payload: s.deps.Importer.Status()})
	s.sendToClient(conn, models.WSMessage{Type: "interval", Payload: s.deps.Interval.Status()})
	s.sendToClient(conn, models.WSMessage{Type: "live", Payload: s.deps.Supervisor.HoldStatus()})
	s.sendToClient(conn, models.WSMessage{Type: "metrics", Payload: s.deps.Monitor.Last()})

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
			log.Info().Str("remote", r.RemoteAddr).Msg("WebSocket client disconnected")
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) broadcast(msg models.WSMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		s.sendToClient(client, msg)
	}
}

func (s *Server) sendToClient(conn *websocket.Conn, msg models.WSMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("Failed to send WebSocket message")
	}
}

// broadcastLoop pushes job progress and host metrics to connected
// clients. Camera status is deliberately not pushed here: reading it
// touches the device, and pollers can ask for it explicitly.
func (s *Server) broadcastLoop(ctx context.Context, metricsChan <-chan models.HostMetrics) {
	ticker := time.NewTicker(s.cfg.Monitoring.UIUpdateInterval)
	defer ticker.Stop()

	var lastMetrics models.HostMetrics

	for {
		select {
		case <-ctx.Done():
			return
		case metrics, ok := <-metricsChan:
			if !ok {
				return
			}
			lastMetrics = metrics
		case <-ticker.C:
			s.broadcast(models.WSMessage{Type: "import", Payload: s.deps.Importer.Status()})
			s.broadcast(models.WSMessage{Type: "interval", Payload: s.deps.Interval.Status()})
			s.broadcast(models.WSMessage{Type: "live", Payload: s.deps.Supervisor.HoldStatus()})
			s.broadcast(models.WSMessage{Type: "metrics", Payload: lastMetrics})
		}
	}
}
