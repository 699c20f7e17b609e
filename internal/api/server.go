package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"musiclib/internal/health"
	"musiclib/internal/history"
	"musiclib/internal/playback"
	"musiclib/internal/roon"
	"musiclib/internal/zones"
)

// Server exposes the resilience engine's caller-facing surface over
// HTTP: health, zones, play, control and history. Callers only see
// booleans and plain records; no protocol types cross this boundary.
type Server struct {
	engine     *playback.Engine
	controller *playback.TransportController
	tracker    *zones.Tracker
	monitor    *health.Monitor
	recent     *history.Poller
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates the API server on the given port
func NewServer(engine *playback.Engine, controller *playback.TransportController, tracker *zones.Tracker, monitor *health.Monitor, recent *history.Poller, metricsHandler http.Handler, logger *zap.Logger, port int) *Server {
	s := &Server{
		engine:     engine,
		controller: controller,
		tracker:    tracker,
		monitor:    monitor,
		recent:     recent,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/zones", s.handleZones)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.Handle("/metrics", metricsHandler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start runs the HTTP server until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthResponse is the operator-facing health payload: the engine's
// own snapshot plus the last raw bridge status, when one has been seen
type HealthResponse struct {
	health.Status
	Bridge *roon.BridgeStatus `json:"bridge,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status: s.monitor.Status(),
		Bridge: s.monitor.BridgeStatus(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.tracker.Zones())
}

// PlayRequest is the caller's play command. Zone accepts either a zone
// ID or an exact display name; names are resolved per request because
// zone IDs must not be cached across idle periods.
type PlayRequest struct {
	Zone   string `json:"zone"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
}

// PlayResponse reports whether anything audible was started
type PlayResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Zone == "" || req.Artist == "" {
		http.Error(w, "zone and artist are required", http.StatusBadRequest)
		return
	}

	zone, ok := s.resolveZone(req.Zone)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, PlayResponse{
			Message: fmt.Sprintf("zone %q is not known; check /api/zones", req.Zone),
		})
		return
	}

	var started bool
	if req.Album == "" {
		started = s.engine.PlayArtistOnly(r.Context(), zone.ID, req.Artist)
	} else {
		started = s.engine.PlayAlbum(r.Context(), zone.ID, req.Artist, req.Album)
	}

	resp := PlayResponse{Started: started}
	if !started {
		if req.Album == "" {
			resp.Message = fmt.Sprintf("could not start playback for artist %q; try the exact library name", req.Artist)
		} else {
			resp.Message = fmt.Sprintf("could not start playback for %q by %q; try the exact library name", req.Album, req.Artist)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ControlRequest is the caller's transport command
type ControlRequest struct {
	Zone    string `json:"zone"`
	Command string `json:"command"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	zoneID := req.Zone
	if zone, ok := s.resolveZone(req.Zone); ok {
		zoneID = zone.ID
	}

	outcome := s.controller.Control(r.Context(), zoneID, playback.Command(req.Command))

	status := http.StatusOK
	if outcome.Reason == playback.ReasonZoneNotFound {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, outcome)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.recent.Recent(50))
}

// resolveZone accepts a zone ID or an exact display name
func (s *Server) resolveZone(ref string) (zones.Zone, bool) {
	if zone, ok := s.tracker.Lookup(ref); ok {
		return zone, true
	}
	return s.tracker.FindByName(ref)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
