package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/export"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StationReader is the read side of a simulated station.
type StationReader interface {
	Location() string
	Latest() (domain.Snapshot, bool)
	History() []domain.Snapshot
	ForecastAll() domain.Projection
	Report() string
}

// Server exposes health, readiness, metrics, and station state endpoints.
type Server struct {
	httpServer *http.Server
	station    StationReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the /api/station routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, station StationReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		station: station,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/station", s.handleStation)
	mux.HandleFunc("GET /api/station/history", s.handleHistory)
	mux.HandleFunc("GET /api/station/history.csv", s.handleHistoryCSV)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type stationResponse struct {
	Location string            `json:"location"`
	Latest   *domain.Snapshot  `json:"latest"`
	Report   string            `json:"report"`
	Forecast domain.Projection `json:"forecast"`
}

func (s *Server) handleStation(w http.ResponseWriter, _ *http.Request) {
	resp := stationResponse{
		Location: s.station.Location(),
		Report:   s.station.Report(),
		Forecast: s.station.ForecastAll(),
	}
	if snap, ok := s.station.Latest(); ok {
		resp.Latest = &snap
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// handleHistory returns snapshots oldest first; ?limit=N keeps the last N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, ok := s.limitedHistory(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, history)
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	history, ok := s.limitedHistory(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, history); err != nil {
		s.logger.Warn("csv export failed", "error", err)
	}
}

func (s *Server) limitedHistory(w http.ResponseWriter, r *http.Request) ([]domain.Snapshot, bool) {
	history := s.station.History()
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return history, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		return nil, false
	}
	if limit < len(history) {
		history = history[len(history)-limit:]
	}
	return history, true
}
