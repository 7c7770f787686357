package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/log"
	"github.com/netguard/netguard/pkg/metrics"
	"github.com/netguard/netguard/pkg/state"
)

// StatusSource provides the current health snapshot of every target
type StatusSource interface {
	Snapshot() []state.Snapshot
}

// EventSource provides recent monitoring events; may be nil when the
// daemon runs without a journal
type EventSource interface {
	Recent(n int) ([]*events.Event, error)
}

// Server exposes the local control surface over HTTP: daemon liveness,
// per-target status, recent events and Prometheus metrics
type Server struct {
	statuses StatusSource
	eventSrc EventSource
	router   chi.Router
	srv      *http.Server
	logger   zerolog.Logger
	started  time.Time
}

// NewServer creates the control surface server
func NewServer(statuses StatusSource, eventSrc EventSource) *Server {
	s := &Server{
		statuses: statuses,
		eventSrc: eventSrc,
		router:   chi.NewRouter(),
		logger:   log.WithComponent("api"),
		started:  time.Now(),
	}

	s.router.Get("/healthz", s.healthzHandler)
	s.router.Get("/v1/status", s.statusHandler)
	s.router.Get("/v1/events", s.eventsHandler)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	return s
}

// Start serves until Shutdown is called; it blocks like ListenAndServe
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("control api listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler returns the HTTP handler for embedding in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthzResponse reports liveness of the daemon itself
type healthzResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthzResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).String(),
	})
}

// statusResponse is the per-target health snapshot
type statusResponse struct {
	Timestamp time.Time        `json:"timestamp"`
	Targets   []state.Snapshot `json:"targets"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Timestamp: time.Now(),
		Targets:   s.statuses.Snapshot(),
	})
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.eventSrc == nil {
		http.Error(w, "event journal not enabled", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	evs, err := s.eventSrc.Recent(limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read events")
		http.Error(w, "failed to read events", http.StatusInternalServerError)
		return
	}
	if evs == nil {
		evs = []*events.Event{}
	}

	writeJSON(w, http.StatusOK, evs)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
