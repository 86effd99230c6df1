// Package health serves the daemon's liveness endpoint and the Prometheus
// scrape surface on one small HTTP listener.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/pipeline"
)

// StatsSource reports instantaneous pipeline load. The pipeline implements
// it.
type StatsSource interface {
	Stats() pipeline.Stats
}

type Response struct {
	Status        string         `json:"status"`
	Service       string         `json:"service"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Timestamp     int64          `json:"timestamp"`
	Pipeline      pipeline.Stats `json:"pipeline"`
	System        *SystemStats   `json:"system,omitempty"`
}

// Server answers GET /health with a JSON status snapshot and GET /metrics
// with the daemon's Prometheus registry.
type Server struct {
	service   string
	source    StatsSource
	registry  *prometheus.Registry
	srv       *http.Server
	logger    zerolog.Logger
	startTime time.Time
}

func NewServer(service, port string, source StatsSource, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		service:   service,
		source:    source,
		registry:  registry,
		logger:    logger.With().Str("component", "health").Logger(),
		startTime: time.Now(),
	}
	s.srv = &http.Server{
		Addr:    ":" + port,
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route mux, exposed separately so tests can drive it
// without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("Health server listening")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Health server failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:        "healthy",
		Service:       s.service,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Timestamp:     time.Now().Unix(),
		Pipeline:      s.source.Stats(),
	}
	if sys, err := CollectSystem(); err == nil {
		resp.System = sys
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
