// Package ops serves the operational HTTP surface: a health endpoint
// backed by the scheduler's cycle history and the Prometheus scrape
// endpoint. The listener is optional and off by default.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/scheduler"
)

// Server is the ops HTTP listener.
type Server struct {
	srv     *http.Server
	history *scheduler.History
	started time.Time
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status        string              `json:"status"`
	UptimeSeconds float64             `json:"uptime_seconds"`
	CyclesStored  int                 `json:"cycles_stored"`
	LastCycle     *scheduler.Outcome  `json:"last_cycle,omitempty"`
	RecentCycles  []scheduler.Outcome `json:"recent_cycles"`
}

// NewServer builds the listener on addr, serving /health and /metrics.
func NewServer(addr string, history *scheduler.History, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		history: history,
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the listener in a goroutine. Listener errors other than
// a clean close are logged, not fatal: collection never depends on the
// ops surface.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Ops listener starting")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Ops listener failed")
		}
	}()
}

// Shutdown stops the listener, waiting up to 5s for in-flight requests.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Ops listener shutdown did not complete cleanly")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		CyclesStored:  s.history.Len(),
		RecentCycles:  s.history.Recent(),
	}
	if last, ok := s.history.Last(); ok {
		resp.LastCycle = &last
		if last.Error != "" {
			resp.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("Failed to encode health response")
	}
}
