// Package ops exposes the client's operational HTTP surface.
//
// A long-running `hulab watch` serves /healthz, /metrics and /stats on a
// private listen address so the client can be probed and scraped like any
// other lab service. Nothing here is part of the portal API.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// StatsProvider yields a point-in-time snapshot of client statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires the operational HTTP routes.
type Server struct {
	stats   StatsProvider
	scraper http.Handler
	started time.Time
}

// NewServer builds the ops surface over the given stats source.
func NewServer(stats StatsProvider) *Server {
	return &Server{
		stats:   stats,
		scraper: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		started: time.Now(),
	}
}

// Register attaches the operational routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", instrument("healthz", s.handleHealth))
	mux.Handle("/metrics", s.scraper)
	mux.HandleFunc("/stats", instrument("stats", s.handleStats))
}

// healthResponse is the JSON body returned by GET /healthz.
type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// The process answering at all is the health signal; portal reachability
// is visible in /metrics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.GetStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
