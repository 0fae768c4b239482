// Package health serves the liveness endpoint for process supervisors.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// Probe supplies the runtime numbers the endpoint reports.
type Probe interface {
	Uptime() time.Duration
	SessionCount() int
	ConversationCount() int
	Connected() bool
	LastActivity() string
}

// Server exposes GET /healthz.
type Server struct {
	addr   string
	probe  Probe
	logger *slog.Logger
	srv    *http.Server
}

// status is the /healthz response body.
type status struct {
	Status        string `json:"status"`
	UptimeSec     int64  `json:"uptime_sec"`
	HeapMiB       uint64 `json:"heap_mib"`
	Goroutines    int    `json:"goroutines"`
	Sessions      int    `json:"sessions"`
	Conversations int    `json:"conversations"`
	Connected     bool   `json:"connected"`
	LastActivity  string `json:"last_activity,omitempty"`
}

// NewServer creates the health server. It does not listen until Start.
func NewServer(addr string, probe Probe, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		probe:  probe,
		logger: logger.With("component", "health"),
	}
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged, not returned: the bot outlives a dead health port.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("health endpoint listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health endpoint failed", "error", err)
		}
	}()
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("health shutdown", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := status{
		Status:        "ok",
		UptimeSec:     int64(s.probe.Uptime().Seconds()),
		HeapMiB:       mem.HeapAlloc / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
		Sessions:      s.probe.SessionCount(),
		Conversations: s.probe.ConversationCount(),
		Connected:     s.probe.Connected(),
		LastActivity:  s.probe.LastActivity(),
	}
	if !st.Connected {
		st.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if st.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(st)
}
