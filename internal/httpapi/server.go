// Package httpapi exposes the ingest daemon's status surface: health,
// build info, the redacted config snapshot, the raw payload archive and
// Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/you/crossfeed/internal/config"
	"github.com/you/crossfeed/internal/rawlog"
)

type Server struct {
	httpServer *http.Server
	opts       Options
	limiter    *ipRateLimiter
	cors       *corsPolicy
	metrics    *Metrics
	started    time.Time
}

type Options struct {
	Addr         string
	Build        BuildInfo
	Config       *config.Config
	Raw          *rawlog.Store
	RateLimitRPS int
	Burst        int
	CORSOrigins  []string
}

func New(opts Options) *Server {
	srv := &Server{
		opts:    opts,
		limiter: newIPRateLimiter(opts.RateLimitRPS, opts.Burst),
		cors:    newCORSPolicy(opts.CORSOrigins),
		metrics: newMetrics(),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/api/info", srv.handleInfo)
	mux.HandleFunc("/api/config", srv.handleConfig)
	mux.HandleFunc("/api/raw", srv.handleRaw)
	mux.Handle("/metrics", srv.metrics.Handler())

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Registerer exposes the server's metrics registry so other components
// can attach their collectors to the same /metrics endpoint.
func (s *Server) Registerer() *Metrics { return s.metrics }

// wrap applies the access-log, rate-limit and CORS middleware.
func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		if done, status := s.cors.apply(sw, r); done {
			s.observe(r, status, start)
			return
		}
		if !s.limiter.Allow(clientAddr(r)) {
			s.metrics.IncRateLimited()
			http.Error(sw, "rate limited", http.StatusTooManyRequests)
			s.observe(r, http.StatusTooManyRequests, start)
			return
		}

		next.ServeHTTP(sw, r)
		s.observe(r, sw.Status(), start)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) observe(r *http.Request, status int, start time.Time) {
	dur := time.Since(start)
	s.metrics.ObserveRequest(routeLabel(r.URL.Path), r.Method, status, dur)
	slog.Debug("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"dur", dur,
	)
}

// routeLabel collapses paths to a bounded label set for metrics.
func routeLabel(path string) string {
	switch {
	case path == "/healthz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/"):
		return path
	default:
		return "other"
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleConfig serves the redacted configuration snapshot. Secrets never
// leave the process.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.opts.Config.Redacted())
}

// handleRaw lists the newest archived payloads, filterable by platform.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	if s.opts.Raw == nil {
		http.Error(w, "raw log disabled", http.StatusNotFound)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
			if limit > 1000 {
				limit = 1000
			}
		}
	}
	platform := r.URL.Query().Get("platform")

	entries, err := s.opts.Raw.Recent(r.Context(), platform, limit)
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	type rawEntry struct {
		ID         int64           `json:"id"`
		ReceivedAt string          `json:"receivedAt"`
		Platform   string          `json:"platform"`
		EventType  string          `json:"eventType"`
		Payload    json.RawMessage `json:"payload"`
	}
	out := make([]rawEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, rawEntry{
			ID:         e.ID,
			ReceivedAt: e.ReceivedAt.UTC().Format(time.RFC3339Nano),
			Platform:   e.Platform,
			EventType:  e.EventType,
			Payload:    e.Payload,
		})
	}

	writeJSON(w, out)
}

func (s *Server) Start() error {
	slog.Info("http api listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
