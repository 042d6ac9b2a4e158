// Package server exposes the HTTP API: playlist management, channel
// queries, playback history, and the stream proxy.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamdock/streamdock/internal/cache"
	"github.com/streamdock/streamdock/internal/config"
	"github.com/streamdock/streamdock/internal/fetcher"
	"github.com/streamdock/streamdock/internal/metrics"
	"github.com/streamdock/streamdock/internal/proxy"
	"github.com/streamdock/streamdock/internal/query"
	"github.com/streamdock/streamdock/internal/service"
	"github.com/streamdock/streamdock/internal/store"
	"github.com/streamdock/streamdock/internal/xtream"
)

// ResetFunc rebuilds the storage schema from scratch. Wired from main so
// the server does not depend on migration file paths.
type ResetFunc func(ctx context.Context) error

// Server holds dependencies for the HTTP API.
type Server struct {
	store    store.Store
	pager    *query.Pager
	importer *service.Importer
	cfg      *config.Config
	redis    *cache.Redis // nil when Redis is not configured
	hardRst  ResetFunc    // nil disables hard reset
	proxy    *proxy.Handler
	mux      *http.ServeMux
}

// New creates a Server and registers routes. redis and hardReset may be
// nil.
func New(s store.Store, pager *query.Pager, importer *service.Importer, cfg *config.Config, redis *cache.Redis, hardReset ResetFunc) *Server {
	srv := &Server{
		store:    s,
		pager:    pager,
		importer: importer,
		cfg:      cfg,
		redis:    redis,
		hardRst:  hardReset,
		proxy:    proxy.NewHandler(cfg.ProxyPublicURL, cfg.UserAgent),
		mux:      http.NewServeMux(),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.handle("GET /api/health", s.handleHealth)

	// Playlists
	s.handle("GET /api/playlists", s.handleListPlaylists)
	s.handle("POST /api/playlists", s.handleAddPlaylist)
	s.handle("GET /api/playlists/{id}", s.handleGetPlaylist)
	s.handle("DELETE /api/playlists/{id}", s.handleDeletePlaylist)
	s.handle("POST /api/playlists/{id}/refresh", s.handleRefreshPlaylist)
	s.handle("GET /api/playlists/{id}/counts", s.handleContentCounts)
	s.handle("GET /api/playlists/{id}/groups", s.handleListGroups)
	s.handle("GET /api/playlists/{id}/series/{seriesID}/episodes", s.handleSeriesEpisodes)

	// Channels
	s.handle("GET /api/channels", s.handleListChannels)
	s.handle("GET /api/channels/{id}", s.handleGetChannel)
	s.handle("POST /api/channels/{id}/favorite", s.handleToggleFavorite)

	// History
	s.handle("GET /api/history", s.handleListHistory)
	s.handle("POST /api/history", s.handleAddHistory)
	s.handle("DELETE /api/history", s.handleClearHistory)

	// Playback profiles
	s.handle("GET /api/playback/profiles", s.handleListProfiles)
	s.handle("GET /api/playback/profiles/{name}", s.handleGetProfile)

	// Maintenance
	s.handle("POST /api/reset", s.handleReset)

	// Streaming
	s.handle("GET /proxy/stream", s.proxy.ServeHTTP)

	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// handle registers a handler and instruments it with a latency metric
// labeled by the literal route pattern, keeping label cardinality fixed.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		metrics.RequestDuration.WithLabelValues(pattern, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port and
// blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     withCORS(withLogging(s)),
		ReadTimeout: 10 * time.Second,
		// streams stay open indefinitely; no write timeout
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- middleware ---

// withCORS adds CORS headers to every response and handles preflight OPTIONS requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withLogging wraps a handler and logs each request with method, path, status, and duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		statusColor := colorForStatus(sw.status)
		methodColor := colorForMethod(r.Method)

		log.Printf("%s %-7s %s\x1b[0m  %s %3d %s\x1b[0m  %s",
			methodColor, r.Method, "\x1b[0m",
			statusColor, sw.status, "\x1b[0m",
			formatDuration(time.Since(start)),
		)
		if r.URL.RawQuery != "" {
			log.Printf("         %s?%s", r.URL.Path, r.URL.RawQuery)
		} else {
			log.Printf("         %s", r.URL.Path)
		}
	})
}

func colorForStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "\x1b[32m" // green
	case code >= 300 && code < 400:
		return "\x1b[36m" // cyan
	case code >= 400 && code < 500:
		return "\x1b[33m" // yellow
	default:
		return "\x1b[31m" // red
	}
}

func colorForMethod(method string) string {
	switch method {
	case http.MethodGet:
		return "\x1b[36m" // cyan
	case http.MethodPost:
		return "\x1b[32m" // green
	case http.MethodPatch, http.MethodPut:
		return "\x1b[33m" // yellow
	case http.MethodDelete:
		return "\x1b[31m" // red
	default:
		return "\x1b[37m" // white
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Printf("ERROR %d: %v", status, err)
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// writeDomainErr maps the known failure sentinels onto HTTP statuses.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, cache.ErrLocked):
		writeErr(w, http.StatusConflict, err)
	case errors.Is(err, xtream.ErrAuth):
		writeErr(w, http.StatusUnauthorized, err)
	case errors.Is(err, fetcher.ErrNoChannels), errors.Is(err, xtream.ErrNoContent):
		writeErr(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, store.ErrStorageFull):
		writeErr(w, http.StatusInsufficientStorage, err)
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}
