// Package gateway exposes the task engine to an external UI over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/exchange"
	"github.com/dohr-michael/priomatrix/internal/gateway/ws"
	"github.com/dohr-michael/priomatrix/internal/storage"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// ActorHeader overrides the configured actor label for one request.
const ActorHeader = "X-Priomatrix-Actor"

// Settings are the request defaults that can change while serving.
type Settings struct {
	WeekStart time.Weekday
	Actor     string
}

// Server is the priomatrix HTTP gateway.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	engine     *tasks.Engine
	audit      *storage.AuditLogger
	activity   *storage.ActivityTracker
	origins    []string
	settings   atomic.Pointer[Settings]
}

// Option configures a Server.
type Option func(*Server)

// WithAudit enables GET /api/tasks/{id}/audit.
func WithAudit(al *storage.AuditLogger) Option {
	return func(s *Server) { s.audit = al }
}

// WithActivity enables GET /api/stats.
func WithActivity(at *storage.ActivityTracker) Option {
	return func(s *Server) { s.activity = at }
}

// WithAllowedOrigins admits browser WebSocket connections from other origins.
func WithAllowedOrigins(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

// WithSettings sets the initial request defaults.
func WithSettings(st Settings) Option {
	return func(s *Server) { s.settings.Store(&st) }
}

// NewServer creates a new gateway server.
func NewServer(bus *events.Bus, engine *tasks.Engine, host string, port int, opts ...Option) *Server {
	s := &Server{
		bus:    bus,
		engine: engine,
	}
	s.settings.Store(&Settings{WeekStart: time.Monday})
	for _, opt := range opts {
		opt(s)
	}
	s.hub = ws.NewHub(bus, engine, ws.WithOriginPatterns(s.origins...))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.tagRequest)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", s.hub.ServeWS)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/stats", s.handleStats)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Patch("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Post("/move", s.handleMove)
			r.Post("/end", s.handleEnd)
			r.Post("/resume", s.handleResume)
			r.Get("/audit", s.handleAudit)
		})
	})
	r.Get("/api/calendar", s.handleCalendar)

	r.Get("/api/export", s.handleExport)
	r.Get("/api/backup", s.handleBackup)
	r.Post("/api/import", s.handleImport)
	r.Post("/api/import/commit", s.handleImportCommit)
	r.Post("/api/reset", s.handleReset)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// UpdateSettings swaps the request defaults, e.g. after a config reload.
func (s *Server) UpdateSettings(st Settings) {
	s.settings.Store(&st)
}

func (s *Server) currentSettings() Settings {
	return *s.settings.Load()
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("priomatrix gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// tagRequest marks mutations as coming from the gateway and resolves the actor.
func (s *Server) tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := events.ContextWithSource(r.Context(), events.SourceGateway)
		actor := r.Header.Get(ActorHeader)
		if actor == "" {
			actor = s.currentSettings().Actor
		}
		ctx = events.ContextWithActor(ctx, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.engine.Snapshot().Version,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		TaskID    string             `json:"task_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Actor     string             `json:"actor,omitempty"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			TaskID:    e.TaskID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Actor:     e.Actor,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("activity tracking not enabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.activity.Report())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasks.ErrSeriesEnded), errors.Is(err, tasks.ErrNotRecurring):
		return http.StatusConflict
	case errors.Is(err, tasks.ErrInvalid), errors.Is(err, exchange.ErrNoCandidates):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exchange.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("gateway request failed", "error", err)
	}
	writeError(w, status, err)
}
