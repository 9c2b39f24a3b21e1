// Package api exposes the scoring pipeline over HTTP: session ingestion,
// state reads, and the XP leaderboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/pipeline"
	"github.com/focusquest-dev/focusquest/pkg/observability"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// Scorer scores completed sessions. Implemented by pipeline.Orchestrator
// and by wrappers that add post-scoring work such as badge evaluation.
type Scorer interface {
	Process(ctx context.Context, session *game.Session, source game.Source) (*game.SessionSummary, error)
}

// Server is the public HTTP API.
type Server struct {
	scorer     Scorer
	store      store.Store
	limiter    *RateLimiter
	httpServer *http.Server
	port       int
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit overrides the default per-user rate limit.
func WithRateLimit(rl *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// NewServer creates the API server over the given scorer and store.
func NewServer(port int, scorer Scorer, st store.Store, opts ...Option) *Server {
	s := &Server{
		scorer:  scorer,
		store:   st,
		limiter: NewRateLimiter(5, 10),
		port:    port,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes. Exposed separately so tests can drive the
// mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/complete", s.instrument("/v1/sessions/complete", s.handleCompleteSession))
	mux.HandleFunc("GET /v1/users/{id}/state", s.instrument("/v1/users/{id}/state", s.handleGetState))
	mux.HandleFunc("GET /v1/leaderboard", s.instrument("/v1/leaderboard", s.handleLeaderboard))
	return mux
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// completeRequest is the session ingestion payload.
type completeRequest struct {
	Session *game.Session `json:"session"`
	Source  game.Source   `json:"source,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Session == nil {
		writeError(w, http.StatusBadRequest, "missing session")
		return
	}
	if req.Source == "" {
		req.Source = game.SourceSession
	}

	if !s.limiter.Allow(req.Session.UserID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	summary, err := s.scorer.Process(r.Context(), req.Session, req.Source)
	if err != nil {
		var commitErr *pipeline.CommitError
		switch {
		case errors.As(err, &commitErr):
			writeError(w, http.StatusServiceUnavailable, "scoring could not be committed, retry the session")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	state, err := s.store.GetState(r.Context(), userID)
	if errors.Is(err, store.ErrStateNotFound) {
		writeError(w, http.StatusNotFound, "user has no game state")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load state")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, ok := s.store.(store.Leaderboard)
	if !ok {
		writeError(w, http.StatusNotImplemented, "store does not support leaderboards")
		return
	}

	n := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = parsed
	}
	if n > maxLeaderboardSize {
		n = maxLeaderboardSize
	}

	entries, err := lb.Top(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
	})
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		observability.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
