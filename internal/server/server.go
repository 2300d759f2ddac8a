// Package server exposes the reading engine and session manager over HTTP.
//
// The API is a thin layer: request decoding and validation live here, all
// classification semantics live in [reading] and [session]. Routes are
// registered on a method-pattern [http.ServeMux] and wrapped with the observe
// middleware, so every request carries a trace span and a correlation header.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qirat-ai/qirat/internal/health"
	"github.com/qirat-ai/qirat/internal/observe"
	"github.com/qirat-ai/qirat/internal/reading"
	"github.com/qirat-ai/qirat/internal/session"
	"github.com/qirat-ai/qirat/internal/store"
	"github.com/qirat-ai/qirat/pkg/speech"
)

const (
	// maxSentenceRunes bounds expected sentences and transcripts. The
	// engine compares single sentences; anything longer is a client error.
	maxSentenceRunes = 1000

	// maxBatchItems bounds one batch check request.
	maxBatchItems = 100

	// maxBatchConcurrency bounds how many batch items are evaluated at once.
	maxBatchConcurrency = 8

	// maxBodyBytes bounds a single request body. Audio uploads are the
	// largest legitimate payload.
	maxBodyBytes = 10 << 20
)

// Option is a functional option for [New].
type Option func(*Server)

// WithSpeech enables the audio transcription path using p. Without a
// provider, requests carrying audio are rejected.
func WithSpeech(p speech.Provider) Option {
	return func(s *Server) { s.speech = p }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version string reported by / and /healthz.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithDefaultLanguage forces a script for requests that name none, instead
// of detecting it from the expected text.
func WithDefaultLanguage(lang reading.Language) Option {
	return func(s *Server) {
		if lang.IsValid() {
			s.defaultLang = lang
		}
	}
}

// Server holds the HTTP handler state. Construct with [New], then serve
// [Server.Handler].
type Server struct {
	engine   *reading.Engine
	sessions *session.Manager
	store    store.Store
	speech   speech.Provider
	metrics  *observe.Metrics
	logger   *slog.Logger
	version  string

	defaultLang reading.Language
}

// New wires the API around an engine, a session manager and the store both
// are backed by.
func New(engine *reading.Engine, sessions *session.Manager, st store.Store, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		store:    st,
		metrics:  observe.DefaultMetrics(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the complete route tree wrapped with the observe
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("POST /api/v1/reading/check", s.handleCheck)
	mux.HandleFunc("POST /api/v1/reading/check-batch", s.handleCheckBatch)
	mux.HandleFunc("POST /api/v1/sessions/start", s.handleSessionStart)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/check-sentence", s.handleSessionCheck)
	mux.HandleFunc("GET /api/v1/sessions/{id}/summary", s.handleSessionSummary)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleSessionDelete)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.healthHandler().Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// healthHandler builds liveness/readiness probes over the server's
// dependencies. The store must answer a ping; a configured speech provider
// must report itself available.
func (s *Server) healthHandler() *health.Handler {
	checkers := []health.Checker{
		{Name: "store", Check: s.store.Ping},
	}
	if s.speech != nil {
		p := s.speech
		checkers = append(checkers, health.Checker{
			Name: "speech",
			Check: func(ctx context.Context) error {
				if !p.Available(ctx) {
					return fmt.Errorf("provider %q unavailable", p.Name())
				}
				return nil
			},
		})
	}
	h := health.New(checkers...)
	h.SetVersion(s.version)
	return h
}

// handleInfo reports the service identity and the configured capabilities.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{
		"service": "qirat",
		"status":  "ok",
	}
	if s.version != "" {
		info["version"] = s.version
	}
	if s.speech != nil {
		info["speech_provider"] = s.speech.Name()
	}
	writeJSON(w, http.StatusOK, info)
}

// errorResponse is the JSON envelope for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError sends a JSON error envelope with the given status.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into dst, rejecting unknown fields and
// oversized payloads.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
