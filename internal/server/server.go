// Package server exposes the verification pipeline over HTTP. The layer
// stays thin: decode, delegate to the router, map the result status to a
// response code. Business logic lives in the pkg packages.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/twinlabs/twinlink/internal/metrics"
	"github.com/twinlabs/twinlink/pkg/linkage"
)

// Verifier runs one verification request end to end. *verify.Router
// satisfies it.
type Verifier interface {
	Verify(ctx context.Context, identifier, pathSelector string) linkage.Result
}

// Config carries the transport-level settings.
type Config struct {
	// TrustAnchorConfigured is reported by /healthz so operators can
	// tell a running service from a fully configured one.
	TrustAnchorConfigured bool
}

// Server is the HTTP front of the verification service.
type Server struct {
	verifier Verifier
	cfg      Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a Server. Metrics may be nil, which disables recording but
// keeps the /metrics endpoint alive.
func New(verifier Verifier, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		verifier: verifier,
		cfg:      cfg,
		log:      log,
		metrics:  m,
	}
}

// Handler returns the service's routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/verify", s.handleVerify)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// NewHTTPServer wraps a handler in an http.Server with the service's
// timeouts, keeping the listen/shutdown lifecycle in main.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// maxVerifyBody caps the POST /verify payload. A request is two short
// strings; anything bigger is not a verification request.
const maxVerifyBody = 1 << 16

// verifyRequest is the POST /verify body.
type verifyRequest struct {
	Identifier   string `json:"identifier"`
	PathSelector string `json:"pathSelector"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVerifyBody)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		s.writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	started := time.Now()
	res := s.verifier.Verify(r.Context(), req.Identifier, req.PathSelector)
	s.metrics.ObserveVerification(pathLabel(req.PathSelector), string(res.Status), time.Since(started))

	writeJSON(w, statusCode(res.Status), res)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"trustAnchorConfigured": s.cfg.TrustAnchorConfigured,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("request served")
	})
}

// statusCode maps the tri-state verdict onto HTTP: verdicts about the
// identifier are the caller's problem, collaborator breakdowns are ours.
func statusCode(s linkage.Status) int {
	switch s {
	case linkage.StatusVerified:
		return http.StatusOK
	case linkage.StatusNotVerified:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// pathLabel normalizes the caller-supplied selector for the metric label.
// Unknown selectors collapse to one value to keep cardinality bounded.
func pathLabel(selector string) string {
	p, err := linkage.ParsePath(selector)
	if err != nil {
		return "INVALID"
	}
	return string(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
