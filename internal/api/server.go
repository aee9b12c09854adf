// Package api implements the JSON HTTP surface: authentication, destination
// and knowledge management, agent runs with SSE streaming, and the
// operational endpoints (health probes and metrics).
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/agent"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

// ServerConfig contains everything the API server needs.
type ServerConfig struct {
	Logger             log.Logger
	AuthService        *auth.Service       // Required
	Tokens             *auth.Manager       // Required
	Destinations       *destination.Store  // Required
	KnowledgeStore     *knowledge.Store    // Required
	Ingestor           *knowledge.Ingestor // Required
	Embedder           *knowledge.Embedder // Optional: nil forces keyword search
	Runner             *agent.Runner       // Required
	Metrics            *metrics.Collector  // Optional
	Pool               *pgxpool.Pool       // Optional: nil disables pool stats in /ready
	Probes             map[string]Probe    // Dependency checks for /healthz
	CORSOrigins        []string            // Allowed origins for CORS
	TrustProxy         bool                // Trust X-Real-IP/X-Forwarded-For headers
	IsDev              bool                // Disables HSTS
	APIRatePerMinute   int                 // Per-caller request budget (0 = 60)
	AgentRatePerMinute int                 // Per-caller agent run budget (0 = 5)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.AuthService == nil:
		return nil, errors.New("auth service is required")
	case cfg.Tokens == nil:
		return nil, errors.New("token manager is required")
	case cfg.Destinations == nil:
		return nil, errors.New("destination store is required")
	case cfg.KnowledgeStore == nil || cfg.Ingestor == nil:
		return nil, errors.New("knowledge store and ingestor are required")
	case cfg.Runner == nil:
		return nil, errors.New("agent runner is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ah := &authHandler{service: cfg.AuthService, logger: logger}
	dh := &destinationHandler{store: cfg.Destinations, logger: logger}
	kh := &knowledgeHandler{
		store:    cfg.KnowledgeStore,
		ingestor: cfg.Ingestor,
		embedder: cfg.Embedder,
		logger:   logger,
	}
	agh := &agentHandler{runner: cfg.Runner, logger: logger}

	agentLimit := cfg.AgentRatePerMinute
	if agentLimit <= 0 {
		agentLimit = 5
	}
	agentRL := newRateLimiter(agentLimit)
	limitAgent := rateLimitMiddleware(agentRL, cfg.TrustProxy, logger)

	mux := http.NewServeMux()

	// Authentication
	mux.HandleFunc("POST /api/v1/auth/login", ah.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", ah.refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", ah.logout)
	mux.HandleFunc("GET /api/v1/auth/me", ah.me)

	// User management (service layer enforces the admin role)
	mux.HandleFunc("POST /api/v1/users", ah.createUser)
	mux.HandleFunc("GET /api/v1/users", ah.listUsers)
	mux.HandleFunc("DELETE /api/v1/users/{id}", ah.deleteUser)

	// Destinations
	mux.HandleFunc("POST /api/v1/destinations", dh.create)
	mux.HandleFunc("GET /api/v1/destinations", dh.list)
	mux.HandleFunc("GET /api/v1/destinations/{id}", dh.get)
	mux.HandleFunc("PUT /api/v1/destinations/{id}", dh.update)
	mux.HandleFunc("DELETE /api/v1/destinations/{id}", dh.delete)

	// Knowledge base
	mux.HandleFunc("POST /api/v1/knowledge/upload", kh.upload)
	mux.HandleFunc("POST /api/v1/knowledge/url", kh.ingestURL)
	mux.HandleFunc("POST /api/v1/knowledge/text", kh.ingestText)
	mux.HandleFunc("GET /api/v1/knowledge", kh.list)
	mux.HandleFunc("GET /api/v1/knowledge/{id}", kh.get)
	mux.HandleFunc("GET /api/v1/knowledge/{id}/chunks", kh.listChunks)
	mux.HandleFunc("DELETE /api/v1/knowledge/{id}", kh.delete)
	mux.HandleFunc("POST /api/v1/knowledge/{id}/reprocess", kh.reprocess)
	mux.HandleFunc("POST /api/v1/knowledge/search", kh.search)

	// Agent runs. Starting a run has its own tighter budget.
	mux.Handle("POST /api/v1/agent/run", limitAgent(http.HandlerFunc(agh.startRun)))
	mux.HandleFunc("GET /api/v1/agent/run/{id}/status", agh.runStatus)
	mux.HandleFunc("GET /api/v1/agent/run/{id}/stream", agh.stream)

	// Login and refresh work without an access token.
	exempt := map[string]struct{}{
		"/api/v1/auth/login":   {},
		"/api/v1/auth/refresh": {},
	}

	apiRL := newRateLimiter(cfg.APIRatePerMinute)

	// Build middleware stack (outermost first):
	//   Recovery -> RequestID -> Logging -> CORS -> Auth -> RateLimit -> Routes
	// RequestID precedes Logging so request_id is available in log fields.
	// CORS precedes Auth so preflight OPTIONS gets CORS headers.
	// RateLimit sits inside Auth so authenticated callers are keyed by
	// user id rather than shared client IP; exempt paths key by IP.
	// The per-route agent limiter applies a tighter per-user budget.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(apiRL, cfg.TrustProxy, logger)(handler)
	handler = authMiddleware(cfg.Tokens, logger, exempt)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger, cfg.Metrics)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps operational endpoints outside the middleware
	// stack so probes and scrapers are never rate limited or authed.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /healthz", healthz(cfg.Probes))
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	if cfg.Metrics != nil {
		topMux.Handle("GET /metrics", metricsJSON(cfg.Metrics))
		topMux.Handle("GET /metrics/prometheus", metricsPrometheus(cfg.Metrics))
	}
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
