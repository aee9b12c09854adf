// Package app assembles the travel advisory service.
//
// App is the composition root: it owns the database pool, the Genkit
// runtime, the auth and knowledge stores, the tool registry, the agent
// runner, and the HTTP API server, and it releases them in reverse order on
// Close. Entry points (the serve command, integration tests) build an App
// once and run its HTTP server for the process lifetime.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/agent"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/api"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/config"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/tools"
)

// shutdownGrace bounds how long Close waits for in-flight requests and
// pending trace spans.
const shutdownGrace = 30 * time.Second

// App is the assembled service.
type App struct {
	Config *config.Config
	Logger log.Logger

	// AI runtime. Genkit is nil when no provider API key is configured;
	// the agent then runs on its deterministic fallbacks.
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	// Persistence
	Pool *pgxpool.Pool

	// Domain services
	Tokens       *auth.Manager
	Auth         *auth.Service
	Users        *auth.Store
	Destinations *destination.Store
	Knowledge    *knowledge.Store
	Ingestor     *knowledge.Ingestor
	Registry     *tools.Registry
	Runner       *agent.Runner
	Metrics      *metrics.Collector

	// HTTP surface
	Server *api.Server

	otelShutdown func(context.Context) error
	cancelRuns   context.CancelFunc
}

// Close releases resources in reverse dependency order: new agent runs are
// canceled first, then the HTTP-independent pieces, the database pool, and
// finally the trace exporter flush.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.cancelRuns != nil {
		a.cancelRuns()
	}

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}

	return nil
}

// ListenAndServe runs the HTTP API server until ctx is canceled, then
// drains in-flight requests within the shutdown grace period.
func (a *App) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.ServerAddr(),
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// SSE streams outlive any sane write timeout; the per-run timeout
		// inside the agent runner bounds them instead.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("draining HTTP server", "grace", shutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
