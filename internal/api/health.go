package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// probeTimeout bounds each dependency check.
const probeTimeout = 3 * time.Second

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// health is a liveness endpoint for Docker/Kubernetes probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthz runs the registered dependency probes and reports an overall
// status: healthy (all pass), degraded (some fail), unhealthy (all fail).
func healthz(probes map[string]Probe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(probes))
		failed := 0

		for name, probe := range probes {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			err := probe(ctx)
			cancel()
			if err != nil {
				checks[name] = err.Error()
				failed++
			} else {
				checks[name] = "ok"
			}
		}

		status := "healthy"
		code := http.StatusOK
		switch {
		case len(probes) > 0 && failed == len(probes):
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		case failed > 0:
			status = "degraded"
		}

		writeJSON(w, code, map[string]any{"status": status, "checks": checks})
	})
}

// readiness reports whether the server can take traffic, including pool
// statistics when a database pool is configured.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ready"}

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()

			if err := pool.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}

			stat := pool.Stat()
			resp["pool"] = map[string]any{
				"total_conns": stat.TotalConns(),
				"idle_conns":  stat.IdleConns(),
				"max_conns":   stat.MaxConns(),
			}
		}

		writeJSON(w, http.StatusOK, resp)
	})
}
