package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

// metricsJSON serves the collector snapshot as JSON.
func metricsJSON(collector *metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, collector.Snapshot())
	})
}

// metricsPrometheus renders the same snapshot in Prometheus text
// exposition format for scrape-based collection.
func metricsPrometheus(collector *metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := collector.Snapshot()
		var b strings.Builder

		writeGauge(&b, "advisor_uptime_seconds", "Process uptime in seconds.", snap.UptimeSeconds)
		writeCounter(&b, "advisor_http_requests_total", "HTTP requests served.", float64(snap.HTTPRequests))
		writeCounter(&b, "advisor_http_errors_total", "HTTP responses with status 500 or above.", float64(snap.HTTPErrors))
		writeGauge(&b, "advisor_http_latency_p95_ms", "95th percentile HTTP latency in milliseconds.", snap.HTTPLatency.P95MS)

		writeCounter(&b, "advisor_runs_started_total", "Agent runs started.", float64(snap.RunsStarted))
		writeCounter(&b, "advisor_runs_completed_total", "Agent runs completed.", float64(snap.RunsCompleted))
		writeCounter(&b, "advisor_runs_failed_total", "Agent runs failed.", float64(snap.RunsFailed))

		writeCounter(&b, "advisor_tool_cache_hits_total", "Tool cache hits.", float64(snap.CacheHits))
		writeCounter(&b, "advisor_tool_cache_misses_total", "Tool cache misses.", float64(snap.CacheMisses))

		fmt.Fprintf(&b, "# HELP advisor_tool_calls_total Tool invocations by tool.\n# TYPE advisor_tool_calls_total counter\n")
		for _, tool := range sortedKeys(snap.Tools) {
			fmt.Fprintf(&b, "advisor_tool_calls_total{tool=%q} %d\n", tool, snap.Tools[tool].Calls)
		}
		fmt.Fprintf(&b, "# HELP advisor_tool_errors_total Failed tool invocations by tool.\n# TYPE advisor_tool_errors_total counter\n")
		for _, tool := range sortedKeys(snap.Tools) {
			fmt.Fprintf(&b, "advisor_tool_errors_total{tool=%q} %d\n", tool, snap.Tools[tool].Errors)
		}

		fmt.Fprintf(&b, "# HELP advisor_node_duration_p95_ms 95th percentile graph node duration in milliseconds.\n# TYPE advisor_node_duration_p95_ms gauge\n")
		for _, node := range sortedKeys(snap.Nodes) {
			fmt.Fprintf(&b, "advisor_node_duration_p95_ms{node=%q} %g\n", node, snap.Nodes[node].P95MS)
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(b.String()))
	})
}

func writeCounter(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n%s %g\n", name, help, name, name, value)
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", name, help, name, name, value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
