// Package metrics collects in-process operational counters and timings:
// per-node agent latencies with percentiles, tool call and cache statistics,
// and run counts. Everything lives in memory and is served as JSON by the
// metrics endpoint.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxSamples caps each timing series so memory stays bounded. Oldest
// samples are dropped first.
const maxSamples = 1000

// Collector aggregates metrics. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	startedAt time.Time

	nodeTimings map[string][]float64 // node name -> duration samples (ms)

	toolCalls  map[string]int64
	toolErrors map[string]int64

	cacheHits   int64
	cacheMisses int64

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64

	httpRequests int64
	httpErrors   int64
	httpTimings  []float64
}

// NewCollector creates an empty Collector with the uptime clock started.
func NewCollector() *Collector {
	return &Collector{
		startedAt:   time.Now(),
		nodeTimings: make(map[string][]float64),
		toolCalls:   make(map[string]int64),
		toolErrors:  make(map[string]int64),
	}
}

// RecordNodeDuration adds a timing sample for a graph node.
func (c *Collector) RecordNodeDuration(node string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	samples := append(c.nodeTimings[node], float64(d.Milliseconds()))
	if len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	c.nodeTimings[node] = samples
}

// RecordToolCall counts a tool invocation and, when failed, its error.
func (c *Collector) RecordToolCall(tool string, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolCalls[tool]++
	if failed {
		c.toolErrors[tool]++
	}
}

// RecordCacheHit counts a tool cache hit or miss.
func (c *Collector) RecordCacheHit(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hit {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
}

// RecordRunStarted counts an agent run kickoff.
func (c *Collector) RecordRunStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsStarted++
}

// RecordRunFinished counts an agent run completion.
func (c *Collector) RecordRunFinished(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.runsFailed++
	} else {
		c.runsCompleted++
	}
}

// RecordRequest counts an HTTP request. Status codes of 500 and above
// count as errors.
func (c *Collector) RecordRequest(status int, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.httpRequests++
	if status >= 500 {
		c.httpErrors++
	}
	c.httpTimings = append(c.httpTimings, float64(d.Milliseconds()))
	if len(c.httpTimings) > maxSamples {
		c.httpTimings = c.httpTimings[len(c.httpTimings)-maxSamples:]
	}
}

// NodeStats summarizes one node's timing distribution.
type NodeStats struct {
	Count  int     `json:"count"`
	MeanMS float64 `json:"mean_ms"`
	P95MS  float64 `json:"p95_ms"`
	P99MS  float64 `json:"p99_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// ToolStats summarizes one tool's call counts.
type ToolStats struct {
	Calls  int64 `json:"calls"`
	Errors int64 `json:"errors"`
}

// Snapshot is a point-in-time view of every collected metric.
type Snapshot struct {
	UptimeSeconds float64              `json:"uptime_seconds"`
	Nodes         map[string]NodeStats `json:"nodes"`
	Tools         map[string]ToolStats `json:"tools"`
	CacheHits     int64                `json:"cache_hits"`
	CacheMisses   int64                `json:"cache_misses"`
	CacheHitRate  float64              `json:"cache_hit_rate"`
	RunsStarted   int64                `json:"runs_started"`
	RunsCompleted int64                `json:"runs_completed"`
	RunsFailed    int64                `json:"runs_failed"`
	HTTPRequests  int64                `json:"http_requests"`
	HTTPErrors    int64                `json:"http_errors"`
	HTTPLatency   NodeStats            `json:"http_latency"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startedAt).Seconds(),
		Nodes:         make(map[string]NodeStats, len(c.nodeTimings)),
		Tools:         make(map[string]ToolStats, len(c.toolCalls)),
		CacheHits:     c.cacheHits,
		CacheMisses:   c.cacheMisses,
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsFailed:    c.runsFailed,
		HTTPRequests:  c.httpRequests,
		HTTPErrors:    c.httpErrors,
		HTTPLatency:   summarize(c.httpTimings),
	}

	if total := c.cacheHits + c.cacheMisses; total > 0 {
		snap.CacheHitRate = float64(c.cacheHits) / float64(total)
	}

	for node, samples := range c.nodeTimings {
		snap.Nodes[node] = summarize(samples)
	}
	for tool, calls := range c.toolCalls {
		snap.Tools[tool] = ToolStats{Calls: calls, Errors: c.toolErrors[tool]}
	}
	return snap
}

func summarize(samples []float64) NodeStats {
	if len(samples) == 0 {
		return NodeStats{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return NodeStats{
		Count:  len(sorted),
		MeanMS: sum / float64(len(sorted)),
		P95MS:  percentile(sorted, 0.95),
		P99MS:  percentile(sorted, 0.99),
		MaxMS:  sorted[len(sorted)-1],
	}
}

// percentile expects sorted input and uses nearest-rank selection.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
