package metrics

import (
	"testing"
	"time"
)

func TestCollector_NodeTimings(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.RecordNodeDuration("plan", time.Duration(i)*time.Millisecond)
	}

	snap := c.Snapshot()
	stats, ok := snap.Nodes["plan"]
	if !ok {
		t.Fatal("no stats for plan node")
	}
	if stats.Count != 100 {
		t.Errorf("count = %d, want 100", stats.Count)
	}
	if stats.MaxMS != 100 {
		t.Errorf("max = %v, want 100", stats.MaxMS)
	}
	if stats.P95MS < 90 || stats.P95MS > 100 {
		t.Errorf("p95 = %v, want within [90,100]", stats.P95MS)
	}
	if stats.P99MS < stats.P95MS {
		t.Errorf("p99 (%v) below p95 (%v)", stats.P99MS, stats.P95MS)
	}
}

func TestCollector_SampleCap(t *testing.T) {
	c := NewCollector()
	for range maxSamples + 500 {
		c.RecordNodeDuration("verify", time.Millisecond)
	}

	if got := c.Snapshot().Nodes["verify"].Count; got != maxSamples {
		t.Errorf("count = %d, want capped at %d", got, maxSamples)
	}
}

func TestCollector_ToolStats(t *testing.T) {
	c := NewCollector()
	c.RecordToolCall("search_flights", false)
	c.RecordToolCall("search_flights", false)
	c.RecordToolCall("search_flights", true)

	stats := c.Snapshot().Tools["search_flights"]
	if stats.Calls != 3 {
		t.Errorf("calls = %d, want 3", stats.Calls)
	}
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", stats.Errors)
	}
}

func TestCollector_CacheHitRate(t *testing.T) {
	c := NewCollector()
	c.RecordCacheHit(true)
	c.RecordCacheHit(true)
	c.RecordCacheHit(true)
	c.RecordCacheHit(false)

	snap := c.Snapshot()
	if snap.CacheHitRate != 0.75 {
		t.Errorf("hit rate = %v, want 0.75", snap.CacheHitRate)
	}
}

func TestCollector_RunCounts(t *testing.T) {
	c := NewCollector()
	c.RecordRunStarted()
	c.RecordRunStarted()
	c.RecordRunFinished(false)
	c.RecordRunFinished(true)

	snap := c.Snapshot()
	if snap.RunsStarted != 2 || snap.RunsCompleted != 1 || snap.RunsFailed != 1 {
		t.Errorf("runs = %d/%d/%d, want 2/1/1", snap.RunsStarted, snap.RunsCompleted, snap.RunsFailed)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	if snap.CacheHitRate != 0 {
		t.Error("empty collector should report zero hit rate")
	}
	if len(snap.Nodes) != 0 || len(snap.Tools) != 0 {
		t.Error("empty collector should report no series")
	}
}
