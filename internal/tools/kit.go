package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

const (
	// cacheTTL is how long a tool response stays fresh.
	cacheTTL = 15 * time.Minute

	// callTimeout bounds a single tool call including retries' backoff.
	callTimeout = 30 * time.Second

	// maxRetries is how many times a failed call is retried.
	maxRetries = 2
)

// kit wraps a Tool with caching, retries, and timing. One kit per tool,
// owned by the Registry.
type kit struct {
	tool    Tool
	metrics *metrics.Collector
	logger  log.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	data      any
	expiresAt time.Time
}

func newKit(tool Tool, collector *metrics.Collector, logger log.Logger) *kit {
	return &kit{
		tool:    tool,
		metrics: collector,
		logger:  logger,
		cache:   make(map[string]cacheEntry),
	}
}

// execute runs the tool with the full pipeline: cache lookup, timeout,
// retries with jitter, cache fill, and metrics.
func (k *kit) execute(ctx context.Context, args map[string]any) (*Result, error) {
	start := time.Now()
	key := cacheKey(ctx, k.tool.Name(), args)

	if data, ok := k.lookup(key); ok {
		k.metrics.RecordCacheHit(true)
		return &Result{
			Tool:       k.tool.Name(),
			Data:       data,
			Cached:     true,
			DurationMS: time.Since(start).Milliseconds(),
		}, nil
	}
	k.metrics.RecordCacheHit(false)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	data, err := k.callWithRetry(callCtx, args)
	k.metrics.RecordToolCall(k.tool.Name(), err != nil)
	if err != nil {
		k.logger.Warn("tool call failed", "tool", k.tool.Name(), "error", err)
		return nil, fmt.Errorf("tool %s: %w", k.tool.Name(), err)
	}

	k.store(key, data)
	return &Result{
		Tool:       k.tool.Name(),
		Data:       data,
		Cached:     false,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// callWithRetry retries transient failures with a short randomized delay.
// Validation errors fail immediately.
func (k *kit) callWithRetry(ctx context.Context, args map[string]any) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		data, err := k.tool.Call(ctx, args)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if isPermanent(err) || attempt == maxRetries {
			break
		}

		// 100-500ms jitter between attempts.
		delay := 100*time.Millisecond + time.Duration(rand.Int64N(int64(400*time.Millisecond)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnknownDestination)
}

func (k *kit) lookup(key string) (any, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(k.cache, key)
		return nil, false
	}
	return entry.data, true
}

func (k *kit) store(key string, data any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(cacheTTL)}
}

// cacheKey hashes the tool name plus its canonical JSON arguments.
// json.Marshal sorts map keys, so equal argument sets hash identically.
// Caller identity, when present, is folded in so results scoped to an
// organization or user never leak across callers.
func cacheKey(ctx context.Context, tool string, args map[string]any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", args))
	}
	prefix := tool
	if id, ok := identityFrom(ctx); ok {
		prefix += "\x00" + id.OrgID.String() + "\x00" + id.UserID.String()
	}
	sum := sha256.Sum256(append([]byte(prefix+"\x00"), payload...))
	return hex.EncodeToString(sum[:])
}
