package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

// runTimeout bounds one full graph execution.
const runTimeout = 5 * time.Minute

// EventType classifies a streamed run event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one SSE payload for a run.
type Event struct {
	Type     EventType `json:"type"`
	Node     string    `json:"node,omitempty"`
	Percent  int       `json:"percent"`
	Detail   string    `json:"detail,omitempty"`
	Results  *Results  `json:"results,omitempty"`
	ErrorMsg string    `json:"error,omitempty"`
}

// RunStorage is what the runner needs from persistence.
type RunStorage interface {
	CreateRun(ctx context.Context, orgID, userID uuid.UUID, query string) (*Run, error)
	GetRun(ctx context.Context, orgID, id uuid.UUID) (*Run, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, step string, percent float64) error
	CompleteRun(ctx context.Context, id uuid.UUID, results *Results) error
	FailRun(ctx context.Context, id uuid.UUID, runErr error) error
}

// Runner starts agent runs asynchronously, persists their state, and fans
// progress events out to stream subscribers.
type Runner struct {
	graph   *Graph
	store   RunStorage
	metrics *metrics.Collector
	logger  log.Logger

	mu   sync.Mutex
	live map[uuid.UUID]*liveRun

	// base context detaches runs from the request that started them.
	base context.Context
}

type liveRun struct {
	subscribers []chan Event
	last        Event
	closed      bool
}

// NewRunner builds the runner. Runs outlive their originating requests
// and are bounded by baseCtx, typically the server's lifetime context.
func NewRunner(baseCtx context.Context, graph *Graph, store RunStorage, collector *metrics.Collector, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Runner{
		graph:   graph,
		store:   store,
		metrics: collector,
		logger:  logger,
		live:    make(map[uuid.UUID]*liveRun),
		base:    baseCtx,
	}
}

// Start persists a new run and executes the graph in the background.
func (r *Runner) Start(ctx context.Context, orgID, userID uuid.UUID, message string) (*Run, error) {
	run, err := r.store.CreateRun(ctx, orgID, userID, message)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.live[run.ID] = &liveRun{}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordRunStarted()
	}
	go r.execute(run.ID, orgID, userID, message)
	return run, nil
}

// Get returns a run, org-scoped.
func (r *Runner) Get(ctx context.Context, orgID, id uuid.UUID) (*Run, error) {
	return r.store.GetRun(ctx, orgID, id)
}

// Subscribe attaches a stream to a run. The returned channel receives the
// latest event immediately, then live updates, and closes when the run
// finishes. The cancel func must be called when the consumer goes away.
// ok is false when the run is not live (already finished or unknown).
func (r *Runner) Subscribe(id uuid.UUID) (events <-chan Event, cancel func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lr, exists := r.live[id]
	if !exists {
		return nil, nil, false
	}

	ch := make(chan Event, 16)
	if lr.last.Type != "" {
		ch <- lr.last
	}
	if lr.closed {
		close(ch)
		return ch, func() {}, true
	}
	lr.subscribers = append(lr.subscribers, ch)

	cancel = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, sub := range lr.subscribers {
			if sub == ch {
				lr.subscribers = append(lr.subscribers[:i], lr.subscribers[i+1:]...)
				break
			}
		}
	}
	return ch, cancel, true
}

// publish fans an event out to subscribers. Slow consumers drop events
// rather than block the run.
func (r *Runner) publish(id uuid.UUID, ev Event, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lr, exists := r.live[id]
	if !exists || lr.closed {
		return
	}
	lr.last = ev
	for _, ch := range lr.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	if final {
		lr.closed = true
		for _, ch := range lr.subscribers {
			close(ch)
		}
		lr.subscribers = nil
		// Keep the final event around briefly for late subscribers.
		go func() {
			time.Sleep(time.Minute)
			r.mu.Lock()
			delete(r.live, id)
			r.mu.Unlock()
		}()
	}
}

func (r *Runner) execute(id, orgID, userID uuid.UUID, message string) {
	ctx, cancel := context.WithTimeout(r.base, runTimeout)
	defer cancel()

	state := NewState(id, orgID, userID, message)

	onProgress := func(p Progress) {
		if err := r.store.UpdateProgress(ctx, id, p.Node, float64(p.Percent)); err != nil {
			r.logger.Warn("persist run progress", "run_id", id, "error", err)
		}
		r.publish(id, Event{Type: EventProgress, Node: p.Node, Percent: p.Percent, Detail: p.Detail}, false)
	}

	results, err := r.graph.Run(ctx, state, onProgress)

	// Final persistence gets its own deadline; ctx may already be done.
	persistCtx, persistCancel := context.WithTimeout(r.base, 10*time.Second)
	defer persistCancel()

	if err != nil {
		r.logger.Error("agent run failed", "run_id", id, "error", err)
		if r.metrics != nil {
			r.metrics.RecordRunFinished(true)
		}
		if storeErr := r.store.FailRun(persistCtx, id, err); storeErr != nil {
			r.logger.Error("persist run failure", "run_id", id, "error", storeErr)
		}
		r.publish(id, Event{Type: EventError, ErrorMsg: err.Error()}, true)
		return
	}

	if r.metrics != nil {
		r.metrics.RecordRunFinished(false)
	}
	if storeErr := r.store.CompleteRun(persistCtx, id, results); storeErr != nil {
		r.logger.Error("persist run results", "run_id", id, "error", storeErr)
	}
	r.logger.Info("agent run completed",
		"run_id", id,
		"tool_calls", len(state.ToolCalls),
		"violations", len(state.Violations),
	)
	r.publish(id, Event{Type: EventDone, Percent: 100, Results: results}, true)
}
