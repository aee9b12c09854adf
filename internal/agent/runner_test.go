package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

// memoryRunStore keeps runs in a map for runner tests.
type memoryRunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*Run
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: make(map[uuid.UUID]*Run)}
}

func (m *memoryRunStore) CreateRun(_ context.Context, orgID, userID uuid.UUID, query string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Run{
		ID:          uuid.New(),
		OrgID:       orgID,
		UserID:      userID,
		Query:       query,
		Status:      RunRunning,
		CurrentStep: "starting",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.runs[r.ID] = r
	return r, nil
}

func (m *memoryRunStore) GetRun(_ context.Context, orgID, id uuid.UUID) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.OrgID != orgID {
		return nil, ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryRunStore) UpdateProgress(_ context.Context, id uuid.UUID, step string, percent float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.CurrentStep = step
		r.Progress = percent
	}
	return nil
}

func (m *memoryRunStore) CompleteRun(_ context.Context, id uuid.UUID, results *Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.Status = RunCompleted
		r.Progress = 100
		r.Results = results
	}
	return nil
}

func (m *memoryRunStore) FailRun(_ context.Context, id uuid.UUID, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.Status = RunFailed
		r.Error = runErr.Error()
	}
	return nil
}

func TestRunner_StartCompletesAndStreams(t *testing.T) {
	store := newMemoryRunStore()
	runner := NewRunner(context.Background(), testGraph(t), store, metrics.NewCollector(), log.NewNop())

	orgID, userID := uuid.New(), uuid.New()
	run, err := runner.Start(context.Background(), orgID, userID,
		"Plan a trip to Lisbon for 3 days under $1,500")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.Status != RunRunning {
		t.Fatalf("run status = %s, want running", run.Status)
	}

	events, cancel, ok := runner.Subscribe(run.ID)
	if !ok {
		t.Fatal("Subscribe: run not live")
	}
	defer cancel()

	var last Event
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev, open := <-events:
			if !open {
				goto done
			}
			last = ev
		case <-deadline:
			t.Fatal("timed out waiting for run events")
		}
	}
done:
	if last.Type != EventDone {
		t.Fatalf("final event = %+v, want done", last)
	}
	if last.Results == nil || last.Results.Itinerary == nil {
		t.Fatal("done event carries no results")
	}

	stored, err := store.GetRun(context.Background(), orgID, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != RunCompleted || stored.Progress != 100 {
		t.Errorf("stored run = status %s progress %.0f, want completed at 100", stored.Status, stored.Progress)
	}
	if stored.Results == nil {
		t.Error("stored run has no results")
	}
}

func TestRunner_GetScopedToOrg(t *testing.T) {
	store := newMemoryRunStore()
	runner := NewRunner(context.Background(), testGraph(t), store, metrics.NewCollector(), log.NewNop())

	run, err := runner.Start(context.Background(), uuid.New(), uuid.New(), "hello")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := runner.Get(context.Background(), uuid.New(), run.ID); err != ErrRunNotFound {
		t.Fatalf("cross-org Get err = %v, want ErrRunNotFound", err)
	}
}

func TestRunner_SubscribeUnknownRun(t *testing.T) {
	runner := NewRunner(context.Background(), testGraph(t), newMemoryRunStore(), metrics.NewCollector(), log.NewNop())

	if _, _, ok := runner.Subscribe(uuid.New()); ok {
		t.Fatal("Subscribe to unknown run reported ok")
	}
}
