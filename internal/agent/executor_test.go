package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestReadySteps_DependencyOrder(t *testing.T) {
	plan := []PlanStep{
		{ID: "a", ToolName: "search_flights", Status: StepPending},
		{ID: "b", ToolName: "search_lodging", Status: StepPending, Dependencies: []string{"a"}},
		{ID: "c", ToolName: "transit_options", Status: StepPending},
	}

	ready := readySteps(plan)
	if len(ready) != 2 {
		t.Fatalf("ready = %d steps, want a and c", len(ready))
	}
	if ready[0].ID != "a" || ready[1].ID != "c" {
		t.Fatalf("ready ids = %s, %s; want a, c", ready[0].ID, ready[1].ID)
	}
	if plan[1].Status != StepPending {
		t.Errorf("step b status = %s, want still pending", plan[1].Status)
	}

	plan[0].Status = StepCompleted
	plan[2].Status = StepCompleted
	ready = readySteps(plan)
	if len(ready) != 1 || ready[0].ID != "b" {
		t.Fatalf("second round ready = %v, want just b", ready)
	}
}

func TestExecuteTools_RunsPlanAndRecordsCalls(t *testing.T) {
	g := testGraph(t)
	s := NewState(uuid.New(), uuid.New(), uuid.New(), "test")
	s.Plan = []PlanStep{
		{
			ID:       "flights",
			ToolName: "search_flights",
			Args: map[string]any{
				"origin":      "SFO",
				"destination": "Tokyo",
				"date":        "2026-09-10",
			},
			Status: StepPending,
		},
		{
			ID:           "transit",
			ToolName:     "transit_options",
			Args:         map[string]any{"city": "Tokyo"},
			Dependencies: []string{"flights"},
			Status:       StepPending,
		},
	}

	for s.PendingSteps() {
		if err := g.executeTools(context.Background(), s); err != nil {
			t.Fatalf("executeTools: %v", err)
		}
	}

	for _, step := range s.Plan {
		if step.Status != StepCompleted {
			t.Errorf("step %s status = %s, want completed", step.ID, step.Status)
		}
		if _, ok := s.WorkingSet[step.ID]; !ok {
			t.Errorf("step %s produced no output", step.ID)
		}
	}
	if len(s.ToolCalls) != 2 {
		t.Errorf("recorded %d tool calls, want 2", len(s.ToolCalls))
	}
	if len(flightOptions(s)) == 0 {
		t.Error("flight options not retrievable from working set")
	}
}

func TestExecuteTools_FailedDependencyMarksBlockedSteps(t *testing.T) {
	g := testGraph(t)
	s := NewState(uuid.New(), uuid.New(), uuid.New(), "test")
	s.Plan = []PlanStep{
		{
			ID:       "flights",
			ToolName: "search_flights",
			// Missing required fields makes the call fail.
			Args:   map[string]any{"destination": "Tokyo"},
			Status: StepPending,
		},
		{
			ID:           "lodging",
			ToolName:     "search_lodging",
			Args:         map[string]any{"destination": "Tokyo"},
			Dependencies: []string{"flights"},
			Status:       StepPending,
		},
	}

	for s.PendingSteps() {
		if err := g.executeTools(context.Background(), s); err != nil {
			t.Fatalf("executeTools: %v", err)
		}
	}

	if s.Plan[0].Status != StepFailed {
		t.Errorf("flights status = %s, want failed", s.Plan[0].Status)
	}
	if s.Plan[1].Status != StepFailed {
		t.Errorf("lodging status = %s, want failed (blocked)", s.Plan[1].Status)
	}
	if len(s.ToolCalls) != 1 || s.ToolCalls[0].Error == "" {
		t.Errorf("tool calls = %v, want one recorded failure", s.ToolCalls)
	}
}
