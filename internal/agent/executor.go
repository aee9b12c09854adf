package agent

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/tools"
)

// maxParallelTools caps how many tool calls run at once.
const maxParallelTools = 4

// readySteps returns the pending steps whose dependencies have all
// completed, and marks them running.
func readySteps(plan []PlanStep) []*PlanStep {
	done := make(map[string]bool, len(plan))
	for _, step := range plan {
		done[step.ID] = step.Status == StepCompleted
	}

	var ready []*PlanStep
	for i := range plan {
		step := &plan[i]
		if step.Status != StepPending {
			continue
		}
		ok := true
		for _, dep := range step.Dependencies {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			step.Status = StepRunning
			ready = append(ready, step)
		}
	}
	return ready
}

// executeTools runs every ready step in parallel and folds the results
// into the state. Steps blocked behind a failed dependency are marked
// failed so the loop terminates.
func (g *Graph) executeTools(ctx context.Context, s *State) error {
	steps := readySteps(s.Plan)
	if len(steps) == 0 {
		// Anything still pending depends on a failed step.
		for i := range s.Plan {
			if s.Plan[i].Status == StepPending {
				s.Plan[i].Status = StepFailed
			}
		}
		return nil
	}

	callCtx := tools.WithIdentity(ctx, s.OrgID, s.UserID)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(callCtx)
	eg.SetLimit(maxParallelTools)

	for _, step := range steps {
		eg.Go(func() error {
			start := time.Now()
			res, err := g.registry.Execute(egCtx, step.ToolName, step.Args)

			mu.Lock()
			defer mu.Unlock()

			record := ToolCallRecord{
				ToolName:   step.ToolName,
				Args:       step.Args,
				DurationMS: time.Since(start).Milliseconds(),
				Timestamp:  time.Now(),
			}
			if err != nil {
				record.Error = err.Error()
				step.Status = StepFailed
				g.logger.Warn("plan step failed", "step", step.ID, "tool", step.ToolName, "error", err)
			} else {
				record.Cached = res.Cached
				record.DurationMS = res.DurationMS
				step.Status = StepCompleted
				s.WorkingSet[step.ID] = res.Data
			}
			s.ToolCalls = append(s.ToolCalls, record)
			// Tool failures are reflected in step status, not the run.
			return nil
		})
	}
	return eg.Wait()
}
