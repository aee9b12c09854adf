package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// maxRepairs caps plan-repair rounds per run.
const maxRepairs = 2

const repairSystemPrompt = `You are an expert travel planner repairing an itinerary plan. You have the current plan, its tool catalog, and a list of constraint violations. Suggest the minimum changes that resolve the violations. Each suggestion targets one plan step: action "modify" with new_args, action "remove", or action "add" with a complete new_step. Modified and added steps will be re-executed.`

// repairSuggestion is one change the model proposes to the plan.
type repairSuggestion struct {
	StepID    string         `json:"step_id"`
	Action    string         `json:"action" jsonschema:"modify, remove, or add"`
	NewArgs   map[string]any `json:"new_args,omitempty"`
	NewStep   *PlanStep      `json:"new_step,omitempty"`
	Reasoning string         `json:"reasoning"`
}

type repairOutput struct {
	Suggestions      []repairSuggestion `json:"suggestions"`
	OverallReasoning string             `json:"overall_reasoning"`
}

// needsRepair reports whether the violations warrant another repair round.
// Informational violations (rainy days) are advice for the synthesizer,
// not plan defects.
func (s *State) needsRepair() bool {
	if s.RepairCount >= maxRepairs {
		return false
	}
	for _, v := range s.Violations {
		if v.Severity == SeverityCritical || v.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// repair adjusts the plan to address critical and warning violations,
// then clears them so the re-executed plan is re-verified fresh.
func (g *Graph) repair(ctx context.Context, s *State) error {
	s.RepairCount++

	applied := false
	if g.llm.Available() {
		out, err := generateTyped[repairOutput](ctx, g.llm, repairSystemPrompt, g.repairPrompt(s))
		if err == nil && len(out.Suggestions) > 0 {
			g.applySuggestions(s, out.Suggestions)
			s.WorkingSet["repair_reasoning"] = out.OverallReasoning
			applied = true
		} else if err != nil {
			g.logger.Warn("repair fell back to heuristics", "error", err)
		}
	}
	if !applied {
		g.heuristicRepair(s)
	}

	s.Violations = nil
	return nil
}

func (g *Graph) repairPrompt(s *State) string {
	catalog, _ := json.Marshal(g.registry.Catalog())
	plan, _ := json.Marshal(s.Plan)
	violations, _ := json.Marshal(s.Violations)
	return fmt.Sprintf("Available tools:\n%s\n\nCurrent plan:\n%s\n\nViolations:\n%s\n\nRepair the plan.",
		catalog, plan, violations)
}

func (g *Graph) applySuggestions(s *State, suggestions []repairSuggestion) {
	for _, sg := range suggestions {
		switch sg.Action {
		case "modify":
			step := s.FindStep(sg.StepID)
			if step == nil {
				continue
			}
			for k, v := range sg.NewArgs {
				step.Args[k] = v
			}
			step.Status = StepPending
		case "remove":
			kept := s.Plan[:0]
			for _, step := range s.Plan {
				if step.ID != sg.StepID {
					kept = append(kept, step)
				}
			}
			s.Plan = kept
		case "add":
			if sg.NewStep != nil && g.registry.Has(sg.NewStep.ToolName) && s.FindStep(sg.NewStep.ID) == nil {
				step := *sg.NewStep
				step.Status = StepPending
				if step.Args == nil {
					step.Args = map[string]any{}
				}
				s.Plan = append(s.Plan, step)
			}
		}
	}
}

// heuristicRepair handles the common violations without a model: budget
// overruns tighten the price arguments on flight and lodging steps, and
// all-overnight flight results retry the next day.
func (g *Graph) heuristicRepair(s *State) {
	limit, hasBudget := budgetLimit(s.Constraints)

	for _, v := range s.Violations {
		switch {
		case v.ConstraintType == ConstraintBudget && v.Severity == SeverityCritical && hasBudget:
			for i := range s.Plan {
				step := &s.Plan[i]
				switch step.ToolName {
				case "search_flights":
					step.Args["max_price_usd"] = limit * 0.4
					step.Status = StepPending
				case "search_lodging":
					nights := 4.0
					if best := lodgingOptions(s); len(best) > 0 {
						nights = float64(cheapestLodging(best).Nights)
					}
					step.Args["max_nightly_usd"] = limit * 0.35 / nights
					step.Status = StepPending
				}
			}
		case v.ConstraintType == ConstraintPreferences && containsAny(v.Description, "overnight"):
			for i := range s.Plan {
				step := &s.Plan[i]
				if step.ToolName != "search_flights" {
					continue
				}
				if date, ok := step.Args["date"].(string); ok {
					step.Args["date"] = nextDay(date)
				}
				step.Status = StepPending
			}
		case v.ConstraintType == ConstraintPreferences && containsAny(v.Description, "kid-friendly", "museum"):
			for i := range s.Plan {
				step := &s.Plan[i]
				if step.ToolName != "search_activities" {
					continue
				}
				tags, _ := step.Args["tags"].([]string)
				if containsAny(v.Description, "kid-friendly") {
					tags = append(tags, "kid_friendly")
				} else {
					tags = append(tags, "museum")
				}
				step.Args["tags"] = tags
				delete(step.Args, "max_price_usd")
				step.Status = StepPending
			}
		}
	}
	s.WorkingSet["repair_reasoning"] = "heuristic repair: tightened search arguments for violated constraints"
}

func nextDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
