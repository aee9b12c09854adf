package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const plannerSystemPrompt = `You are an expert travel planner. Create a multi-step plan based on user constraints and the available tools. Each step is a call to one tool. Use dependencies between steps: flight information before lodging, lodging before activities. When comparing options (airports, neighborhoods), plan parallel tool calls. Each step needs a unique "id", a "tool_name" from the catalog, "args" matching the tool's input schema, and "dependencies" listing ids of steps that must finish first. Cover flights, lodging, activities, weather, and transit where the constraints allow, and include one rag_search step for local knowledge.`

// plannerOutput is the structured plan requested from the model.
type plannerOutput struct {
	Plan      []PlanStep `json:"plan"`
	Reasoning string     `json:"reasoning"`
}

// plan builds or rebuilds the execution plan. Unknown tool names from the
// model are dropped; an empty or failed model plan falls back to a
// deterministic one derived from the constraints.
func (g *Graph) plan(ctx context.Context, s *State) error {
	if s.PendingSteps() {
		// Re-entry after repair with work still queued.
		return nil
	}

	if g.llm.Available() {
		out, err := generateTyped[plannerOutput](ctx, g.llm, plannerSystemPrompt, g.plannerPrompt(s))
		if err == nil {
			steps := g.validSteps(out.Plan)
			if len(steps) > 0 {
				s.Plan = steps
				s.WorkingSet["planner_reasoning"] = out.Reasoning
				return nil
			}
			g.logger.Warn("model plan had no usable steps")
		} else {
			g.logger.Warn("planner fell back to default plan", "error", err)
		}
	}

	s.Plan = g.fallbackPlan(s)
	s.WorkingSet["planner_reasoning"] = "default plan derived from constraints"
	return nil
}

// plannerPrompt serializes the catalog, constraints, and any prior plan
// for the model.
func (g *Graph) plannerPrompt(s *State) string {
	catalog, _ := json.Marshal(g.registry.Catalog())
	constraints, _ := json.Marshal(s.Constraints)
	prior, _ := json.Marshal(s.Plan)
	return fmt.Sprintf("Available tools:\n%s\n\nConstraints:\n%s\n\nPrior plan (refine if present):\n%s\n\nGenerate the travel plan.",
		catalog, constraints, prior)
}

// validSteps keeps only steps naming registered tools and resets their
// status. Dependencies on dropped steps are removed.
func (g *Graph) validSteps(steps []PlanStep) []PlanStep {
	kept := make(map[string]bool, len(steps))
	out := make([]PlanStep, 0, len(steps))
	for _, step := range steps {
		if step.ID == "" || !g.registry.Has(step.ToolName) || kept[step.ID] {
			g.logger.Debug("dropping plan step", "id", step.ID, "tool", step.ToolName)
			continue
		}
		step.Status = StepPending
		if step.Args == nil {
			step.Args = map[string]any{}
		}
		kept[step.ID] = true
		out = append(out, step)
	}
	for i := range out {
		deps := out[i].Dependencies[:0]
		for _, d := range out[i].Dependencies {
			if kept[d] {
				deps = append(deps, d)
			}
		}
		out[i].Dependencies = deps
	}
	return out
}

// fallbackPlan covers the core itinerary needs without a model: knowledge
// lookup always, then weather, lodging, activities, and transit when a
// destination is known, and flights when an origin airport was given.
func (g *Graph) fallbackPlan(s *State) []PlanStep {
	ec, _ := s.WorkingSet["extracted"].(extractedConstraints)

	start := ec.StartDate
	if start == "" {
		start = time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	}
	days := ec.DurationDays
	if days <= 0 {
		days = 4
	}
	end := ec.EndDate
	if end == "" {
		if t, err := time.Parse("2006-01-02", start); err == nil {
			end = t.AddDate(0, 0, days-1).Format("2006-01-02")
		}
	}

	query := "travel tips"
	if ec.Destination != "" {
		query = ec.Destination + " travel tips"
	}
	steps := []PlanStep{{
		ID:       "knowledge",
		ToolName: "rag_search",
		Args:     map[string]any{"query": query},
		Status:   StepPending,
	}}

	if ec.Destination == "" {
		return steps
	}

	steps = append(steps, PlanStep{
		ID:       "weather",
		ToolName: "weather_forecast",
		Args:     map[string]any{"destination": ec.Destination, "start_date": start, "end_date": end},
		Status:   StepPending,
	})

	lodgingDeps := []string{}
	if len(ec.CompareAirports) > 0 {
		steps = append(steps, PlanStep{
			ID:       "flights",
			ToolName: "search_flights",
			Args:     map[string]any{"origin": ec.CompareAirports[0], "destination": ec.Destination, "date": start},
			Status:   StepPending,
		})
		lodgingDeps = append(lodgingDeps, "flights")
	}

	lodgingArgs := map[string]any{"destination": ec.Destination, "check_in": start, "check_out": end}
	steps = append(steps, PlanStep{
		ID:           "lodging",
		ToolName:     "search_lodging",
		Args:         lodgingArgs,
		Dependencies: lodgingDeps,
		Status:       StepPending,
	})

	activityArgs := map[string]any{"destination": ec.Destination}
	if tags := preferenceTags(ec.Preferences); len(tags) > 0 {
		activityArgs["tags"] = tags
	}
	steps = append(steps,
		PlanStep{
			ID:           "activities",
			ToolName:     "search_activities",
			Args:         activityArgs,
			Dependencies: []string{"lodging"},
			Status:       StepPending,
		},
		PlanStep{
			ID:           "transit",
			ToolName:     "transit_options",
			Args:         map[string]any{"city": ec.Destination},
			Dependencies: lodgingDeps,
			Status:       StepPending,
		},
	)
	return steps
}

// preferenceTags maps free-form preferences onto the activity tag set.
func preferenceTags(prefs []string) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	for _, p := range prefs {
		switch {
		case containsAny(p, "museum", "art", "galler"):
			add("museum")
		case containsAny(p, "kid", "toddler", "family"):
			add("kid_friendly")
		case containsAny(p, "nature", "outdoor", "hik", "beach"):
			add("outdoor")
		case containsAny(p, "food", "dining", "cuisine"):
			add("food")
		case containsAny(p, "histor", "architect", "heritage", "culture"):
			add("culture")
		}
	}
	return tags
}
