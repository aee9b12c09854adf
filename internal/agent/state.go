// Package agent implements the travel-planning graph: constraint
// extraction, tool planning, dependency-ordered execution, verification
// against the user's constraints, plan repair, and final synthesis.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// ConstraintType classifies an extracted user constraint.
type ConstraintType string

const (
	ConstraintBudget      ConstraintType = "budget"
	ConstraintDates       ConstraintType = "dates"
	ConstraintAirports    ConstraintType = "airports"
	ConstraintPreferences ConstraintType = "preferences"
	ConstraintWeather     ConstraintType = "weather"
)

// Constraint is one requirement or preference extracted from the user
// request. Hard constraints must be satisfied; soft ones are preferences.
type Constraint struct {
	Type   ConstraintType `json:"type"`
	Value  any            `json:"value"`
	IsHard bool           `json:"is_hard"`
}

// StepStatus tracks a plan step through its lifecycle.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// PlanStep is one tool call in the execution plan. Dependencies name the
// IDs of steps that must complete first.
type PlanStep struct {
	ID           string         `json:"id"`
	ToolName     string         `json:"tool_name"`
	Args         map[string]any `json:"args"`
	Dependencies []string       `json:"dependencies"`
	Status       StepStatus     `json:"status"`
}

// Severity grades a constraint violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Violation is a constraint the current plan fails to satisfy.
type Violation struct {
	ConstraintType ConstraintType `json:"constraint_type"`
	Description    string         `json:"description"`
	Severity       Severity       `json:"severity"`
	SuggestedFix   string         `json:"suggested_fix,omitempty"`
}

// ToolCallRecord is one executed tool call kept for the final summary.
type ToolCallRecord struct {
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	DurationMS int64          `json:"duration_ms"`
	Cached     bool           `json:"cached"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Citation links a statement in the answer back to its source.
type Citation struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Ref    string `json:"ref"`
}

// BudgetCounter accumulates estimated costs per category in USD.
type BudgetCounter struct {
	Flights    float64 `json:"flights"`
	Lodging    float64 `json:"lodging"`
	Activities float64 `json:"activities"`
	Transport  float64 `json:"transport"`
	Food       float64 `json:"food"`
	Total      float64 `json:"total"`
	Currency   string  `json:"currency"`
}

// ItineraryItem is one scheduled entry in a day plan.
type ItineraryItem struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Notes    string `json:"notes,omitempty"`
}

// ItineraryDay groups the items for one date.
type ItineraryDay struct {
	Date  string          `json:"date"`
	Items []ItineraryItem `json:"items"`
}

// Itinerary is the structured final plan.
type Itinerary struct {
	Destination  string         `json:"destination"`
	Days         []ItineraryDay `json:"days"`
	TotalCostUSD float64        `json:"total_cost_usd"`
}

// ToolUsage summarizes calls to one tool across the run.
type ToolUsage struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	TotalMS int64  `json:"total_ms"`
}

// Results is the final payload returned to the API.
type Results struct {
	AnswerMarkdown string        `json:"answer_markdown"`
	Itinerary      *Itinerary    `json:"itinerary,omitempty"`
	Citations      []Citation    `json:"citations"`
	ToolsUsed      []ToolUsage   `json:"tools_used"`
	Decisions      []string      `json:"decisions"`
	Budget         BudgetCounter `json:"budget"`
	Violations     []Violation   `json:"violations"`
}

// State carries everything the graph nodes read and write during a run.
type State struct {
	RunID   uuid.UUID
	OrgID   uuid.UUID
	UserID  uuid.UUID
	Message string

	Constraints []Constraint
	Plan        []PlanStep
	WorkingSet  map[string]any
	ToolCalls   []ToolCallRecord
	Violations  []Violation
	Budget      BudgetCounter
	RepairCount int

	Refinement bool

	Results *Results
	Err     error
}

// NewState builds the initial state for a run.
func NewState(runID, orgID, userID uuid.UUID, message string) *State {
	return &State{
		RunID:      runID,
		OrgID:      orgID,
		UserID:     userID,
		Message:    message,
		WorkingSet: make(map[string]any),
		Budget:     BudgetCounter{Currency: "USD"},
	}
}

// FindStep returns the plan step with the given id.
func (s *State) FindStep(id string) *PlanStep {
	for i := range s.Plan {
		if s.Plan[i].ID == id {
			return &s.Plan[i]
		}
	}
	return nil
}

// PendingSteps reports whether any step has not finished yet.
func (s *State) PendingSteps() bool {
	for _, step := range s.Plan {
		if step.Status == StepPending || step.Status == StepRunning {
			return true
		}
	}
	return false
}

// ToolOutputs returns the completed outputs for a tool name, in plan order.
func (s *State) ToolOutputs(tool string) []any {
	var out []any
	for _, step := range s.Plan {
		if step.ToolName != tool || step.Status != StepCompleted {
			continue
		}
		if v, ok := s.WorkingSet[step.ID]; ok {
			out = append(out, v)
		}
	}
	return out
}
