package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// extractedConstraints is the structured output requested from the model.
type extractedConstraints struct {
	Destination           string   `json:"destination,omitempty" jsonschema:"primary destination for the trip"`
	DurationDays          int      `json:"duration_days,omitempty" jsonschema:"number of days for the trip"`
	BudgetUSD             float64  `json:"budget_usd,omitempty" jsonschema:"total budget in USD"`
	Preferences           []string `json:"preferences,omitempty" jsonschema:"user preferences such as art museums, kid-friendly, outdoor activities"`
	AvoidOvernightFlights bool     `json:"avoid_overnight_flights,omitempty"`
	CompareAirports       []string `json:"compare_airports,omitempty" jsonschema:"airport codes to compare"`
	StartDate             string   `json:"start_date,omitempty" jsonschema:"trip start date, YYYY-MM-DD"`
	EndDate               string   `json:"end_date,omitempty" jsonschema:"trip end date, YYYY-MM-DD"`
}

const extractSystemPrompt = `You are an expert travel agent. Extract all relevant constraints and preferences from the user's request. Convert mentioned dates to YYYY-MM-DD. If a duration is given, calculate the end date from the start date. If only a month is given, infer a reasonable date range within it. Always try to infer a destination and duration if possible.`

// extractConstraints turns the user message into typed constraints. With a
// model available it asks for structured output; otherwise it falls back
// to pattern matching.
func (g *Graph) extractConstraints(ctx context.Context, s *State) error {
	s.Refinement = IsRefinementRequest(s.Message)

	if g.llm.Available() {
		ec, err := generateTyped[extractedConstraints](ctx, g.llm, extractSystemPrompt, s.Message)
		if err == nil {
			s.Constraints = constraintsFrom(ec)
			s.WorkingSet["extracted"] = ec
			return nil
		}
		g.logger.Warn("constraint extraction fell back to pattern matching", "error", err)
	}

	ec := parseConstraints(s.Message, time.Now())
	s.Constraints = constraintsFrom(ec)
	s.WorkingSet["extracted"] = ec
	return nil
}

// constraintsFrom expands the extraction result into the constraint list
// the verifier checks against.
func constraintsFrom(ec extractedConstraints) []Constraint {
	var out []Constraint
	if ec.BudgetUSD > 0 {
		out = append(out, Constraint{Type: ConstraintBudget, Value: ec.BudgetUSD, IsHard: true})
	}
	if ec.Destination != "" {
		out = append(out, Constraint{Type: ConstraintPreferences, Value: "Destination: " + ec.Destination, IsHard: true})
	}
	if ec.DurationDays > 0 {
		out = append(out, Constraint{Type: ConstraintPreferences, Value: fmt.Sprintf("Duration: %d days", ec.DurationDays), IsHard: false})
	}
	if ec.StartDate != "" {
		end := ec.EndDate
		if end == "" && ec.DurationDays > 0 {
			if start, err := time.Parse("2006-01-02", ec.StartDate); err == nil {
				end = start.AddDate(0, 0, ec.DurationDays-1).Format("2006-01-02")
			}
		}
		if end != "" {
			out = append(out, Constraint{
				Type:   ConstraintDates,
				Value:  map[string]string{"start": ec.StartDate, "end": end},
				IsHard: true,
			})
		}
	}
	for _, p := range ec.Preferences {
		out = append(out, Constraint{Type: ConstraintPreferences, Value: p, IsHard: false})
	}
	if ec.AvoidOvernightFlights {
		out = append(out, Constraint{Type: ConstraintPreferences, Value: "Avoid overnight flights", IsHard: false})
	}
	if len(ec.CompareAirports) > 0 {
		out = append(out, Constraint{
			Type:   ConstraintAirports,
			Value:  ec.CompareAirports,
			IsHard: false,
		})
	}
	return out
}

var (
	destinationRes = []*regexp.Regexp{
		regexp.MustCompile(`(?:to|in|visit|travel to)\s+([a-z\s]+?)(?:\s*(?:,|$|under|\$|next|for|prefer|avoid))`),
		regexp.MustCompile(`(?:plan|trip to)\s+([a-z\s]+?)(?:\s*(?:,|$|under|\$|next|for|prefer|avoid))`),
		regexp.MustCompile(`([a-z\s]+?)\s+(?:trip|itinerary|vacation)`),
	}
	durationRe = regexp.MustCompile(`(\d+)\s*(day|days|night|nights|week|weeks)`)
	budgetRes  = []*regexp.Regexp{
		regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`budget\s*of\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*dollars?`),
	}
	airportRe  = regexp.MustCompile(`(?:from|departing from|departure)\s+([a-zA-Z]{3})\b`)
	fillerRe   = regexp.MustCompile(`\b(?:a|an|the|for|with|and|or|but)\b`)
	interestBy = map[string][]string{
		"museums":          {"museum", "museums", "art museum"},
		"art galleries":    {"art gallery", "galleries"},
		"historical sites": {"historical", "historic", "heritage"},
		"nature":           {"nature", "outdoor", "hiking", "parks"},
		"food & dining":    {"food", "dining", "restaurant", "cuisine"},
		"nightlife":        {"nightlife", "bars", "clubs"},
		"beaches":          {"beach", "beaches", "seaside"},
		"architecture":     {"architecture", "monuments", "landmarks"},
	}
)

// parseConstraints is the no-model fallback. It pulls destination,
// duration, budget, interests, and flags from the raw message.
func parseConstraints(message string, now time.Time) extractedConstraints {
	lower := strings.ToLower(message)
	var ec extractedConstraints

	for _, re := range destinationRes {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		dest := strings.TrimSpace(fillerRe.ReplaceAllString(m[1], ""))
		if len(dest) > 2 {
			ec.Destination = titleCase(dest)
			break
		}
	}

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		ec.DurationDays = n
	}

	for _, re := range budgetRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err == nil {
				ec.BudgetUSD = v
				break
			}
		}
	}

	for interest, keywords := range interestBy {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				ec.Preferences = append(ec.Preferences, interest)
				break
			}
		}
	}
	if containsAny(lower, "kid-friendly", "toddler-friendly", "family-friendly", "toddler") {
		ec.Preferences = append(ec.Preferences, "kid-friendly")
	}
	if containsAny(lower, "avoid overnight", "no overnight", "daytime flights") {
		ec.AvoidOvernightFlights = true
	}

	if m := airportRe.FindStringSubmatch(message); m != nil {
		ec.CompareAirports = []string{strings.ToUpper(m[1])}
	}

	switch {
	case strings.Contains(lower, "next month"):
		ec.StartDate = now.AddDate(0, 0, 30).Format("2006-01-02")
	case strings.Contains(lower, "next week"):
		ec.StartDate = now.AddDate(0, 0, 7).Format("2006-01-02")
	case strings.Contains(lower, "spring"):
		ec.StartDate = time.Date(now.Year(), time.March, 15, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	case strings.Contains(lower, "summer"):
		ec.StartDate = time.Date(now.Year(), time.June, 15, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}

	return ec
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// refinementKeywords mark a message as modifying an earlier itinerary
// rather than starting a fresh one.
var refinementKeywords = []string{
	"based on the previous",
	"previous itinerary",
	"make it cheaper",
	"make it more expensive",
	"add more",
	"remove",
	"change",
	"modify",
	"update",
	"refine",
	"adjust",
	"instead of",
	"rather than",
}

// IsRefinementRequest reports whether the message asks for changes to a
// previous plan.
func IsRefinementRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range refinementKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
