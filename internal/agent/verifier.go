package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/tools"
)

// verify checks the executed plan against the constraints and fills the
// budget counters. Violations send the graph to the repair node.
func (g *Graph) verify(s *State) error {
	s.Violations = nil

	g.checkBudget(s)
	g.checkOvernightFlights(s)
	g.checkWeather(s)
	g.checkPreferences(s)

	return nil
}

// budgetLimit returns the hard budget constraint, if any.
func budgetLimit(constraints []Constraint) (float64, bool) {
	for _, c := range constraints {
		if c.Type != ConstraintBudget {
			continue
		}
		switch v := c.Value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}

func hasPreference(constraints []Constraint, substrs ...string) bool {
	for _, c := range constraints {
		if c.Type != ConstraintPreferences {
			continue
		}
		if v, ok := c.Value.(string); ok && containsAny(v, substrs...) {
			return true
		}
	}
	return false
}

// checkBudget estimates the trip cost from the cheapest viable option in
// each category and compares it to the budget limit.
func (g *Graph) checkBudget(s *State) {
	flights := flightOptions(s)
	lodging := lodgingOptions(s)
	activities := activityOptions(s)
	transit := transitOptions(s)

	var counters BudgetCounter
	counters.Currency = "USD"

	if len(flights) > 0 {
		counters.Flights = cheapestFlight(flights).PriceUSD
	}
	nights := 0
	if len(lodging) > 0 {
		best := cheapestLodging(lodging)
		counters.Lodging = best.TotalUSD
		nights = best.Nights
	}
	if nights == 0 {
		nights = 4
	}
	counters.Activities = estimateActivities(activities, nights)
	if dayPass, ok := transitDayPass(transit); ok {
		counters.Transport = dayPass * float64(nights)
	}

	counters.Total = counters.Flights + counters.Lodging + counters.Activities + counters.Transport + counters.Food
	s.Budget = counters

	limit, ok := budgetLimit(s.Constraints)
	if !ok {
		return
	}
	if counters.Total > limit {
		s.Violations = append(s.Violations, Violation{
			ConstraintType: ConstraintBudget,
			Description: fmt.Sprintf("Estimated total cost (%.2f USD) exceeds the budget limit (%.2f USD).",
				counters.Total, limit),
			Severity:     SeverityCritical,
			SuggestedFix: "Search for cheaper flights and lodging, or trim activities.",
		})
	}
}

// checkOvernightFlights flags overnight flights when the user asked to
// avoid them and no daytime alternative exists.
func (g *Graph) checkOvernightFlights(s *State) {
	if !hasPreference(s.Constraints, "avoid overnight") {
		return
	}
	flights := flightOptions(s)
	if len(flights) == 0 {
		return
	}
	for _, f := range flights {
		if !f.Overnight {
			return // a daytime option exists
		}
	}
	s.Violations = append(s.Violations, Violation{
		ConstraintType: ConstraintPreferences,
		Description:    "All available flights are overnight, which the user prefers to avoid.",
		Severity:       SeverityWarning,
		SuggestedFix:   "Search alternative dates or nearby airports for daytime flights.",
	})
}

// checkWeather raises informational violations for rainy forecast days so
// the synthesizer can swap outdoor activities indoors.
func (g *Graph) checkWeather(s *State) {
	for _, out := range s.ToolOutputs("weather_forecast") {
		m, ok := out.(map[string]any)
		if !ok {
			continue
		}
		days, ok := m["daily_forecast"].([]tools.WeatherDay)
		if !ok {
			continue
		}
		for _, d := range days {
			if d.Rainy {
				s.Violations = append(s.Violations, Violation{
					ConstraintType: ConstraintWeather,
					Description:    fmt.Sprintf("Rain expected on %s; outdoor plans should move indoors.", d.Date),
					Severity:       SeverityInfo,
					SuggestedFix:   "Swap outdoor activities on this day for indoor ones.",
				})
			}
		}
	}
}

// checkPreferences verifies kid-friendly and museum preferences are
// reflected in the gathered activities.
func (g *Graph) checkPreferences(s *State) {
	activities := activityOptions(s)
	if len(activities) == 0 {
		return
	}

	if hasPreference(s.Constraints, "kid") {
		found := false
		for _, a := range activities {
			if a.KidFriendly {
				found = true
				break
			}
		}
		if !found {
			s.Violations = append(s.Violations, Violation{
				ConstraintType: ConstraintPreferences,
				Description:    "No kid-friendly activities found, but the user asked for them.",
				Severity:       SeverityWarning,
				SuggestedFix:   "Search activities with the kid_friendly tag.",
			})
		}
	}

	if hasPreference(s.Constraints, "museum") {
		found := false
		for _, a := range activities {
			if strings.Contains(strings.ToLower(a.Name), "museum") || hasTag(a.Tags, "museum") {
				found = true
				break
			}
		}
		if !found {
			s.Violations = append(s.Violations, Violation{
				ConstraintType: ConstraintPreferences,
				Description:    "No museums found, but the user asked for them.",
				Severity:       SeverityWarning,
				SuggestedFix:   "Search activities with the museum tag.",
			})
		}
	}
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// Typed accessors over the working set. Tool outputs stay in-process, so
// the concrete slice types survive.

func flightOptions(s *State) []tools.Flight {
	var out []tools.Flight
	for _, v := range s.ToolOutputs("search_flights") {
		if m, ok := v.(map[string]any); ok {
			if fs, ok := m["flights"].([]tools.Flight); ok {
				out = append(out, fs...)
			}
		}
	}
	return out
}

func lodgingOptions(s *State) []tools.Lodging {
	var out []tools.Lodging
	for _, v := range s.ToolOutputs("search_lodging") {
		if m, ok := v.(map[string]any); ok {
			if ls, ok := m["lodging"].([]tools.Lodging); ok {
				out = append(out, ls...)
			}
		}
	}
	return out
}

func activityOptions(s *State) []tools.Activity {
	var out []tools.Activity
	for _, v := range s.ToolOutputs("search_activities") {
		if m, ok := v.(map[string]any); ok {
			if as, ok := m["activities"].([]tools.Activity); ok {
				out = append(out, as...)
			}
		}
	}
	return out
}

func transitOptions(s *State) []tools.TransitOption {
	var out []tools.TransitOption
	for _, v := range s.ToolOutputs("transit_options") {
		if m, ok := v.(map[string]any); ok {
			if ts, ok := m["options"].([]tools.TransitOption); ok {
				out = append(out, ts...)
			}
		}
	}
	return out
}

func cheapestFlight(flights []tools.Flight) tools.Flight {
	best := flights[0]
	for _, f := range flights[1:] {
		if f.PriceUSD < best.PriceUSD {
			best = f
		}
	}
	return best
}

func cheapestLodging(options []tools.Lodging) tools.Lodging {
	best := options[0]
	for _, l := range options[1:] {
		if l.TotalUSD < best.TotalUSD {
			best = l
		}
	}
	return best
}

// estimateActivities budgets the two cheapest paid activities per day.
func estimateActivities(activities []tools.Activity, days int) float64 {
	if len(activities) == 0 {
		return 0
	}
	prices := make([]float64, 0, len(activities))
	for _, a := range activities {
		prices = append(prices, a.PriceUSD)
	}
	sort.Float64s(prices)

	perDay := 2
	budget := 0.0
	for i := 0; i < len(prices) && i < perDay; i++ {
		budget += prices[i]
	}
	return budget * float64(days)
}

func transitDayPass(options []tools.TransitOption) (float64, bool) {
	for _, o := range options {
		if o.Mode == "day_pass" {
			return o.PriceUSD, true
		}
	}
	return 0, false
}
