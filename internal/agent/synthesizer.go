package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
)

const synthSystemPrompt = `You are an expert travel advisor. Synthesize a final trip plan from the gathered tool results, constraints, and any unresolved violations. Produce a detailed human-readable markdown narrative, a structured itinerary with daily entries, citations back to the sources used, and a short list of the key decisions made (for example why a flight or hotel was chosen). State the total estimated cost with a figure like "Total cost: $1,234". Respect the violations: move outdoor plans indoors on rainy days and mention trade-offs made for the budget.`

// synthOutput is the structured synthesis requested from the model.
type synthOutput struct {
	AnswerMarkdown string     `json:"answer_markdown"`
	Itinerary      Itinerary  `json:"itinerary"`
	Citations      []Citation `json:"citations"`
	Decisions      []string   `json:"decisions"`
}

// synthesize assembles the final results payload, with or without a model.
func (g *Graph) synthesize(ctx context.Context, s *State) error {
	usage := summarizeToolUsage(s.ToolCalls)

	if g.llm.Available() {
		out, err := generateTyped[synthOutput](ctx, g.llm, synthSystemPrompt, g.synthPrompt(s))
		if err == nil {
			itinerary := out.Itinerary
			if itinerary.TotalCostUSD == 0 {
				if cost, ok := ExtractCost(out.AnswerMarkdown); ok {
					itinerary.TotalCostUSD = cost
				} else {
					itinerary.TotalCostUSD = s.Budget.Total
				}
			}
			s.Results = &Results{
				AnswerMarkdown: out.AnswerMarkdown,
				Itinerary:      &itinerary,
				Citations:      append(out.Citations, ragCitations(s)...),
				ToolsUsed:      usage,
				Decisions:      out.Decisions,
				Budget:         s.Budget,
				Violations:     s.Violations,
			}
			return nil
		}
		g.logger.Warn("synthesis fell back to assembled itinerary", "error", err)
	}

	itinerary, decisions := g.assembleItinerary(s)
	s.Results = &Results{
		AnswerMarkdown: renderMarkdown(s, itinerary, decisions),
		Itinerary:      itinerary,
		Citations:      ragCitations(s),
		ToolsUsed:      usage,
		Decisions:      decisions,
		Budget:         s.Budget,
		Violations:     s.Violations,
	}
	return nil
}

func (g *Graph) synthPrompt(s *State) string {
	constraints, _ := json.Marshal(s.Constraints)
	working, _ := json.Marshal(s.WorkingSet)
	violations, _ := json.Marshal(s.Violations)
	return fmt.Sprintf("Constraints:\n%s\n\nTool results:\n%s\n\nUnresolved violations:\n%s\n\nSynthesize the final travel plan.",
		constraints, working, violations)
}

func summarizeToolUsage(calls []ToolCallRecord) []ToolUsage {
	byName := map[string]*ToolUsage{}
	for _, c := range calls {
		u, ok := byName[c.ToolName]
		if !ok {
			u = &ToolUsage{Name: c.ToolName}
			byName[c.ToolName] = u
		}
		u.Count++
		u.TotalMS += c.DurationMS
	}
	out := make([]ToolUsage, 0, len(byName))
	for _, u := range byName {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ragCitations converts retrieved knowledge chunks into citations.
func ragCitations(s *State) []Citation {
	var out []Citation
	seen := map[string]bool{}
	for _, v := range s.ToolOutputs("rag_search") {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		results, ok := m["results"].([]knowledge.SearchResult)
		if !ok {
			continue
		}
		for _, r := range results {
			key := r.ItemID.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Citation{
				Title:  r.Title,
				Source: "knowledge",
				Ref:    key,
			})
		}
	}
	return out
}

// rainyDates collects forecast dates flagged rainy.
func rainyDates(s *State) map[string]bool {
	rainy := map[string]bool{}
	for _, v := range s.Violations {
		if v.ConstraintType != ConstraintWeather {
			continue
		}
		for _, f := range strings.Fields(v.Description) {
			if _, err := time.Parse("2006-01-02", strings.TrimRight(f, ";.,")); err == nil {
				rainy[strings.TrimRight(f, ";.,")] = true
			}
		}
	}
	return rainy
}

// assembleItinerary builds a day-by-day plan from the tool results alone.
// Rainy days get indoor activities first.
func (g *Graph) assembleItinerary(s *State) (*Itinerary, []string) {
	ec, _ := s.WorkingSet["extracted"].(extractedConstraints)

	dest := ec.Destination
	if dest == "" {
		dest = "your destination"
	}

	start, err := time.Parse("2006-01-02", ec.StartDate)
	if err != nil {
		start = time.Now().AddDate(0, 0, 30)
	}
	days := ec.DurationDays
	if days <= 0 {
		days = 4
	}

	activities := activityOptions(s)
	indoor := make([]knowledgeActivity, 0, len(activities))
	outdoor := make([]knowledgeActivity, 0, len(activities))
	for _, a := range activities {
		ka := knowledgeActivity{name: a.Name, indoor: a.Indoor}
		if a.Indoor {
			indoor = append(indoor, ka)
		} else {
			outdoor = append(outdoor, ka)
		}
	}
	rainy := rainyDates(s)

	var decisions []string
	itinerary := &Itinerary{Destination: dest, TotalCostUSD: s.Budget.Total}

	flights := flightOptions(s)
	lodging := lodgingOptions(s)
	var stayNote string
	if len(lodging) > 0 {
		best := cheapestLodging(lodging)
		stayNote = fmt.Sprintf("Stay at %s (%s, %.0f USD total)", best.Name, best.Neighborhood, best.TotalUSD)
		decisions = append(decisions, fmt.Sprintf("Chose %s as the best-value stay at %.0f USD/night.", best.Name, best.NightlyUSD))
	}

	ii, oi := 0, 0
	nextActivity := func(preferIndoor bool) (string, bool) {
		if preferIndoor && ii < len(indoor) {
			ii++
			return indoor[ii-1].name, true
		}
		if oi < len(outdoor) {
			oi++
			return outdoor[oi-1].name, true
		}
		if ii < len(indoor) {
			ii++
			return indoor[ii-1].name, true
		}
		return "", false
	}

	for d := range days {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		day := ItineraryDay{Date: date}

		if d == 0 {
			title := "Arrive in " + dest
			notes := stayNote
			if len(flights) > 0 {
				best := cheapestFlight(flights)
				title = fmt.Sprintf("Flight %s to %s", best.FlightNumber, best.Destination)
				decisions = append(decisions, fmt.Sprintf("Chose %s flight %s at %.0f USD.", best.Airline, best.FlightNumber, best.PriceUSD))
			}
			day.Items = append(day.Items, ItineraryItem{
				Start: "09:00", End: "12:00", Title: title, Location: dest, Notes: notes,
			})
		}

		preferIndoor := rainy[date]
		if preferIndoor {
			decisions = append(decisions, fmt.Sprintf("Scheduled indoor activities on %s because of rain.", date))
		}
		if name, ok := nextActivity(preferIndoor); ok {
			day.Items = append(day.Items, ItineraryItem{
				Start: "10:00", End: "13:00", Title: name, Location: dest,
			})
		}
		if name, ok := nextActivity(preferIndoor); ok {
			day.Items = append(day.Items, ItineraryItem{
				Start: "15:00", End: "18:00", Title: name, Location: dest,
			})
		}
		day.Items = append(day.Items, ItineraryItem{
			Start: "19:00", End: "21:00", Title: "Dinner", Location: dest,
			Notes: "Local cuisine",
		})

		itinerary.Days = append(itinerary.Days, day)
	}

	return itinerary, decisions
}

type knowledgeActivity struct {
	name   string
	indoor bool
}

func renderMarkdown(s *State, itinerary *Itinerary, decisions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Trip Plan: %s\n\n", itinerary.Destination)
	fmt.Fprintf(&b, "Estimated total cost: $%.2f\n\n", itinerary.TotalCostUSD)

	if limit, ok := budgetLimit(s.Constraints); ok {
		fmt.Fprintf(&b, "Budget: $%.2f (remaining: $%.2f)\n\n", limit, limit-itinerary.TotalCostUSD)
	}

	for _, day := range itinerary.Days {
		fmt.Fprintf(&b, "## %s\n\n", day.Date)
		for _, item := range day.Items {
			fmt.Fprintf(&b, "- **%s-%s** %s", item.Start, item.End, item.Title)
			if item.Notes != "" {
				fmt.Fprintf(&b, " (%s)", item.Notes)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(decisions) > 0 {
		b.WriteString("## Decisions\n\n")
		for _, d := range decisions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	for _, v := range s.Violations {
		if v.Severity == SeverityInfo {
			continue
		}
		fmt.Fprintf(&b, "> Note: %s\n", v.Description)
	}

	return b.String()
}
