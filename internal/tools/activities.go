package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

// ActivitySearchInput are the arguments for the search_activities tool.
type ActivitySearchInput struct {
	Destination string   `json:"destination" jsonschema:"city to find activities in"`
	Tags        []string `json:"tags,omitempty" jsonschema:"optional filter tags such as museum, outdoor, food, kid_friendly"`
	MaxPriceUSD float64  `json:"max_price_usd,omitempty" jsonschema:"optional per-person price ceiling in USD"`
}

// Activity is one fixture activity option.
type Activity struct {
	Name        string   `json:"name"`
	Tags        []string `json:"tags"`
	PriceUSD    float64  `json:"price_usd"`
	DurationHrs float64  `json:"duration_hours"`
	Indoor      bool     `json:"indoor"`
	KidFriendly bool     `json:"kid_friendly"`
}

// activityTemplates are combined with the destination name to produce
// plausible local options.
var activityTemplates = []struct {
	name        string
	tags        []string
	basePrice   float64
	duration    float64
	indoor      bool
	kidFriendly bool
}{
	{"National Museum", []string{"museum", "culture", "kid_friendly"}, 18, 3, true, true},
	{"Old Town Walking Tour", []string{"culture", "outdoor"}, 25, 2.5, false, true},
	{"Food Market Tasting", []string{"food"}, 45, 2, false, true},
	{"Modern Art Gallery", []string{"museum", "art"}, 22, 2, true, false},
	{"Harbor Kayak Trip", []string{"outdoor", "active"}, 60, 3, false, false},
	{"Science Discovery Center", []string{"museum", "kid_friendly"}, 15, 3, true, true},
	{"Evening Street Food Crawl", []string{"food", "nightlife"}, 35, 3, false, false},
	{"Botanical Gardens", []string{"outdoor", "nature", "kid_friendly"}, 8, 2, false, true},
	{"Craft Workshop", []string{"culture", "hands_on"}, 50, 2, true, true},
	{"Day Hike Viewpoint Trail", []string{"outdoor", "active", "nature"}, 0, 5, false, false},
}

// ActivitiesTool generates deterministic fixture activities.
type ActivitiesTool struct{}

func (ActivitiesTool) Name() string { return "search_activities" }

func (ActivitiesTool) Description() string {
	return "Search things to do in a city, filterable by tags like museum, outdoor, food, or kid_friendly. Returns prices, durations, and whether each activity is indoors."
}

func (ActivitiesTool) InputSchema() *jsonschema.Schema {
	return mustSchema[ActivitySearchInput]()
}

func (t ActivitiesTool) Call(_ context.Context, args map[string]any) (any, error) {
	in, err := decodeArgs[ActivitySearchInput](args)
	if err != nil {
		return nil, err
	}
	if in.Destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}

	dest, ok := lookupCity(in.Destination)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, in.Destination)
	}

	// Tier scales prices the same way it does for lodging.
	tierFactor := map[int]float64{1: 1.3, 2: 1.0, 3: 0.7}[dest.Tier]

	activities := make([]Activity, 0, len(activityTemplates))
	for i, tpl := range activityTemplates {
		seed := seedFor(dest.Name, tpl.name, fmt.Sprint(i))
		price := math.Round(tpl.basePrice * tierFactor * (0.9 + 0.2*spread(seed)))

		if in.MaxPriceUSD > 0 && price > in.MaxPriceUSD {
			continue
		}
		if len(in.Tags) > 0 && !hasAnyTag(tpl.tags, in.Tags) {
			continue
		}

		activities = append(activities, Activity{
			Name:        fmt.Sprintf("%s %s", dest.Name, tpl.name),
			Tags:        tpl.tags,
			PriceUSD:    price,
			DurationHrs: tpl.duration,
			Indoor:      tpl.indoor,
			KidFriendly: tpl.kidFriendly,
		})
	}

	return map[string]any{
		"activities":  activities,
		"destination": dest.Name,
	}, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
