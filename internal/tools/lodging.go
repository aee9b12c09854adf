package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// LodgingSearchInput are the arguments for the search_lodging tool.
type LodgingSearchInput struct {
	Destination   string  `json:"destination" jsonschema:"city to find lodging in"`
	CheckIn       string  `json:"check_in" jsonschema:"check-in date in YYYY-MM-DD format"`
	CheckOut      string  `json:"check_out" jsonschema:"check-out date in YYYY-MM-DD format"`
	MaxNightlyUSD float64 `json:"max_nightly_usd,omitempty" jsonschema:"optional nightly price ceiling in USD"`
	KidFriendly   bool    `json:"kid_friendly,omitempty" jsonschema:"only return family-suitable options"`
}

// Lodging is one fixture lodging option.
type Lodging struct {
	Name         string  `json:"name"`
	Style        string  `json:"style"`
	NightlyUSD   float64 `json:"nightly_usd"`
	TotalUSD     float64 `json:"total_usd"`
	Nights       int     `json:"nights"`
	Rating       float64 `json:"rating"`
	KidFriendly  bool    `json:"kid_friendly"`
	Neighborhood string  `json:"neighborhood"`
}

var lodgingStyles = []string{"boutique hotel", "business hotel", "guesthouse", "aparthotel", "ryokan"}

var lodgingNames = []string{
	"The Harbor House", "Cedar & Stone Inn", "Hotel Meridian",
	"The Atlas", "Lantern Lodge", "Riverside Suites", "The Old Quarter",
}

var neighborhoods = []string{"city center", "old town", "riverside", "station district", "arts quarter"}

// tierNightlyBase maps a city tier to a base nightly rate in USD.
var tierNightlyBase = map[int]float64{1: 220, 2: 140, 3: 80}

// LodgingTool generates deterministic fixture lodging options.
type LodgingTool struct{}

func (LodgingTool) Name() string { return "search_lodging" }

func (LodgingTool) Description() string {
	return "Search hotels and guesthouses in a city for a date range. Returns nightly and total prices, rating, and family suitability."
}

func (LodgingTool) InputSchema() *jsonschema.Schema {
	return mustSchema[LodgingSearchInput]()
}

func (t LodgingTool) Call(_ context.Context, args map[string]any) (any, error) {
	in, err := decodeArgs[LodgingSearchInput](args)
	if err != nil {
		return nil, err
	}
	if in.Destination == "" || in.CheckIn == "" || in.CheckOut == "" {
		return nil, fmt.Errorf("%w: destination, check_in, and check_out are required", ErrInvalidInput)
	}

	checkIn, err := time.Parse("2006-01-02", in.CheckIn)
	if err != nil {
		return nil, fmt.Errorf("%w: check_in must be YYYY-MM-DD", ErrInvalidInput)
	}
	checkOut, err := time.Parse("2006-01-02", in.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: check_out must be YYYY-MM-DD", ErrInvalidInput)
	}
	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights <= 0 {
		return nil, fmt.Errorf("%w: check_out must be after check_in", ErrInvalidInput)
	}

	dest, ok := lookupCity(in.Destination)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, in.Destination)
	}

	base := tierNightlyBase[dest.Tier]
	options := make([]Lodging, 0, 5)
	for i := range 5 {
		seed := seedFor(dest.Name, in.CheckIn, fmt.Sprint(i))

		nightly := math.Round(base * (0.6 + 0.9*spread(seed)))
		if in.MaxNightlyUSD > 0 && nightly > in.MaxNightlyUSD {
			continue
		}

		kidFriendly := seed%2 == 0
		if in.KidFriendly && !kidFriendly {
			continue
		}

		options = append(options, Lodging{
			Name:         pick(seed, lodgingNames),
			Style:        pick(seed>>8, lodgingStyles),
			NightlyUSD:   nightly,
			TotalUSD:     nightly * float64(nights),
			Nights:       nights,
			Rating:       math.Round((3.4+1.6*spread(seed>>16))*10) / 10,
			KidFriendly:  kidFriendly,
			Neighborhood: pick(seed>>24, neighborhoods),
		})
	}

	return map[string]any{
		"lodging":     options,
		"destination": dest.Name,
		"nights":      nights,
	}, nil
}
