package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

// TransitInput are the arguments for the transit_options tool.
type TransitInput struct {
	City string `json:"city" jsonschema:"city to look up local transit options for"`
	From string `json:"from,omitempty" jsonschema:"optional starting point, e.g. airport"`
	To   string `json:"to,omitempty" jsonschema:"optional ending point, e.g. city center"`
}

// TransitOption is one way to get around a city.
type TransitOption struct {
	Mode        string  `json:"mode"`
	Description string  `json:"description"`
	PriceUSD    float64 `json:"price_usd"`
	DurationMin int     `json:"duration_minutes"`
}

// TransitTool generates deterministic fixture transit options.
type TransitTool struct{}

func (TransitTool) Name() string { return "transit_options" }

func (TransitTool) Description() string {
	return "Look up ways to get around a city, including airport transfers, metro, taxi, and day passes, with typical prices and durations."
}

func (TransitTool) InputSchema() *jsonschema.Schema {
	return mustSchema[TransitInput]()
}

func (t TransitTool) Call(_ context.Context, args map[string]any) (any, error) {
	in, err := decodeArgs[TransitInput](args)
	if err != nil {
		return nil, err
	}
	if in.City == "" {
		return nil, fmt.Errorf("%w: city is required", ErrInvalidInput)
	}

	dest, ok := lookupCity(in.City)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, in.City)
	}

	tierFactor := map[int]float64{1: 1.4, 2: 1.0, 3: 0.6}[dest.Tier]
	seed := seedFor(dest.Name, "transit")
	scale := func(base float64, jitter uint64) float64 {
		return math.Round(base * tierFactor * (0.9 + 0.2*spread(seed+jitter)))
	}

	options := []TransitOption{
		{
			Mode:        "airport_train",
			Description: fmt.Sprintf("Express train from %s airport to the city center", dest.Airport),
			PriceUSD:    scale(14, 1),
			DurationMin: 35,
		},
		{
			Mode:        "airport_taxi",
			Description: fmt.Sprintf("Taxi from %s airport", dest.Airport),
			PriceUSD:    scale(55, 2),
			DurationMin: 40,
		},
		{
			Mode:        "metro",
			Description: "Single metro or bus ride within the city",
			PriceUSD:    scale(2.5, 3),
			DurationMin: 25,
		},
		{
			Mode:        "day_pass",
			Description: "Unlimited public transit for one day",
			PriceUSD:    scale(9, 4),
			DurationMin: 0,
		},
		{
			Mode:        "taxi",
			Description: "Typical cross-town taxi ride",
			PriceUSD:    scale(18, 5),
			DurationMin: 20,
		},
	}

	return map[string]any{
		"city":    dest.Name,
		"options": options,
	}, nil
}
