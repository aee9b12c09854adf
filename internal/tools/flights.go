package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// FlightSearchInput are the arguments for the search_flights tool.
type FlightSearchInput struct {
	Origin      string  `json:"origin" jsonschema:"city name or airport code to fly from"`
	Destination string  `json:"destination" jsonschema:"city name or airport code to fly to"`
	Date        string  `json:"date" jsonschema:"departure date in YYYY-MM-DD format"`
	MaxPriceUSD float64 `json:"max_price_usd,omitempty" jsonschema:"optional price ceiling in USD"`
	Cabin       string  `json:"cabin,omitempty" jsonschema:"economy, premium, or business (default economy)"`
}

// Flight is one fixture flight option.
type Flight struct {
	Airline       string  `json:"airline"`
	FlightNumber  string  `json:"flight_number"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureTime string  `json:"departure_time"`
	ArrivalTime   string  `json:"arrival_time"`
	DurationHours float64 `json:"duration_hours"`
	PriceUSD      float64 `json:"price_usd"`
	Cabin         string  `json:"cabin"`
	Overnight     bool    `json:"overnight"`
	Stops         int     `json:"stops"`
}

var airlines = []string{
	"Pacific Wing", "Atlas Air Lines", "Meridian Airways",
	"Borealis Air", "Transcontinental", "Skylark Aviation",
}

var cabinMultipliers = map[string]float64{
	"economy":  1.0,
	"premium":  1.8,
	"business": 3.5,
}

// pricePerKM is the fixture fare heuristic.
const pricePerKM = 0.12

// FlightsTool generates deterministic fixture flight options.
type FlightsTool struct{}

func (FlightsTool) Name() string { return "search_flights" }

func (FlightsTool) Description() string {
	return "Search available flights between two cities on a date. Returns airline, times, duration, price, and whether the flight arrives overnight."
}

func (FlightsTool) InputSchema() *jsonschema.Schema {
	return mustSchema[FlightSearchInput]()
}

func (t FlightsTool) Call(_ context.Context, args map[string]any) (any, error) {
	in, err := decodeArgs[FlightSearchInput](args)
	if err != nil {
		return nil, err
	}
	if in.Origin == "" || in.Destination == "" || in.Date == "" {
		return nil, fmt.Errorf("%w: origin, destination, and date are required", ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	origin, ok := lookupCity(in.Origin)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, in.Origin)
	}
	dest, ok := lookupCity(in.Destination)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, in.Destination)
	}

	cabin := in.Cabin
	if cabin == "" {
		cabin = "economy"
	}
	multiplier, ok := cabinMultipliers[cabin]
	if !ok {
		return nil, fmt.Errorf("%w: cabin must be economy, premium, or business", ErrInvalidInput)
	}

	distance := distanceKM(origin, dest)
	duration := distance/800.0 + 0.5 // cruise speed plus taxi and climb

	flights := make([]Flight, 0, 4)
	departures := []int{7, 11, 16, 22}
	for i, hour := range departures {
		seed := seedFor(origin.Name, dest.Name, in.Date, cabin, fmt.Sprint(i))

		price := (60 + distance*pricePerKM) * multiplier * (0.85 + 0.3*spread(seed))
		price = math.Round(price)
		if in.MaxPriceUSD > 0 && price > in.MaxPriceUSD {
			continue
		}

		stops := 0
		if distance > 7000 && seed%3 == 0 {
			stops = 1
			duration += 2
		}

		depart := time.Date(2000, 1, 1, hour, int(seed%60), 0, 0, time.UTC)
		arrive := depart.Add(time.Duration(duration * float64(time.Hour)))

		flights = append(flights, Flight{
			Airline:       pick(seed, airlines),
			FlightNumber:  fmt.Sprintf("%s%d", origin.Airport[:2], 100+seed%900),
			Origin:        origin.Airport,
			Destination:   dest.Airport,
			DepartureTime: depart.Format("15:04"),
			ArrivalTime:   arrive.Format("15:04"),
			DurationHours: math.Round(duration*10) / 10,
			PriceUSD:      price,
			Cabin:         cabin,
			Overnight:     hour >= 21 || arrive.Day() != depart.Day(),
			Stops:         stops,
		})
	}

	return map[string]any{
		"flights":     flights,
		"origin":      origin.Name,
		"destination": dest.Name,
		"date":        in.Date,
	}, nil
}
