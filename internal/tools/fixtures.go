package tools

import (
	"hash/fnv"
	"math"
	"strings"
)

// city holds the fixture attributes the generators derive data from.
// Tier drives price levels: 1 is expensive, 3 is budget.
type city struct {
	Name    string
	Country string
	Lat     float64
	Lon     float64
	Airport string
	Tier    int
}

// cities is the fixture destination set. Lookups are case-insensitive and
// accept either the city name or its IATA code.
var cities = map[string]city{
	"tokyo":         {"Tokyo", "Japan", 35.6762, 139.6503, "HND", 1},
	"kyoto":         {"Kyoto", "Japan", 35.0116, 135.7681, "KIX", 1},
	"osaka":         {"Osaka", "Japan", 34.6937, 135.5023, "KIX", 2},
	"new york":      {"New York", "United States", 40.7128, -74.0060, "JFK", 1},
	"san francisco": {"San Francisco", "United States", 37.7749, -122.4194, "SFO", 1},
	"los angeles":   {"Los Angeles", "United States", 34.0522, -118.2437, "LAX", 2},
	"london":        {"London", "United Kingdom", 51.5074, -0.1278, "LHR", 1},
	"paris":         {"Paris", "France", 48.8566, 2.3522, "CDG", 1},
	"rome":          {"Rome", "Italy", 41.9028, 12.4964, "FCO", 2},
	"barcelona":     {"Barcelona", "Spain", 41.3851, 2.1734, "BCN", 2},
	"lisbon":        {"Lisbon", "Portugal", 38.7223, -9.1393, "LIS", 3},
	"bangkok":       {"Bangkok", "Thailand", 13.7563, 100.5018, "BKK", 3},
	"singapore":     {"Singapore", "Singapore", 1.3521, 103.8198, "SIN", 1},
	"sydney":        {"Sydney", "Australia", -33.8688, 151.2093, "SYD", 2},
	"mexico city":   {"Mexico City", "Mexico", 19.4326, -99.1332, "MEX", 3},
	"reykjavik":     {"Reykjavik", "Iceland", 64.1466, -21.9426, "KEF", 1},
}

// lookupCity resolves a destination by name or airport code.
func lookupCity(name string) (city, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := cities[key]; ok {
		return c, true
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, c := range cities {
		if c.Airport == upper {
			return c, true
		}
	}
	return city{}, false
}

// distanceKM is the great-circle distance between two cities.
func distanceKM(a, b city) float64 {
	const earthRadiusKM = 6371.0

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// seedFor derives a stable pseudo-random seed from fixture inputs so the
// same query always produces the same data.
func seedFor(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(p)))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// pick selects an element deterministically from a seed.
func pick[T any](seed uint64, items []T) T {
	return items[seed%uint64(len(items))]
}

// spread maps a seed to a float in [0, 1).
func spread(seed uint64) float64 {
	return float64(seed%1000) / 1000.0
}
