package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestWeather_FixtureDeterministic(t *testing.T) {
	tool := NewWeatherTool("", true)
	args := map[string]any{"destination": "Reykjavik", "start_date": "2026-01-10", "end_date": "2026-01-14"}

	a, err := tool.Call(context.Background(), args)
	if err != nil {
		t.Fatalf("weather_forecast: %v", err)
	}
	b, err := tool.Call(context.Background(), args)
	if err != nil {
		t.Fatalf("weather_forecast: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("fixture forecast should be stable for the same place and dates")
	}

	days := a.(map[string]any)["daily_forecast"].([]WeatherDay)
	if len(days) != 5 {
		t.Fatalf("got %d days, want 5", len(days))
	}
	for _, d := range days {
		if d.TempMinC >= d.TempMaxC {
			t.Fatalf("day %s: min %.1f >= max %.1f", d.Date, d.TempMinC, d.TempMaxC)
		}
		if d.Rainy != rainyCodes[d.WeatherCode] {
			t.Fatalf("day %s: rainy flag disagrees with code %d", d.Date, d.WeatherCode)
		}
	}
}

func TestWeather_ValidatesDates(t *testing.T) {
	tool := NewWeatherTool("", true)
	cases := []map[string]any{
		{"destination": "Paris", "start_date": "soon", "end_date": "2026-09-12"},
		{"destination": "Paris", "start_date": "2026-09-12", "end_date": "2026-09-10"},
		{"start_date": "2026-09-10", "end_date": "2026-09-12"},
	}
	for _, args := range cases {
		if _, err := tool.Call(context.Background(), args); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("args %v: err = %v, want ErrInvalidInput", args, err)
		}
	}
}

func TestWeather_ParsesAPIResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timezone"); got != "auto" {
			t.Errorf("timezone = %q, want auto", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"daily":{
			"time":["2026-09-10","2026-09-11"],
			"temperature_2m_max":[24.1,19.3],
			"temperature_2m_min":[15.2,12.8],
			"precipitation_sum":[0.0,8.4],
			"precipitation_probability_max":[5,85],
			"wind_speed_10m_max":[12.0,22.5],
			"weather_code":[1,63]}}`))
	}))
	defer srv.Close()

	tool := NewWeatherTool(srv.URL, false)
	out, err := tool.Call(context.Background(), map[string]any{
		"latitude": 48.85, "longitude": 2.35,
		"start_date": "2026-09-10", "end_date": "2026-09-11",
	})
	if err != nil {
		t.Fatalf("weather_forecast: %v", err)
	}

	days := out.(map[string]any)["daily_forecast"].([]WeatherDay)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}
	if days[0].Rainy || !days[0].Sunny {
		t.Fatalf("code 1 should be sunny, not rainy: %+v", days[0])
	}
	if !days[1].Rainy {
		t.Fatalf("code 63 should be rainy: %+v", days[1])
	}
	if days[1].Description != "Moderate rain" {
		t.Fatalf("description = %q", days[1].Description)
	}
}

func TestWeather_FallsBackWhenAPIFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewWeatherTool(srv.URL, false)
	out, err := tool.Call(context.Background(), map[string]any{
		"destination": "Bangkok", "start_date": "2026-09-10", "end_date": "2026-09-11",
	})
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	days := out.(map[string]any)["daily_forecast"].([]WeatherDay)
	if len(days) != 2 {
		t.Fatalf("got %d fixture days, want 2", len(days))
	}
}

func TestClimateFor(t *testing.T) {
	tropics, _ := climateFor(13.7, 4)
	arctic, _ := climateFor(64.1, 4)
	if tropics <= arctic {
		t.Fatalf("tropical base %.0f should exceed high-latitude base %.0f", tropics, arctic)
	}

	summer, _ := climateFor(48.8, 7)
	winter, _ := climateFor(48.8, 1)
	if summer <= winter {
		t.Fatalf("summer base %.0f should exceed winter base %.0f", summer, winter)
	}
}

func TestClimateFor_SouthernHemisphere(t *testing.T) {
	// Sydney: January is midsummer, July is midwinter.
	january, _ := climateFor(-33.9, time.January)
	july, _ := climateFor(-33.9, time.July)
	if january <= july {
		t.Fatalf("southern January base %.0f should exceed July base %.0f", january, july)
	}

	// Same month, mirrored latitudes: December is cold north, warm south.
	north, _ := climateFor(33.9, time.December)
	south, _ := climateFor(-33.9, time.December)
	if south <= north {
		t.Fatalf("southern December base %.0f should exceed northern %.0f", south, north)
	}
}
