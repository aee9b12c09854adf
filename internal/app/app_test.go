package app

import (
	"context"
	"errors"
	"testing"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/agent"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/config"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

func TestApp_Close(t *testing.T) {
	tests := []struct {
		name     string
		setupApp func() *App
	}{
		{
			name: "close with run cancel function",
			setupApp: func() *App {
				_, cancel := context.WithCancel(context.Background())
				return &App{Logger: log.NewNop(), cancelRuns: cancel}
			},
		},
		{
			name: "close with nil members",
			setupApp: func() *App {
				return &App{Logger: log.NewNop()}
			},
		},
		{
			name: "close flushes tracer",
			setupApp: func() *App {
				return &App{
					Logger: log.NewNop(),
					otelShutdown: func(context.Context) error {
						return errors.New("flush failed")
					},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.setupApp()
			// Tracer flush failures are logged, never returned.
			if err := a.Close(); err != nil {
				t.Errorf("Close() error = %v, want nil", err)
			}
		})
	}
}

func TestProvideProbes_ModelUnavailable(t *testing.T) {
	llm := agent.NewLLM(agent.LLMConfig{}) // no Genkit instance
	probes := provideProbes(nil, llm)

	probe, ok := probes["model"]
	if !ok {
		t.Fatal("model probe not registered")
	}
	if err := probe(context.Background()); err == nil {
		t.Error("model probe should fail when no provider is configured")
	}
	if _, ok := probes["database"]; !ok {
		t.Error("database probe not registered")
	}
}

func TestProvideRegistry_RegistersTravelTools(t *testing.T) {
	a := &App{
		Metrics:   metrics.NewCollector(),
		Knowledge: knowledge.NewStore(nil),
	}
	cfg := &config.Config{UseFixtures: true}

	reg := provideRegistry(a, cfg, knowledge.NewEmbedder(nil), log.NewNop())

	for _, name := range []string{
		"search_flights", "search_lodging", "search_activities",
		"transit_options", "weather_forecast", "rag_search",
	} {
		if !reg.Has(name) {
			t.Errorf("tool %q not registered", name)
		}
	}
}
