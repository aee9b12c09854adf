package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	coreapi "github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/db"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/agent"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/api"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/config"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/database"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/observability"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/tools"
)

// Setup builds the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelShutdown = provideOtelShutdown(ctx, cfg)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	if err := provideAuth(a, cfg, logger); err != nil {
		return nil, err
	}

	a.Destinations = destination.NewStore(pool)

	knowStore := knowledge.NewStore(pool)
	knowEmbedder := knowledge.NewEmbedder(embedder)
	a.Knowledge = knowStore
	a.Ingestor = knowledge.NewIngestor(knowStore, knowEmbedder, nil, logger)

	a.Metrics = metrics.NewCollector()
	a.Registry = provideRegistry(a, cfg, knowEmbedder, logger)

	// Agent runs are detached from their originating requests; they live
	// until this context is canceled in Close.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelRuns = cancelRuns

	llm := agent.NewLLM(agent.LLMConfig{
		Genkit: g,
		Model:  cfg.FullModelName(),
		Logger: logger,
	})
	graph := agent.NewGraph(llm, a.Registry, a.Metrics, logger)
	a.Runner = agent.NewRunner(runCtx, graph, agent.NewStore(pool), a.Metrics, logger)

	server, err := api.NewServer(api.ServerConfig{
		Logger:             logger,
		AuthService:        a.Auth,
		Tokens:             a.Tokens,
		Destinations:       a.Destinations,
		KnowledgeStore:     knowStore,
		Ingestor:           a.Ingestor,
		Embedder:           knowEmbedder,
		Runner:             a.Runner,
		Metrics:            a.Metrics,
		Pool:               pool,
		Probes:             provideProbes(pool, llm),
		CORSOrigins:        cfg.CORSOrigins,
		TrustProxy:         cfg.TrustProxy,
		IsDev:              cfg.Otel.Environment == "dev",
		APIRatePerMinute:   cfg.APIRatePerMinute,
		AgentRatePerMinute: cfg.AgentRatePerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization
// so the TracerProvider is ready when the first flow runs.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func(context.Context) error {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Otel.Endpoint,
		Environment: cfg.Otel.Environment,
		ServiceName: cfg.Otel.ServiceName,
	})
	if err != nil {
		return nil
	}
	return shutdown
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports openai (default), gemini, and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	promptDir := cfg.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx,
			genkit.WithPlugins(ollamaPlugin),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderGemini, config.ProviderGoogleAI:
		g = genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)

	default: // "openai"
		g = genkit.Init(ctx,
			genkit.WithPlugins(&openai.OpenAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// Each provider registers embedders differently:
//   - openai: auto-registered in Init(), looked up by model name
//   - ollama: registered in provideGenkit, keyed by server address
//   - gemini: GoogleAIEmbedder(g, modelName)
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderGemini, config.ProviderGoogleAI:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	default:
		return genkit.LookupEmbedder(g, coreapi.NewName("openai", cfg.EmbedderModel))
	}
}

// provideAuth loads the RSA signing keys and wires the auth service.
func provideAuth(a *App, cfg *config.Config, logger log.Logger) error {
	tokens, err := auth.LoadManager(
		cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)
	if err != nil {
		return fmt.Errorf("loading JWT keys: %w", err)
	}
	a.Tokens = tokens

	a.Users = auth.NewStore(a.Pool)
	lockout := auth.NewLockout(cfg.LoginMaxAttempts, cfg.LoginLockout)
	a.Auth = auth.NewService(a.Users, tokens, lockout, cfg.RefreshTokenTTL, logger)
	return nil
}

// provideRegistry assembles the travel tool registry.
func provideRegistry(a *App, cfg *config.Config, embedder *knowledge.Embedder, logger log.Logger) *tools.Registry {
	reg := tools.NewRegistry(a.Metrics, logger)
	reg.Register(tools.FlightsTool{})
	reg.Register(tools.LodgingTool{})
	reg.Register(tools.ActivitiesTool{})
	reg.Register(tools.TransitTool{})
	reg.Register(tools.NewWeatherTool(cfg.WeatherBaseURL, cfg.UseFixtures))
	reg.Register(tools.NewRAGTool(a.Knowledge, embedder))
	logger.Info("tools registered", "count", len(reg.Names()))
	return reg
}

// provideProbes builds the dependency checks served by /healthz.
func provideProbes(pool *pgxpool.Pool, llm *agent.LLM) map[string]api.Probe {
	return map[string]api.Probe{
		"database": func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		},
		"model": func(context.Context) error {
			if !llm.Available() {
				return errors.New("no model provider configured")
			}
			return nil
		},
	}
}
