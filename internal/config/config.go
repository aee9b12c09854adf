// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.advisor/config.yaml)
//  3. Default values
//
// Sensitive values (passwords) are never logged; see MarshalJSON.
// Sentinel errors support errors.Is() checks at call sites.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidRAGTopK indicates the retrieval top-k is out of range.
	ErrInvalidRAGTopK = errors.New("invalid RAG top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrMissingJWTKey indicates a JWT signing key path is not set.
	ErrMissingJWTKey = errors.New("missing JWT key path")

	// ErrInvalidTokenTTL indicates a token lifetime is out of range.
	ErrInvalidTokenTTL = errors.New("invalid token TTL")

	// ErrInvalidRateLimit indicates a rate limit setting is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultEmbedderModel produces 1536-dimension vectors matching the
	// embeddings table schema; see knowledge.VectorDimension.
	DefaultEmbedderModel = "text-embedding-ada-002"

	// DefaultAccessTokenTTL is the default access token lifetime.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default refresh token lifetime.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultLoginMaxAttempts is the failed-login count that triggers lockout.
	DefaultLoginMaxAttempts = 5

	// DefaultLoginLockout is how long a locked account stays locked.
	DefaultLoginLockout = 5 * time.Minute
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "openai" (default), "gemini", "ollama"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gpt-4o-mini", "gemini-2.5-flash", "llama3.3"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	PromptDir   string  `mapstructure:"prompt_dir" json:"prompt_dir"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Retrieval configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	RAGTopK       int    `mapstructure:"rag_top_k" json:"rag_top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ServerHost  string   `mapstructure:"server_host" json:"server_host"`
	ServerPort  int      `mapstructure:"server_port" json:"server_port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)

	// Authentication configuration
	JWTPrivateKeyPath string        `mapstructure:"jwt_private_key_path" json:"jwt_private_key_path"`
	JWTPublicKeyPath  string        `mapstructure:"jwt_public_key_path" json:"jwt_public_key_path"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
	LoginMaxAttempts  int           `mapstructure:"login_max_attempts" json:"login_max_attempts"`
	LoginLockout      time.Duration `mapstructure:"login_lockout" json:"login_lockout"`

	// Rate limiting (per authenticated user, requests per minute)
	APIRatePerMinute   int `mapstructure:"api_rate_per_minute" json:"api_rate_per_minute"`
	AgentRatePerMinute int `mapstructure:"agent_rate_per_minute" json:"agent_rate_per_minute"`

	// Travel tool configuration
	WeatherBaseURL string `mapstructure:"weather_base_url" json:"weather_base_url"`
	UseFixtures    bool   `mapstructure:"use_fixtures" json:"use_fixtures"` // Serve deterministic fixture data instead of live APIs

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// OtelConfig holds OpenTelemetry trace export configuration.
type OtelConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint host:port (empty disables export)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name reported in traces
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".advisor")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes priority over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderOpenAI)
	viper.SetDefault("model_name", "gpt-4o-mini")
	viper.SetDefault("temperature", 0.2)
	viper.SetDefault("max_tokens", 4096)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("rag_top_k", 5)

	// PostgreSQL defaults
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "advisor")
	viper.SetDefault("postgres_password", "advisor_dev_password")
	viper.SetDefault("postgres_db_name", "advisor")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP server defaults
	viper.SetDefault("server_host", "0.0.0.0")
	viper.SetDefault("server_port", 8000)
	viper.SetDefault("cors_origins", []string{"http://localhost:8501"})
	viper.SetDefault("trust_proxy", false)

	// Authentication defaults
	viper.SetDefault("jwt_private_key_path", "keys/jwt_private.pem")
	viper.SetDefault("jwt_public_key_path", "keys/jwt_public.pem")
	viper.SetDefault("access_token_ttl", DefaultAccessTokenTTL)
	viper.SetDefault("refresh_token_ttl", DefaultRefreshTokenTTL)
	viper.SetDefault("login_max_attempts", DefaultLoginMaxAttempts)
	viper.SetDefault("login_lockout", DefaultLoginLockout)

	// Rate limit defaults
	viper.SetDefault("api_rate_per_minute", 60)
	viper.SetDefault("agent_rate_per_minute", 5)

	// Travel tool defaults
	viper.SetDefault("weather_base_url", "https://api.open-meteo.com/v1/forecast")
	viper.SetDefault("use_fixtures", false)

	// Observability defaults
	viper.SetDefault("otel.environment", "dev")
	viper.SetDefault("otel.service_name", "travel-advisor")
}

// bindEnvVariables binds environment variables explicitly.
// Provider API keys (OPENAI_API_KEY, GEMINI_API_KEY) are read directly by the
// Genkit plugins, not via Viper; Validate() checks their presence based on the
// selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ADVISOR_PROVIDER")
	mustBind("model_name", "ADVISOR_MODEL_NAME")
	mustBind("ollama_host", "ADVISOR_OLLAMA_HOST")
	mustBind("embedder_model", "ADVISOR_EMBEDDER_MODEL")

	mustBind("server_host", "ADVISOR_SERVER_HOST")
	mustBind("server_port", "ADVISOR_SERVER_PORT")
	mustBind("cors_origins", "ADVISOR_CORS_ORIGINS")
	mustBind("trust_proxy", "ADVISOR_TRUST_PROXY")

	mustBind("jwt_private_key_path", "ADVISOR_JWT_PRIVATE_KEY")
	mustBind("jwt_public_key_path", "ADVISOR_JWT_PUBLIC_KEY")

	mustBind("use_fixtures", "ADVISOR_USE_FIXTURES")

	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility. This defends against the
// accidental logging of real secrets, not against compromised logs.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "openai/gpt-4o-mini", "ollama/llama3.3", "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderGemini, ProviderGoogleAI:
		return ProviderGoogleAI + "/" + c.ModelName
	default:
		return ProviderOpenAI + "/" + c.ModelName
	}
}

// ServerAddr returns the host:port the HTTP server binds to.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
