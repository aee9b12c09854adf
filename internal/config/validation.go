package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider and API key validation. Genkit plugins read the keys directly
	// from the environment, so only their presence is checked here.
	switch c.Provider {
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q is not supported (expected openai, gemini, or ollama)",
			ErrInvalidProvider, c.Provider)
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 1048576 {
		return fmt.Errorf("%w: must be between 1 and 1,048,576, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// Retrieval configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.RAGTopK <= 0 || c.RAGTopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidRAGTopK, c.RAGTopK)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "advisor_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only. The deprecated allow/prefer modes are excluded
	// because they are vulnerable to downgrade attacks.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Authentication configuration
	if c.JWTPrivateKeyPath == "" {
		return fmt.Errorf("%w: jwt_private_key_path cannot be empty", ErrMissingJWTKey)
	}
	if c.JWTPublicKeyPath == "" {
		return fmt.Errorf("%w: jwt_public_key_path cannot be empty", ErrMissingJWTKey)
	}
	if c.AccessTokenTTL <= 0 || c.AccessTokenTTL > c.RefreshTokenTTL {
		return fmt.Errorf("%w: access_token_ttl must be positive and shorter than refresh_token_ttl",
			ErrInvalidTokenTTL)
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: refresh_token_ttl must be positive", ErrInvalidTokenTTL)
	}

	// Rate limiting
	if c.APIRatePerMinute < 1 {
		return fmt.Errorf("%w: api_rate_per_minute must be at least 1, got %d",
			ErrInvalidRateLimit, c.APIRatePerMinute)
	}
	if c.AgentRatePerMinute < 1 {
		return fmt.Errorf("%w: agent_rate_per_minute must be at least 1, got %d",
			ErrInvalidRateLimit, c.AgentRatePerMinute)
	}

	return nil
}
