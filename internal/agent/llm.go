package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// LLM wraps Genkit generation with retries, a circuit breaker, and an
// optional proactive rate limiter. A nil Genkit instance means no model is
// configured; every node has a deterministic fallback for that case.
type LLM struct {
	g       *genkit.Genkit
	model   string
	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
	logger  log.Logger
}

// LLMConfig configures the model client. Zero values use defaults.
type LLMConfig struct {
	Genkit         *genkit.Genkit
	Model          string // full model name, e.g. "openai/gpt-4o"
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Limiter        *rate.Limiter
	Logger         log.Logger
}

// NewLLM builds the model client.
func NewLLM(cfg LLMConfig) *LLM {
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &LLM{
		g:       cfg.Genkit,
		model:   cfg.Model,
		retry:   retry,
		breaker: NewCircuitBreaker(cfg.CircuitBreaker),
		limiter: cfg.Limiter,
		logger:  logger,
	}
}

// Available reports whether a model is configured at all.
func (l *LLM) Available() bool {
	return l != nil && l.g != nil
}

// generate runs one model call through the breaker and retry loop.
func (l *LLM) generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	if !l.Available() {
		return nil, fmt.Errorf("no model configured")
	}
	if err := l.breaker.Allow(); err != nil {
		return nil, err
	}

	resp, err := l.generateWithRetry(ctx, opts)
	if err != nil {
		l.breaker.Failure()
		return nil, err
	}
	l.breaker.Success()
	return resp, nil
}

// generateWithRetry retries transient provider errors with exponential
// backoff. Each attempt waits on the rate limiter first.
func (l *LLM) generateWithRetry(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := l.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= l.retry.MaxRetries; attempt++ {
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, l.g, opts...)
		if err == nil {
			l.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == l.retry.MaxRetries {
			break
		}

		l.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, l.retry.MaxInterval)
		}
	}
	return nil, fmt.Errorf("generate after %d retries (elapsed %v): %w",
		l.retry.MaxRetries, time.Since(start), lastErr)
}

// generateTyped runs a structured-output model call and decodes the result
// into T.
func generateTyped[T any](ctx context.Context, l *LLM, system, prompt string) (T, error) {
	var out T
	resp, err := l.generate(ctx,
		ai.WithModelName(l.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithOutputType(out),
	)
	if err != nil {
		return out, err
	}
	if err := resp.Output(&out); err != nil {
		return out, fmt.Errorf("decode model output: %w", err)
	}
	return out, nil
}

// generateText runs a free-text model call.
func (l *LLM) generateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := l.generate(ctx,
		ai.WithModelName(l.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
