package agent

import (
	"strings"
	"time"
)

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the defaults used for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryableError reports whether an error is worth retrying. Provider
// errors arrive as opaque strings, so this is substring matching.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	// Rate limits
	if containsAny(msg, "rate limit", "quota exceeded", "429") {
		return true
	}
	// Transient server errors
	if containsAny(msg, "500", "502", "503", "504", "unavailable") {
		return true
	}
	// Network errors
	if containsAny(msg, "connection reset", "timeout", "temporary") {
		return true
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
