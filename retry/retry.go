// Package retry provides exponential-backoff retry for transient transport
// failures. It is used when verifying search engine connections; query
// compilation and response parsing never retry.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAttemptsExhausted wraps the last error once every attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Config configures retry behavior.
type Config struct {
	// MaxAttempts includes the initial attempt.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration `yaml:"max_delay"`
	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool `yaml:"-"`
}

// DefaultConfig returns the retry configuration used for connection checks.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
}

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"i/o timeout",
}

// IsTransient reports whether an error looks like a transient network
// failure. Application-level errors (bad query, missing index) are not
// transient and must surface immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds, the error is not retryable, the attempts are
// exhausted, or the context is done. Backoff doubles per attempt up to
// MaxDelay.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg.setDefaults()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !cfg.Retryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, cfg.MaxAttempts, lastErr)
}
