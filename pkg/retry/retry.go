package retry

import (
	"context"
	"fmt"
	"time"

	"e621dl/pkg/config"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one
	MaxAttempts int
	Backoff     BackoffStrategy
	// ThrottleDelay is the minimum pause after a rate limit response
	ThrottleDelay time.Duration
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before sleeping ahead of each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     errs.IsTransient,
		Logger:      logger.NewNopLogger(),
	}
}

// FromSettings builds a retry configuration from user settings.
func FromSettings(rc config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = rc.MaxAttempts
	cfg.Backoff = &ExponentialBackoff{
		BaseDelay:    rc.InitialBackoff,
		MaxDelay:     rc.MaxBackoff,
		Multiplier:   rc.Multiplier,
		JitterFactor: 0.1,
	}
	cfg.ThrottleDelay = DefaultThrottleDelay
	if log != nil {
		cfg.Logger = log
	}
	return cfg
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do executes op until it succeeds, returns a non-retryable error, the attempt
// budget runs out, or ctx is cancelled. It returns the attempt count alongside the error.
func Do(ctx context.Context, op Operation, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = errs.IsTransient
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return attempt, nil
		}
		lastErr = err

		if !retryIf(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := delayFor(cfg.Backoff, attempt, err, cfg.ThrottleDelay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if werr := Wait(ctx, delay); werr != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", werr)
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context) (T, error), cfg *Config) (T, int, error) {
	var result T
	attempts, err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)
	return result, attempts, err
}
