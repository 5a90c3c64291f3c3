package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Classifier decides whether an error should trigger another attempt.
// The classify package provides the implementations used in practice.
type Classifier interface {
	IsTransient(err error) bool
}

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential doubles the delay each attempt with jitter.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// Config configures a retry Policy.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds randomness to delays to prevent thundering herd.
	// Default: false
	Jitter bool

	// Classifier marks which errors are transient and worth retrying.
	// Default: all non-nil errors are transient.
	Classifier Classifier

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Policy executes operations under a retry discipline. A Policy is immutable
// after construction and safe for concurrent use.
type Policy struct {
	config Config
}

// NewPolicy creates a retry policy from the configuration.
func NewPolicy(config Config) *Policy {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}

	return &Policy{config: config}
}

// NoRetry returns the sentinel policy that executes exactly one attempt.
func NoRetry() *Policy {
	return NewPolicy(Config{MaxAttempts: 1})
}

// Execute runs the operation, retrying while the classifier marks the error
// transient and attempts remain. The last error is returned unchanged.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		err := op(ctx)

		if err == nil {
			return nil
		}

		lastErr = err

		if !p.transient(err) {
			return err
		}

		if attempt >= p.config.MaxAttempts {
			break
		}

		delay := p.calculateDelay(attempt)

		if p.config.OnRetry != nil {
			p.config.OnRetry(attempt, err, delay)
		}

		// Wait for delay or context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// ExecuteAction runs an operation that produces a value under the policy.
// On failure the zero value is returned alongside the last error.
func ExecuteAction[T any](ctx context.Context, p *Policy, action func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = action(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (p *Policy) transient(err error) bool {
	if p.config.Classifier == nil {
		return err != nil
	}
	return p.config.Classifier.IsTransient(err)
}

func (p *Policy) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch p.config.Strategy {
	case BackoffConstant:
		delay = p.config.InitialDelay

	case BackoffLinear:
		delay = p.config.InitialDelay * time.Duration(attempt)

	case BackoffExponential:
		multiplier := math.Pow(p.config.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(p.config.InitialDelay) * multiplier)
	}

	// Cap at max delay
	if delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}

	// Add jitter if enabled
	if p.config.Jitter && delay > 0 {
		// Add up to 25% jitter
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		jitter := time.Duration(rand.Int63n(int64(delay / 4)))
		delay = delay + jitter
	}

	return delay
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.config
}
