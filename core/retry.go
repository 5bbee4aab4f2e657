package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultRetryMaxAttempts   = 3
	DefaultRetryInitialDelay  = 100 * time.Millisecond
	DefaultRetryMaxDelay      = 5000 * time.Millisecond
	DefaultRetryBackoffFactor = 2.0
)

// RetryPolicy bounds the exponential backoff applied around a fallible call.
type RetryPolicy struct {
	MaxAttempts   int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay  time.Duration `koanf:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay      time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
	BackoffFactor float64       `koanf:"backoff_factor" mapstructure:"backoff_factor"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   DefaultRetryMaxAttempts,
		InitialDelay:  DefaultRetryInitialDelay,
		MaxDelay:      DefaultRetryMaxDelay,
		BackoffFactor: DefaultRetryBackoffFactor,
	}
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return ConfigurationError("retry max_attempts must be at least 1")
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return ConfigurationError("retry delays must not be negative")
	}
	if p.MaxDelay < p.InitialDelay {
		return ConfigurationError("retry max_delay must not be lower than initial_delay")
	}
	if p.BackoffFactor < 1 {
		return ConfigurationError("retry backoff_factor must be at least 1")
	}
	return nil
}

// normalized fills zero fields with defaults so a zero policy behaves like
// DefaultRetryPolicy.
func (p RetryPolicy) normalized() RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaults.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaults.MaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = defaults.BackoffFactor
	}
	return p
}

// DelayForAttempt returns the sleep taken after the given failed attempt:
// min(initial * factor^(attempt-1), max).
func (p RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	p = p.normalized()
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return min(delay, p.MaxDelay)
}

// RetryClassifier decides whether a failed attempt may be retried.
type RetryClassifier func(err error) bool

// RetryAll retries every failure except context cancellation.
func RetryAll(err error) bool {
	return err != nil && !isContextDone(err)
}

func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Retrier runs operations under a RetryPolicy.
type Retrier struct {
	Policy     RetryPolicy
	Classifier RetryClassifier
	Logger     Logger
	Sleep      func(ctx context.Context, delay time.Duration) error
}

func NewRetrier(policy RetryPolicy, logger Logger) *Retrier {
	return &Retrier{
		Policy:     policy.normalized(),
		Classifier: RetryAll,
		Logger:     ensureLogger(logger),
	}
}

// Retry is the package-level entry point. Every failure except context
// cancellation is retried; set Retrier.Classifier to narrow that.
func Retry[T any](ctx context.Context, policy RetryPolicy, logger Logger, op func(context.Context) (T, error)) (T, error) {
	return Do(ctx, NewRetrier(policy, logger), op)
}

// Do invokes op until it succeeds, a terminal error is returned, or the
// attempt budget is spent. No delay is taken on the successful path.
func Do[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if op == nil {
		return zero, ValidationError("", "retry operation is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		r = NewRetrier(DefaultRetryPolicy(), nil)
	}
	policy := r.Policy.normalized()
	classify := r.Classifier
	if classify == nil {
		classify = RetryAll
	}
	logger := ensureLogger(r.Logger)

	delay := policy.InitialDelay
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= policy.MaxAttempts {
			logger.Error("retry attempts exhausted",
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
				"error", RedactSecrets(err.Error()),
			)
			return zero, err
		}
		if !classify(err) {
			logger.Error("retry stopped on terminal error",
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
				"error", RedactSecrets(err.Error()),
			)
			return zero, err
		}

		logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay_ms", delay.Milliseconds(),
			"error", RedactSecrets(err.Error()),
		)
		if sleepErr := sleepRetry(ctx, r.Sleep, delay); sleepErr != nil {
			return zero, TransportError("", fmt.Errorf("core: retry interrupted: %w", sleepErr))
		}
		delay = min(time.Duration(float64(delay)*policy.BackoffFactor), policy.MaxDelay)
	}
}

func sleepRetry(
	ctx context.Context,
	sleepFn func(ctx context.Context, delay time.Duration) error,
	delay time.Duration,
) error {
	if delay <= 0 {
		return nil
	}
	if sleepFn != nil {
		return sleepFn(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
