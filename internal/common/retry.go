package common

import (
	"context"
	"errors"
	"time"
)

// Default shared retry settings for outbound publishing
const (
	DefaultRetryAttempts     = 3
	DefaultRetryInitialDelay = 2 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultRetryMultiplier   = 2.0
)

// RetryPolicy runs an operation up to MaxAttempts times with exponential backoff.
// A single policy value is shared by every channel adapter that needs retries.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy from config, filling unset fields with defaults
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	p := &RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		sleep:        SleepContext,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultRetryInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryMaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultRetryMultiplier
	}
	return p
}

// WithSleep replaces the wait function, used by tests to record delays without sleeping
func (p *RetryPolicy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *RetryPolicy {
	clone := *p
	clone.sleep = sleep
	return &clone
}

// Backoff returns the delay before the retry following the given zero-based attempt
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= p.Multiplier
	}
	backoff := time.Duration(float64(p.InitialDelay) * multiplier)
	if backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}
	return backoff
}

// Do calls op until it succeeds, returns a permanent error, the context ends, or attempts run out.
// It returns the number of attempts made and the last error.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	sleep := p.sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = op(ctx, attempt+1)
		if lastErr == nil {
			return attempt + 1, nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return attempt + 1, perm.err
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return attempt + 1, err
		}
	}

	return p.MaxAttempts, lastErr
}

// Permanent marks an error as not worth retrying (bad credentials, rejected payload)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
