package core

import (
	"context"
	"math"
	"time"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

// RetryPolicy is an explicit bounded-retry description attached to each
// external-call site. A zero Multiplier disables backoff growth.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy covers the generative call sites: three attempts with
// exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		Multiplier:     2.0,
	}
}

// Backoff returns the wait duration before the given retry attempt
// (attempt is zero-based; the wait happens after attempt fails).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(p.InitialBackoff) * math.Pow(mult, float64(attempt)))
}

// Do runs op, retrying transient failures until the attempt budget is spent.
// Non-transient errors surface immediately.
func (p RetryPolicy) Do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := errors.CheckContext(ctx, operation); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !errors.IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.Canceled, operation+" canceled during retry backoff")
		case <-time.After(p.Backoff(attempt)):
		}
	}

	return errors.WithFields(
		errors.Wrap(lastErr, errors.CodeOf(lastErr), operation+": max retry attempts reached"),
		errors.Fields{"max_attempts": attempts})
}
