package llm

import (
	"context"
	"errors"
	"iter"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) attempts() int {
	return max(1, r.config.MaxAttempts)
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	invalidRetried := false
	attempts := r.attempts()

	for attempt := range attempts {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.shouldRetry(err, &invalidRetried) {
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}
		if err := r.sleep(ctx, attempt, err); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// Stream retries only while no delta has been delivered to the caller.
// Once text has been yielded the stream cannot be replayed, so a later
// error is returned as *ErrStreamInterrupted wrapping the cause.
func (r *RetryProvider) Stream(ctx context.Context, req Request) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		invalidRetried := false
		attempts := r.attempts()

		for attempt := range attempts {
			delivered := 0
			var failure error

			for d, err := range r.inner.Stream(ctx, req) {
				if err != nil {
					if delivered > 0 {
						yield(Delta{}, &ErrStreamInterrupted{Delivered: delivered, Err: err})
						return
					}
					failure = err
					break
				}
				delivered++
				if !yield(d, nil) {
					return
				}
			}

			if failure == nil {
				return
			}
			if !r.shouldRetry(failure, &invalidRetried) || attempt == attempts-1 {
				yield(Delta{}, failure)
				return
			}
			if err := r.sleep(ctx, attempt, failure); err != nil {
				yield(Delta{}, err)
				return
			}
		}
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) sleep(ctx context.Context, attempt int, err error) error {
	wait := r.backoff(attempt, err)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// shouldRetry determines if an error is retryable.
func (r *RetryProvider) shouldRetry(err error, invalidRetried *bool) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Max tokens is a configuration issue, not transient.
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// Bad credentials stay bad.
	var auth *ErrAuth
	if errors.As(err, &auth) {
		return false
	}

	// Invalid response gets one retry.
	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	// Rate limit, provider unavailable, network errors: transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
