package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kbukum/workloadops/errors"
)

// RetryPolicy configures Execute. It is a plain value; copies are independent.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential delay before jitter is applied.
	MaxDelay time.Duration
	// JitterFraction scales each delay by a uniform factor in [1-j, 1+j].
	JitterFraction float64
	// Retryable decides whether a failed attempt may be repeated.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns sensible defaults for idempotent operations.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.2,
		Retryable:      IsTransient,
	}
}

// WithRetryable returns a copy of p using classifier.
func (p RetryPolicy) WithRetryable(classifier func(error) bool) RetryPolicy {
	p.Retryable = classifier
	return p
}

// IsTransient retries every error classified retryable: connection failures
// and transient backend responses.
func IsTransient(err error) bool {
	return errors.IsRetryable(err)
}

// IsConnectionFailure retries only failures that never reached the backend.
// Non-idempotent operations use it so a request the backend may have applied
// is never repeated.
func IsConnectionFailure(err error) bool {
	return errors.IsCode(err, errors.ErrCodeConnectionFailed)
}

// Execute runs op until it succeeds, fails terminally, or the policy's
// attempts are used up.
//
// A terminal error is returned unchanged. When attempts run out, or a
// retryable-coded error is refused by the policy's classifier, the last error
// is wrapped in RetriesExhausted. Cancellation of ctx before an attempt or
// during a backoff sleep returns at once.
func Execute[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	policy = policy.normalized()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, contextError(err)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !policy.Retryable(err) {
			if errors.IsRetryable(err) {
				return zero, errors.RetriesExhausted(attempt, err)
			}
			return zero, err
		}
		if attempt >= policy.MaxAttempts {
			return zero, errors.RetriesExhausted(attempt, err)
		}

		delay := Backoff(attempt, policy, rand.Float64())
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		if timer == nil {
			timer = time.NewTimer(delay)
		} else {
			timer.Reset(delay)
		}
		select {
		case <-ctx.Done():
			return zero, contextError(ctx.Err())
		case <-timer.C:
		}
	}
}

// ExecuteFunc is Execute for operations without a result.
func ExecuteFunc(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Backoff returns the delay after the given failed attempt:
// min(BaseDelay*2^(attempt-1), MaxDelay) scaled by 1+j*(2u-1) for u in [0,1).
func Backoff(attempt int, policy RetryPolicy, u float64) time.Duration {
	d := float64(policy.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(policy.MaxDelay) {
		d = float64(policy.MaxDelay)
	}
	if j := policy.JitterFraction; j > 0 {
		d *= 1 + j*(2*u-1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.JitterFraction > 1 {
		p.JitterFraction = 1
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, "deadline exceeded before the operation completed", err)
	}
	return errors.Canceled(err)
}
