package workload

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
)

// DefaultPollInterval is used when Poll is given a non-positive interval.
const DefaultPollInterval = time.Second

// DescribeFunc observes the current state of a workload.
type DescribeFunc func(ctx context.Context, ref Ref) (State, error)

// Poll calls describe at a fixed interval until pred holds, the timeout
// elapses, or ctx is done. A NotFound observation is reported as PhaseGone.
// Retryable describe errors are logged and polling continues; any other
// error aborts the wait. Poll starts no goroutines.
func Poll(ctx context.Context, describe DescribeFunc, ref Ref, pred Predicate, timeout, interval time.Duration, log *logger.Logger) (State, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		state, err := describe(waitCtx, ref)
		switch {
		case err == nil:
			if pred(state) {
				return state, nil
			}
		case errors.IsCode(err, errors.ErrCodeNotFound):
			state = NewState(ref, PhaseGone, nil)
			if pred(state) {
				return state, nil
			}
		case waitCtx.Err() != nil:
			return State{}, waitError(ctx, timeout)
		case errors.IsRetryable(err):
			log.Warn("describe failed while polling", logger.MergeWithError(logger.Fields(
				logger.FieldKey, ref.String(),
				logger.FieldAttempt, attempt,
			), err))
		default:
			return State{}, err
		}

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
		select {
		case <-waitCtx.Done():
			return State{}, waitError(ctx, timeout)
		case <-timer.C:
		}
	}
}

// waitError distinguishes caller cancellation from an elapsed deadline.
func waitError(parent context.Context, timeout time.Duration) error {
	if stderrors.Is(parent.Err(), context.Canceled) {
		return errors.Canceled(parent.Err())
	}
	return errors.Timeout(OpWaitUntil, timeout)
}
