// Package resilience provides the bounded retry executor and the circuit
// breaker used around every backend call.
//
// Execute retries an operation with capped exponential backoff and jitter.
// The sleep between attempts is a timer selected against ctx.Done(), so a
// canceled caller unwinds immediately:
//
//	state, err := resilience.Execute(ctx, policy, func(ctx context.Context) (workload.State, error) {
//	    return adapter.Describe(ctx, ref)
//	})
//
// Idempotent operations use IsTransient. Operations that must not be repeated
// once the backend has seen them use IsConnectionFailure.
//
// CircuitBreaker fails fast with a retryable ServiceUnavailable while a backend
// keeps failing, and lets a probe through after its timeout.
package resilience
