// Package router is the entry point for workload operations.
//
// A Router holds one adapter per backend kind and runs each call as:
//
//	start operation span
//	  -> cache lookup (Describe only)
//	  -> resilience.Execute(circuit breaker(adapter call))
//	  -> cache put or invalidate
//	end span
//
// Errors reaching the caller are *errors.AppError values annotated with the
// operation and ref. Transient backend codes only appear wrapped inside
// RETRIES_EXHAUSTED.
package router
