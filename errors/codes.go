package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Caller errors. Never retried, surfaced immediately.
const (
	// ErrCodeNotFound indicates the workload does not exist on its backend.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a workload with the same name already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeInvalidSpec indicates the workload reference or spec was rejected.
	ErrCodeInvalidSpec ErrorCode = "INVALID_SPEC"
	// ErrCodeUnsupportedBackend indicates the reference names an unknown backend kind.
	ErrCodeUnsupportedBackend ErrorCode = "UNSUPPORTED_BACKEND"
)

// Access errors, raised by the HTTP front before any workload call.
const (
	// ErrCodeUnauthorized indicates a missing, malformed or rejected bearer token.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Operational errors, surfaced after local mitigation is exhausted.
const (
	// ErrCodeRetriesExhausted indicates every attempt allowed by the retry policy failed.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
	// ErrCodeTimeout indicates a wait deadline elapsed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCanceled indicates the caller canceled the operation.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Transient backend errors. Absorbed by the retry executor.
const (
	// ErrCodeConnectionFailed indicates the request never reached the backend.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeServiceUnavailable indicates the backend answered with a transient failure.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Internal errors.
const (
	// ErrCodeCacheUnavailable indicates the state cache store could not be reached.
	// Reads and writes absorb it. Invalidate reports it to the router, which
	// never surfaces it.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// ErrCodeFlushTimeout indicates telemetry could not be flushed in time.
	ErrCodeFlushTimeout ErrorCode = "FLUSH_TIMEOUT"
	// ErrCodeInternal indicates a failure that fits no other code.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed:   true,
	ErrCodeServiceUnavailable: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// IsCallerCode reports whether code is one of the caller-error kinds.
func IsCallerCode(code ErrorCode) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeInvalidSpec, ErrCodeUnsupportedBackend:
		return true
	}
	return false
}
