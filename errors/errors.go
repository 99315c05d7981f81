package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// AppError is the unified workloadops error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Operation names the router or adapter operation that failed.
	Operation string `json:"operation,omitempty"`
	// Ref is the string form of the workload reference the operation targeted.
	Ref string `json:"ref,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s [op=%s", msg, e.Operation)
		if e.Ref != "" {
			msg += " ref=" + e.Ref
		}
		msg += "]"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithOperation records the operation name and workload ref and returns the receiver.
// Values already set are kept so the innermost origin wins.
func (e *AppError) WithOperation(op, ref string) *AppError {
	if e.Operation == "" {
		e.Operation = op
	}
	if e.Ref == "" {
		e.Ref = ref
	}
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Wrap creates a new AppError with the given code around cause.
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return New(code, message).WithCause(cause)
}

// --- Caller errors ---

// NotFound creates a new AppError for a workload that does not exist.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q was not found", resource, id),
		Details: details,
	}
}

// AlreadyExists creates a new AppError for a workload whose name is taken.
func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("%s %q already exists", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// Unauthorized creates a new AppError for a request without valid credentials.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "authentication required"
	}
	return &AppError{Code: ErrCodeUnauthorized, Message: reason}
}

// InvalidSpec creates a new AppError for a rejected ref or spec.
func InvalidSpec(reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidSpec, Message: reason}
}

// Validation creates a new AppError for struct validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidSpec, Message: message}
}

// UnsupportedBackend creates a new AppError for a backend kind with no adapter.
func UnsupportedBackend(kind string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedBackend, Message: fmt.Sprintf("no adapter registered for backend %q", kind),
		Details: map[string]any{"kind": kind},
	}
}

// --- Operational errors ---

// RetriesExhausted wraps the last error seen after attempts failed attempts.
func RetriesExhausted(attempts int, last error) *AppError {
	return &AppError{
		Code: ErrCodeRetriesExhausted, Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Details: map[string]any{"attempts": attempts}, Cause: last,
	}
}

// Timeout creates a new AppError for a wait that exceeded its deadline.
func Timeout(operation string, after time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s did not complete within %s", operation, after),
		Details: map[string]any{"operation": operation, "timeout": after.String()},
	}
}

// Canceled creates a new AppError for an operation canceled by the caller.
func Canceled(cause error) *AppError {
	return &AppError{Code: ErrCodeCanceled, Message: "operation canceled", Cause: cause}
}

// FlushTimeout creates a new AppError for telemetry that could not be flushed in time.
func FlushTimeout(timeout time.Duration, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFlushTimeout, Message: fmt.Sprintf("telemetry flush exceeded %s", timeout),
		Cause: cause,
	}
}

// --- Transient and internal errors ---

// ConnectionFailed creates a new AppError for a request that never reached service.
func ConnectionFailed(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("unable to connect to %s", service),
		Retryable: true, Details: map[string]any{"service": service}, Cause: cause,
	}
}

// ServiceUnavailable creates a new AppError for a transient backend failure.
func ServiceUnavailable(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("%s is temporarily unavailable", service),
		Retryable: true, Details: map[string]any{"service": service}, Cause: cause,
	}
}

// CacheUnavailable creates a new AppError for a state cache store failure.
func CacheUnavailable(cause error) *AppError {
	return &AppError{Code: ErrCodeCacheUnavailable, Message: "state cache unavailable", Cause: cause}
}

// Internal creates a new AppError for an unclassifiable failure.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "unexpected error", Cause: cause}
}

// --- Inspection helpers ---

// AsAppError extracts the outermost *AppError from err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError reports whether err contains an *AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// CodeOf returns the code of the outermost *AppError in err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether any *AppError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsRetryable reports whether the outermost *AppError in err is retryable.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
