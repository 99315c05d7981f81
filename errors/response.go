package errors

import "net/http"

// ErrorResponse is the JSON body the HTTP API returns for a failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the caller-visible fields of an AppError.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Operation string         `json:"operation,omitempty"`
	Ref       string         `json:"ref,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts the error for JSON serialization. The cause stays server-side.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Operation: e.Operation,
		Ref:       e.Ref,
		Details:   e.Details,
	}}
}

// HTTPStatus maps the error code to the status the HTTP API answers with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeInvalidSpec:
		return http.StatusBadRequest
	case ErrCodeUnsupportedBackend:
		return http.StatusUnprocessableEntity
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeCanceled:
		return http.StatusRequestTimeout
	case ErrCodeRetriesExhausted, ErrCodeConnectionFailed, ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
