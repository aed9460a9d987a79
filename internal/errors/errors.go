// Package errors defines the service error taxonomy used by the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable reason code.
type Code string

const (
	CodeValidation       Code = "validation_error"
	CodeNoToken          Code = "no_token"
	CodeTokenExpired     Code = "expired"
	CodeInvalidSignature Code = "invalid_signature"
	CodeTokenMalformed   Code = "malformed"
	CodeBadCredentials   Code = "invalid_credentials"
	CodeForbidden        Code = "forbidden"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeRateLimited      Code = "rate_limited"
	CodeInternal         Code = "internal_error"
)

// ServiceError carries a reason code, a human-readable message, and the HTTP
// status the API layer should respond with. The wrapped cause is logged
// server-side and never serialized.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// Validation returns a 400 error for malformed client input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized returns a 401 error with the given reason code.
func Unauthorized(code Code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden returns a 403 error.
func Forbidden(message string) *ServiceError {
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound returns a 404 error.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Conflict returns a 409 error for state-machine or concurrent-update violations.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// RateLimited returns a 429 error.
func RateLimited(message string) *ServiceError {
	return &ServiceError{Code: CodeRateLimited, Message: message, HTTPStatus: http.StatusTooManyRequests}
}

// Internal returns a 500 error. The cause is retained for logging only; the
// message sent to clients stays generic.
func Internal(cause error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: "internal server error", HTTPStatus: http.StatusInternalServerError, cause: cause}
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}
