package shared

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionError covers transport-level failures: dial errors, broken
// streams, and non-success HTTP statuses that carry no more specific meaning.
type ConnectionError struct {
	Status  int
	Message string
}

func (e *ConnectionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("connection failed: HTTP %d: %s", e.Status, e.Message)
	}
	return "connection failed: " + e.Message
}

// AuthError maps 401/403 responses from the AI backend.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Message
}

// RateLimitError maps 429 responses and carries the backend's retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ModelError is a semantic error reported by the backend itself, with the
// backend's error code and message preserved.
type ModelError struct {
	Code    string
	Message string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error: [%s] %s", e.Code, e.Message)
}

// InvalidResponseError covers malformed JSON and unexpected payload shapes.
type InvalidResponseError struct {
	Message string
}

func (e *InvalidResponseError) Error() string {
	return "invalid response: " + e.Message
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsRateLimited(err error) (time.Duration, bool) {
	var re *RateLimitError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}

func IsInvalidResponse(err error) bool {
	var ie *InvalidResponseError
	return errors.As(err, &ie)
}

// APIError is the JSON error body returned by the control API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func (e *APIError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func BadRequest(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadRequest)
}

func Conflict(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusConflict)
}

func NotFound(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusNotFound)
}

func InternalError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusInternalServerError)
}
