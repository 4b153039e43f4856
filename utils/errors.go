package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorKind classifies service failures so callers can branch on them
// without string matching.
type ErrorKind string

const (
	KindExternalUnavailable ErrorKind = "external_unavailable"
	KindRateLimited         ErrorKind = "rate_limited"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidInput        ErrorKind = "invalid_input"
)

// ServiceError is the typed error every failure path in the pipeline returns.
// Nothing in the core propagates a raw external error to a caller.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewServiceError(kind ErrorKind, message string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, Err: err}
}

func NewNotFound(message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: message}
}

func NewInvalidInput(message string) *ServiceError {
	return &ServiceError{Kind: KindInvalidInput, Message: message}
}

func NewExternalUnavailable(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindExternalUnavailable, Message: message, Err: err}
}

func NewRateLimited(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindRateLimited, Message: message, Err: err}
}

func NewMalformedResponse(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindMalformedResponse, Message: message, Err: err}
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithServiceError maps a ServiceError kind onto the matching
// HTTP status. Unknown errors become a 500.
func RespondWithServiceError(c *gin.Context, err error) {
	var se *ServiceError
	if !errors.As(err, &se) {
		RespondWithInternalError(c, "unexpected error", nil)
		return
	}

	switch se.Kind {
	case KindInvalidInput:
		RespondWithError(c, http.StatusBadRequest, string(se.Kind), se.Message, nil)
	case KindNotFound:
		RespondWithError(c, http.StatusNotFound, string(se.Kind), se.Message, nil)
	case KindRateLimited:
		c.Header("Retry-After", "30")
		RespondWithError(c, http.StatusTooManyRequests, string(se.Kind), se.Message, nil)
	case KindExternalUnavailable:
		RespondWithError(c, http.StatusServiceUnavailable, string(se.Kind), se.Message, nil)
	case KindMalformedResponse:
		RespondWithError(c, http.StatusBadGateway, string(se.Kind), se.Message, nil)
	default:
		RespondWithInternalError(c, se.Message, nil)
	}
}
