package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrUnknownSession  ErrorType = "UNKNOWN_SESSION"
	ErrUpstreamAuth    ErrorType = "UPSTREAM_AUTH_FAILED"
	ErrLoginCompletion ErrorType = "LOGIN_COMPLETION_FAILED"
	ErrVenueAPI        ErrorType = "VENUE_API_ERROR"
	ErrRiskReject      ErrorType = "RISK_REJECT"
	ErrAuthFailed      ErrorType = "AUTH_FAILED"
	ErrConfiguration   ErrorType = "CONFIGURATION_ERROR"
	ErrReadOnly        ErrorType = "READ_ONLY"
	ErrInvalidRequest  ErrorType = "INVALID_REQUEST"
	ErrInternal        ErrorType = "INTERNAL_ERROR"
	ErrNotFound        ErrorType = "NOT_FOUND"
	ErrUpstream        ErrorType = "UPSTREAM_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewRiskReject(msg string) *AppError {
	return New(ErrRiskReject, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrRiskReject, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAuthFailed, ErrUpstreamAuth:
		return http.StatusUnauthorized
	case ErrUnknownSession:
		// Unregistered state tokens are indistinguishable from expired ones
		// on purpose; do not reveal whether a session ever existed.
		return http.StatusUnauthorized
	case ErrReadOnly:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrVenueAPI, ErrUpstream, ErrLoginCompletion:
		return http.StatusBadGateway
	case ErrConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrUnknownSession:
		return "Start a new login via /auth/login."
	case ErrUpstreamAuth:
		return "The code or refresh token was rejected; a fresh login is required."
	case ErrLoginCompletion:
		return "The session is still pending; the callback may be retried."
	case ErrVenueAPI:
		return "Inspect the venue status and body before retrying."
	case ErrRiskReject:
		return "Check order parameters against risk limits."
	case ErrAuthFailed:
		return "Check the gateway API key."
	case ErrConfiguration:
		return "Check credential configuration for the active mode."
	default:
		return ""
	}
}
