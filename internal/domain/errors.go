package domain

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ValidationError     ErrorType = "validation_error"
	AuthenticationError ErrorType = "authentication_error"
	ServerError         ErrorType = "server_error"
	TimeoutError        ErrorType = "timeout_error"
	RateLimitError      ErrorType = "rate_limit_error"
	CircuitBreakerError ErrorType = "circuit_breaker_error"
	ConnectionError     ErrorType = "connection_error"
	UnexpectedError     ErrorType = "unexpected_error"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrLandmarksMissing = errors.New("landmark set not found")

	// ErrInvariantViolated marks programming defects, never an operational failure.
	ErrInvariantViolated = errors.New("invariant violated")
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

type ErrorEnvelope struct {
	Type      ErrorType     `json:"type"`
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	Errors    []ErrorDetail `json:"errors"`
	SessionID string        `json:"session_id,omitempty"`

	// StatusCode is the HTTP status that produced or should carry the envelope.
	StatusCode int `json:"-"`
}

func (e *ErrorEnvelope) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s: %d field error(s)", e.Type, e.Code, e.Message, len(e.Errors))
}

func NewError(t ErrorType, code, message string, details ...ErrorDetail) *ErrorEnvelope {
	if details == nil {
		details = []ErrorDetail{}
	}
	return &ErrorEnvelope{
		Type:    t,
		Code:    code,
		Message: message,
		Errors:  details,
	}
}

func (e *ErrorEnvelope) WithSession(sessionID string) *ErrorEnvelope {
	e.SessionID = sessionID
	return e
}

func (e *ErrorEnvelope) WithStatus(status int) *ErrorEnvelope {
	e.StatusCode = status
	return e
}

// AsEnvelope extracts the envelope from an error chain.
func AsEnvelope(err error) (*ErrorEnvelope, bool) {
	var env *ErrorEnvelope
	if errors.As(err, &env) {
		return env, true
	}
	return nil, false
}

func IsErrorType(err error, t ErrorType) bool {
	env, ok := AsEnvelope(err)
	return ok && env.Type == t
}
