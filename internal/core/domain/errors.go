package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrSessionExpired   = errors.New("session expired")
	ErrForbidden        = errors.New("access forbidden")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrTaskNotFound     = errors.New("task not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrTransport        = errors.New("transport failure")
)

// ValidationError is a locally detected input problem. It never reaches the backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
