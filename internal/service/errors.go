package service

import (
	"errors"

	"github.com/duochat/duochat-backend/internal/matchmaking"
)

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUserNotFound = errors.New("user not found")
	ErrDependency   = errors.New("dependency unavailable")
)

// Matchmaking eligibility errors
var (
	ErrInvalidRole          = errors.New("only male and female accounts can use matchmaking")
	ErrPremiumRequired      = errors.New("premium subscription required to filter by gender")
	ErrVerificationRequired = errors.New("account verification required")
)

// Call errors
var (
	ErrCallNotFound = errors.New("call not found")
	ErrForbidden    = errors.New("not a participant of this call")
)

// ErrorKind is the stable classification surfaced to clients.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindValidation   ErrorKind = "validation"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindDependency   ErrorKind = "dependency"
)

// KindOf classifies err. Anything unrecognised is treated as a dependency
// failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUserNotFound):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, matchmaking.ErrInvalidPreference):
		return KindValidation
	case errors.Is(err, ErrPremiumRequired),
		errors.Is(err, ErrVerificationRequired),
		errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrCallNotFound):
		return KindNotFound
	default:
		return KindDependency
	}
}
