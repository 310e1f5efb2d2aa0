package services

import "errors"

// Sentinel errors forming the service-level error taxonomy. Handlers map
// these onto HTTP statuses; services wrap them with fmt.Errorf("%w: ...") to
// attach detail.
var (
	// ErrNotFound covers both genuinely missing rows and rows owned by a
	// different user, so cross-tenant existence is never revealed.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks bad field values in an otherwise well-formed request.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID marks a malformed identifier, distinct from not-found.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrConflict marks uniqueness violations and in-use referential checks.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized marks credential and OTP failures.
	ErrUnauthorized = errors.New("unauthorized")
)
