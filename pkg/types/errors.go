package types

import "errors"

// Validation error types shared across components.
var (
	ErrInvalidToken     = errors.New("token must be 8-64 characters, alphanumeric + hyphen only")
	ErrInvalidStatus    = errors.New("invalid session status")
	ErrInvalidEventType = errors.New("invalid journal event type")
)
