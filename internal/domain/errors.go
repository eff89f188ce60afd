package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	ErrNotFound           = errors.New("escrow: not found")
	ErrAlreadyExists      = errors.New("escrow: already exists")
	ErrInvalidCredentials = errors.New("escrow: invalid credentials")
	ErrInvalidTransition  = errors.New("escrow: invalid status transition")
	ErrForbidden          = errors.New("escrow: forbidden")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("escrow: validation failed for %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
