package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrUserAlreadyExists is returned when attempting to register with an existing email.
	ErrUserAlreadyExists = errors.New("user already registered")
	// ErrEmailNotConfirmed is returned on sign-in when confirmation is
	// required and the address is still unconfirmed.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrInvalidToken covers malformed, expired and revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the row policy denies the caller.
	ErrForbidden = errors.New("permission denied")
	// ErrStorageUnavailable is returned when object storage is not configured.
	ErrStorageUnavailable = errors.New("object storage is not configured")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) owns(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}
