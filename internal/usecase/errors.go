package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrNoFile              = errors.New("no file uploaded")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
)

// ValidationError is returned for input rejected before any side effect.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func invalid(message string) error {
	return &ValidationError{Kind: ErrInvalidInput, Message: message}
}

// StorageError wraps a failure of the record store or an artifact store.
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
