package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrExtraction        = errors.New("extraction error")
	ErrRecordCreation    = errors.New("record creation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTransport         = errors.New("transport error")
	ErrRemoteProcessing  = errors.New("remote processing error")
	ErrWatchTimeout      = errors.New("watch timeout")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserError is an error that carries the single message shown to the user.
type UserError struct {
	Kind    error
	Message string
	Err     error
}

func NewUserError(kind error, message string, err error) *UserError {
	return &UserError{Kind: kind, Message: message, Err: err}
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *UserError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage extracts the user-facing message from err, falling back to
// fallback when err carries none.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var userErr *UserError
	if errors.As(err, &userErr) && userErr.Message != "" {
		return userErr.Message
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
