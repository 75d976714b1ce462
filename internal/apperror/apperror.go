// Package apperror defines the error kinds shared by every layer.
//
// Services return *AppError values for failures a caller can act on. The HTTP
// layer maps the wrapped sentinel to a status code (see handler.writeError),
// so services never import net/http.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrGeneration        = errors.New("generation failed")
	ErrInternal          = errors.New("internal error")
)

// AppError is a classified application error.
//
// Message is safe to show to API clients. Cause holds the underlying failure
// for logs only; it is never serialized.
type AppError struct {
	Err     error  // sentinel kind
	Message string // client-facing message
	Field   string // optional input field the error refers to
	Cause   error  // optional detail for logs
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource as "<Resource> not found". The looked
// up value (an ID, email or code) stays in Cause for logs.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: capitalize(resource) + " not found",
		Cause:   fmt.Errorf("id %s", id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: capitalize(resource) + " already exists",
		Cause:   fmt.Errorf("id %s", id),
	}
}

// Forbidden means the caller is authenticated but lacks the required role
// or does not own the resource. HTTP handlers map this to 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated means credentials are missing, invalid, expired, or
// belong to an account that can no longer sign in. Mapped to 401.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// IncorrectPassword is returned when a password re-confirmation fails for an
// already authenticated user. Mapped to 400 so clients do not treat it as a
// dropped session.
func IncorrectPassword(message string) *AppError {
	return &AppError{
		Err:     ErrIncorrectPassword,
		Message: message,
	}
}

// GenerationFailed wraps a failure in the external blog-generation pipeline.
// The message is deliberately generic; cause is kept for logging.
func GenerationFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrGeneration,
		Message: "Error generating blog post",
		Cause:   cause,
	}
}

// Internal wraps an unexpected failure with a generic client message.
func Internal(cause error) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: "An unexpected error occurred",
		Cause:   cause,
	}
}

// CauseOf returns the logged detail of err, or err itself when it carries none.
func CauseOf(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause
	}
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
