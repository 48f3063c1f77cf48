// Package apperror defines the domain error taxonomy shared by the service,
// repository and HTTP layers.
//
// Errors come in two tiers. Category sentinels (ErrNotFound, ErrValidation,
// ErrConflict, ...) decide how a caller reacts, for example which HTTP status
// to send. Specific sentinels (ErrHandleTaken, ErrProviderConflict, ...) wrap
// a category so the UI can tell "handle taken" apart from "handle reserved"
// while errors.Is(err, ErrConflict) still matches both.
package apperror

import (
	"errors"
	"fmt"
)

// Categories.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Specific conditions. Each wraps exactly one category.
var (
	ErrHandleTaken       = fmt.Errorf("handle taken: %w", ErrConflict)
	ErrHandleReserved    = fmt.Errorf("handle reserved: %w", ErrConflict)
	ErrHandleImmutable   = fmt.Errorf("handle already set: %w", ErrConflict)
	ErrDuplicateEmail    = fmt.Errorf("duplicate email: %w", ErrConflict)
	ErrProviderConflict  = fmt.Errorf("provider conflict: %w", ErrConflict)
	ErrSaveInFlight      = fmt.Errorf("save in flight: %w", ErrConflict)
	ErrInvalidCredential = fmt.Errorf("invalid credential: %w", ErrUnauthorized)
	ErrAccountMissing    = fmt.Errorf("account missing: %w", ErrUnauthorized)
)

// AppError carries a machine-readable code and a message that is safe to
// show to the user.
type AppError struct {
	Err     error  // sentinel this error matches
	Code    string // machine-readable, e.g. "handle_taken"
	Message string // human-readable
	Field   string // optional: input field the error refers to
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    "not_found",
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    "validation_error",
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    "conflict",
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Code:    "forbidden",
		Message: message,
	}
}

// Unauthorized means the request carries no usable session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    "unauthorized",
		Message: message,
	}
}

func HandleTaken(handle string) *AppError {
	return &AppError{
		Err:     ErrHandleTaken,
		Code:    "handle_taken",
		Message: fmt.Sprintf("handle %q is already taken", handle),
		Field:   "handle",
	}
}

func HandleReserved(handle string) *AppError {
	return &AppError{
		Err:     ErrHandleReserved,
		Code:    "handle_reserved",
		Message: fmt.Sprintf("handle %q is reserved", handle),
		Field:   "handle",
	}
}

// HandleImmutable is returned when an account that already owns a handle
// tries to claim a different one.
func HandleImmutable(current string) *AppError {
	return &AppError{
		Err:     ErrHandleImmutable,
		Code:    "handle_immutable",
		Message: fmt.Sprintf("account already has handle %q", current),
		Field:   "handle",
	}
}

func DuplicateEmail(email string) *AppError {
	return &AppError{
		Err:     ErrDuplicateEmail,
		Code:    "duplicate_email",
		Message: fmt.Sprintf("an account with email %s already exists", email),
		Field:   "email",
	}
}

// ProviderConflict tells the caller the email is bound to a different
// sign-in method. The UI should send the user back to that method.
func ProviderConflict(email, method string) *AppError {
	return &AppError{
		Err:     ErrProviderConflict,
		Code:    "provider_conflict",
		Message: fmt.Sprintf("%s is registered with %s sign-in", email, method),
		Field:   "email",
	}
}

func InvalidCredential() *AppError {
	return &AppError{
		Err:     ErrInvalidCredential,
		Code:    "invalid_credential",
		Message: "email or password is incorrect",
	}
}

func AccountMissing(email string) *AppError {
	return &AppError{
		Err:     ErrAccountMissing,
		Code:    "account_missing",
		Message: fmt.Sprintf("no account exists for %s", email),
		Field:   "email",
	}
}

func SaveInFlight() *AppError {
	return &AppError{
		Err:     ErrSaveInFlight,
		Code:    "save_in_flight",
		Message: "a save is already in progress",
	}
}
