package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// Each specific error must match its own sentinel and its category, and
// nothing else.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("profile", "alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("handle", "handle is too short"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("account", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "HandleTaken matches its own sentinel",
			err:       HandleTaken("alice"),
			target:    ErrHandleTaken,
			wantMatch: true,
		},
		{
			name:      "HandleTaken is a conflict",
			err:       HandleTaken("alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "HandleReserved is a conflict",
			err:       HandleReserved("admin"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "HandleReserved is not HandleTaken",
			err:       HandleReserved("admin"),
			target:    ErrHandleTaken,
			wantMatch: false,
		},
		{
			name:      "HandleImmutable is a conflict",
			err:       HandleImmutable("alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "ProviderConflict is a conflict",
			err:       ProviderConflict("a@b.co", "password"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "InvalidCredential is unauthorized",
			err:       InvalidCredential(),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "AccountMissing is unauthorized",
			err:       AccountMissing("a@b.co"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "AccountMissing is not InvalidCredential",
			err:       AccountMissing("a@b.co"),
			target:    ErrInvalidCredential,
			wantMatch: false,
		},
		{
			name:      "SaveInFlight is a conflict",
			err:       SaveInFlight(),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("profile", "alice"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "wrapped AppError still matches",
			err:       fmt.Errorf("service: %w", HandleTaken("alice")),
			target:    ErrHandleTaken,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
		wantCode    string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("profile", "alice"),
			wantMessage: "profile not found with id alice",
			wantCode:    "not_found",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("email", "email is required"),
			wantMessage: "email is required",
			wantCode:    "validation_error",
		},
		{
			name:        "HandleTaken quotes the handle",
			err:         HandleTaken("alice"),
			wantMessage: `handle "alice" is already taken`,
			wantCode:    "handle_taken",
		},
		{
			name:        "ProviderConflict names the method",
			err:         ProviderConflict("a@b.co", "github"),
			wantMessage: "a@b.co is registered with github sign-in",
			wantCode:    "provider_conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("profile", "alice")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestAsRecoversField(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", HandleReserved("admin"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As failed to find *AppError")
	}
	if appErr.Field != "handle" {
		t.Errorf("Field = %q, want %q", appErr.Field, "handle")
	}
}
