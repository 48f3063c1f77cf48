package model

import (
	"strings"

	"github.com/sakif/linkbio/internal/apperror"
)

// MinHandleLength is the shortest handle accepted after normalisation.
const MinHandleLength = 3

// reservedHandles collide with top-level routes.
var reservedHandles = map[string]struct{}{
	"admin":      {},
	"login":      {},
	"register":   {},
	"api":        {},
	"dashboard":  {},
	"settings":   {},
	"onboarding": {},
	"healthz":    {},
	"metrics":    {},
}

// NormalizeHandle lowercases and trims the candidate, then drops every rune
// outside [a-z0-9]. "  Alice_B! " becomes "aliceb".
//
// It returns a validation error when the result is shorter than
// MinHandleLength. Reserved words are NOT rejected here; see IsReservedHandle.
func NormalizeHandle(raw string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	handle := b.String()
	if len(handle) < MinHandleLength {
		return "", apperror.ValidationFailed("handle", "handle must contain at least 3 letters or digits")
	}
	return handle, nil
}

// IsReservedHandle reports whether an already normalised handle is one of the
// system route names.
func IsReservedHandle(handle string) bool {
	_, ok := reservedHandles[handle]
	return ok
}

// HandleAvailability is the answer to "can I claim this handle?".
// Reason is empty when Available is true, otherwise "reserved" or "taken".
type HandleAvailability struct {
	Handle    string `json:"handle"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
