// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider names the sign-in method that produced a credential.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
)

// Account is the identity anchor. Every Profile belongs to exactly one
// Account.
//
// Email is the linkage key for identity providers: an external identity and a
// local password that share an email resolve to the same row, subject to the
// rule that an external sign-in never silently attaches to an account that
// owns a password.
//
// Handle is empty until onboarding, then set exactly once.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Handle       string    `json:"handle,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account holds a local credential.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// ExternalIdentity is what an OAuth/OIDC provider hands back after a
// successful sign-in.
type ExternalIdentity struct {
	Provider   Provider
	ExternalID string
	Email      string
	Name       string // display name, used to seed the profile title
}
