// Package repository declares the persistence contracts. Services depend on
// these interfaces; internal/repository/sqlite implements them.
package repository

import (
	"context"

	"github.com/sakif/linkbio/internal/model"
)

// NewAccount is everything needed to create an account in one step.
//
// Identity is nil for local sign-ups. Handle is empty unless the sign-up
// claimed one; in that case the handle is taken atomically with the insert.
type NewAccount struct {
	Email        string
	PasswordHash string
	Handle       string
	Identity     *model.ExternalIdentity
	Seed         *model.Profile
}

type AccountRepository interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)

	// GetAccountByEmail matches the normalised (lowercased) email.
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)

	// CreateAccount inserts the account, its identity link and its seed
	// profile in one transaction. A clash on email yields
	// apperror.ErrDuplicateEmail, a clash on handle apperror.ErrHandleTaken.
	CreateAccount(ctx context.Context, in NewAccount) (*model.Account, error)

	// LinkIdentity records an external identity for an existing account.
	// Linking the same identity twice is a no-op.
	LinkIdentity(ctx context.Context, accountID string, identity model.ExternalIdentity) error

	// ClaimHandle sets the account's handle exactly once. Claiming the handle
	// the account already owns succeeds. Uniqueness is enforced by the
	// storage layer, so two concurrent claims resolve to one winner.
	ClaimHandle(ctx context.Context, accountID, handle string) error

	HandleExists(ctx context.Context, handle string) (bool, error)
}

type ProfileRepository interface {
	GetProfileByHandle(ctx context.Context, handle string) (*model.Profile, error)
	GetProfileByAccount(ctx context.Context, accountID string) (*model.Profile, error)

	// ReplaceEditableFields swaps the editable subset of the profile for
	// fields in a single transaction and returns the stored result. Item ids
	// and click counters are never taken from the input.
	ReplaceEditableFields(ctx context.Context, handle string, fields model.EditableFields) (*model.Profile, error)

	// IncrementItemClick adds one to a single item's counter as an atomic
	// delta. It returns apperror.ErrNotFound when the handle or item id does
	// not resolve.
	IncrementItemClick(ctx context.Context, handle, itemID string, kind model.ItemKind) error
}
