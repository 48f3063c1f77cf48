package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// compile-time check that *DB implements repository.AccountRepository
var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, email, password_hash, handle, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var (
		a      model.Account
		hash   sql.NullString
		handle sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Email, &hash, &handle, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PasswordHash = hash.String
	a.Handle = handle.String
	return &a, nil
}

// GetAccountByID retrieves an account by its internal ID.
// Returns apperror.ErrNotFound if no account exists with that ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return a, nil
}

func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}
	return a, nil
}

// CreateAccount inserts the account row, the optional identity link and the
// seed profile in one transaction.
//
// When in.Handle is set, the UNIQUE index on accounts.handle is what decides
// a race between two sign-ups claiming the same handle: the loser's INSERT
// fails and nothing of its account is left behind.
func (db *DB) CreateAccount(ctx context.Context, in repository.NewAccount) (*model.Account, error) {
	now := time.Now().UTC()
	acc := &model.Account{
		ID:           xid.New().String(),
		Email:        strings.ToLower(in.Email),
		PasswordHash: in.PasswordHash,
		Handle:       in.Handle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, email, password_hash, handle, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			acc.ID, acc.Email, nullString(acc.PasswordHash), nullString(acc.Handle), acc.CreatedAt, acc.UpdatedAt,
		)
		if err != nil {
			return translateAccountConflict(err, acc)
		}

		if in.Identity != nil {
			if err := insertIdentity(ctx, tx, acc.ID, *in.Identity); err != nil {
				return err
			}
		}

		seed := in.Seed
		if seed == nil {
			seed = model.StarterProfile(acc.ID, "")
		}
		return insertProfile(ctx, tx, acc.ID, seed)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func translateAccountConflict(err error, acc *model.Account) error {
	col, ok := uniqueViolation(err)
	if !ok {
		return fmt.Errorf("sqlite: inserting account: %w", err)
	}
	switch col {
	case "accounts.handle":
		return apperror.HandleTaken(acc.Handle)
	case "accounts.email":
		return apperror.DuplicateEmail(acc.Email)
	}
	return apperror.Conflict("account", acc.Email)
}

// LinkIdentity attaches an external identity. INSERT OR IGNORE makes a
// repeated sign-in with the same provider account a no-op.
func (db *DB) LinkIdentity(ctx context.Context, accountID string, identity model.ExternalIdentity) error {
	return insertIdentity(ctx, db.conn, accountID, identity)
}

func insertIdentity(ctx context.Context, q querier, accountID string, identity model.ExternalIdentity) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO account_identities (provider, external_id, account_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		string(identity.Provider), identity.ExternalID, accountID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: linking %s identity to account %s: %w", identity.Provider, accountID, err)
	}
	return nil
}

// ClaimHandle sets accounts.handle if it is unset or already equal to
// handle. The conditional UPDATE and the UNIQUE index together make this
// safe under concurrent claims without any read-then-write in Go.
//
// A profile still carrying the default title is retitled "@handle" in the
// same transaction.
func (db *DB) ClaimHandle(ctx context.Context, accountID, handle string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET handle = ?, updated_at = ?
			 WHERE id = ? AND (handle IS NULL OR handle = ?)`,
			handle, time.Now().UTC(), accountID, handle,
		)
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return apperror.HandleTaken(handle)
			}
			return fmt.Errorf("sqlite: claiming handle %q: %w", handle, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: claiming handle %q: %w", handle, err)
		}
		if n == 0 {
			var current sql.NullString
			err := tx.QueryRowContext(ctx, `SELECT handle FROM accounts WHERE id = ?`, accountID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("account", accountID)
			}
			if err != nil {
				return fmt.Errorf("sqlite: reading handle of account %s: %w", accountID, err)
			}
			return apperror.HandleImmutable(current.String)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE profiles SET display_title = ? WHERE account_id = ? AND display_title = ?`,
			"@"+handle, accountID, model.DefaultDisplayTitle,
		)
		if err != nil {
			return fmt.Errorf("sqlite: retitling profile of %s: %w", accountID, err)
		}
		return nil
	})
}

func (db *DB) HandleExists(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE handle = ?)`, handle,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking handle %q: %w", handle, err)
	}
	return exists, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
