// Package service holds the business rules. Handlers call services;
// services call repositories. Nothing in here knows about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// IdentityService maps a sign-in credential to exactly one account,
// creating the account the first time it sees a credential.
//
//	AuthHandler (HTTP) → IdentityService → AccountRepository (DB)
//	                                     ↘ TokenService (JWT)
type IdentityService struct {
	accounts  repository.AccountRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewIdentityService(
	accounts repository.AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		accounts:  accounts,
		tokens:    tokens,
		passwords: passwords,
		validate:  newValidator(),
		logger:    logger,
	}
}

// AuthResult bundles the account with a freshly issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	Account *model.Account `json:"account"`
	Token   string         `json:"token"`
	Created bool           `json:"created"`
}

// LocalCredential is an email/password sign-in. A non-empty Handle turns a
// sign-in for an unknown email into a sign-up claiming that handle.
type LocalCredential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Handle   string `json:"handle,omitempty"`
}

// ResolveExternal handles an OAuth/OIDC sign-in.
//
//   - unknown email: create the account, link the identity, seed a profile
//   - known email with a password: ProviderConflict, never a silent merge
//   - known email without a password: link the identity (idempotent)
func (s *IdentityService) ResolveExternal(ctx context.Context, id *model.ExternalIdentity) (*AuthResult, error) {
	if id == nil {
		return nil, fmt.Errorf("service/identity: identity must not be nil")
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	if err := validateEmail(s.validate, id.Email); err != nil {
		return nil, err
	}

	acc, err := s.accounts.GetAccountByEmail(ctx, id.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		acc, err = s.accounts.CreateAccount(ctx, repository.NewAccount{
			Email:    id.Email,
			Identity: id,
			Seed:     model.StarterProfile("", id.Name),
		})
		if errors.Is(err, apperror.ErrDuplicateEmail) {
			// Lost a race with a concurrent first sign-in for the same
			// email. Resolve against the winner's row.
			return s.linkExisting(ctx, id)
		}
		if err != nil {
			return nil, fmt.Errorf("service/identity: creating account for %s: %w", id.Provider, err)
		}
		s.logger.Info("account created",
			slog.String("accountID", acc.ID),
			slog.String("provider", string(id.Provider)),
		)
		return s.issue(acc, true)

	case err != nil:
		return nil, fmt.Errorf("service/identity: looking up account: %w", err)
	}

	return s.link(ctx, acc, id)
}

func (s *IdentityService) linkExisting(ctx context.Context, id *model.ExternalIdentity) (*AuthResult, error) {
	acc, err := s.accounts.GetAccountByEmail(ctx, id.Email)
	if err != nil {
		return nil, fmt.Errorf("service/identity: looking up account: %w", err)
	}
	return s.link(ctx, acc, id)
}

func (s *IdentityService) link(ctx context.Context, acc *model.Account, id *model.ExternalIdentity) (*AuthResult, error) {
	if acc.HasPassword() {
		s.logger.Info("external sign-in refused: email has a password",
			slog.String("accountID", acc.ID),
			slog.String("provider", string(id.Provider)),
		)
		return nil, apperror.ProviderConflict(acc.Email, "password")
	}
	if err := s.accounts.LinkIdentity(ctx, acc.ID, *id); err != nil {
		return nil, fmt.Errorf("service/identity: linking identity: %w", err)
	}
	return s.issue(acc, false)
}

// ResolveLocal handles an email/password sign-in or sign-up.
func (s *IdentityService) ResolveLocal(ctx context.Context, cred LocalCredential) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(cred.Email))
	if err := validateEmail(s.validate, email); err != nil {
		return nil, err
	}
	if cred.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	acc, err := s.accounts.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return s.signIn(acc, cred.Password)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/identity: looking up account: %w", err)
	}

	if strings.TrimSpace(cred.Handle) == "" {
		return nil, apperror.AccountMissing(email)
	}
	return s.signUp(ctx, email, cred)
}

func (s *IdentityService) signIn(acc *model.Account, password string) (*AuthResult, error) {
	if !acc.HasPassword() {
		return nil, apperror.ProviderConflict(acc.Email, "social")
	}
	if err := s.passwords.Verify(acc.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredential()
		}
		return nil, fmt.Errorf("service/identity: verifying password: %w", err)
	}
	return s.issue(acc, false)
}

// signUp creates the account and claims the handle in one insert, so two
// sign-ups racing for the same handle cannot both succeed.
func (s *IdentityService) signUp(ctx context.Context, email string, cred LocalCredential) (*AuthResult, error) {
	handle, err := model.NormalizeHandle(cred.Handle)
	if err != nil {
		return nil, err
	}
	if model.IsReservedHandle(handle) {
		return nil, apperror.HandleReserved(handle)
	}
	if len(cred.Password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}

	hash, err := s.passwords.Hash(cred.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", strings.TrimPrefix(err.Error(), "auth: "))
	}

	acc, err := s.accounts.CreateAccount(ctx, repository.NewAccount{
		Email:        email,
		PasswordHash: hash,
		Handle:       handle,
		Seed:         model.StarterProfile("", "@"+handle),
	})
	if err != nil {
		// Conflicts (handle taken, duplicate email) pass through as-is.
		return nil, fmt.Errorf("service/identity: signing up %s: %w", handle, err)
	}

	s.logger.Info("account created",
		slog.String("accountID", acc.ID),
		slog.String("provider", string(model.ProviderLocal)),
		slog.String("handle", handle),
	)
	return s.issue(acc, true)
}

// GetAccount returns the account behind a session.
func (s *IdentityService) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, apperror.Unauthorized("no session")
	}
	acc, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/identity: fetching account %s: %w", id, err)
	}
	return acc, nil
}

func (s *IdentityService) issue(acc *model.Account, created bool) (*AuthResult, error) {
	token, err := s.tokens.Generate(acc.ID)
	if err != nil {
		return nil, fmt.Errorf("service/identity: generating token for %s: %w", acc.ID, err)
	}
	return &AuthResult{Account: acc, Token: token, Created: created}, nil
}
