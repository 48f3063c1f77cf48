package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// Invalidator drops any cached projection for a handle.
type Invalidator interface {
	Invalidate(ctx context.Context, handle string)
}

// ProfileService owns the handle namespace and the owner's write path.
type ProfileService struct {
	accounts    repository.AccountRepository
	profiles    repository.ProfileRepository
	invalidator Invalidator
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewProfileService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	invalidator Invalidator,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		accounts:    accounts,
		profiles:    profiles,
		invalidator: invalidator,
		validate:    newValidator(),
		logger:      logger,
	}
}

// CheckHandle normalises raw and reports whether it could be claimed right
// now. A malformed candidate is a validation error; reserved and taken are
// ordinary answers.
//
// The answer is advisory. ClaimHandle re-decides atomically.
func (s *ProfileService) CheckHandle(ctx context.Context, raw string) (*model.HandleAvailability, error) {
	handle, err := model.NormalizeHandle(raw)
	if err != nil {
		return nil, err
	}
	if model.IsReservedHandle(handle) {
		return &model.HandleAvailability{Handle: handle, Reason: "reserved"}, nil
	}

	exists, err := s.accounts.HandleExists(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("service/profile: checking handle: %w", err)
	}
	if exists {
		return &model.HandleAvailability{Handle: handle, Reason: "taken"}, nil
	}
	return &model.HandleAvailability{Handle: handle, Available: true}, nil
}

// ClaimHandle is the onboarding step. It returns the updated account.
func (s *ProfileService) ClaimHandle(ctx context.Context, accountID, raw string) (*model.Account, error) {
	handle, err := model.NormalizeHandle(raw)
	if err != nil {
		return nil, err
	}
	if model.IsReservedHandle(handle) {
		return nil, apperror.HandleReserved(handle)
	}

	if err := s.accounts.ClaimHandle(ctx, accountID, handle); err != nil {
		return nil, fmt.Errorf("service/profile: claiming %q: %w", handle, err)
	}
	s.invalidator.Invalidate(ctx, handle)

	s.logger.Info("handle claimed", slog.String("accountID", accountID), slog.String("handle", handle))

	acc, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: reloading account: %w", err)
	}
	return acc, nil
}

// GetOwnProfile returns the full editable profile of an account.
func (s *ProfileService) GetOwnProfile(ctx context.Context, accountID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfileByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading profile of %s: %w", accountID, err)
	}
	return p, nil
}

// Save replaces the editable fields of the caller's own profile.
//
// Only the owner may save. Input is cleaned and validated before anything
// touches storage. The stored document is returned so the caller can adopt
// server-owned values (ids, counters) as its new baseline.
func (s *ProfileService) Save(ctx context.Context, accountID, rawHandle string, fields model.EditableFields) (*model.Profile, error) {
	handle, err := model.NormalizeHandle(rawHandle)
	if err != nil {
		return nil, apperror.NotFound("profile", rawHandle)
	}

	acc, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading account: %w", err)
	}
	if acc.Handle != handle {
		exists, err := s.accounts.HandleExists(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("service/profile: checking handle %s: %w", handle, err)
		}
		if !exists {
			return nil, apperror.NotFound("profile", handle)
		}
		return nil, apperror.Forbidden("you can only edit your own profile")
	}

	clean := sanitize(fields)
	if err := s.validate.Struct(clean); err != nil {
		return nil, validationError(err)
	}
	if err := checkAvatar(clean.AvatarImage); err != nil {
		return nil, err
	}

	saved, err := s.profiles.ReplaceEditableFields(ctx, handle, clean)
	if err != nil {
		return nil, fmt.Errorf("service/profile: saving %s: %w", handle, err)
	}
	s.invalidator.Invalidate(ctx, handle)

	s.logger.Info("profile saved",
		slog.String("handle", handle),
		slog.Int("links", len(saved.Links)),
		slog.Int("storeItems", len(saved.StoreItems)),
	)
	return saved, nil
}

// sanitize trims text fields and drops empty social links. It never adds or
// reorders items.
func sanitize(f model.EditableFields) model.EditableFields {
	out := f
	out.DisplayTitle = strings.TrimSpace(f.DisplayTitle)
	out.Bio = strings.TrimSpace(f.Bio)
	out.AvatarImage = strings.TrimSpace(f.AvatarImage)
	out.Theme = strings.TrimSpace(f.Theme)

	out.Links = make([]model.LinkInput, len(f.Links))
	for i, l := range f.Links {
		l.Title = strings.TrimSpace(l.Title)
		l.URL = strings.TrimSpace(l.URL)
		out.Links[i] = l
	}
	out.StoreItems = make([]model.StoreItemInput, len(f.StoreItems))
	for i, item := range f.StoreItems {
		item.Title = strings.TrimSpace(item.Title)
		item.URL = strings.TrimSpace(item.URL)
		out.StoreItems[i] = item
	}

	out.SocialLinks = make(map[string]string, len(f.SocialLinks))
	for platform, u := range f.SocialLinks {
		if u = strings.TrimSpace(u); u != "" {
			out.SocialLinks[strings.ToLower(platform)] = u
		}
	}
	return out
}

// checkAvatar enforces the inline image ceiling. Remote URLs are only length
// checked; they are never fetched.
func checkAvatar(avatar string) error {
	if strings.HasPrefix(avatar, "data:") {
		if len(avatar) > model.MaxAvatarBytes {
			return apperror.ValidationFailed("avatarImage", "avatar image must be 2MB or smaller")
		}
		return nil
	}
	if len(avatar) > 2048 {
		return apperror.ValidationFailed("avatarImage", "avatar URL is too long")
	}
	return nil
}

// isNotFound is shared by the read path and the accumulator.
func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
