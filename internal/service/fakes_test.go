package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory AccountRepository and ProfileRepository. It keeps
// the same conflict and not-found contracts as the sqlite store, which is all
// the services rely on.
type fakeStore struct {
	mu         sync.Mutex
	accounts   map[string]*model.Account
	profiles   map[string]*model.Profile // by account id
	identities map[string]string         // provider:externalID -> account id
	nextID     int

	// Injected failures.
	getByEmailErr   error
	handleExistsErr error
	replaceErr      error
	incrementErr    error

	// Calls observed.
	replaceCalls   int
	incrementCalls int
}

var (
	_ repository.AccountRepository = (*fakeStore)(nil)
	_ repository.ProfileRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   make(map[string]*model.Account),
		profiles:   make(map[string]*model.Profile),
		identities: make(map[string]string),
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	c := *acc
	return &c, nil
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	for _, acc := range f.accounts {
		if acc.Email == email {
			c := *acc
			return &c, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

func (f *fakeStore) CreateAccount(_ context.Context, in repository.NewAccount) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.Email == in.Email {
			return nil, apperror.DuplicateEmail(in.Email)
		}
		if in.Handle != "" && acc.Handle == in.Handle {
			return nil, apperror.HandleTaken(in.Handle)
		}
	}

	now := time.Now().UTC()
	acc := &model.Account{
		ID:           f.id(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Handle:       in.Handle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.accounts[acc.ID] = acc
	if in.Identity != nil {
		f.identities[string(in.Identity.Provider)+":"+in.Identity.ExternalID] = acc.ID
	}

	seed := in.Seed
	if seed == nil {
		seed = model.StarterProfile(acc.ID, "")
	}
	p := seed.Clone()
	p.AccountID = acc.ID
	p.Handle = in.Handle
	p.AssignMissingIDs(f.id)
	f.profiles[acc.ID] = p

	c := *acc
	return &c, nil
}

func (f *fakeStore) LinkIdentity(_ context.Context, accountID string, identity model.ExternalIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[string(identity.Provider)+":"+identity.ExternalID] = accountID
	return nil
}

func (f *fakeStore) ClaimHandle(_ context.Context, accountID, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountID]
	if !ok {
		return apperror.NotFound("account", accountID)
	}
	if acc.Handle == handle {
		return nil
	}
	if acc.Handle != "" {
		return apperror.HandleImmutable(acc.Handle)
	}
	for _, other := range f.accounts {
		if other.Handle == handle {
			return apperror.HandleTaken(handle)
		}
	}
	acc.Handle = handle
	if p := f.profiles[accountID]; p != nil {
		p.Handle = handle
	}
	return nil
}

func (f *fakeStore) HandleExists(_ context.Context, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handleExistsErr != nil {
		return false, f.handleExistsErr
	}
	return f.accountForHandle(handle) != nil, nil
}

func (f *fakeStore) accountForHandle(handle string) *model.Account {
	for _, acc := range f.accounts {
		if acc.Handle == handle {
			return acc
		}
	}
	return nil
}

func (f *fakeStore) GetProfileByHandle(_ context.Context, handle string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.accountForHandle(handle)
	if acc == nil {
		return nil, apperror.NotFound("profile", handle)
	}
	return f.profiles[acc.ID].Clone(), nil
}

func (f *fakeStore) GetProfileByAccount(_ context.Context, accountID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[accountID]
	if !ok {
		return nil, apperror.NotFound("profile", accountID)
	}
	return p.Clone(), nil
}

func (f *fakeStore) ReplaceEditableFields(_ context.Context, handle string, fields model.EditableFields) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	acc := f.accountForHandle(handle)
	if acc == nil {
		return nil, apperror.NotFound("profile", handle)
	}
	p := f.profiles[acc.ID]

	counts := make(map[string]int64)
	for _, l := range p.Links {
		counts[l.ID] = l.ClickCount
	}
	for _, s := range p.StoreItems {
		counts[s.ID] = s.ClickCount
	}

	p.DisplayTitle = fields.DisplayTitle
	p.Bio = fields.Bio
	p.AvatarImage = fields.AvatarImage
	p.Theme = fields.Theme
	p.SocialLinks = fields.SocialLinks
	p.Outfits = fields.Outfits
	p.Links = p.Links[:0:0]
	for _, in := range fields.Links {
		id, n := in.ID, counts[in.ID]
		if _, known := counts[id]; !known {
			id = f.id()
		}
		p.Links = append(p.Links, model.Link{ID: id, Title: in.Title, URL: in.URL, Icon: in.Icon, ClickCount: n})
	}
	p.StoreItems = p.StoreItems[:0:0]
	for _, in := range fields.StoreItems {
		id, n := in.ID, counts[in.ID]
		if _, known := counts[id]; !known {
			id = f.id()
		}
		p.StoreItems = append(p.StoreItems, model.StoreItem{ID: id, Title: in.Title, Price: in.Price, Image: in.Image, URL: in.URL, ClickCount: n})
	}
	return p.Clone(), nil
}

func (f *fakeStore) IncrementItemClick(_ context.Context, handle, itemID string, kind model.ItemKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementCalls++
	if f.incrementErr != nil {
		return f.incrementErr
	}
	acc := f.accountForHandle(handle)
	if acc == nil {
		return apperror.NotFound(string(kind), itemID)
	}
	p := f.profiles[acc.ID]
	switch kind {
	case model.ItemLink:
		for i := range p.Links {
			if p.Links[i].ID == itemID {
				p.Links[i].ClickCount++
				return nil
			}
		}
	case model.ItemStore:
		for i := range p.StoreItems {
			if p.StoreItems[i].ID == itemID {
				p.StoreItems[i].ClickCount++
				return nil
			}
		}
	}
	return apperror.NotFound(string(kind), itemID)
}

// seedAccount inserts an account with a claimed handle and one link.
func (f *fakeStore) seedAccount(t *testing.T, email, handle string) *model.Account {
	t.Helper()
	seed := model.StarterProfile("", "@"+handle)
	seed.Links = []model.Link{{Title: "Blog", URL: "https://blog.example"}}
	acc, err := f.CreateAccount(context.Background(), repository.NewAccount{
		Email:  email,
		Handle: handle,
		Seed:   seed,
	})
	require.NoError(t, err)
	return acc
}

// recordingInvalidator remembers every handle it was asked to drop.
type recordingInvalidator struct {
	mu      sync.Mutex
	handles []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handle)
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.handles...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIdentityService(t *testing.T, store *fakeStore) *IdentityService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return NewIdentityService(store, tokens, auth.NewPasswordServiceForTest(), discardLogger())
}
