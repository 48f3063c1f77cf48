// Package draft holds an owner's unsaved edits to one profile.
//
// A Session starts Clean from the last copy fetched from the server. Any
// edit makes it Dirty. Save sends the whole editable document, and on
// success the server's returned copy becomes the new Clean baseline. On
// failure the edits stay and the session is Dirty again, ready for a retry.
//
//	Clean ──edit──▶ Dirty ──Save──▶ Saving ──ok──▶ Clean
//	                  ▲                │
//	                  └─────error──────┘
//
// Only one save may be in flight. While Saving, further saves and edits are
// rejected with apperror.ErrSaveInFlight so an earlier write can never land
// after a later one.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/enrich"
	"github.com/sakif/linkbio/internal/model"
)

type State int

const (
	Clean State = iota
	Dirty
	Saving
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Field names a scalar editable field.
type Field string

const (
	FieldDisplayTitle Field = "displayTitle"
	FieldBio          Field = "bio"
	FieldAvatarImage  Field = "avatarImage"
	FieldTheme        Field = "theme"
)

// ErrMockImport is returned by MergeImport for placeholder content the
// caller did not explicitly accept.
var ErrMockImport = errors.New("draft: import returned placeholder content")

// Saver persists a full editable document and returns the stored profile.
type Saver interface {
	SaveProfile(ctx context.Context, handle string, fields model.EditableFields) (*model.Profile, error)
}

// Session is safe for concurrent use, though edits are meant to come from a
// single editor.
type Session struct {
	saver Saver

	mu     sync.Mutex
	handle string
	state  State
	base   *model.Profile
	fields model.EditableFields
	newID  func() string
}

// New starts a Clean session from the server's copy of the profile.
func New(base *model.Profile, saver Saver) *Session {
	return &Session{
		saver:  saver,
		handle: base.Handle,
		state:  Clean,
		base:   base.Clone(),
		fields: base.Editable(),
		newID:  func() string { return uuid.NewString() },
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Handle() string { return s.handle }

// Fields returns a copy of the working document.
func (s *Session) Fields() model.EditableFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFields(s.fields)
}

// Baseline returns a copy of the last profile the server confirmed.
func (s *Session) Baseline() *model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.Clone()
}

// edit runs fn against the working document unless a save is in flight.
// A successful fn marks the session Dirty.
func (s *Session) edit(fn func(f *model.EditableFields) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saving {
		return apperror.SaveInFlight()
	}
	if err := fn(&s.fields); err != nil {
		return err
	}
	s.state = Dirty
	return nil
}

// ApplyFieldEdit sets one scalar field.
func (s *Session) ApplyFieldEdit(field Field, value string) error {
	return s.edit(func(f *model.EditableFields) error {
		switch field {
		case FieldDisplayTitle:
			f.DisplayTitle = value
		case FieldBio:
			f.Bio = value
		case FieldAvatarImage:
			f.AvatarImage = value
		case FieldTheme:
			f.Theme = value
		default:
			return apperror.ValidationFailed(string(field), fmt.Sprintf("%q is not an editable field", field))
		}
		return nil
	})
}

// SetSocialLink sets or, with an empty url, clears one platform.
func (s *Session) SetSocialLink(platform, url string) error {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if !isSocialPlatform(platform) {
		return apperror.ValidationFailed("socialLinks", fmt.Sprintf("%q is not a supported platform", platform))
	}
	return s.edit(func(f *model.EditableFields) error {
		if f.SocialLinks == nil {
			f.SocialLinks = make(map[string]string)
		}
		if url == "" {
			delete(f.SocialLinks, platform)
		} else {
			f.SocialLinks[platform] = url
		}
		return nil
	})
}

// SetOutfits replaces the outfit gallery.
func (s *Session) SetOutfits(outfits []model.Outfit) error {
	return s.edit(func(f *model.EditableFields) error {
		f.Outfits = append([]model.Outfit(nil), outfits...)
		return nil
	})
}

func isSocialPlatform(p string) bool {
	for _, known := range model.SocialPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

func cloneFields(f model.EditableFields) model.EditableFields {
	out := f
	out.Links = append([]model.LinkInput(nil), f.Links...)
	out.StoreItems = append([]model.StoreItemInput(nil), f.StoreItems...)
	if f.SocialLinks != nil {
		out.SocialLinks = make(map[string]string, len(f.SocialLinks))
		for k, v := range f.SocialLinks {
			out.SocialLinks[k] = v
		}
	}
	if f.Outfits != nil {
		out.Outfits = make([]model.Outfit, len(f.Outfits))
		for i, o := range f.Outfits {
			out.Outfits[i] = o
			out.Outfits[i].Tags = append([]model.OutfitTag(nil), o.Tags...)
		}
	}
	return out
}

// MergeOptions controls how an import lands in the draft.
type MergeOptions struct {
	// Overwrite replaces a non-empty title, bio or avatar.
	Overwrite bool
	// AllowMock accepts placeholder content.
	AllowMock bool
}

// MergeImport folds an import result into the draft. Imported links are
// appended after the existing ones, which keep their order and ids. Title,
// bio and avatar are only filled when empty unless opts.Overwrite is set.
// It returns how many links were added.
func (s *Session) MergeImport(res enrich.Result, opts MergeOptions) (int, error) {
	switch res.Kind {
	case enrich.KindFailed:
		if res.Err != nil {
			return 0, fmt.Errorf("draft: import failed: %w", res.Err)
		}
		return 0, errors.New("draft: import failed")
	case enrich.KindMock:
		if !opts.AllowMock {
			return 0, ErrMockImport
		}
	}

	added := 0
	err := s.edit(func(f *model.EditableFields) error {
		mergeScalar(&f.DisplayTitle, res.Profile.Title, opts.Overwrite)
		mergeScalar(&f.Bio, res.Profile.Description, opts.Overwrite)
		mergeScalar(&f.AvatarImage, res.Profile.Image, opts.Overwrite)

		for _, l := range res.Profile.Links {
			if len(f.Links) >= model.MaxLinks {
				break
			}
			f.Links = append(f.Links, model.LinkInput{ID: s.newID(), Title: l.Title, URL: l.URL})
			added++
		}
		return nil
	})
	return added, err
}

func mergeScalar(dst *string, imported string, overwrite bool) {
	imported = strings.TrimSpace(imported)
	if imported == "" {
		return
	}
	if overwrite || strings.TrimSpace(*dst) == "" {
		*dst = imported
	}
}

// Save sends the working document and waits for the result.
//
// Cancelling ctx abandons the wait. A request that already reached the
// server may still be applied.
func (s *Session) Save(ctx context.Context) (*model.Profile, error) {
	s.mu.Lock()
	if s.state == Saving {
		s.mu.Unlock()
		return nil, apperror.SaveInFlight()
	}
	prev := s.state
	s.state = Saving
	snapshot := cloneFields(s.fields)
	s.mu.Unlock()

	saved, err := s.saver.SaveProfile(ctx, s.handle, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if prev == Clean {
			s.state = Clean
		} else {
			s.state = Dirty
		}
		return nil, fmt.Errorf("draft: saving %s: %w", s.handle, err)
	}
	s.base = saved.Clone()
	s.fields = saved.Editable()
	s.state = Clean
	return saved.Clone(), nil
}
