package model

import (
	"time"

	"github.com/sakif/linkbio/internal/apperror"
)

// Limits applied to a single profile on save.
const (
	MaxLinks       = 100
	MaxStoreItems  = 100
	MaxOutfits     = 20
	MaxOutfitTags  = 3
	MaxAvatarBytes = 2 << 20 // inline data: URIs only; remote URLs are not fetched
)

// ItemKind says which list a click-trackable item lives in.
type ItemKind string

const (
	ItemLink  ItemKind = "link"
	ItemStore ItemKind = "store"
)

// ParseItemKind accepts exactly "link" or "store".
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case ItemLink, ItemStore:
		return ItemKind(s), nil
	}
	return "", apperror.ValidationFailed("itemKind", "itemKind must be link or store")
}

// SocialPlatforms is the closed set of keys allowed in Profile.SocialLinks,
// in the order the public page renders them.
var SocialPlatforms = []string{
	"instagram", "twitter", "linkedin", "youtube", "facebook",
	"tiktok", "github", "pinterest", "email",
}

// Link is one entry in the profile's link list.
//
// ID is assigned by the server on first save and never reused. ClickCount is
// server-owned: it changes only through the click accumulator.
type Link struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Icon       string `json:"icon,omitempty"`
	ClickCount int64  `json:"clickCount"`
}

// StoreItem is one product card in the shop grid. Price is a display string
// ("$35.00"); no commerce happens here.
type StoreItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Price      string `json:"price"`
	Image      string `json:"image"`
	URL        string `json:"url,omitempty"`
	ClickCount int64  `json:"clickCount"`
}

// OutfitTag is a hotspot on an outfit photo. X and Y are percentages of the
// image width and height.
type OutfitTag struct {
	ID    string  `json:"id"`
	Title string  `json:"title" validate:"max=100"`
	URL   string  `json:"url" validate:"omitempty,max=2048,http_url"`
	X     float64 `json:"x" validate:"gte=0,lte=100"`
	Y     float64 `json:"y" validate:"gte=0,lte=100"`
}

// Outfit is a photo with up to MaxOutfitTags tagged products.
type Outfit struct {
	ID    string      `json:"id"`
	Image string      `json:"image" validate:"required"`
	Tags  []OutfitTag `json:"tags" validate:"max=3,dive"`
}

// Profile is the public-facing document keyed 1:1 with an Account.
type Profile struct {
	AccountID    string            `json:"-"`
	Handle       string            `json:"handle"`
	DisplayTitle string            `json:"displayTitle"`
	Bio          string            `json:"bio"`
	AvatarImage  string            `json:"avatarImage"`
	Theme        string            `json:"theme"`
	Links        []Link            `json:"links"`
	StoreItems   []StoreItem       `json:"storeItems"`
	SocialLinks  map[string]string `json:"socialLinks"`
	Outfits      []Outfit          `json:"outfits"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// LinkInput is the caller-editable subset of a Link. It has no ClickCount,
// so a client cannot overwrite a counter even if it sends one.
type LinkInput struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title" validate:"required,max=100"`
	URL   string `json:"url" validate:"required,max=2048,http_url"`
	Icon  string `json:"icon,omitempty" validate:"max=32"`
}

// StoreItemInput is the caller-editable subset of a StoreItem.
type StoreItemInput struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title" validate:"required,max=100"`
	Price string `json:"price" validate:"max=32"`
	Image string `json:"image" validate:"max=2048"`
	URL   string `json:"url,omitempty" validate:"omitempty,max=2048,http_url"`
}

// EditableFields is everything a save may replace. Anything else on the
// Profile (account linkage, handle, counters) is server-owned.
//
// An item whose ID matches an existing item keeps that item's identity and
// counter. An item with an unknown or empty ID is inserted with a fresh
// server id. Existing items missing from the input are deleted.
type EditableFields struct {
	DisplayTitle string            `json:"displayTitle" validate:"max=100"`
	Bio          string            `json:"bio" validate:"max=500"`
	AvatarImage  string            `json:"avatarImage"`
	Theme        string            `json:"theme" validate:"max=32"`
	Links        []LinkInput       `json:"links" validate:"max=100,dive"`
	StoreItems   []StoreItemInput  `json:"storeItems" validate:"max=100,dive"`
	SocialLinks  map[string]string `json:"socialLinks" validate:"dive,keys,oneof=instagram twitter linkedin youtube facebook tiktok github pinterest email,endkeys,max=2048"`
	Outfits      []Outfit          `json:"outfits" validate:"max=20,dive"`
}

// Editable extracts the caller-editable subset of p.
func (p *Profile) Editable() EditableFields {
	f := EditableFields{
		DisplayTitle: p.DisplayTitle,
		Bio:          p.Bio,
		AvatarImage:  p.AvatarImage,
		Theme:        p.Theme,
		Links:        make([]LinkInput, 0, len(p.Links)),
		StoreItems:   make([]StoreItemInput, 0, len(p.StoreItems)),
		SocialLinks:  make(map[string]string, len(p.SocialLinks)),
		Outfits:      cloneOutfits(p.Outfits),
	}
	for _, l := range p.Links {
		f.Links = append(f.Links, LinkInput{ID: l.ID, Title: l.Title, URL: l.URL, Icon: l.Icon})
	}
	for _, s := range p.StoreItems {
		f.StoreItems = append(f.StoreItems, StoreItemInput{ID: s.ID, Title: s.Title, Price: s.Price, Image: s.Image, URL: s.URL})
	}
	for k, v := range p.SocialLinks {
		f.SocialLinks[k] = v
	}
	return f
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Links = append([]Link(nil), p.Links...)
	c.StoreItems = append([]StoreItem(nil), p.StoreItems...)
	c.Outfits = cloneOutfits(p.Outfits)
	if p.SocialLinks != nil {
		c.SocialLinks = make(map[string]string, len(p.SocialLinks))
		for k, v := range p.SocialLinks {
			c.SocialLinks[k] = v
		}
	}
	return &c
}

// AssignMissingIDs gives every item, outfit and outfit tag without an id a
// fresh one from newID. It reports whether anything changed.
//
// Rows written before items carried ids are fixed up once, at load time.
func (p *Profile) AssignMissingIDs(newID func() string) bool {
	changed := false
	for i := range p.Links {
		if p.Links[i].ID == "" {
			p.Links[i].ID = newID()
			changed = true
		}
	}
	for i := range p.StoreItems {
		if p.StoreItems[i].ID == "" {
			p.StoreItems[i].ID = newID()
			changed = true
		}
	}
	if AssignOutfitIDs(p.Outfits, newID) {
		changed = true
	}
	return changed
}

// AssignOutfitIDs fills empty outfit and tag ids in place.
func AssignOutfitIDs(outfits []Outfit, newID func() string) bool {
	changed := false
	for i := range outfits {
		if outfits[i].ID == "" {
			outfits[i].ID = newID()
			changed = true
		}
		for j := range outfits[i].Tags {
			if outfits[i].Tags[j].ID == "" {
				outfits[i].Tags[j].ID = newID()
				changed = true
			}
		}
	}
	return changed
}

func cloneOutfits(in []Outfit) []Outfit {
	if in == nil {
		return nil
	}
	out := make([]Outfit, len(in))
	for i, o := range in {
		out[i] = o
		out[i].Tags = append([]OutfitTag(nil), o.Tags...)
	}
	return out
}

// ClickEvent is one visitor click on a tracked item.
type ClickEvent struct {
	Handle string   `json:"handle"`
	ItemID string   `json:"itemId"`
	Kind   ItemKind `json:"itemKind"`
}
