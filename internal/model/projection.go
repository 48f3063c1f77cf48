package model

// Projection is the read-only view of a Profile served to visitors. The
// theme is already resolved to a renderable value.
type Projection struct {
	Handle       string            `json:"handle"`
	DisplayTitle string            `json:"displayTitle"`
	Bio          string            `json:"bio"`
	AvatarImage  string            `json:"avatarImage"`
	Theme        string            `json:"theme"`
	Links        []Link            `json:"links"`
	StoreItems   []StoreItem       `json:"storeItems"`
	SocialLinks  map[string]string `json:"socialLinks"`
	Outfits      []Outfit          `json:"outfits"`
}

// SocialLink is one rendered social icon.
type SocialLink struct {
	Platform string
	URL      string
}

// NewProjection builds the visitor view of p.
func NewProjection(p *Profile) *Projection {
	c := p.Clone()
	proj := &Projection{
		Handle:       c.Handle,
		DisplayTitle: c.DisplayTitle,
		Bio:          c.Bio,
		AvatarImage:  c.AvatarImage,
		Theme:        ResolveTheme(c.Theme),
		Links:        c.Links,
		StoreItems:   c.StoreItems,
		SocialLinks:  c.SocialLinks,
		Outfits:      c.Outfits,
	}
	if proj.Links == nil {
		proj.Links = []Link{}
	}
	if proj.StoreItems == nil {
		proj.StoreItems = []StoreItem{}
	}
	if proj.SocialLinks == nil {
		proj.SocialLinks = map[string]string{}
	}
	if proj.Outfits == nil {
		proj.Outfits = []Outfit{}
	}
	return proj
}

// OrderedSocialLinks returns the non-empty social links in SocialPlatforms
// order. Templates range over this instead of the map.
func (p *Projection) OrderedSocialLinks() []SocialLink {
	var out []SocialLink
	for _, platform := range SocialPlatforms {
		if u := p.SocialLinks[platform]; u != "" {
			out = append(out, SocialLink{Platform: platform, URL: u})
		}
	}
	return out
}

// FindLink returns the link with the given id.
func (p *Projection) FindLink(id string) (Link, bool) {
	for _, l := range p.Links {
		if l.ID == id {
			return l, true
		}
	}
	return Link{}, false
}

// FindStoreItem returns the store item with the given id.
func (p *Projection) FindStoreItem(id string) (StoreItem, bool) {
	for _, s := range p.StoreItems {
		if s.ID == id {
			return s, true
		}
	}
	return StoreItem{}, false
}
