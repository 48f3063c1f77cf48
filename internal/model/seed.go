package model

// DefaultDisplayTitle is the title given to accounts created without a
// provider display name.
const DefaultDisplayTitle = "My Profile"

// DefaultBio is the starter bio on every new profile.
const DefaultBio = "Welcome to my profile!"

// StarterProfile returns the demo content a brand new account renders with.
// Items have no ids; the store assigns them on insert. Every starter store
// item links somewhere so its card is clickable and counted.
func StarterProfile(accountID, title string) *Profile {
	if title == "" {
		title = DefaultDisplayTitle
	}
	return &Profile{
		AccountID:    accountID,
		DisplayTitle: title,
		Bio:          DefaultBio,
		Theme:        DefaultTheme,
		Links:        []Link{},
		SocialLinks:  map[string]string{},
		Outfits:      []Outfit{},
		StoreItems: []StoreItem{
			{Title: "Classic Tee", Price: "$25.00", Image: "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400", URL: "https://example.com/shop/classic-tee"},
			{Title: "Canvas Tote", Price: "$18.00", Image: "https://images.unsplash.com/photo-1544816155-12df9643f363?w=400", URL: "https://example.com/shop/canvas-tote"},
			{Title: "Travel Mug", Price: "$35.00", Image: "https://images.unsplash.com/photo-1514228742587-6b1558fcca3d?w=400", URL: "https://example.com/shop/travel-mug"},
		},
	}
}
