package model

// DefaultTheme is used for any stored value outside Themes.
const DefaultTheme = "indigo"

// Themes is the closed set of colour themes the public page knows how to
// render.
var Themes = []string{"verdant", "indigo", "purple", "rose", "amber", "cyan"}

// ResolveTheme maps a stored theme label to a renderable one. Writes accept
// any label so newer clients can store themes older servers do not know yet.
func ResolveTheme(theme string) string {
	for _, t := range Themes {
		if t == theme {
			return t
		}
	}
	return DefaultTheme
}
