package samples

import "github.com/jllopis/launcher/pkg/extension"

// MidnightTheme contributes a dark color scheme and nothing else.
type MidnightTheme struct {
	extension.Base
}

// NewMidnightTheme returns the theme extension.
func NewMidnightTheme() *MidnightTheme {
	return &MidnightTheme{Base: extension.NewBase(extension.Descriptor{
		ID:          MidnightID,
		Name:        "Midnight",
		Version:     "1.0.0",
		Author:      author,
		Description: "Dark theme with blue accents",
	})}
}

// ProvideTheme implements extension.Extension.
func (*MidnightTheme) ProvideTheme() *extension.Theme {
	return &extension.Theme{
		ID:          MidnightID,
		Name:        "Midnight",
		Description: "Dark theme with blue accents",
		Colors: extension.ThemeColors{
			Primary:       0xFF1E88E5,
			Accent:        0xFF64B5F6,
			Background:    0xFF0D1117,
			Surface:       0xFF161B22,
			Text:          0xFFE6EDF3,
			TextSecondary: 0xFF8B949E,
		},
	}
}
