package extension

import "context"

// WidgetSize is measured in grid cells.
type WidgetSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Widget describes a home-screen widget contributed by an extension.
// Rendering belongs to the host.
type Widget struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	DefaultSize WidgetSize `json:"default_size"`
	Resizable   bool       `json:"resizable"`
}

// SearchProvider contributes results to the app drawer search.
type SearchProvider interface {
	ID() string
	Name() string
	// Search may block (e.g. for I/O); it receives the caller's context.
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchResult is one row returned by a SearchProvider.
type SearchResult struct {
	ProviderID string `json:"provider_id,omitempty"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	IconURL    string `json:"icon_url,omitempty"`
	Action     Action `json:"-"`
}

// ThemeColors are ARGB colors.
type ThemeColors struct {
	Primary       uint32 `json:"primary"`
	Accent        uint32 `json:"accent"`
	Background    uint32 `json:"background"`
	Surface       uint32 `json:"surface"`
	Text          uint32 `json:"text"`
	TextSecondary uint32 `json:"text_secondary"`
}

// Theme is a color scheme contributed by an extension.
type Theme struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Colors      ThemeColors `json:"colors"`
}
