package samples

import (
	"context"
	"strings"

	"github.com/jllopis/launcher/pkg/extension"
)

// WeatherPriority ranks weather answers.
const WeatherPriority = 8

// Weather is a placeholder weather extension. It declares location and
// network permissions but performs no I/O.
type Weather struct {
	extension.Base
}

// NewWeather returns the weather extension.
func NewWeather() *Weather {
	return &Weather{Base: extension.NewBase(extension.Descriptor{
		ID:          WeatherID,
		Name:        "Weather",
		Version:     "1.0.0",
		Author:      author,
		Description: "Shows current weather information",
		Permissions: []extension.Permission{extension.PermAccessLocation, extension.PermNetworkAccess},
	})}
}

// OnAIQuery responds to weather questions with a pointer to settings.
func (w *Weather) OnAIQuery(_ context.Context, query string, _ extension.LauncherContext) (*extension.Response, error) {
	lower := strings.ToLower(query)
	if !strings.Contains(lower, "weather") && !strings.Contains(lower, "temperature") {
		return nil, nil
	}
	return &extension.Response{
		Text:     "Weather extension is installed but not configured. Connect to a weather API to get real data.",
		Actions:  []extension.Action{extension.OpenSettings{Target: "weather_settings"}},
		Priority: WeatherPriority,
	}, nil
}

// ProvideWidget returns the 2x2 weather widget.
func (w *Weather) ProvideWidget() *extension.Widget {
	return &extension.Widget{
		ID:          WeatherID + ".widget",
		Name:        "Weather Widget",
		Description: "Shows current weather",
		DefaultSize: extension.WidgetSize{Width: 2, Height: 2},
	}
}
