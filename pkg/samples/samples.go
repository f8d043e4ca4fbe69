// Package samples contains the built-in reference extensions.
package samples

import (
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/registry"
)

// Built-in extension identifiers.
const (
	CalculatorID = "com.launcher.calculator"
	WeatherID    = "com.launcher.weather"
	NotesID      = "com.launcher.notes"
	MidnightID   = "com.launcher.theme.midnight"
)

const author = "AI Launcher Team"

// Register adds every built-in extension factory to loader.
func Register(loader *registry.Loader) {
	loader.RegisterFunc(CalculatorID, func() extension.Extension { return NewCalculator() })
	loader.RegisterFunc(WeatherID, func() extension.Extension { return NewWeather() })
	loader.RegisterFunc(NotesID, func() extension.Extension { return NewNotes() })
	loader.RegisterFunc(MidnightID, func() extension.Extension { return NewMidnightTheme() })
}

// IDs lists the built-in identifiers in registration order.
func IDs() []string {
	return []string{CalculatorID, WeatherID, NotesID, MidnightID}
}
