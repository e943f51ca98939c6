package theme

import (
	"fmt"

	"github.com/pterm/pterm"
)

// Theme defines the colour scheme for terminal output.
type Theme struct {
	// Log level styling
	Debug *pterm.Style
	Info  *pterm.Style
	Warn  *pterm.Style
	Error *pterm.Style

	// Component styling
	Muted    *pterm.Style
	Counts   pterm.Color
	Upstream pterm.Color
	Numbers  pterm.Color

	// Upstream health states
	HealthActive   pterm.Color
	HealthInactive pterm.Color
	HealthUnknown  pterm.Color
}

// Default returns the default bridge theme.
func Default() *Theme {
	return &Theme{
		Debug: pterm.NewStyle(pterm.FgLightBlue),
		Info:  pterm.NewStyle(pterm.FgGreen),
		Warn:  pterm.NewStyle(pterm.FgYellow, pterm.Bold),
		Error: pterm.NewStyle(pterm.FgRed, pterm.Bold),

		Muted:    pterm.NewStyle(pterm.FgGray),
		Counts:   pterm.FgCyan,
		Upstream: pterm.FgMagenta,
		Numbers:  pterm.FgLightCyan,

		HealthActive:   pterm.FgGreen,
		HealthInactive: pterm.FgRed,
		HealthUnknown:  pterm.FgGray,
	}
}

// Dark returns a variant tuned for dark terminals.
func Dark() *Theme {
	t := Default()
	t.Info = pterm.NewStyle(pterm.FgLightGreen)
	t.Warn = pterm.NewStyle(pterm.FgLightYellow, pterm.Bold)
	t.Error = pterm.NewStyle(pterm.FgLightRed, pterm.Bold)
	t.Upstream = pterm.FgLightMagenta
	t.HealthActive = pterm.FgLightGreen
	t.HealthInactive = pterm.FgLightRed
	return t
}

func GetTheme(name string) *Theme {
	switch name {
	case "dark":
		return Dark()
	default:
		return Default()
	}
}

func ColourSplash(message ...any) string {
	return pterm.LightBlue(message...)
}

func ColourVersion(message ...any) string {
	return pterm.LightGreen(message...)
}

func StyleUrl(message ...any) string {
	return pterm.Cyan(message...)
}

// Hyperlink emits an OSC 8 terminal hyperlink.
func Hyperlink(uri string, text string) string {
	return fmt.Sprintf("\x1b]8;;%s\x07%s\x1b]8;;\x07", uri, text)
}
