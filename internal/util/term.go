package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShouldUseColors determines if coloured output should be used.
// Honours NO_COLOR and FORCE_COLOR (https://no-color.org/).
func ShouldUseColors() bool {
	if noColor := os.Getenv("NO_COLOR"); noColor != "" {
		return false
	}

	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}

	if bridgeColors := os.Getenv("BRIDGE_FORCE_COLORS"); bridgeColors != "" {
		return strings.ToLower(bridgeColors) == "true"
	}

	return IsTerminal()
}
