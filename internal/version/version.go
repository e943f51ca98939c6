package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/xregistry/bridge/theme"
)

var (
	Name        = "bridge"
	ShortName   = "xrb"
	Description = "Federating xRegistry reverse proxy"
	Version     = "v0.1.0"
	Commit      = "none"
	Date        = "unknown"
)

const (
	GithubHomeText  = "github.com/xregistry/bridge"
	GithubHomeUri   = "https://github.com/xregistry/bridge"
	GithubLatestUri = "https://github.com/xregistry/bridge/releases/latest"
)

func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder

	b.WriteString(theme.ColourSplash(`
╔══════════════════════════════════════════════╗
│  ██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗│
│  ██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝│
│  ██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗  │
│  ██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝  │
│  ██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗│
│  ╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝│` + "\n"))
	b.WriteString(theme.ColourSplash("│ "))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString("  ")
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString(theme.ColourSplash("\n╚══════════════════════════════════════════════╝"))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
	}

	vlog.Println(b.String())
}
