// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-web2pdf/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserLaunch returns hints for browser launch failures.
func ForBrowserLaunch() string {
	var hints []string

	binSet := os.Getenv("WEB2PDF_BROWSER_BIN") != "" || os.Getenv("ROD_BROWSER_BIN") != ""
	production := strings.EqualFold(os.Getenv("WEB2PDF_ENV"), "production")

	// Containers rarely allow rod to download its own Chromium
	if IsInContainer() && (!binSet || !production) {
		hints = append(hints, "in containers set WEB2PDF_ENV=production and WEB2PDF_BROWSER_BIN to the installed Chrome")
	}
	hints = append(hints, "run 'web2pdf doctor' to check the browser installation")

	return formatHints(hints)
}

// ForExtensionDir returns a hint for a missing extension directory.
func ForExtensionDir() string {
	return format("place the unpacked extension in ./extension or set WEB2PDF_EXTENSION_DIR")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-web2pdf/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-web2pdf") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForListen returns a hint for a server that cannot bind its port.
func ForListen() string {
	return format("choose another port with --port or PORT")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
