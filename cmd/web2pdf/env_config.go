package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-web2pdf/internal/config"
)

// productionMode is the WEB2PDF_ENV value that selects an installed browser.
const productionMode = "production"

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath   string // WEB2PDF_CONFIG: config file name or path
	Port         int    // PORT: listening port
	Production   bool   // WEB2PDF_ENV=production
	BrowserBin   string // WEB2PDF_BROWSER_BIN (or ROD_BROWSER_BIN), production only
	ExtensionDir string // WEB2PDF_EXTENSION_DIR: unpacked extension directory
	LogLevel     string // WEB2PDF_LOG_LEVEL: debug, info, warn, error
	LogFormat    string // WEB2PDF_LOG_FORMAT: text, json
	NavTimeout   string // WEB2PDF_NAV_TIMEOUT: soft navigation timeout
}

// knownEnvVars lists valid WEB2PDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"WEB2PDF_CONFIG":        true,
	"WEB2PDF_ENV":           true,
	"WEB2PDF_BROWSER_BIN":   true,
	"WEB2PDF_EXTENSION_DIR": true,
	"WEB2PDF_LOG_LEVEL":     true,
	"WEB2PDF_LOG_FORMAT":    true,
	"WEB2PDF_NAV_TIMEOUT":   true,
	"WEB2PDF_CONTAINER":     true,
}

// loadEnvConfig reads configuration from environment variables.
// A PORT that is not a number is an invalid value, not a silent default.
func loadEnvConfig() (*envConfig, error) {
	cfg := &envConfig{
		ConfigPath:   os.Getenv("WEB2PDF_CONFIG"),
		Production:   strings.EqualFold(os.Getenv("WEB2PDF_ENV"), productionMode),
		ExtensionDir: os.Getenv("WEB2PDF_EXTENSION_DIR"),
		LogLevel:     os.Getenv("WEB2PDF_LOG_LEVEL"),
		LogFormat:    os.Getenv("WEB2PDF_LOG_FORMAT"),
		NavTimeout:   os.Getenv("WEB2PDF_NAV_TIMEOUT"),
	}

	// Outside production rod finds or downloads its own browser
	if cfg.Production {
		cfg.BrowserBin = os.Getenv("WEB2PDF_BROWSER_BIN")
		if cfg.BrowserBin == "" {
			cfg.BrowserBin = os.Getenv("ROD_BROWSER_BIN")
		}
	}

	// Range is checked by config validation
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%w: PORT: %q is not a port number", config.ErrInvalidValue, port)
		}
		cfg.Port = p
	}

	return cfg, nil
}

// warnUnknownEnvVars logs warnings for unrecognized WEB2PDF_* variables.
// Helps catch typos like WEB2PDF_NAV_TIMOUT.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "WEB2PDF_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Set variables override the config file; CLI flags are applied
// afterwards by applyServeFlags.
// Precedence: CLI flags > env vars > config file > defaults.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.BrowserBin != "" {
		cfg.Browser.Bin = env.BrowserBin
	}
	if env.ExtensionDir != "" {
		cfg.Browser.ExtensionDir = env.ExtensionDir
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
	if env.NavTimeout != "" {
		cfg.Render.NavigationTimeout = env.NavTimeout
	}
}
