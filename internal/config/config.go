package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	web2pdf "github.com/alnah/go-web2pdf"
	"github.com/alnah/go-web2pdf/internal/fileutil"
	"github.com/alnah/go-web2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Defaults.
const (
	DefaultPort              = 8000
	DefaultExtensionDir      = "./extension"
	DefaultShutdownTimeout   = "30s"
	DefaultReadHeaderTimeout = "10s"
	DefaultLaunchTimeout     = "100s"
	DefaultBootstrapTimeout  = "180s"
	DefaultNavigationTimeout = "180s"
	DefaultIdleWindow        = "500ms"
	DefaultSettleDelay       = "1s"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Config holds all service configuration. Durations are Go duration
// strings ("30s", "500ms").
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Extension ExtensionConfig `yaml:"extension"`
	Render    RenderConfig    `yaml:"render"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port              int      `yaml:"port"`
	CORSOrigins       []string `yaml:"corsOrigins"`       // "*" allows any origin
	ShutdownTimeout   string   `yaml:"shutdownTimeout"`   // Grace period for in-flight requests
	ReadHeaderTimeout string   `yaml:"readHeaderTimeout"` // Slow-client guard
}

// BrowserConfig defines how the browser process is launched.
type BrowserConfig struct {
	Bin           string `yaml:"bin"`          // Empty = rod finds or downloads Chromium
	ExtensionDir  string `yaml:"extensionDir"` // Unpacked extension, loaded at launch
	LaunchTimeout string `yaml:"launchTimeout"`
}

// ExtensionConfig defines the one-time extension bootstrap.
type ExtensionConfig struct {
	ID            string `yaml:"id"` // Empty = skip bootstrap
	OptionsPage   string `yaml:"optionsPage"`
	SaveSelector  string `yaml:"saveSelector"`
	OptInPage     string `yaml:"optInPage"`
	OptInSelector string `yaml:"optInSelector"`
	Timeout       string `yaml:"bootstrapTimeout"` // Shared deadline across all steps
	SettleDelay   string `yaml:"settleDelay"`      // Pause after each click
}

// RenderConfig defines navigation behavior.
type RenderConfig struct {
	NavigationTimeout string `yaml:"navigationTimeout"` // Soft: capture proceeds on expiry
	IdleWindow        string `yaml:"idleWindow"`        // Network quiet period
}

// LogConfig defines logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              DefaultPort,
			CORSOrigins:       []string{"*"},
			ShutdownTimeout:   DefaultShutdownTimeout,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		Browser: BrowserConfig{
			ExtensionDir:  DefaultExtensionDir,
			LaunchTimeout: DefaultLaunchTimeout,
		},
		Extension: ExtensionConfig{
			ID:            web2pdf.DefaultExtensionID,
			OptionsPage:   web2pdf.DefaultOptionsPage,
			SaveSelector:  web2pdf.DefaultSaveSelector,
			OptInPage:     web2pdf.DefaultOptInPage,
			OptInSelector: web2pdf.DefaultOptInSelector,
			Timeout:       DefaultBootstrapTimeout,
			SettleDelay:   DefaultSettleDelay,
		},
		Render: RenderConfig{
			NavigationTimeout: DefaultNavigationTimeout,
			IdleWindow:        DefaultIdleWindow,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate checks ranges and enumerations.
// Called by LoadConfig, and again after env and flag overrides are applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535, got %d", ErrInvalidValue, c.Server.Port)
	}

	durations := []struct {
		field string
		value string
	}{
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"server.readHeaderTimeout", c.Server.ReadHeaderTimeout},
		{"browser.launchTimeout", c.Browser.LaunchTimeout},
		{"extension.bootstrapTimeout", c.Extension.Timeout},
		{"render.navigationTimeout", c.Render.NavigationTimeout},
		{"render.idleWindow", c.Render.IdleWindow},
	}
	for _, d := range durations {
		if _, err := parsePositive(d.field, d.value); err != nil {
			return err
		}
	}
	// Zero settle delay is allowed.
	if c.Extension.SettleDelay != "" {
		if d, err := time.ParseDuration(c.Extension.SettleDelay); err != nil || d < 0 {
			return fmt.Errorf("%w: extension.settleDelay %q", ErrInvalidValue, c.Extension.SettleDelay)
		}
	}

	if c.Extension.ID != "" {
		if c.Extension.OptionsPage == "" || c.Extension.SaveSelector == "" ||
			c.Extension.OptInPage == "" || c.Extension.OptInSelector == "" {
			return fmt.Errorf("%w: extension pages and selectors are required when extension.id is set", ErrInvalidValue)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q (must be debug, info, warn, or error)", ErrInvalidValue, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (must be text or json)", ErrInvalidValue, c.Log.Format)
	}

	return nil
}

// parsePositive parses a required, strictly positive duration.
func parsePositive(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidValue, field, value)
	}
	return d, nil
}

// mustDuration parses a duration already checked by Validate.
func mustDuration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// ShutdownTimeout returns server.shutdownTimeout.
func (c *Config) ShutdownTimeout() time.Duration { return mustDuration(c.Server.ShutdownTimeout) }

// ReadHeaderTimeout returns server.readHeaderTimeout.
func (c *Config) ReadHeaderTimeout() time.Duration { return mustDuration(c.Server.ReadHeaderTimeout) }

// LaunchTimeout returns browser.launchTimeout.
func (c *Config) LaunchTimeout() time.Duration { return mustDuration(c.Browser.LaunchTimeout) }

// BootstrapTimeout returns extension.bootstrapTimeout.
func (c *Config) BootstrapTimeout() time.Duration { return mustDuration(c.Extension.Timeout) }

// SettleDelay returns extension.settleDelay.
func (c *Config) SettleDelay() time.Duration { return mustDuration(c.Extension.SettleDelay) }

// NavigationTimeout returns render.navigationTimeout.
func (c *Config) NavigationTimeout() time.Duration { return mustDuration(c.Render.NavigationTimeout) }

// IdleWindow returns render.idleWindow.
func (c *Config) IdleWindow() time.Duration { return mustDuration(c.Render.IdleWindow) }

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields missing from the file keep their defaults.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is operator-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SearchPaths lists where a config name is looked up, in order.
// Tries locations in order: current directory, ~/.config/go-web2pdf/
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "go-web2pdf", name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing file among SearchPaths.
func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
