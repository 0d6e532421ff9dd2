package web2pdf

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// backendConfig holds Backend settings resolved from options.
type backendConfig struct {
	launch            LaunchOptions
	extension         ExtensionSettings
	navigationTimeout time.Duration
	idleWindow        time.Duration
}

// Option configures a Backend.
type Option func(*Backend)

// WithBrowserBin sets the browser executable. Empty lets rod locate one.
func WithBrowserBin(path string) Option {
	return func(b *Backend) {
		b.cfg.launch.Bin = path
	}
}

// WithExtensionDir sets the unpacked extension loaded at launch.
func WithExtensionDir(dir string) Option {
	return func(b *Backend) {
		b.cfg.launch.ExtensionDir = dir
	}
}

// WithLaunchTimeout bounds browser process startup.
func WithLaunchTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.cfg.launch.Timeout = d
		}
	}
}

// WithNavigationTimeout sets the soft navigation timeout. When it expires
// the page is captured with whatever content has loaded.
func WithNavigationTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.cfg.navigationTimeout = d
		}
	}
}

// WithIdleWindow sets how long no request may be in flight before a
// navigation is considered complete. Chrome's network-almost-idle signal
// can end the wait earlier.
func WithIdleWindow(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.cfg.idleWindow = d
		}
	}
}

// WithExtension replaces the extension bootstrap settings.
// A zero ID disables bootstrapping.
func WithExtension(s ExtensionSettings) Option {
	return func(b *Backend) {
		b.cfg.extension = s
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// withLauncher swaps the browser launcher (tests).
func withLauncher(fn launchFunc) Option {
	return func(b *Backend) {
		b.launch = fn
	}
}

// withClock swaps the time source (tests).
func withClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// discardLogger returns a logger that writes nowhere.
func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
