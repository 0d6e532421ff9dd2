package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Default extension settings.
const (
	DefaultExtensionID   = "lkbebcjgcmobigpeffafkodonchffocl"
	DefaultOptionsPage   = "options/options.html"
	DefaultSaveSelector  = "#save_top"
	DefaultOptInPage     = "options/optin/opt-in.html"
	DefaultOptInSelector = "#optin-enable"
)

// ExtensionSettings describes the one-time configuration sequence run
// against a fresh session. An empty ID disables the sequence.
type ExtensionSettings struct {
	ID            string
	OptionsPage   string        // Path of the options page inside the extension
	SaveSelector  string        // Element clicked on the options page
	OptInPage     string        // Path of the opt-in page inside the extension
	OptInSelector string        // Element clicked on the opt-in page
	SettleDelay   time.Duration // Pause after each click for extension storage to persist
	Timeout       time.Duration // Shared deadline across all steps
}

// DefaultExtensionSettings returns the settings for the bundled extension.
func DefaultExtensionSettings() ExtensionSettings {
	return ExtensionSettings{
		ID:            DefaultExtensionID,
		OptionsPage:   DefaultOptionsPage,
		SaveSelector:  DefaultSaveSelector,
		OptInPage:     DefaultOptInPage,
		OptInSelector: DefaultOptInSelector,
		SettleDelay:   DefaultSettleDelay,
		Timeout:       DefaultBootstrapTimeout,
	}
}

// pageURL returns the chrome-extension:// URL for a page of the extension.
func (s ExtensionSettings) pageURL(path string) string {
	return "chrome-extension://" + s.ID + "/" + strings.TrimPrefix(path, "/")
}

// bootstrapStep is one navigate-then-click pair.
type bootstrapStep struct {
	name     string
	url      string
	selector string
}

// Bootstrapper configures the extension of a freshly launched session.
type Bootstrapper struct {
	settings ExtensionSettings
	idle     time.Duration
	logger   *log.Logger
}

// NewBootstrapper creates a Bootstrapper. idle is the quiescence window
// awaited after each navigation.
func NewBootstrapper(settings ExtensionSettings, idle time.Duration, logger *log.Logger) *Bootstrapper {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultBootstrapTimeout
	}
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Bootstrapper{settings: settings, idle: idle, logger: logger}
}

func (b *Bootstrapper) steps() []bootstrapStep {
	return []bootstrapStep{
		{name: "save-settings", url: b.settings.pageURL(b.settings.OptionsPage), selector: b.settings.SaveSelector},
		{name: "enable-opt-in", url: b.settings.pageURL(b.settings.OptInPage), selector: b.settings.OptInSelector},
	}
}

// Run executes every step under one shared deadline and marks the session
// configured on success. Exceeding the deadline yields ErrConfigurationTimedOut.
func (b *Bootstrapper) Run(ctx context.Context, session *BrowserSession) error {
	if session == nil || session.driver == nil {
		return ErrSessionClosed
	}
	if b.settings.ID == "" {
		b.logger.Debug("extension bootstrap skipped", "session", session.ID)
		session.configured = true
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.settings.Timeout)
	defer cancel()

	start := time.Now()
	b.logger.Info("configuring extension", "session", session.ID, "extension", b.settings.ID)

	for _, step := range b.steps() {
		if err := b.runStep(ctx, session.driver, step); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: step %s exceeded %s", ErrConfigurationTimedOut, step.name, b.settings.Timeout)
			}
			return fmt.Errorf("%w: step %s: %v", ErrConfigurationFailed, step.name, err)
		}
	}

	session.configured = true
	b.logger.Info("extension configured", "session", session.ID, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// runStep navigates to the step page, clicks its control, then waits for
// the extension to persist its state.
func (b *Bootstrapper) runStep(ctx context.Context, d pageDriver, step bootstrapStep) error {
	b.logger.Debug("bootstrap step", "step", step.name, "url", step.url)

	if err := d.Navigate(ctx, step.url, b.idle); err != nil {
		return fmt.Errorf("navigating to %s: %w", step.url, err)
	}
	if err := d.Click(ctx, step.selector); err != nil {
		return fmt.Errorf("clicking %s: %w", step.selector, err)
	}
	return sleepCtx(ctx, b.settings.SettleDelay)
}

// sleepCtx pauses for d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
