package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Renderer turns a URL into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Compile-time interface check.
var _ Renderer = (*Backend)(nil)

// Backend owns one browser session and renders pages through it.
// Calls are serialized: at most one navigation or capture runs at a time.
// Create with NewBackend, call Start before serving, and Close when done.
type Backend struct {
	cfg    backendConfig
	launch launchFunc
	boot   *Bootstrapper
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	session *BrowserSession
	closed  bool

	ready    atomic.Bool
	restarts atomic.Int64
}

// NewBackend creates a Backend with default settings.
// No browser is launched until Start or the first Render.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		cfg: backendConfig{
			launch:            LaunchOptions{Timeout: DefaultLaunchTimeout},
			extension:         DefaultExtensionSettings(),
			navigationTimeout: DefaultNavigationTimeout,
			idleWindow:        DefaultIdleWindow,
		},
		launch: launchRod,
		logger: discardLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.boot = NewBootstrapper(b.cfg.extension, b.cfg.idleWindow, b.logger)
	return b
}

// Start launches and configures the session. Any failure is wrapped in
// ErrStartupFailed; the caller must not serve jobs after it.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrSessionClosed
	}
	if b.session != nil {
		return nil
	}
	return b.startSessionLocked(ctx)
}

// startSessionLocked launches a browser and runs the bootstrap on it.
func (b *Backend) startSessionLocked(ctx context.Context) error {
	start := b.now()
	b.logger.Info("launching browser", "bin", b.cfg.launch.Bin, "extension", b.cfg.launch.ExtensionDir)

	driver, err := b.launch(ctx, b.cfg.launch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartupFailed, err)
	}
	session := newBrowserSession(driver, b.now())
	b.logger.Info("browser launched", "session", session.ID, "elapsed", b.now().Sub(start).Round(time.Millisecond))

	if err := b.boot.Run(ctx, session); err != nil {
		if cerr := session.Close(); cerr != nil {
			b.logger.Warn("closing unconfigured session", "session", session.ID, "err", cerr)
		}
		return fmt.Errorf("%w: %w", ErrStartupFailed, err)
	}

	b.session = session
	b.ready.Store(true)
	return nil
}

// Render navigates the shared page to rawURL and prints it to PDF.
//
// A navigation that exceeds the soft timeout is logged and the page is
// captured as loaded. A detached frame replaces the whole session and
// returns ErrFrameDetached so the caller retries later. Other navigation
// failures return ErrNavigationFailed and keep the session.
func (b *Backend) Render(ctx context.Context, rawURL string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrSessionClosed
	}
	if b.session == nil {
		if err := b.startSessionLocked(ctx); err != nil {
			return nil, err
		}
	}

	target, err := DecodeURL(rawURL)
	if err != nil {
		return nil, err
	}

	if err := b.navigate(ctx, target); err != nil {
		if errors.Is(err, ErrFrameDetached) {
			if rerr := b.replaceSessionLocked(ctx); rerr != nil {
				return nil, fmt.Errorf("%w; %w", err, rerr)
			}
		}
		return nil, err
	}

	return b.capture(ctx, target)
}

// navigate loads target under the soft navigation timeout.
func (b *Backend) navigate(ctx context.Context, target string) error {
	navCtx, cancel := context.WithTimeout(ctx, b.cfg.navigationTimeout)
	defer cancel()

	start := b.now()
	b.logger.Info("navigating", "url", target)

	err := b.session.driver.Navigate(navCtx, target, b.cfg.idleWindow)
	switch {
	case err == nil:
		b.logger.Info("navigation complete", "url", target, "elapsed", b.now().Sub(start).Round(time.Millisecond))
		return nil
	case isFrameDetached(err):
		b.logger.Warn("frame detached during navigation", "url", target, "err", err)
		return asDetached(err)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		metricNavigationTimeouts.Inc()
		b.logger.Warn("navigation timed out, continuing anyway",
			"url", target, "timeout", b.cfg.navigationTimeout, "err", ErrNavigationTimedOut)
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}
}

// capture prints the current page. The capture itself has no deadline
// beyond ctx.
func (b *Backend) capture(ctx context.Context, target string) ([]byte, error) {
	start := b.now()
	b.logger.Info("generating PDF", "url", target)

	pdf, err := b.session.driver.PDF(ctx, pdfOptions())
	if err != nil {
		if isFrameDetached(err) {
			b.logger.Warn("frame detached during capture", "url", target, "err", err)
			if rerr := b.replaceSessionLocked(ctx); rerr != nil {
				return nil, fmt.Errorf("%w; %w", asDetached(err), rerr)
			}
			return nil, asDetached(err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	if !IsPDF(pdf) {
		return nil, fmt.Errorf("%w: output is not a PDF document (%d bytes)", ErrRenderFailed, len(pdf))
	}

	b.logger.Info("PDF generated", "url", target, "bytes", len(pdf), "elapsed", b.now().Sub(start).Round(time.Millisecond))
	return pdf, nil
}

// replaceSessionLocked tears the current session down and starts a new one.
func (b *Backend) replaceSessionLocked(ctx context.Context) error {
	old := b.session
	b.session = nil
	b.ready.Store(false)

	if err := old.Close(); err != nil {
		b.logger.Warn("closing detached session", "session", old.ID, "err", err)
	}
	b.restarts.Add(1)
	metricSessionRestarts.Inc()
	b.logger.Warn("replacing browser session", "previous", old.ID)

	return b.startSessionLocked(ctx)
}

// Ready reports whether a configured session is available.
func (b *Backend) Ready() bool {
	return b.ready.Load()
}

// Restarts returns how many times the session has been replaced.
func (b *Backend) Restarts() int64 {
	return b.restarts.Load()
}

// Close terminates the browser. It waits for an in-flight render to finish.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.ready.Store(false)

	session := b.session
	b.session = nil
	if session == nil {
		return nil
	}
	b.logger.Info("closing browser", "session", session.ID)
	return session.Close()
}

// asDetached wraps err in ErrFrameDetached unless it already is one.
func asDetached(err error) error {
	if errors.Is(err, ErrFrameDetached) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrFrameDetached, err)
}
