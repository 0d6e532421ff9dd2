package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-web2pdf/internal/hints"
	"github.com/alnah/go-web2pdf/internal/process"
)

// Resource types that hold connections open and never count as in-flight
// for network quiescence.
var idleExcludedTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
	proto.NetworkResourceTypeMedia,
}

// detachGrace is how long a canceled call waits for the detach event that
// explains it. rod cancels page calls before the event reaches us.
const detachGrace = 200 * time.Millisecond

// rodDriver implements pageDriver with go-rod.
type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cancel   context.CancelFunc // ends the browser context and its event watchers

	gone     chan struct{} // closed once the page target or main frame is detached
	goneOnce sync.Once
}

// newLauncher builds the fixed launch profile: no sandbox (containers),
// single process, no zygote, new headless mode, and the extension when set.
func newLauncher(bin, extDir string) *launcher.Launcher {
	l := launcher.New().
		NoSandbox(true).
		Set("disable-setuid-sandbox").
		Set("single-process").
		Set("no-zygote").
		Set(flags.Headless, "new")

	if extDir != "" {
		l = l.Set("disable-extensions-except", extDir).
			Set("load-extension", extDir)
	}
	if bin != "" {
		l = l.Bin(bin)
	}
	return l
}

// launchRod starts Chrome and opens one blank page.
// Startup is bounded by opts.Timeout; on expiry the process is killed.
func launchRod(ctx context.Context, opts LaunchOptions) (pageDriver, error) {
	extDir := ""
	if opts.ExtensionDir != "" {
		abs, err := resolveExtensionDir(opts.ExtensionDir)
		if err != nil {
			return nil, err
		}
		extDir = abs
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := newLauncher(opts.Bin, extDir)
	u, err := launchWithin(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("%w: %v%s", ErrLaunchFailed, err, hints.ForBrowserLaunch())
	}

	// The browser outlives ctx, which only bounds startup.
	browserCtx, cancelBrowser := context.WithCancel(context.Background())
	browser := rod.New().Context(browserCtx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		cancelBrowser()
		killLauncher(l)
		return nil, fmt.Errorf("%w: connecting: %v", ErrLaunchFailed, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		cancelBrowser()
		killLauncher(l)
		return nil, fmt.Errorf("%w: opening page: %v", ErrLaunchFailed, err)
	}

	d := &rodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
		cancel:   cancelBrowser,
		gone:     make(chan struct{}),
	}
	d.watchDetach()
	return d, nil
}

// watchDetach marks the driver gone when Chrome detaches or destroys the
// page target, or detaches its main frame for any reason but a process swap.
// Target events arrive on the browser session, frame events on the page's.
func (d *rodDriver) watchDetach() {
	mark := func() bool {
		d.goneOnce.Do(func() { close(d.gone) })
		return true
	}

	go d.browser.EachEvent(
		func(e *proto.TargetDetachedFromTarget) bool {
			return e.SessionID == d.page.SessionID && mark()
		},
		func(e *proto.TargetTargetDestroyed) bool {
			return e.TargetID == d.page.TargetID && mark()
		},
	)()

	go d.page.EachEvent(func(e *proto.PageFrameDetached) bool {
		return e.FrameID == d.page.FrameID && e.Reason != proto.PageFrameDetachedReasonSwap && mark()
	})()
}

// detached reports whether the page is known to be gone.
func (d *rodDriver) detached() bool {
	select {
	case <-d.gone:
		return true
	default:
		return false
	}
}

// wrap tags err with ErrFrameDetached when the page is gone.
func (d *rodDriver) wrap(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrFrameDetached) {
		return err
	}
	if d.detached() || isSessionGone(err) {
		return fmt.Errorf("%w: %v", ErrFrameDetached, err)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		select {
		case <-d.gone:
			return fmt.Errorf("%w: %v", ErrFrameDetached, err)
		case <-time.After(detachGrace):
		}
	}
	return err
}

// errPageGone is returned before touching a page already known to be gone.
func errPageGone() error {
	return fmt.Errorf("%w: page target is gone", ErrFrameDetached)
}

// launchWithin runs l.Launch and gives up when ctx ends.
// The launcher context is left untouched because rod ties the browser
// process lifetime to it.
func launchWithin(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		done <- result{u, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			killLauncher(l)
		}
		return r.url, r.err
	case <-ctx.Done():
		killLauncher(l)
		return "", fmt.Errorf("startup exceeded deadline: %w", ctx.Err())
	}
}

// killLauncher terminates the browser and any children it spawned.
func killLauncher(l *launcher.Launcher) {
	if pid := l.PID(); pid > 0 {
		process.KillProcessGroup(pid)
	}
	l.Kill()
}

// resolveExtensionDir returns the absolute extension path.
// Chrome only loads unpacked extensions from absolute paths.
func resolveExtensionDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: extension path %q: %v", ErrLaunchFailed, dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: extension directory %s not found%s", ErrLaunchFailed, abs, hints.ForExtensionDir())
	}
	return abs, nil
}

// Navigate loads url and waits for the network to settle. It returns at
// whichever comes first: Chrome's networkAlmostIdle lifecycle event for this
// navigation (at most 2 connections for 500ms), or no request in flight for
// idle. Both watchers are armed before navigation so early requests count.
func (d *rodDriver) Navigate(ctx context.Context, url string, idle time.Duration) error {
	if d.detached() {
		return errPageGone()
	}

	navCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := d.page.Context(navCtx)

	_ = p.StopLoading()
	_ = proto.PageSetLifecycleEventsEnabled{Enabled: true}.Call(p)
	defer func() { _ = proto.PageSetLifecycleEventsEnabled{Enabled: false}.Call(d.page) }()

	// loader is set before waitAlmostIdle runs; the callback only runs inside it.
	var loader proto.NetworkLoaderID
	waitAlmostIdle := p.EachEvent(func(e *proto.PageLifecycleEvent) bool {
		return e.FrameID == d.page.FrameID &&
			e.LoaderID == loader &&
			e.Name == proto.PageLifecycleEventNameNetworkAlmostIdle
	})
	waitRequestIdle := p.WaitRequestIdle(idle, nil, nil, idleExcludedTypes)

	res, err := proto.PageNavigate{URL: url}.Call(p)
	if err != nil {
		return d.wrap(ctx, err)
	}
	if res.ErrorText != "" {
		return d.wrap(ctx, &rod.NavigationError{Reason: res.ErrorText})
	}

	settled := make(chan struct{}, 2)
	if res.LoaderID != "" {
		// Same-document navigations have no loader and no lifecycle events.
		loader = res.LoaderID
		go func() {
			waitAlmostIdle()
			settled <- struct{}{}
		}()
	}
	go func() {
		waitRequestIdle()
		settled <- struct{}{}
	}()

	select {
	case <-settled:
	case <-d.gone:
		return errPageGone()
	case <-ctx.Done():
	}
	if d.detached() {
		return errPageGone()
	}
	return ctx.Err()
}

// Click waits for selector to appear and clicks it once.
func (d *rodDriver) Click(ctx context.Context, selector string) error {
	if d.detached() {
		return errPageGone()
	}
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return d.wrap(ctx, err)
	}
	return d.wrap(ctx, el.Click(proto.InputMouseButtonLeft, 1))
}

// PDF prints the current document and reads the whole stream.
func (d *rodDriver) PDF(ctx context.Context, opts *proto.PagePrintToPDF) ([]byte, error) {
	if d.detached() {
		return nil, errPageGone()
	}
	reader, err := d.page.Context(ctx).PDF(opts)
	if err != nil {
		return nil, d.wrap(ctx, err)
	}
	buf, err := io.ReadAll(reader)
	if err != nil {
		return nil, d.wrap(ctx, fmt.Errorf("reading PDF stream: %w", err))
	}
	return buf, nil
}

// Close shuts the browser down and kills the process group.
func (d *rodDriver) Close() error {
	err := d.browser.Close()
	d.cancel()
	killLauncher(d.launcher)
	d.launcher.Cleanup()
	return err
}
