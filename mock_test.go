package web2pdf

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// ---------------------------------------------------------------------------
// Test doubles for the browser
// ---------------------------------------------------------------------------

var testPDF = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF")

// mockDriver records calls and delegates behavior to optional hooks.
// Navigations to extension pages succeed unless navigateExt is set.
type mockDriver struct {
	navigate    func(ctx context.Context, url string) error
	navigateExt func(ctx context.Context, url string) error
	click       func(ctx context.Context, selector string) error
	pdf         func(ctx context.Context, opts *proto.PagePrintToPDF) ([]byte, error)

	mu        sync.Mutex
	navigated []string
	clicked   []string
	printed   []*proto.PagePrintToPDF
	closed    bool

	active  atomic.Int32
	overlap atomic.Bool
}

func (m *mockDriver) enter() func() {
	if m.active.Add(1) > 1 {
		m.overlap.Store(true)
	}
	return func() { m.active.Add(-1) }
}

func (m *mockDriver) Navigate(ctx context.Context, url string, _ time.Duration) error {
	defer m.enter()()
	m.mu.Lock()
	m.navigated = append(m.navigated, url)
	m.mu.Unlock()

	if strings.HasPrefix(url, "chrome-extension://") {
		if m.navigateExt != nil {
			return m.navigateExt(ctx, url)
		}
		return nil
	}
	if m.navigate != nil {
		return m.navigate(ctx, url)
	}
	return nil
}

func (m *mockDriver) Click(ctx context.Context, selector string) error {
	defer m.enter()()
	m.mu.Lock()
	m.clicked = append(m.clicked, selector)
	m.mu.Unlock()

	if m.click != nil {
		return m.click(ctx, selector)
	}
	return nil
}

func (m *mockDriver) PDF(ctx context.Context, opts *proto.PagePrintToPDF) ([]byte, error) {
	defer m.enter()()
	m.mu.Lock()
	m.printed = append(m.printed, opts)
	m.mu.Unlock()

	if m.pdf != nil {
		return m.pdf(ctx, opts)
	}
	return testPDF, nil
}

func (m *mockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockDriver) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockDriver) pages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, u := range m.navigated {
		if !strings.HasPrefix(u, "chrome-extension://") {
			out = append(out, u)
		}
	}
	return out
}

func (m *mockDriver) clicks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.clicked...)
}

// mockLauncher hands out drivers in order. A nil entry in errs means success.
type mockLauncher struct {
	mu      sync.Mutex
	drivers []*mockDriver
	errs    []error
	calls   int
	opts    []LaunchOptions
}

func (l *mockLauncher) launch(_ context.Context, opts LaunchOptions) (pageDriver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.calls
	l.calls++
	l.opts = append(l.opts, opts)

	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i < len(l.drivers) {
		return l.drivers[i], nil
	}
	return nil, errors.New("mockLauncher: no driver left")
}

func (l *mockLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// fastExtension is the default extension with no settle pause.
func fastExtension() ExtensionSettings {
	s := DefaultExtensionSettings()
	s.SettleDelay = 0
	return s
}

// newTestBackend builds a Backend over the given drivers.
func newTestBackend(t *testing.T, l *mockLauncher, opts ...Option) *Backend {
	t.Helper()
	all := append([]Option{withLauncher(l.launch), WithExtension(fastExtension())}, opts...)
	b := NewBackend(all...)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// blockUntilDone waits for ctx and returns its error, like a page that
// never stops loading.
func blockUntilDone(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}
