package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
)

// errSessionGone is what Chrome answers once the page's target is gone.
func errSessionGone() error {
	return &cdp.Error{Code: -32001, Message: "Session with given id not found."}
}

// Compile-time interface check.
var _ interface {
	Renderer
	Start(context.Context) error
	Ready() bool
	Restarts() int64
	Close() error
} = (*Backend)(nil)

// ---------------------------------------------------------------------------
// Start
// ---------------------------------------------------------------------------

func TestBackend_Start(t *testing.T) {
	t.Parallel()

	d := &mockDriver{}
	l := &mockLauncher{drivers: []*mockDriver{d}}
	b := newTestBackend(t, l, WithBrowserBin("/bin/chrome"), WithExtensionDir("ext"), WithLaunchTimeout(time.Minute))

	if b.Ready() {
		t.Fatal("Ready() = true before Start")
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !b.Ready() {
		t.Error("Ready() = false after Start")
	}

	// Second Start is a no-op.
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if l.launches() != 1 {
		t.Errorf("launches = %d, want 1", l.launches())
	}

	want := LaunchOptions{Bin: "/bin/chrome", ExtensionDir: "ext", Timeout: time.Minute}
	if l.opts[0] != want {
		t.Errorf("launch options = %+v, want %+v", l.opts[0], want)
	}

	clicks := d.clicks()
	if len(clicks) != 2 || clicks[0] != DefaultSaveSelector || clicks[1] != DefaultOptInSelector {
		t.Errorf("bootstrap clicks = %v, want [%s %s]", clicks, DefaultSaveSelector, DefaultOptInSelector)
	}
}

func TestBackend_Start_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		launcher   *mockLauncher
		bootstrap  time.Duration
		wantErrs   []error
		wantClosed bool
	}{
		{
			name:     "launch fails",
			launcher: &mockLauncher{errs: []error{fmt.Errorf("%w: no chrome", ErrLaunchFailed)}},
			wantErrs: []error{ErrStartupFailed, ErrLaunchFailed},
		},
		{
			name: "bootstrap exceeds shared deadline",
			launcher: &mockLauncher{drivers: []*mockDriver{{
				navigateExt: blockUntilDone,
			}}},
			bootstrap:  30 * time.Millisecond,
			wantErrs:   []error{ErrStartupFailed, ErrConfigurationTimedOut},
			wantClosed: true,
		},
		{
			name: "selector missing",
			launcher: &mockLauncher{drivers: []*mockDriver{{
				click: func(context.Context, string) error { return errors.New("element not found") },
			}}},
			wantErrs:   []error{ErrStartupFailed, ErrConfigurationFailed},
			wantClosed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ext := fastExtension()
			if tt.bootstrap > 0 {
				ext.Timeout = tt.bootstrap
			}
			b := newTestBackend(t, tt.launcher, WithExtension(ext))

			err := b.Start(context.Background())
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("Start() error = %v, want %v in chain", err, want)
				}
			}
			if b.Ready() {
				t.Error("Ready() = true after failed Start")
			}
			if tt.wantClosed && !tt.launcher.drivers[0].isClosed() {
				t.Error("unconfigured session was not closed")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Render
// ---------------------------------------------------------------------------

func TestBackend_Render_Success(t *testing.T) {
	t.Parallel()

	d := &mockDriver{}
	l := &mockLauncher{drivers: []*mockDriver{d}}
	b := newTestBackend(t, l)

	// No explicit Start: the first render launches the session.
	pdf, err := b.Render(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !IsPDF(pdf) {
		t.Errorf("Render() output does not start with %%PDF-")
	}
	if got := d.pages(); len(got) != 1 || got[0] != "https://example.com" {
		t.Errorf("navigated = %v", got)
	}
	if l.launches() != 1 {
		t.Errorf("launches = %d, want 1", l.launches())
	}
}

func TestBackend_Render_DecodesURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"encoded", "https%3A%2F%2Fexample.com%2Fa%20b", "https://example.com/a b", nil},
		{"plain", "https://example.com/?q=1", "https://example.com/?q=1", nil},
		{"bad escape", "https://example.com/%zz", "", ErrInvalidURL},
		{"blank", "   ", "", ErrEmptyURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := &mockDriver{}
			b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{d}})

			_, err := b.Render(context.Background(), tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Render() error = %v, want %v", err, tt.wantErr)
				}
				if len(d.pages()) != 0 {
					t.Errorf("navigated despite bad URL: %v", d.pages())
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got := d.pages(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("navigated = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestBackend_Render_SoftNavigationTimeout(t *testing.T) {
	t.Parallel()

	d := &mockDriver{navigate: blockUntilDone}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{d}},
		WithNavigationTimeout(20*time.Millisecond))

	pdf, err := b.Render(context.Background(), "https://slow.example.com")
	if err != nil {
		t.Fatalf("Render() error = %v, want best-effort capture", err)
	}
	if !IsPDF(pdf) {
		t.Error("expected PDF after soft timeout")
	}
	if len(d.printed) != 1 {
		t.Errorf("captures = %d, want 1", len(d.printed))
	}
}

func TestBackend_Render_FrameDetached(t *testing.T) {
	t.Parallel()

	first := &mockDriver{navigate: func(context.Context, string) error {
		return fmt.Errorf("%w: page target is gone", ErrFrameDetached)
	}}
	second := &mockDriver{}
	l := &mockLauncher{drivers: []*mockDriver{first, second}}
	b := newTestBackend(t, l)

	_, err := b.Render(context.Background(), "https://a.example.com")
	if !errors.Is(err, ErrFrameDetached) {
		t.Fatalf("Render() error = %v, want ErrFrameDetached", err)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false for detached frame")
	}
	if !first.isClosed() {
		t.Error("detached session was not closed")
	}
	if b.Restarts() != 1 {
		t.Errorf("Restarts() = %d, want 1", b.Restarts())
	}
	if !b.Ready() {
		t.Error("Ready() = false after replacement")
	}
	if len(second.clicks()) != 2 {
		t.Errorf("replacement session bootstrap clicks = %v", second.clicks())
	}

	// The next job is served by the replacement session.
	pdf, err := b.Render(context.Background(), "https://b.example.com")
	if err != nil {
		t.Fatalf("next Render() error = %v", err)
	}
	if !IsPDF(pdf) {
		t.Error("next Render() output is not a PDF")
	}
	if got := second.pages(); len(got) != 1 || got[0] != "https://b.example.com" {
		t.Errorf("second session navigated = %v", got)
	}
}

// A dead page answers every call with a CDP session error. The session must
// be replaced on the first one instead of failing every later job.
func TestBackend_Render_SessionGone(t *testing.T) {
	t.Parallel()

	first := &mockDriver{navigate: func(context.Context, string) error {
		return errSessionGone()
	}}
	second := &mockDriver{}
	l := &mockLauncher{drivers: []*mockDriver{first, second}}
	b := newTestBackend(t, l)

	_, err := b.Render(context.Background(), "https://a.example.com")
	if !errors.Is(err, ErrFrameDetached) {
		t.Fatalf("Render() error = %v, want ErrFrameDetached", err)
	}
	if kind := FailureKind(err); kind != KindFrameDetached {
		t.Errorf("FailureKind() = %q, want %q", kind, KindFrameDetached)
	}
	if !first.isClosed() {
		t.Error("dead session was not closed")
	}

	for i := range 2 {
		if _, err := b.Render(context.Background(), "https://b.example.com"); err != nil {
			t.Fatalf("Render() #%d after replacement error = %v", i+2, err)
		}
	}
	if b.Restarts() != 1 {
		t.Errorf("Restarts() = %d, want 1", b.Restarts())
	}
	if l.launches() != 2 {
		t.Errorf("launches = %d, want 2", l.launches())
	}
}

func TestBackend_Render_FrameDetachedRelaunchFails(t *testing.T) {
	t.Parallel()

	first := &mockDriver{navigate: func(context.Context, string) error {
		return fmt.Errorf("%w: page target is gone", ErrFrameDetached)
	}}
	l := &mockLauncher{
		drivers: []*mockDriver{first},
		errs:    []error{nil, fmt.Errorf("%w: crashed", ErrLaunchFailed)},
	}
	b := newTestBackend(t, l)

	_, err := b.Render(context.Background(), "https://a.example.com")
	if !errors.Is(err, ErrFrameDetached) || !errors.Is(err, ErrStartupFailed) {
		t.Fatalf("Render() error = %v, want ErrFrameDetached and ErrStartupFailed", err)
	}
	if b.Ready() {
		t.Error("Ready() = true without a session")
	}
}

func TestBackend_Render_FrameDetachedDuringCapture(t *testing.T) {
	t.Parallel()

	first := &mockDriver{pdf: func(context.Context, *proto.PagePrintToPDF) ([]byte, error) {
		return nil, &cdp.Error{Code: -32000, Message: "No target with given id found"}
	}}
	second := &mockDriver{}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{first, second}})

	_, err := b.Render(context.Background(), "https://a.example.com")
	if !errors.Is(err, ErrFrameDetached) {
		t.Fatalf("Render() error = %v, want ErrFrameDetached", err)
	}
	if b.Restarts() != 1 {
		t.Errorf("Restarts() = %d, want 1", b.Restarts())
	}
}

func TestBackend_Render_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		driver  *mockDriver
		wantErr error
	}{
		{
			name: "navigation error keeps session",
			driver: &mockDriver{navigate: func(context.Context, string) error {
				return errors.New("net::ERR_NAME_NOT_RESOLVED")
			}},
			wantErr: ErrNavigationFailed,
		},
		{
			name: "print error",
			driver: &mockDriver{pdf: func(context.Context, *proto.PagePrintToPDF) ([]byte, error) {
				return nil, errors.New("Printing failed")
			}},
			wantErr: ErrRenderFailed,
		},
		{
			name: "output without PDF signature",
			driver: &mockDriver{pdf: func(context.Context, *proto.PagePrintToPDF) ([]byte, error) {
				return []byte("<html>"), nil
			}},
			wantErr: ErrRenderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := &mockLauncher{drivers: []*mockDriver{tt.driver}}
			b := newTestBackend(t, l)

			_, err := b.Render(context.Background(), "https://example.com")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Render() error = %v, want %v", err, tt.wantErr)
			}
			if b.Restarts() != 0 || l.launches() != 1 {
				t.Errorf("session replaced: restarts=%d launches=%d", b.Restarts(), l.launches())
			}
			if !b.Ready() {
				t.Error("Ready() = false after job-level failure")
			}
		})
	}
}

func TestBackend_Render_ParentCanceled(t *testing.T) {
	t.Parallel()

	d := &mockDriver{}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{d}})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.navigate = func(ctx context.Context, _ string) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := b.Render(ctx, "https://example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Render() error = %v, want context.Canceled", err)
	}
	if len(d.printed) != 0 {
		t.Error("captured after cancellation")
	}
}

func TestBackend_Render_PrintOptions(t *testing.T) {
	t.Parallel()

	d := &mockDriver{}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{d}})

	if _, err := b.Render(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	opts := d.printed[0]
	if !opts.PrintBackground {
		t.Error("PrintBackground = false")
	}
	if *opts.PaperWidth != 8.27 || *opts.PaperHeight != 11.69 {
		t.Errorf("paper = %vx%v, want A4", *opts.PaperWidth, *opts.PaperHeight)
	}
	wantMargin := 1 / 2.54
	for name, m := range map[string]*float64{
		"top": opts.MarginTop, "bottom": opts.MarginBottom,
		"left": opts.MarginLeft, "right": opts.MarginRight,
	} {
		if math.Abs(*m-wantMargin) > 1e-9 {
			t.Errorf("margin %s = %v, want %v", name, *m, wantMargin)
		}
	}
}

func TestBackend_Render_Serialized(t *testing.T) {
	t.Parallel()

	d := &mockDriver{navigate: func(context.Context, string) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	}}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{d}})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Render(context.Background(), fmt.Sprintf("https://example.com/%d", i)); err != nil {
				t.Errorf("Render(%d) error = %v", i, err)
			}
		}()
	}
	wg.Wait()

	if d.overlap.Load() {
		t.Error("driver calls overlapped")
	}
	if len(d.pages()) != 8 {
		t.Errorf("pages = %d, want 8", len(d.pages()))
	}
}

// ---------------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------------

func TestBackend_Close(t *testing.T) {
	t.Parallel()

	d := &mockDriver{}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{d}})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !d.isClosed() {
		t.Error("driver not closed")
	}
	if b.Ready() {
		t.Error("Ready() = true after Close")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := b.Render(context.Background(), "https://example.com"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Render() after Close error = %v, want ErrSessionClosed", err)
	}
	if err := b.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Start() after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestIsFrameDetached(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrFrameDetached, true},
		{fmt.Errorf("%w: page target is gone", ErrFrameDetached), true},
		{errSessionGone(), true},
		{fmt.Errorf("navigating: %w", errSessionGone()), true},
		{&cdp.Error{Code: -32000, Message: "No target with given id found"}, true},
		{&cdp.Error{Code: -32000, Message: "Cannot navigate to invalid URL"}, false},
		{errors.New("frame was detached"), false},
		{errors.New("net::ERR_ABORTED"), false},
		{context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := isFrameDetached(tt.err); got != tt.want {
				t.Errorf("isFrameDetached(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
