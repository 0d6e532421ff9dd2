package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// renderFunc adapts a function to Renderer.
type renderFunc func(ctx context.Context, url string) ([]byte, error)

func (f renderFunc) Render(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// runDispatcher runs d until the test ends and returns Run's result channel.
func runDispatcher(t *testing.T, d *Dispatcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func waitOutcome(t *testing.T, job *RenderJob) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("job %s: %v", job.URL, err)
	}
	return o
}

func TestNewDispatcher_NilRenderer(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil renderer")
		}
	}()
	NewDispatcher(nil)
}

func TestDispatcher_FIFOWithoutOverlap(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		order   []string
		active  atomic.Int32
		overlap atomic.Bool
	)
	release := make(chan struct{})
	d := NewDispatcher(renderFunc(func(_ context.Context, url string) ([]byte, error) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		<-release
		mu.Lock()
		order = append(order, url)
		mu.Unlock()
		return testPDF, nil
	}))

	// Queue everything before the worker starts so order is fixed.
	const n = 10
	jobs := make([]*RenderJob, n)
	for i := range n {
		job, err := d.Submit(fmt.Sprintf("https://example.com/%d", i))
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		jobs[i] = job
	}
	if d.Len() != n {
		t.Fatalf("Len() = %d, want %d", d.Len(), n)
	}

	runDispatcher(t, d)
	close(release)

	for i, job := range jobs {
		o := waitOutcome(t, job)
		if !o.OK() {
			t.Errorf("job %d failed: %v", i, o.Err)
		}
		if o.JobID != job.ID {
			t.Errorf("job %d outcome ID = %s, want %s", i, o.JobID, job.ID)
		}
	}

	if overlap.Load() {
		t.Error("renders overlapped")
	}
	for i, url := range order {
		if want := fmt.Sprintf("https://example.com/%d", i); url != want {
			t.Errorf("render %d = %s, want %s", i, url, want)
		}
	}
}

func TestDispatcher_FailureDoesNotStopQueue(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(renderFunc(func(_ context.Context, url string) ([]byte, error) {
		switch {
		case strings.HasSuffix(url, "/bad"):
			return nil, fmt.Errorf("%w: boom", ErrNavigationFailed)
		case strings.HasSuffix(url, "/panic"):
			panic("renderer bug")
		}
		return testPDF, nil
	}))
	runDispatcher(t, d)

	bad, _ := d.Submit("https://example.com/bad")
	panicky, _ := d.Submit("https://example.com/panic")
	good, _ := d.Submit("https://example.com/good")

	if o := waitOutcome(t, bad); o.Kind() != KindNavigationFailed {
		t.Errorf("bad job kind = %q, want %q", o.Kind(), KindNavigationFailed)
	}
	if o := waitOutcome(t, panicky); o.OK() || !strings.Contains(o.Message(), "renderer bug") {
		t.Errorf("panicking job outcome = %+v", o)
	}
	if o := waitOutcome(t, good); !o.OK() || !IsPDF(o.PDF) {
		t.Errorf("good job outcome = %+v", o)
	}
}

func TestDispatcher_StartupFailureStopsRun(t *testing.T) {
	t.Parallel()

	fatal := fmt.Errorf("%w; %w", ErrFrameDetached, ErrStartupFailed)
	block := make(chan struct{})
	d := NewDispatcher(renderFunc(func(context.Context, string) ([]byte, error) {
		<-block
		return nil, fatal
	}))

	first, _ := d.Submit("https://example.com/1")
	second, _ := d.Submit("https://example.com/2")
	_, errc := runDispatcher(t, d)
	close(block)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrStartupFailed) {
			t.Errorf("Run() = %v, want ErrStartupFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}

	if o := waitOutcome(t, first); !errors.Is(o.Err, ErrFrameDetached) {
		t.Errorf("first outcome = %v, want ErrFrameDetached", o.Err)
	}
	if o := waitOutcome(t, second); !errors.Is(o.Err, ErrQueueClosed) {
		t.Errorf("second outcome = %v, want ErrQueueClosed", o.Err)
	}
	if _, err := d.Submit("https://example.com/3"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Submit() after stop = %v, want ErrQueueClosed", err)
	}
}

func TestDispatcher_ShutdownDrainsQueue(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	d := NewDispatcher(renderFunc(func(ctx context.Context, _ string) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	running, _ := d.Submit("https://example.com/running")
	queued, _ := d.Submit("https://example.com/queued")
	cancel, errc := runDispatcher(t, d)

	<-started
	cancel()

	if err := <-errc; err != nil {
		t.Errorf("Run() = %v, want nil on shutdown", err)
	}
	if o := waitOutcome(t, running); o.Kind() != KindCanceled {
		t.Errorf("running job kind = %q, want %q", o.Kind(), KindCanceled)
	}
	if o := waitOutcome(t, queued); !errors.Is(o.Err, ErrQueueClosed) {
		t.Errorf("queued job outcome = %v, want ErrQueueClosed", o.Err)
	}
}

func TestDispatcher_RunTwice(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(renderFunc(func(context.Context, string) ([]byte, error) {
		return testPDF, nil
	}))
	runDispatcher(t, d)

	// Give the first Run a moment to claim the worker slot.
	deadline := time.Now().Add(5 * time.Second)
	for !d.running.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := d.Run(context.Background()); err == nil {
		t.Error("second Run() = nil, want error")
	}
}

func TestDispatcher_WithBackend(t *testing.T) {
	t.Parallel()

	first := &mockDriver{navigate: func(_ context.Context, url string) error {
		if strings.HasSuffix(url, "/detach") {
			return fmt.Errorf("%w: page target is gone", ErrFrameDetached)
		}
		return nil
	}}
	second := &mockDriver{}
	b := newTestBackend(t, &mockLauncher{drivers: []*mockDriver{first, second}})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	d := NewDispatcher(b)
	detach, _ := d.Submit("https://example.com/detach")
	next, _ := d.Submit("https://example.com/next")
	runDispatcher(t, d)

	if o := waitOutcome(t, detach); o.Kind() != KindFrameDetached {
		t.Errorf("detached job kind = %q, want %q", o.Kind(), KindFrameDetached)
	}
	if o := waitOutcome(t, next); !o.OK() {
		t.Errorf("next job failed: %v", o.Err)
	}
	if b.Restarts() != 1 {
		t.Errorf("Restarts() = %d, want 1", b.Restarts())
	}
}
