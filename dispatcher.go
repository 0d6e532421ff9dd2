package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Dispatcher accepts render jobs and runs them one at a time, in
// submission order, against a Renderer.
type Dispatcher struct {
	renderer Renderer
	queue    *Queue
	logger   *log.Logger
	now      func() time.Time

	running atomic.Bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(l *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher over r. Call Run to start serving.
func NewDispatcher(r Renderer, opts ...DispatcherOption) *Dispatcher {
	if r == nil {
		panic("nil Renderer in NewDispatcher")
	}
	d := &Dispatcher{
		renderer: r,
		queue:    NewQueue(),
		logger:   discardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues url and returns immediately. The returned job yields
// exactly one Outcome.
func (d *Dispatcher) Submit(url string) (*RenderJob, error) {
	job := newRenderJob(url, d.now())
	if err := d.queue.Push(job); err != nil {
		return nil, err
	}
	d.logger.Debug("job queued", "job", job.ID, "url", url, "depth", d.queue.Len())
	return job, nil
}

// Len returns the number of jobs waiting for dispatch.
func (d *Dispatcher) Len() int {
	return d.queue.Len()
}

// Run is the single worker loop. It returns nil when ctx ends, or an
// ErrStartupFailed error when the browser session could not be restored.
// On return every job still queued is failed with ErrQueueClosed.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatcher already running")
	}
	defer d.drain()

	for {
		if ctx.Err() != nil {
			return nil
		}

		job, ok := d.queue.Pop()
		if !ok {
			select {
			case <-d.queue.Ready():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := d.process(ctx, job); err != nil {
			return err
		}
	}
}

// process runs one job and delivers its outcome. It returns an error only
// when the service cannot continue.
func (d *Dispatcher) process(ctx context.Context, job *RenderJob) error {
	start := d.now()
	wait := start.Sub(job.EnqueuedAt)
	metricQueueWait.Observe(wait.Seconds())
	metricInflight.Set(1)
	defer metricInflight.Set(0)

	d.logger.Info("job started", "job", job.ID, "url", job.URL, "queued", wait.Round(time.Millisecond))

	pdf, err := d.render(ctx, job.URL)
	outcome := Outcome{PDF: pdf, Err: err, Elapsed: d.now().Sub(start)}
	if err != nil {
		outcome.PDF = nil
	}
	job.resolve(outcome)

	metricRenderDuration.Observe(outcome.Elapsed.Seconds())
	metricJobs.WithLabelValues(outcomeLabel(outcome)).Inc()

	if err != nil {
		d.logger.Error("job failed", "job", job.ID, "url", job.URL, "kind", outcome.Kind(), "err", err)
		if errors.Is(err, ErrStartupFailed) {
			return err
		}
		return nil
	}
	d.logger.Info("job done", "job", job.ID, "bytes", len(pdf), "elapsed", outcome.Elapsed.Round(time.Millisecond))
	return nil
}

// render calls the renderer and turns a panic into a job-level error.
func (d *Dispatcher) render(ctx context.Context, url string) (pdf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return d.renderer.Render(ctx, url)
}

// drain closes the queue and fails every job left in it.
func (d *Dispatcher) drain() {
	rest := d.queue.Close()
	for _, job := range rest {
		job.resolve(Outcome{Err: ErrQueueClosed})
	}
	if len(rest) > 0 {
		d.logger.Warn("failed queued jobs on shutdown", "count", len(rest))
	}
}
