package web2pdf

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RenderJob is one pending render request. Its outcome is written exactly
// once and read through Done or Wait.
type RenderJob struct {
	ID         string
	URL        string
	EnqueuedAt time.Time

	result chan Outcome
	once   sync.Once
}

// newRenderJob creates a job with a fresh ID.
func newRenderJob(url string, now time.Time) *RenderJob {
	return &RenderJob{
		ID:         uuid.NewString(),
		URL:        url,
		EnqueuedAt: now,
		result:     make(chan Outcome, 1),
	}
}

// Done returns a channel that receives the job outcome once.
func (j *RenderJob) Done() <-chan Outcome {
	return j.result
}

// Wait blocks until the outcome is available or ctx ends.
// The job keeps running when ctx ends first.
func (j *RenderJob) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-j.result:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// resolve delivers the outcome. Later calls are ignored.
func (j *RenderJob) resolve(o Outcome) {
	j.once.Do(func() {
		o.JobID = j.ID
		j.result <- o
	})
}

// Queue is an unbounded FIFO of render jobs. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	jobs   []*RenderJob
	ready  chan struct{}
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends job to the tail. It never blocks.
func (q *Queue) Push(job *RenderJob) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	metricQueueDepth.Set(float64(depth))

	// Wake the worker; a pending signal already covers this push.
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the head job, or false when empty.
func (q *Queue) Pop() (*RenderJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	metricQueueDepth.Set(float64(len(q.jobs)))
	return job, true
}

// Ready signals that at least one push happened since the last receive.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close rejects further pushes and returns the jobs still queued.
func (q *Queue) Close() []*RenderJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	rest := q.jobs
	q.jobs = nil
	metricQueueDepth.Set(0)
	return rest
}
