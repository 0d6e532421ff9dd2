package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	web2pdf "github.com/alnah/go-web2pdf"
)

const (
	pdfFilename       = "generated_page.pdf"
	retryAfterSeconds = 5
	msgGenerateFailed = "Error generating PDF"
)

// Submitter enqueues render jobs. *web2pdf.Dispatcher satisfies it.
type Submitter interface {
	Submit(url string) (*web2pdf.RenderJob, error)
	Len() int
}

// Health reports browser session state. *web2pdf.Backend satisfies it.
type Health interface {
	Ready() bool
	Restarts() int64
}

// Handlers serves the HTTP API.
type Handlers struct {
	jobs   Submitter
	health Health
	logger *log.Logger
}

// NewHandlers wires handlers to a job submitter and health source.
func NewHandlers(jobs Submitter, health Health, logger *log.Logger) *Handlers {
	return &Handlers{jobs: jobs, health: health, logger: logger}
}

// GeneratePDF handles GET /generate-pdf?url=...
//
// The request blocks until its job completes. A client that goes away
// stops waiting, but the job keeps its place in the queue and runs.
func (h *Handlers) GeneratePDF(w http.ResponseWriter, r *http.Request) {
	target, err := web2pdf.NormalizeURL(r.URL.Query().Get("url"))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: web2pdf.ErrEmptyURL.Error()})
		return
	}
	// The backend decodes again before navigating; a value that cannot be
	// decoded is rejected here so it never takes a place in the queue.
	if _, err := web2pdf.DecodeURL(target); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: web2pdf.ErrInvalidURL.Error(), Message: err.Error()})
		return
	}

	job, err := h.jobs.Submit(target)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	logger := h.logger.With("job", job.ID, "request", middleware.GetReqID(r.Context()))
	logger.Debug("job enqueued", "url", target, "queue", h.jobs.Len())

	outcome, err := job.Wait(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("client gone before job finished", "url", target)
			return
		}
		h.writeFailure(w, err)
		return
	}

	if !outcome.OK() {
		h.writeFailure(w, outcome.Err)
		return
	}

	writePDF(w, outcome.PDF)
}

func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	if web2pdf.IsRetryable(err) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	WriteJSON(w, http.StatusInternalServerError, errorBody{
		Error:   msgGenerateFailed,
		Message: err.Error(),
	})
}

// Healthz reports 200 once the browser session is usable, 503 before.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	body := healthBody{
		Status:   "ok",
		Queue:    h.jobs.Len(),
		Restarts: h.health.Restarts(),
	}
	if !h.health.Ready() {
		body.Status = "unavailable"
		WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	WriteJSON(w, http.StatusOK, body)
}
