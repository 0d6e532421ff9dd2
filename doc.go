// Package web2pdf renders web pages to PDF through a single headless
// Chrome session with a pre-configured extension.
//
// # Quick Start
//
// Create a backend, start it, and run a dispatcher in front of it:
//
//	backend := web2pdf.NewBackend(
//	    web2pdf.WithExtensionDir("./extension"),
//	)
//	if err := backend.Start(ctx); err != nil {
//	    log.Fatal(err) // wraps web2pdf.ErrStartupFailed
//	}
//	defer backend.Close()
//
//	d := web2pdf.NewDispatcher(backend)
//	go d.Run(ctx)
//
//	job, err := d.Submit("https://example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	outcome, _ := job.Wait(ctx)
//	if !outcome.OK() {
//	    log.Fatal(outcome.Err)
//	}
//	os.WriteFile("page.pdf", outcome.PDF, 0644)
//
// # Concurrency
//
// The browser page is shared and not safe for interleaved use, so the
// Dispatcher runs at most one render at a time, in strict submission
// order. Submit never blocks; the queue is unbounded.
//
// # Failure Policy
//
// Navigation waits for network quiescence. When the navigation timeout
// expires the page is still printed with whatever content has loaded.
// A detached frame replaces the browser session and fails the job with
// ErrFrameDetached (retry later). Other navigation and capture errors
// fail only the current job. Launch and extension configuration errors
// are wrapped in ErrStartupFailed and stop the service.
//
// # Browser Requirements
//
// Rendering requires Chrome/Chromium. go-rod locates an installed browser
// or downloads a managed one (~/.cache/rod/browser/). The browser always
// runs without sandbox in single-process mode, suited to containers.
package web2pdf
