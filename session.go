package web2pdf

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// pageDriver is the narrow surface of a browser page the backend drives.
// Implementations are not safe for concurrent use; the backend serializes calls.
type pageDriver interface {
	// Navigate loads url and returns once the network settles: almost idle
	// (at most 2 connections for 500ms) or fully idle for idle, whichever
	// comes first. It returns ctx.Err() if ctx ends first, and an error
	// wrapping ErrFrameDetached once the page is gone.
	Navigate(ctx context.Context, url string, idle time.Duration) error
	// Click waits for the element matching selector and clicks it.
	Click(ctx context.Context, selector string) error
	// PDF prints the current document.
	PDF(ctx context.Context, opts *proto.PagePrintToPDF) ([]byte, error)
	// Close terminates the page and its browser process.
	Close() error
}

// launchFunc starts a browser process and opens its single page.
type launchFunc func(ctx context.Context, opts LaunchOptions) (pageDriver, error)

// Compile-time interface check.
var _ pageDriver = (*rodDriver)(nil)

// LaunchOptions selects the browser binary and extension for a session.
// The command-line profile itself is fixed.
type LaunchOptions struct {
	Bin          string        // Browser executable; empty lets rod find or download one
	ExtensionDir string        // Unpacked extension loaded at launch; empty loads none
	Timeout      time.Duration // Upper bound on process startup
}

// BrowserSession is one running browser process plus its single page.
// It is owned by a Backend; nothing else touches the page.
type BrowserSession struct {
	ID         string
	LaunchedAt time.Time

	driver     pageDriver
	configured bool
}

// newBrowserSession wraps a launched driver.
func newBrowserSession(d pageDriver, now time.Time) *BrowserSession {
	return &BrowserSession{
		ID:         uuid.NewString(),
		LaunchedAt: now,
		driver:     d,
	}
}

// Configured reports whether the extension bootstrap completed.
func (s *BrowserSession) Configured() bool {
	return s != nil && s.configured
}

// Close terminates the browser process.
func (s *BrowserSession) Close() error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close()
	s.driver = nil
	s.configured = false
	return err
}
