package web2pdf

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod/lib/cdp"
)

// Sentinel errors for rendering operations.
var (
	// Startup errors. Fatal to the whole process.
	ErrStartupFailed         = errors.New("browser session startup failed")
	ErrLaunchFailed          = errors.New("failed to launch browser")
	ErrConfigurationTimedOut = errors.New("extension configuration timed out")
	ErrConfigurationFailed   = errors.New("extension configuration failed")

	// Navigation errors.
	ErrNavigationTimedOut = errors.New("navigation timed out")
	ErrFrameDetached      = errors.New("navigating frame was detached, retry later")
	ErrNavigationFailed   = errors.New("navigation failed")

	// Capture errors.
	ErrRenderFailed = errors.New("PDF generation failed")

	// Input and lifecycle errors.
	ErrEmptyURL      = errors.New("URL parameter is required")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrQueueClosed   = errors.New("render queue is closed")
	ErrSessionClosed = errors.New("browser session is closed")
)

// Failure kinds reported in outcomes, logs and metric labels.
const (
	KindLaunchFailed          = "LaunchFailed"
	KindConfigurationTimedOut = "ConfigurationTimedOut"
	KindConfigurationFailed   = "ConfigurationFailed"
	KindFrameDetached         = "FrameDetached"
	KindNavigationFailed      = "NavigationFailed"
	KindRenderFailed          = "RenderFailed"
	KindInvalidURL            = "InvalidURL"
	KindQueueClosed           = "QueueClosed"
	KindCanceled              = "Canceled"
	KindInternal              = "Internal"
)

// FailureKind classifies err into one of the Kind* constants.
// Returns an empty string for a nil error.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFrameDetached):
		return KindFrameDetached
	case errors.Is(err, ErrLaunchFailed):
		return KindLaunchFailed
	case errors.Is(err, ErrConfigurationTimedOut):
		return KindConfigurationTimedOut
	case errors.Is(err, ErrConfigurationFailed):
		return KindConfigurationFailed
	case errors.Is(err, ErrNavigationFailed):
		return KindNavigationFailed
	case errors.Is(err, ErrRenderFailed):
		return KindRenderFailed
	case errors.Is(err, ErrEmptyURL), errors.Is(err, ErrInvalidURL):
		return KindInvalidURL
	case errors.Is(err, ErrQueueClosed), errors.Is(err, ErrSessionClosed):
		return KindQueueClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

// IsRetryable reports whether the caller should retry the same request later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFrameDetached)
}

// cdpSessionNotFound is the CDP server error code for calls sent to a
// session or target that no longer exists.
const cdpSessionNotFound = -32001

// isSessionGone reports whether err is Chrome refusing a call because the
// page's session or target no longer exists.
func isSessionGone(err error) bool {
	var cdpErr *cdp.Error
	if !errors.As(err, &cdpErr) {
		return false
	}
	if cdpErr.Code == cdpSessionNotFound {
		return true
	}
	msg := strings.ToLower(cdpErr.Message)
	return strings.Contains(msg, "session with given id not found") ||
		strings.Contains(msg, "no target with given id")
}

// isFrameDetached reports whether err means the page's document or target
// is gone and the session must be replaced.
func isFrameDetached(err error) bool {
	return err != nil && (errors.Is(err, ErrFrameDetached) || isSessionGone(err))
}
