package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
)

// notifyContext returns a context canceled by the first shutdown signal.
// The signal is logged so operators can tell a stop from a crash.
// Call stop() to release the signal handler.
func notifyContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)

	go func() {
		select {
		case sig := <-ch:
			logger.Info("shutdown requested", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
