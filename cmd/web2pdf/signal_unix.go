//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop serve: Ctrl-C locally, SIGTERM from orchestrators.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
