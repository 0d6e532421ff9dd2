//go:build windows

package main

import "os"

// shutdownSignals stop serve. syscall.SIGTERM is not delivered on Windows.
var shutdownSignals = []os.Signal{os.Interrupt}
