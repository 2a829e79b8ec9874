//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are the signals the relay treats as a shutdown request.
// Process managers stop services with SIGTERM; SIGINT covers Ctrl+C runs.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
