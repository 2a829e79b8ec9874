//go:build windows

package main

import (
	"os"
)

// terminationSignals are the signals the relay treats as a shutdown request.
// On Windows only os.Interrupt (Ctrl+C) is deliverable.
var terminationSignals = []os.Signal{os.Interrupt}
