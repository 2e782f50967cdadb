//go:build windows

package cmd

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

var shutdownSignals = []os.Signal{os.Interrupt}

// stillActive is the exit code GetExitCodeProcess reports for a live
// process.
const stillActive = 259

func isProcessRunning(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// killDaemon terminates the daemon. Windows has no signal a console
// process can be sent from outside its console, so a daemon stopped this
// way does not run its shutdown path; the PID file is removed by the
// caller.
func killDaemon(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}
	defer windows.CloseHandle(h)
	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	ev, err := windows.WaitForSingleObject(h, uint32(shutdownTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to wait for daemon: %w", err)
	}
	if ev != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("daemon (PID %d) did not exit", pid)
	}
	return nil
}
