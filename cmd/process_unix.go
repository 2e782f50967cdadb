//go:build !windows

package cmd

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var shutdownSignals = []os.Signal{unix.SIGTERM, unix.SIGINT}

// isProcessRunning probes pid with signal 0. A process owned by another
// user answers EPERM and still counts as running.
func isProcessRunning(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// killDaemon asks the daemon to stop with SIGTERM and sends SIGKILL if it
// is still there after shutdownTimeout.
func killDaemon(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	if waitExit(pid, shutdownTimeout) {
		return nil
	}
	fmt.Println("Graceful shutdown timeout, forcing kill...")
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	waitExit(pid, shutdownTimeout)
	return nil
}
