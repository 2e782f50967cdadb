//go:build !windows

package cmd

import (
	"os"
	"testing"
)

func TestStopDaemon_NoPidFile(t *testing.T) {
	isolate(t)
	out, _ := runApp(t, "stop")
	assertContains(t, out, "Daemon is not running (PID file not found)")
}

func TestStopDaemon_StalePid(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(getPidFilePath(), []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _ := runApp(t, "stop")
	assertContains(t, out, "stale PID 999999999")
	if _, err := os.Stat(getPidFilePath()); !os.IsNotExist(err) {
		t.Fatalf("stale PID file kept: %v", err)
	}
}

func TestStopDaemon_InvalidPidFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(getPidFilePath(), []byte("invalid"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, errOut := captureOutput(func() {
		if err := stopDaemon(nil); err != nil {
			t.Errorf("stopDaemon: %v", err)
		}
	})
	assertContains(t, errOut, "Error reading PID file")
}
