package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSocketPath(t *testing.T) {
	t.Setenv(SocketPathEnv, "")
	if got, want := SocketPath(), filepath.Join(os.TempDir(), DefaultSocketName); got != want {
		t.Fatalf("SocketPath() = %q, want %q", got, want)
	}
	t.Setenv(SocketPathEnv, "/run/custom.sock")
	if got := SocketPath(); got != "/run/custom.sock" {
		t.Fatalf("SocketPath() = %q", got)
	}
}
