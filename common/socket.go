package common

import (
	"os"
	"path/filepath"
)

// SocketPath returns the daemon's Unix socket path.
func SocketPath() string {
	if path := os.Getenv(SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), DefaultSocketName)
}
