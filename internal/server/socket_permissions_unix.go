//go:build !windows

package server

import "os"

// setSocketPermissions restricts the socket to its owner.
func setSocketPermissions(path string) error {
	return os.Chmod(path, 0o700)
}
