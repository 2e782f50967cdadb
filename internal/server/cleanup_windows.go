//go:build windows

package server

// cleanupSocket is a no-op; named pipes go away with their last handle.
func cleanupSocket() error {
	return nil
}
