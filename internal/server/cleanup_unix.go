//go:build !windows

package server

import (
	"os"

	"github.com/warpdl/warpops/common"
)

// cleanupSocket removes the Unix socket file.
func cleanupSocket() error {
	if err := os.Remove(common.SocketPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
