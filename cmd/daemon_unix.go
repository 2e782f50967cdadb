//go:build !windows

package cmd

import "github.com/urfave/cli"

// getDaemonAction returns the platform-specific daemon action.
func getDaemonAction() cli.ActionFunc {
	return daemon
}
