//go:build windows

package common

import (
	"os"
	"strings"
)

// DefaultPipeName is the default name for the Windows named pipe.
const DefaultPipeName = "warpops"

const pipePrefix = `\\.\pipe\`

// DefaultPipePath returns the full Windows named pipe path.
func DefaultPipePath() string {
	return pipePrefix + DefaultPipeName
}

// PipePath returns the daemon's named pipe. WARPOPS_PIPE_NAME may hold a
// bare name or a full \\.\pipe\ path.
func PipePath() string {
	if name := os.Getenv(PipeNameEnv); name != "" {
		if strings.HasPrefix(name, pipePrefix) {
			return name
		}
		return pipePrefix + name
	}
	return DefaultPipePath()
}
