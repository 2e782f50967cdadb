// Package common provides the constants, environment variables and wire
// types shared by the warpops daemon and its clients.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variable names for configuration.
const (
	// SocketPathEnv overrides the daemon's Unix socket path.
	SocketPathEnv = "WARPOPS_SOCKET_PATH"
	// PipeNameEnv overrides the daemon's named pipe on Windows.
	PipeNameEnv = "WARPOPS_PIPE_NAME"
	// ListenEnv makes the daemon listen on a TCP address.
	ListenEnv = "WARPOPS_LISTEN"
	// SecretEnv is the bearer token of the daemon's RPC endpoint.
	SecretEnv = "WARPOPS_SECRET"
	// ConfigEnv points at the YAML configuration file.
	ConfigEnv = "WARPOPS_CONFIG"
	// DebugEnv enables debug logging.
	DebugEnv = "WARPOPS_DEBUG"
	// DaemonURIEnv selects the daemon a client connects to, e.g.
	// tcp://127.0.0.1:3849 or unix:///run/warpops.sock.
	DaemonURIEnv = "WARPOPS_DAEMON_URI"

	IOLimitEnv        = "WARPOPS_IO_LIMIT"
	CPULimitEnv       = "WARPOPS_CPU_LIMIT"
	LightLimitEnv     = "WARPOPS_LIGHT_LIMIT"
	MaxAttemptsEnv    = "WARPOPS_MAX_ATTEMPTS"
	RetryBaseEnv      = "WARPOPS_RETRY_BASE"
	EmitIntervalEnv   = "WARPOPS_EMIT_INTERVAL"
	AbortOnFailureEnv = "WARPOPS_ABORT_ON_FAILURE"
	TrashDirEnv       = "WARPOPS_TRASH_DIR"
)

// EnvInt reads an integer variable. ok is false when it is unset.
func EnvInt(name string) (v int, ok bool, err error) {
	s, ok := lookup(name)
	if !ok {
		return 0, false, nil
	}
	v, err = strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}

// EnvBool reads a boolean variable. ok is false when it is unset.
func EnvBool(name string) (v bool, ok bool, err error) {
	s, ok := lookup(name)
	if !ok {
		return false, false, nil
	}
	v, err = strconv.ParseBool(s)
	if err != nil {
		return false, true, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}

// EnvDuration reads a duration variable such as "250ms".
func EnvDuration(name string) (v time.Duration, ok bool, err error) {
	s, ok := lookup(name)
	if !ok {
		return 0, false, nil
	}
	v, err = time.ParseDuration(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}

func lookup(name string) (string, bool) {
	s, ok := os.LookupEnv(name)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

// ConfigDir returns the directory holding warpops' configuration and state,
// $XDG_CONFIG_HOME/warpops or its platform equivalent.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "warpops"), nil
}
