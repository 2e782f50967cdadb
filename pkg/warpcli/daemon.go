package warpcli

import (
	"context"
	"fmt"
	"time"
)

const (
	daemonStartTimeout = 3 * time.Second
	socketPollInterval = 50 * time.Millisecond
	socketDialTimeout  = 100 * time.Millisecond
)

// ensureDaemon spawns a local daemon unless one already answers on uri.
func ensureDaemon(uri *DaemonURI) error {
	if isDaemonRunning(uri) {
		return nil
	}
	debugLog("no daemon at %s, spawning one", uri)
	if err := spawnDaemon(); err != nil {
		return err
	}
	return waitForSocket(uri, daemonStartTimeout)
}

func isDaemonRunning(uri *DaemonURI) bool {
	ctx, cancel := context.WithTimeout(context.Background(), socketDialTimeout)
	defer cancel()
	conn, err := dialContext(ctx, uri)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// waitForSocket polls until uri accepts connections or timeout expires.
func waitForSocket(uri *DaemonURI, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if isDaemonRunning(uri) {
			return nil
		}
		time.Sleep(socketPollInterval)
	}
	return fmt.Errorf("daemon failed to start within %v", timeout)
}
