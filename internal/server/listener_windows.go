//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/warpops/common"
)

// pipeSecurityDescriptor restricts the pipe to SYSTEM, Administrators and
// the user running the daemon.
const pipeSecurityDescriptor = "D:(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;CO)"

// createListener creates the named pipe listener. When the pipe cannot be
// created and a secret is configured, it falls back to loopback TCP.
func (s *Server) createListener() (net.Listener, error) {
	path := pipePath()
	l, err := winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor,
	})
	if err != nil {
		if s.cfg.RPC.Secret == "" {
			return nil, fmt.Errorf("error listening on %s: %w", path, err)
		}
		s.log.Warning("server: named pipe unavailable (%v), using tcp", err)
		return s.listenTCP(fmt.Sprintf("%s:%d", common.TCPHost, s.port()))
	}
	return l, nil
}
