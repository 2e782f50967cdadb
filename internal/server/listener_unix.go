//go:build !windows

package server

import (
	"fmt"
	"net"
	"os"

	"github.com/warpdl/warpops/common"
)

// createListener creates the Unix socket listener. When the socket cannot
// be created and a secret is configured, it falls back to loopback TCP.
func (s *Server) createListener() (net.Listener, error) {
	path := common.SocketPath()
	_ = os.Remove(path)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		if s.cfg.RPC.Secret == "" {
			return nil, fmt.Errorf("error listening on %s: %w", path, err)
		}
		s.log.Warning("server: unix socket unavailable (%v), using tcp", err)
		return s.listenTCP(fmt.Sprintf("%s:%d", common.TCPHost, s.port()))
	}
	if err := setSocketPermissions(path); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}
