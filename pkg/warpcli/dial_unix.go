//go:build !windows

package warpcli

import (
	"context"
	"net"

	"github.com/warpdl/warpops/common"
)

func defaultURI() *DaemonURI {
	return &DaemonURI{Scheme: SchemeUnix, Address: common.SocketPath()}
}

func dialContext(ctx context.Context, uri *DaemonURI) (net.Conn, error) {
	var d net.Dialer
	switch uri.Scheme {
	case SchemeUnix:
		return d.DialContext(ctx, "unix", uri.Address)
	case SchemeTCP:
		return d.DialContext(ctx, "tcp", uri.Address)
	case SchemePipe:
		return nil, ErrPipeNotSupported
	default:
		return nil, ErrUnsupportedScheme
	}
}
