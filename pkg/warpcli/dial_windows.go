//go:build windows

package warpcli

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/warpops/common"
)

func defaultURI() *DaemonURI {
	return &DaemonURI{Scheme: SchemePipe, Address: common.PipePath()}
}

func dialContext(ctx context.Context, uri *DaemonURI) (net.Conn, error) {
	switch uri.Scheme {
	case SchemePipe:
		return winio.DialPipeContext(ctx, uri.Address)
	case SchemeTCP:
		var d net.Dialer
		return d.DialContext(ctx, "tcp", uri.Address)
	case SchemeUnix:
		return nil, ErrUnixNotSupported
	default:
		return nil, ErrUnsupportedScheme
	}
}
