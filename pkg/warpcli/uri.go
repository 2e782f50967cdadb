package warpcli

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"github.com/warpdl/warpops/common"
)

// DaemonURI is a parsed daemon address.
type DaemonURI struct {
	Scheme  string // "unix", "tcp", or "pipe"
	Address string // dial address
}

const (
	SchemeUnix = "unix"
	SchemeTCP  = "tcp"
	SchemePipe = "pipe"
)

var (
	ErrEmptyURI          = errors.New("daemon URI cannot be empty")
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	ErrInvalidPath       = errors.New("invalid path in URI")
	ErrPipeNotSupported  = errors.New("pipe:// scheme only supported on Windows")
	ErrUnixNotSupported  = errors.New("unix:// scheme not supported on Windows")
)

const pipePrefix = `\\.\pipe\`

// ParseDaemonURI parses unix:///path, tcp://host[:port] and pipe://name.
func ParseDaemonURI(raw string) (*DaemonURI, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURI
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	switch strings.ToLower(u.Scheme) {
	case SchemeUnix:
		if runtime.GOOS == "windows" {
			return nil, ErrUnixNotSupported
		}
		// unix://relative/path puts "relative" in the host
		if u.Host != "" || !strings.HasPrefix(u.Path, "/") {
			return nil, ErrInvalidPath
		}
		return &DaemonURI{Scheme: SchemeUnix, Address: u.Path}, nil
	case SchemeTCP:
		return parseTCP(u)
	case SchemePipe:
		if runtime.GOOS != "windows" {
			return nil, ErrPipeNotSupported
		}
		if u.Host == "" {
			return nil, ErrInvalidPath
		}
		name := u.Host
		if !strings.HasPrefix(name, pipePrefix) {
			name = pipePrefix + name
		}
		return &DaemonURI{Scheme: SchemePipe, Address: name}, nil
	default:
		return nil, ErrUnsupportedScheme
	}
}

func parseTCP(u *url.URL) (*DaemonURI, error) {
	if u.Host == "" {
		return nil, ErrInvalidPath
	}
	// u.Port is empty for a bare or bracketed host
	port := u.Port()
	if port == "" {
		return &DaemonURI{
			Scheme:  SchemeTCP,
			Address: net.JoinHostPort(u.Hostname(), strconv.Itoa(common.DEF_TCP_PORT)),
		}, nil
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid port", ErrInvalidPath)
	}
	if n < 1 || n > 65535 {
		return nil, fmt.Errorf("%w: port out of range", ErrInvalidPath)
	}
	return &DaemonURI{Scheme: SchemeTCP, Address: u.Host}, nil
}

func (u *DaemonURI) String() string {
	if u.Scheme == SchemeUnix {
		return "unix://" + u.Address
	}
	return u.Scheme + "://" + u.Address
}

// wsURL is the WebSocket URL of the RPC endpoint. Local transports ignore
// the host.
func (u *DaemonURI) wsURL() string {
	host := "warpops"
	if u.Scheme == SchemeTCP {
		host = u.Address
	}
	return "ws://" + host + common.RPCPath
}
