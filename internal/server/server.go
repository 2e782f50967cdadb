// Package server exposes a warpops engine to other processes: JSON-RPC 2.0
// over WebSocket or HTTP POST at /jsonrpc with pushed engine events, and a
// read-only REST API under /api. By default it listens on a Unix socket
// (a named pipe on Windows).
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpops"
)

// Config configures a Server.
type Config struct {
	// Listen is a TCP address. Empty means the local socket.
	Listen string
	// Port is the loopback TCP port used when the local socket cannot be
	// created.
	Port int
	RPC  RPCConfig
}

// Server manages the daemon's listener and HTTP server.
type Server struct {
	log      logger.Logger
	cfg      Config
	rpc      *RPCServer
	web      *WebServer
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a Server for e. n must be the notifier the engine was
// created with for events to reach WebSocket clients.
func NewServer(cfg Config, e *warpops.Engine, n *RPCNotifier, l logger.Logger) (*Server, error) {
	if cfg.Listen != "" && cfg.RPC.Secret == "" {
		return nil, fmt.Errorf("error: a secret is required to listen on %s", cfg.Listen)
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	rpc := NewRPCServer(&cfg.RPC, e, n, l)
	s := &Server{
		log: l,
		cfg: cfg,
		rpc: rpc,
		web: NewWebServer(e, rpc, l),
	}
	s.server = &http.Server{
		Handler:           s.web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.web.Handler()
}

func (s *Server) listenTCP(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening: %w", err)
	}
	return l, nil
}

func (s *Server) port() int {
	if s.cfg.Port > 0 {
		return s.cfg.Port
	}
	return common.DEF_TCP_PORT
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	var (
		l   net.Listener
		err error
	)
	if s.cfg.Listen != "" {
		l, err = s.listenTCP(s.cfg.Listen)
	} else {
		l, err = s.createListener()
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.log.Info("server: listening on %s", l.Addr())

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	err = s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and removes the socket file.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	s.listener = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Warning("server: shutdown: %v", err)
	}
	s.rpc.Close()
	if s.cfg.Listen == "" {
		if err := cleanupSocket(); err != nil {
			s.log.Warning("server: removing socket: %v", err)
		}
	}
	return nil
}
