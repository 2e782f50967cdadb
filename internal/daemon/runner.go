// Package daemon drives the lifecycle of the warpops daemon: start, stop and
// graceful shutdown, shared by the console daemon and the Windows service.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyRunning is returned when Start is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// Service name constants for Windows service registration.
const (
	DefaultServiceName = "WarpOps"
	DefaultDisplayName = "WarpOps File Operations"
	DefaultDescription = "Background scheduler for file operations"

	DEF_SHUTDOWN_TIMEOUT = 10 * time.Second
)

type Config struct {
	ServiceName string
	DisplayName string
	// ShutdownTimeout bounds Service.Shutdown. Zero waits forever.
	ShutdownTimeout time.Duration
}

// Service is the daemon the runner drives. Start blocks until ctx is done
// or serving fails; Shutdown releases everything Start acquired.
type Service interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// Runner manages the daemon lifecycle.
type Runner struct {
	config  *Config
	svc     Service
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a runner for svc. A nil config uses the defaults.
func New(config *Config, svc Service) *Runner {
	if config == nil {
		config = &Config{
			ServiceName:     DefaultServiceName,
			DisplayName:     DefaultDisplayName,
			ShutdownTimeout: DEF_SHUTDOWN_TIMEOUT,
		}
	}
	return &Runner{config: config, svc: svc}
}

func (r *Runner) Config() *Config {
	return r.config
}

// Start runs the service and blocks until ctx is canceled, Shutdown is
// called, or the service fails. Cancellation is not an error.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.mu.Unlock()

	err := r.svc.Start(ctx)

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Shutdown stops the service and waits for its cleanup, bounded by
// Config.ShutdownTimeout.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.cancel()
	r.mu.Unlock()

	if r.config.ShutdownTimeout <= 0 {
		return r.svc.Shutdown()
	}
	done := make(chan error, 1)
	go func() { done <- r.svc.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-time.After(r.config.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
