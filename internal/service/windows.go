//go:build windows

// Package service runs the warpops daemon under the Windows Service Control
// Manager.
package service

import (
	"context"
	"time"

	"github.com/warpdl/warpops/pkg/logger"
	"golang.org/x/sys/windows/svc"
)

const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

// startGrace is how long Execute waits for an immediate start failure
// before reporting Running.
const startGrace = 50 * time.Millisecond

// Runner is the daemon lifecycle driven by the SCM.
type Runner interface {
	Start(ctx context.Context) error
	Shutdown() error
	IsRunning() bool
}

// WindowsHandler implements svc.Handler.
type WindowsHandler struct {
	runner Runner
	log    logger.Logger
}

// NewWindowsHandler bridges the SCM to runner. A nil logger discards output.
func NewWindowsHandler(runner Runner, l logger.Logger) *WindowsHandler {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &WindowsHandler{runner: runner, log: l}
}

// Execute follows StartPending -> Running -> StopPending -> Stopped. Start
// arguments are ignored; the daemon reads its configuration from files and
// the environment.
func (h *WindowsHandler) Execute(_ []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}
	h.log.Info("service starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startErr := make(chan error, 1)
	go func() { startErr <- h.runner.Start(ctx) }()

	select {
	case err := <-startErr:
		if err != nil {
			h.log.Error("service failed to start: %v", err)
			status <- svc.Status{State: svc.Stopped}
			return false, 1
		}
	case <-time.After(startGrace):
	}

	status <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	h.log.Info("service running")

	for req := range requests {
		switch req.Cmd {
		case svc.Interrogate:
			status <- req.CurrentStatus
		case svc.Stop, svc.Shutdown:
			return h.stop(status)
		}
	}
	return false, 0
}

func (h *WindowsHandler) stop(status chan<- svc.Status) (bool, uint32) {
	h.log.Info("service stopping")
	status <- svc.Status{State: svc.StopPending}
	if err := h.runner.Shutdown(); err != nil {
		h.log.Error("service shutdown failed: %v", err)
		status <- svc.Status{State: svc.Stopped}
		return false, 1
	}
	status <- svc.Status{State: svc.Stopped}
	return false, 0
}
