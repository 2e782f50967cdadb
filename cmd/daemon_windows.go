//go:build windows

package cmd

import (
	"log"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	daemonpkg "github.com/warpdl/warpops/internal/daemon"
	"github.com/warpdl/warpops/internal/service"
	"github.com/warpdl/warpops/pkg/logger"
	"golang.org/x/sys/windows/svc"
)

// getDaemonAction returns the platform-specific daemon action.
// On Windows, this detects service mode and uses Event Log.
func getDaemonAction() cli.ActionFunc {
	return daemonWindows
}

// daemonWindows detects if running as a Windows service and uses the appropriate logger.
// When running as a service, logs go to both console and Windows Event Log.
func daemonWindows(ctx *cli.Context) error {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return err
	}
	if !isService {
		return daemon(ctx)
	}
	s, err := daemonSettings(ctx)
	if err != nil {
		return err
	}
	return runAsWindowsService(s)
}

// runAsWindowsService runs the daemon as a Windows service with Event Log integration.
func runAsWindowsService(s *settings) error {
	stdLogger := logger.NewStandardLogger(log.Default())
	stdLogger.SetDebug(s.Debug)

	eventLogger, err := logger.NewEventLogger(daemonpkg.DefaultServiceName)
	if err != nil {
		// Event Log unavailable (not registered, permissions issue)
		return runServiceWithLogger(s, stdLogger)
	}
	defer eventLogger.Close()
	return runServiceWithLogger(s, logger.NewMultiLogger(stdLogger, eventLogger))
}

// runServiceWithLogger runs the Windows service handler with the given logger.
func runServiceWithLogger(s *settings, log logger.Logger) error {
	comps, err := initDaemonComponents(s, log)
	if err != nil {
		return err
	}
	defer comps.Shutdown()
	if err := WritePidFile(); err != nil {
		log.Warning("Failed to write PID file: %v", err)
	} else {
		defer RemovePidFile()
	}

	runner := daemonpkg.New(nil, comps)
	handler := service.NewWindowsHandler(runner, log)

	// svc.Run blocks until service stops
	if err := svc.Run(daemonpkg.DefaultServiceName, handler); err != nil {
		common.PrintRuntimeErr(nil, "daemon", "service", err)
		return err
	}
	return nil
}
