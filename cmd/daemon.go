package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	daemonpkg "github.com/warpdl/warpops/internal/daemon"
	"github.com/warpdl/warpops/pkg/logger"
)

var daemonFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "listen, l",
		Usage: "serve on a TCP address instead of the local socket (requires a secret)",
	},
	cli.StringFlag{
		Name:  "secret",
		Usage: "bearer token clients must present",
	},
}

// daemonSettings loads the configuration and applies the daemon's flags.
func daemonSettings(ctx *cli.Context) (*settings, error) {
	s, err := loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if v := ctx.String("listen"); v != "" {
		s.Listen = v
	}
	if v := ctx.String("secret"); v != "" {
		s.Secret = v
	}
	created, err := s.ensureSecret()
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Fprintln(os.Stderr, "Generated a daemon secret; print it with 'warpops secret'.")
	}
	return s, nil
}

func daemon(ctx *cli.Context) error {
	s, err := daemonSettings(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return nil
	}
	l := logger.NewStandardLogger(log.Default())
	l.SetDebug(s.Debug)
	if err := runDaemon(s, l); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "run", err)
	}
	return nil
}

// runDaemon serves in the foreground until SIGINT or SIGTERM.
func runDaemon(s *settings, l logger.Logger) error {
	if err := WritePidFile(); err != nil {
		l.Warning("Failed to write PID file: %v", err)
	} else {
		defer RemovePidFile()
	}

	comps, err := initDaemonComponents(s, l)
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	ctx, cancel := setupShutdownHandler()
	defer cancel()
	return daemonpkg.New(nil, comps).Start(ctx)
}
