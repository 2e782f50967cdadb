package cmd

import (
	"context"
	"sync"

	"github.com/warpdl/warpops/internal/fsadaptor"
	"github.com/warpdl/warpops/internal/scheduler"
	"github.com/warpdl/warpops/internal/server"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpops"
)

// DaemonComponents holds all initialized daemon components.
// This allows for unified initialization and cleanup across
// console mode and Windows service mode.
type DaemonComponents struct {
	Trash     *trash.Bin
	Notifier  *server.RPCNotifier
	Engine    *warpops.Engine
	Scheduler *scheduler.Scheduler
	Server    *server.Server
	logger    logger.Logger
	stopSched context.CancelFunc
	once      sync.Once
}

// Start serves until ctx is canceled.
func (c *DaemonComponents) Start(ctx context.Context) error {
	return c.Server.Start(ctx)
}

// Shutdown releases all daemon component resources in reverse order of
// initialization. It is safe to call more than once.
func (c *DaemonComponents) Shutdown() error {
	c.once.Do(c.close)
	return nil
}

func (c *DaemonComponents) close() {
	c.logger.Info("Shutting down daemon...")
	if c.Server != nil {
		_ = c.Server.Shutdown()
	}
	if c.stopSched != nil {
		c.stopSched()
	}
	// cancels running operations and waits for their workers
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Trash != nil {
		_ = c.Trash.Close()
	}
	c.logger.Info("Daemon stopped")
}

// initDaemonComponents initializes all daemon components with the provided logger.
// This is the shared initialization used by both console mode and Windows service mode.
//
// On error, any partially initialized components are cleaned up before returning.
var initDaemonComponents = func(s *settings, log logger.Logger) (*DaemonComponents, error) {
	osfs := fsadaptor.NewOS()
	bin, err := trash.Open(osfs.Fs(), s.TrashDir, s.trashIndex())
	if err != nil {
		log.Error("Trash bin initialization failed: %v", err)
		return nil, err
	}

	n := server.NewRPCNotifier(log)
	e, err := warpops.New(context.Background(), s.Engine,
		fsadaptor.NewOS(
			fsadaptor.WithTrash(bin),
			fsadaptor.WithLogger(log),
			fsadaptor.WithChunkSize(int(s.Engine.ChunkSize)),
		),
		warpops.WithLogger(log),
		warpops.WithNotifier(warpops.MultiNotifier{n, warpops.NewLogNotifier(log)}),
	)
	if err != nil {
		log.Error("Engine initialization failed: %v", err)
		bin.Close()
		return nil, err
	}

	sctx, stopSched := context.WithCancel(context.Background())
	sched := scheduler.New(sctx, func(ent scheduler.Entry) {
		submitScheduled(e, ent, log)
	})

	cfg := s.serverConfig()
	cfg.RPC.Trash = bin
	cfg.RPC.Scheduler = sched
	serv, err := server.NewServer(cfg, e, n, log)
	if err != nil {
		log.Error("Server initialization failed: %v", err)
		stopSched()
		e.Close()
		bin.Close()
		return nil, err
	}

	return &DaemonComponents{
		Trash:     bin,
		Notifier:  n,
		Engine:    e,
		Scheduler: sched,
		Server:    serv,
		logger:    log,
		stopSched: stopSched,
	}, nil
}

// submitScheduled hands a due entry to the engine. Every firing gets a
// group of its own.
func submitScheduled(e *warpops.Engine, ent scheduler.Entry, log logger.Logger) {
	req := ent.Request
	req.Group = ""
	_, gid, err := e.Submit(req)
	if err != nil {
		log.Error("schedule %s: submit %s: %v", ent.ID, req.Kind, err)
		return
	}
	log.Info("schedule %s: submitted %s as group %s (run %d)", ent.ID, req.Kind, gid, ent.Fired)
}
