package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/internal/scheduler"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpops"
)

// Custom JSON-RPC error codes.
const (
	codeGroupNotFound  = jrpc2.Code(-32001)
	codeTaskNotFound   = jrpc2.Code(-32002)
	codeTrashNotFound  = jrpc2.Code(-32003)
	codeGroupActive    = jrpc2.Code(-32004)
	codeUnavailable    = jrpc2.Code(-32005)
	codeConflict       = jrpc2.Code(-32006)
	codeEntryNotFound  = jrpc2.Code(-32007)
	codeInvalidParams  = jrpc2.Code(-32602)
	codeInternalFailed = jrpc2.Code(-32603)
)

// TrashBin is the part of trash.Bin exposed over RPC.
type TrashBin interface {
	List(ctx context.Context) ([]trash.Item, error)
	Restore(ctx context.Context, id string) (trash.Item, error)
}

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	// Secret is the bearer token clients must present. Empty disables
	// authentication, which is only allowed on a local socket.
	Secret    string
	Version   string
	Commit    string
	BuildType string
	// Origins lists the host patterns allowed to open a WebSocket from a
	// browser.
	Origins []string
	// Trash enables trash.list and trash.restore.
	Trash TrashBin
	// Scheduler enables the schedule.* methods.
	Scheduler Scheduler
}

// Scheduler is the part of scheduler.Scheduler exposed over RPC.
type Scheduler interface {
	Add(e scheduler.Entry)
	Remove(id string) error
	List() []scheduler.Entry
}

// RPCServer holds the JSON-RPC method table and serves it over plain HTTP
// POST and WebSocket.
type RPCServer struct {
	methods   handler.Map
	bridge    jhttp.Bridge
	engine    *warpops.Engine
	notifier  *RPCNotifier
	trash     TrashBin
	sched     Scheduler
	log       logger.Logger
	secret    string
	origins   []string
	version   string
	commit    string
	buildType string
	closeOnce sync.Once
}

// NewRPCServer creates the method table for e. Events reach WebSocket
// clients only when n is also the engine's notifier.
func NewRPCServer(cfg *RPCConfig, e *warpops.Engine, n *RPCNotifier, l logger.Logger) *RPCServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	rs := &RPCServer{
		engine:    e,
		notifier:  n,
		trash:     cfg.Trash,
		sched:     cfg.Scheduler,
		log:       l,
		secret:    cfg.Secret,
		origins:   cfg.Origins,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildType: cfg.BuildType,
	}

	rs.methods = handler.Map{
		string(common.METHOD_VERSION):     handler.New(rs.systemGetVersion),
		string(common.METHOD_SUBMIT):      handler.New(rs.opsSubmit),
		string(common.METHOD_CANCEL):      handler.New(rs.opsCancel),
		string(common.METHOD_CANCEL_TASK): handler.New(rs.opsCancelTask),
		string(common.METHOD_PAUSE):       handler.New(rs.opsPause),
		string(common.METHOD_RESUME):      handler.New(rs.opsResume),
		string(common.METHOD_SNAPSHOT):    handler.New(rs.opsSnapshot),
		string(common.METHOD_TASK):        handler.New(rs.opsTask),
		string(common.METHOD_ACKNOWLEDGE): handler.New(rs.opsAcknowledge),
		string(common.METHOD_LIST):        handler.New(rs.opsList),
	}
	if rs.trash != nil {
		rs.methods[string(common.METHOD_TRASH_LIST)] = handler.New(rs.trashList)
		rs.methods[string(common.METHOD_TRASH_RESTORE)] = handler.New(rs.trashRestore)
	}

	if rs.sched != nil {
		rs.methods[string(common.METHOD_SCHEDULE)] = handler.New(rs.scheduleAdd)
		rs.methods[string(common.METHOD_UNSCHEDULE)] = handler.New(rs.scheduleRemove)
		rs.methods[string(common.METHOD_SCHEDULES)] = handler.New(rs.scheduleList)
	}

	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

// Handler returns the /jsonrpc endpoint: WebSocket upgrades get a
// long-lived connection with push notifications, other requests go through
// the HTTP bridge.
func (rs *RPCServer) Handler() http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebSocket(r) {
			rs.serveWS(w, r)
			return
		}
		rs.bridge.ServeHTTP(w, r)
	})
	if rs.secret == "" {
		return h
	}
	return requireToken(rs.secret, h)
}

// rpcError maps engine errors to JSON-RPC errors.
func rpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, warpops.ErrGroupNotFound):
		return &jrpc2.Error{Code: codeGroupNotFound, Message: err.Error()}
	case errors.Is(err, warpops.ErrTaskNotFound):
		return &jrpc2.Error{Code: codeTaskNotFound, Message: err.Error()}
	case errors.Is(err, trash.ErrNotFound):
		return &jrpc2.Error{Code: codeTrashNotFound, Message: err.Error()}
	case errors.Is(err, scheduler.ErrNotFound):
		return &jrpc2.Error{Code: codeEntryNotFound, Message: err.Error()}
	case errors.Is(err, warpops.ErrGroupActive):
		return &jrpc2.Error{Code: codeGroupActive, Message: err.Error()}
	case errors.Is(err, warpops.ErrInvalidRequest), errors.Is(err, warpops.ErrUnknownKind),
		errors.Is(err, scheduler.ErrNoTrigger), errors.Is(err, scheduler.ErrInvalidCron),
		errors.Is(err, scheduler.ErrNeverFires):
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, warpops.ErrEngineClosed):
		return &jrpc2.Error{Code: codeUnavailable, Message: err.Error()}
	case warpops.KindOf(err) == warpops.ErrKindConflict:
		return &jrpc2.Error{Code: codeConflict, Message: err.Error()}
	default:
		return &jrpc2.Error{Code: codeInternalFailed, Message: err.Error()}
	}
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

// opsSubmit validates and enqueues a request.
func (rs *RPCServer) opsSubmit(_ context.Context, req *warpops.Request) (*common.SubmitResult, error) {
	tid, gid, err := rs.engine.Submit(*req)
	if err != nil {
		return nil, rpcError(err)
	}
	rs.log.Info("rpc: submitted %s as group %s", req.Kind, gid)
	return &common.SubmitResult{Task: tid, Group: gid}, nil
}

func (rs *RPCServer) opsCancel(_ context.Context, p *common.GroupParam) (*common.EmptyResult, error) {
	if err := rs.engine.Cancel(p.Group); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) opsCancelTask(_ context.Context, p *common.TaskParam) (*common.EmptyResult, error) {
	if err := rs.engine.CancelTask(p.Task); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) opsPause(_ context.Context, p *common.GroupParam) (*common.EmptyResult, error) {
	if err := rs.engine.Pause(p.Group); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) opsResume(_ context.Context, p *common.GroupParam) (*common.EmptyResult, error) {
	if err := rs.engine.Resume(p.Group); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) opsSnapshot(_ context.Context, p *common.SnapshotParams) (*common.SnapshotResult, error) {
	snap, err := rs.engine.Snapshot(p.Group)
	if err != nil {
		return nil, rpcError(err)
	}
	res := &common.SnapshotResult{Snapshot: snap}
	if p.Tasks {
		if res.Tasks, err = rs.engine.Tasks(p.Group); err != nil {
			return nil, rpcError(err)
		}
	}
	return res, nil
}

func (rs *RPCServer) opsTask(_ context.Context, p *common.TaskParam) (*warpops.TaskInfo, error) {
	info, err := rs.engine.Task(p.Task)
	if err != nil {
		return nil, rpcError(err)
	}
	return &info, nil
}

func (rs *RPCServer) opsAcknowledge(_ context.Context, p *common.GroupParam) (*common.EmptyResult, error) {
	if err := rs.engine.Acknowledge(p.Group); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) opsList(_ context.Context) (*common.ListResult, error) {
	return &common.ListResult{Groups: rs.engine.Groups()}, nil
}

func (rs *RPCServer) trashList(ctx context.Context) (*common.TrashListResult, error) {
	items, err := rs.trash.List(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	if items == nil {
		items = []trash.Item{}
	}
	return &common.TrashListResult{Items: items}, nil
}

func (rs *RPCServer) trashRestore(ctx context.Context, p *common.TrashParam) (*trash.Item, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: id"}
	}
	item, err := rs.trash.Restore(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	return &item, nil
}

// scheduleAdd validates the request now so a bad one fails the call
// instead of its first firing.
func (rs *RPCServer) scheduleAdd(_ context.Context, p *common.ScheduleParams) (*scheduler.Entry, error) {
	if err := p.Request.Validate(); err != nil {
		return nil, rpcError(err)
	}
	e, err := scheduler.NewEntry(p.Request, p.At, p.Cron, time.Now())
	if err != nil {
		return nil, rpcError(err)
	}
	rs.sched.Add(e)
	rs.log.Info("rpc: scheduled %s as %s at %s", p.Request.Kind, e.ID, e.TriggerAt.Format(time.RFC3339))
	return &e, nil
}

func (rs *RPCServer) scheduleRemove(_ context.Context, p *common.ScheduleParam) (*common.EmptyResult, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: id"}
	}
	if err := rs.sched.Remove(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) scheduleList(_ context.Context) (*common.ScheduleListResult, error) {
	entries := rs.sched.List()
	if entries == nil {
		entries = []scheduler.Entry{}
	}
	return &common.ScheduleListResult{Entries: entries}, nil
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.closeOnce.Do(func() { rs.bridge.Close() })
}
