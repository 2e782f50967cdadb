package warpcli

import (
	"context"
	"time"

	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/internal/scheduler"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/warpops"
)

func (c *Client) GetDaemonVersion(ctx context.Context) (*common.VersionResult, error) {
	return call[common.VersionResult](ctx, c, common.METHOD_VERSION, nil)
}

// Submit queues req on the daemon. Set req.Group to a fresh id to filter
// pushed events before the call returns.
func (c *Client) Submit(ctx context.Context, req *warpops.Request) (*common.SubmitResult, error) {
	return call[common.SubmitResult](ctx, c, common.METHOD_SUBMIT, req)
}

func (c *Client) Cancel(ctx context.Context, id warpops.GroupID) error {
	_, err := call[common.EmptyResult](ctx, c, common.METHOD_CANCEL, &common.GroupParam{Group: id})
	return err
}

func (c *Client) CancelTask(ctx context.Context, id warpops.TaskID) error {
	_, err := call[common.EmptyResult](ctx, c, common.METHOD_CANCEL_TASK, &common.TaskParam{Task: id})
	return err
}

func (c *Client) Pause(ctx context.Context, id warpops.GroupID) error {
	_, err := call[common.EmptyResult](ctx, c, common.METHOD_PAUSE, &common.GroupParam{Group: id})
	return err
}

func (c *Client) Resume(ctx context.Context, id warpops.GroupID) error {
	_, err := call[common.EmptyResult](ctx, c, common.METHOD_RESUME, &common.GroupParam{Group: id})
	return err
}

// Snapshot returns the state of a group, with per-task state when tasks is
// set.
func (c *Client) Snapshot(ctx context.Context, id warpops.GroupID, tasks bool) (*common.SnapshotResult, error) {
	return call[common.SnapshotResult](ctx, c, common.METHOD_SNAPSHOT, &common.SnapshotParams{Group: id, Tasks: tasks})
}

func (c *Client) Task(ctx context.Context, id warpops.TaskID) (*warpops.TaskInfo, error) {
	return call[warpops.TaskInfo](ctx, c, common.METHOD_TASK, &common.TaskParam{Task: id})
}

func (c *Client) Acknowledge(ctx context.Context, id warpops.GroupID) error {
	_, err := call[common.EmptyResult](ctx, c, common.METHOD_ACKNOWLEDGE, &common.GroupParam{Group: id})
	return err
}

func (c *Client) List(ctx context.Context) (*common.ListResult, error) {
	return call[common.ListResult](ctx, c, common.METHOD_LIST, nil)
}

func (c *Client) TrashList(ctx context.Context) (*common.TrashListResult, error) {
	return call[common.TrashListResult](ctx, c, common.METHOD_TRASH_LIST, nil)
}

func (c *Client) TrashRestore(ctx context.Context, id string) (*trash.Item, error) {
	return call[trash.Item](ctx, c, common.METHOD_TRASH_RESTORE, &common.TrashParam{ID: id})
}

// Schedule queues req on the daemon for a later start. A zero at with a
// cron expression starts at the expression's next occurrence.
func (c *Client) Schedule(ctx context.Context, req *warpops.Request, at time.Time, cron string) (*scheduler.Entry, error) {
	return call[scheduler.Entry](ctx, c, common.METHOD_SCHEDULE, &common.ScheduleParams{Request: *req, At: at, Cron: cron})
}

func (c *Client) Unschedule(ctx context.Context, id string) error {
	_, err := call[common.EmptyResult](ctx, c, common.METHOD_UNSCHEDULE, &common.ScheduleParam{ID: id})
	return err
}

func (c *Client) Schedules(ctx context.Context) (*common.ScheduleListResult, error) {
	return call[common.ScheduleListResult](ctx, c, common.METHOD_SCHEDULES, nil)
}
