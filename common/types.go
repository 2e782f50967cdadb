package common

import (
	"time"

	"github.com/warpdl/warpops/internal/scheduler"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/warpops"
)

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// SubmitResult is the response for ops.submit, whose params are a
// warpops.Request.
type SubmitResult struct {
	Task  warpops.TaskID  `json:"task"`
	Group warpops.GroupID `json:"group"`
}

// GroupParam is a common input with just a group id.
type GroupParam struct {
	Group warpops.GroupID `json:"group"`
}

// TaskParam is a common input with just a task id.
type TaskParam struct {
	Task warpops.TaskID `json:"task"`
}

// SnapshotParams is the input for ops.snapshot.
type SnapshotParams struct {
	Group warpops.GroupID `json:"group"`
	// Tasks includes the per-task state in the result.
	Tasks bool `json:"tasks,omitempty"`
}

// SnapshotResult is the response for ops.snapshot.
type SnapshotResult struct {
	warpops.Snapshot
	Tasks []warpops.TaskInfo `json:"tasks,omitempty"`
}

// ListResult is the response for ops.list.
type ListResult struct {
	Groups []warpops.Snapshot `json:"groups"`
}

// TrashListResult is the response for trash.list.
type TrashListResult struct {
	Items []trash.Item `json:"items"`
}

// TrashParam is the input for trash.restore.
type TrashParam struct {
	ID string `json:"id"`
}

// ScheduleParams is the input for schedule.add. At and Cron may be
// combined; at least one is required.
type ScheduleParams struct {
	Request warpops.Request `json:"request"`
	At      time.Time       `json:"at,omitempty"`
	Cron    string          `json:"cron,omitempty"`
}

// ScheduleParam is the input for schedule.remove.
type ScheduleParam struct {
	ID string `json:"id"`
}

// ScheduleListResult is the response for schedule.list.
type ScheduleListResult struct {
	Entries []scheduler.Entry `json:"entries"`
}

// EmptyResult is a placeholder for methods that return no data.
type EmptyResult struct{}
