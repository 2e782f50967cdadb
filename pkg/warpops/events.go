package warpops

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "subject.action" (e.g., "task.started", "group.snapshot")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	EventTaskStarted    = "task.started"
	EventTaskProgress   = "task.progress"
	EventTaskSucceeded  = "task.succeeded"
	EventTaskFailed     = "task.failed"
	EventTaskCanceled   = "task.canceled"
	EventGroupSnapshot  = "group.snapshot"
	EventGroupCompleted = "group.completed"
)

// baseEvent provides the timestamp and delivery sequence shared by all
// events.
type baseEvent struct {
	At time.Time `json:"time"`
	// Seq numbers events from 1 in the order the engine delivers them.
	Seq uint64 `json:"seq"`
}

func (e baseEvent) Timestamp() time.Time { return e.At }

// Sequence returns the delivery sequence number.
func (e baseEvent) Sequence() uint64 { return e.Seq }

// sequenced events get their number when they are published.
type sequenced interface {
	withSeq(n uint64) Event
}

func (e TaskStartedEvent) withSeq(n uint64) Event    { e.Seq = n; return e }
func (e TaskProgressEvent) withSeq(n uint64) Event   { e.Seq = n; return e }
func (e TaskSucceededEvent) withSeq(n uint64) Event  { e.Seq = n; return e }
func (e TaskFailedEvent) withSeq(n uint64) Event     { e.Seq = n; return e }
func (e TaskCanceledEvent) withSeq(n uint64) Event   { e.Seq = n; return e }
func (e GroupSnapshotEvent) withSeq(n uint64) Event  { e.Seq = n; return e }
func (e GroupCompletedEvent) withSeq(n uint64) Event { e.Seq = n; return e }

func newBaseEvent() baseEvent {
	return baseEvent{At: time.Now()}
}

func (TaskStartedEvent) EventType() string    { return EventTaskStarted }
func (TaskProgressEvent) EventType() string   { return EventTaskProgress }
func (TaskSucceededEvent) EventType() string  { return EventTaskSucceeded }
func (TaskFailedEvent) EventType() string     { return EventTaskFailed }
func (TaskCanceledEvent) EventType() string   { return EventTaskCanceled }
func (GroupSnapshotEvent) EventType() string  { return EventGroupSnapshot }
func (GroupCompletedEvent) EventType() string { return EventGroupCompleted }

// TaskStartedEvent is emitted when a task is dispatched to a worker.
type TaskStartedEvent struct {
	baseEvent
	Task   TaskID  `json:"task"`
	Group  GroupID `json:"group"`
	Kind   Kind    `json:"kind"`
	Path   string  `json:"path"`
	Parent TaskID  `json:"parent,omitempty"`
}

func newTaskStartedEvent(t *Task) TaskStartedEvent {
	ev := TaskStartedEvent{
		baseEvent: newBaseEvent(),
		Task:      t.id,
		Group:     t.group.id,
		Kind:      t.kind,
		Path:      t.primaryPath(),
	}
	if t.parent != nil {
		ev.Parent = t.parent.id
	}
	return ev
}

// TaskProgressEvent carries the progress a task made since its previous
// TaskProgressEvent, coalesced over the emit interval.
type TaskProgressEvent struct {
	baseEvent
	Task     TaskID   `json:"task"`
	Group    GroupID  `json:"group"`
	Delta    Progress `json:"delta"`
	Progress Progress `json:"progress"`
}

// TaskSucceededEvent is emitted when a task completes.
type TaskSucceededEvent struct {
	baseEvent
	Task     TaskID   `json:"task"`
	Group    GroupID  `json:"group"`
	Kind     Kind     `json:"kind"`
	Path     string   `json:"path"`
	Progress Progress `json:"progress"`
	Retries  int      `json:"retries"`
}

// TaskFailedEvent is emitted when a task fails permanently or exhausts its
// retries.
type TaskFailedEvent struct {
	baseEvent
	Task    TaskID  `json:"task"`
	Group   GroupID `json:"group"`
	Reason  Failure `json:"reason"`
	Retries int     `json:"retries"`
}

// TaskCanceledEvent is emitted when a task reaches Canceled.
type TaskCanceledEvent struct {
	baseEvent
	Task  TaskID  `json:"task"`
	Group GroupID `json:"group"`
	Kind  Kind    `json:"kind"`
	Path  string  `json:"path"`
}

// terminalEvent builds the event announcing t's terminal state. The caller
// holds t.group.mu.
func terminalEvent(t *Task) Event {
	switch t.state {
	case StateSucceeded:
		return TaskSucceededEvent{
			baseEvent: newBaseEvent(),
			Task:      t.id,
			Group:     t.group.id,
			Kind:      t.kind,
			Path:      t.primaryPath(),
			Progress:  t.progress,
			Retries:   t.retries,
		}
	case StateFailed:
		ev := TaskFailedEvent{
			baseEvent: newBaseEvent(),
			Task:      t.id,
			Group:     t.group.id,
			Retries:   t.retries,
		}
		if t.lastErr != nil {
			ev.Reason = failureOf(t, t.lastErr)
		}
		return ev
	default:
		return TaskCanceledEvent{
			baseEvent: newBaseEvent(),
			Task:      t.id,
			Group:     t.group.id,
			Kind:      t.kind,
			Path:      t.primaryPath(),
		}
	}
}

// GroupSnapshotEvent carries the aggregate state of a group.
type GroupSnapshotEvent struct {
	baseEvent
	Snapshot
}

// GroupCompletedEvent is emitted once every task of a group is terminal.
type GroupCompletedEvent struct {
	baseEvent
	Snapshot
}
