package warpops

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"
)

// TaskID uniquely identifies a task for the lifetime of an Engine. IDs are
// allocated monotonically starting at 1.
type TaskID uint64

// Unknown marks a byte or item total that has not been discovered yet.
const Unknown int64 = -1

// Progress is the per-task (or per-group) progress figure.
type Progress struct {
	ProcessedBytes int64 `json:"processed_bytes"`
	TotalBytes     int64 `json:"total_bytes"`
	ProcessedItems int64 `json:"processed_items"`
	TotalItems     int64 `json:"total_items"`
}

// Fraction returns processed/total bytes in [0,1], or -1 when the byte total
// is unknown or zero.
func (p Progress) Fraction() float64 {
	if p.TotalBytes <= 0 {
		return -1
	}
	f := float64(p.ProcessedBytes) / float64(p.TotalBytes)
	if f > 1 {
		f = 1
	}
	return f
}

// Estimate is a best-effort size of the work a task will do. Either field may
// be Unknown.
type Estimate struct {
	Bytes int64
	Items int64
}

// UnknownEstimate is returned by handlers that cannot size their work up
// front (directories, archives).
var UnknownEstimate = Estimate{Bytes: Unknown, Items: Unknown}

// Request is a user-level operation submitted to the Engine.
type Request struct {
	Kind    Kind     `json:"kind"`
	Sources []string `json:"sources,omitempty"`
	// Destination is the target path. With several sources it names the
	// directory the sources are placed in.
	Destination string `json:"destination,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	// Group adds the request to an existing group, or creates a group with
	// this id when none exists.
	Group          GroupID        `json:"group,omitempty"`
	AbortOnFailure *bool          `json:"abort_on_failure,omitempty"`
	OnConflict     ConflictPolicy `json:"on_conflict,omitempty"`
}

// Validate reports whether the engine would accept r.
func (r *Request) Validate() error { return r.validate() }

func (r *Request) validate() error {
	if _, ok := kindNames[r.Kind]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(r.Kind))
	}
	needSrc, needDst := r.Kind.needs()
	if needSrc && len(r.Sources) == 0 {
		return fmt.Errorf("%w: %s needs at least one source", ErrInvalidRequest, r.Kind)
	}
	if needDst && r.Destination == "" {
		return fmt.Errorf("%w: %s needs a destination", ErrInvalidRequest, r.Kind)
	}
	if !needSrc && len(r.Sources) > 0 {
		return fmt.Errorf("%w: %s takes no source", ErrInvalidRequest, r.Kind)
	}
	if r.Kind == KindRename && len(r.Sources) != 1 {
		return fmt.Errorf("%w: rename takes exactly one source", ErrInvalidRequest)
	}
	if r.Kind == KindExtract && len(r.Sources) != 1 {
		return fmt.Errorf("%w: extract takes exactly one archive", ErrInvalidRequest)
	}
	for _, s := range r.Sources {
		if s == "" {
			return fmt.Errorf("%w: empty source path", ErrInvalidRequest)
		}
	}
	if _, ok := conflictNames[r.OnConflict]; !ok {
		return fmt.Errorf("%w: conflict policy %d", ErrInvalidRequest, int(r.OnConflict))
	}
	return nil
}

// needs reports whether the kind takes source paths and a destination.
func (k Kind) needs() (src, dst bool) {
	switch k {
	case KindDelete, KindTrash, KindPreload:
		return true, false
	case KindCreateFile, KindCreateDir:
		return false, true
	default:
		return true, true
	}
}

// Draft describes a task produced by fan-out or registered as a follow-up.
// Priority and group are inherited from the task that produced it.
type Draft struct {
	Kind        Kind
	Sources     []string
	Destination string
	OnConflict  ConflictPolicy
	// EmptyOnly restricts a directory delete to an already empty directory.
	EmptyOnly bool
	// Entry names one member of the archive in Sources, for extract children.
	Entry string
	// Hint, when set, is used instead of calling the handler's Estimate.
	Hint *Estimate
}

// Task is the engine's record of one unit of work. Mutable fields are
// guarded by the owning group's mutex.
type Task struct {
	id         TaskID
	kind       Kind
	category   Category
	sources    []string
	dest       string
	priority   int
	onConflict ConflictPolicy
	emptyOnly  bool
	entry      string
	group      *group
	parent     *Task
	cancel     *cancelFlag
	createdAt  time.Time

	// queue ordering, assigned by the intake queue
	seq uint64

	state    State
	progress Progress
	retries  int
	lastErr  *OpError
	started  time.Time
	finished time.Time

	// counted is true while the task contributes to its group's tallies and
	// aggregate progress. Containers stop being counted.
	counted bool
	// pendingDelta accumulates progress not yet published as TaskProgress.
	pendingDelta Progress

	container bool
	// outstanding counts children not settled yet; anyFailed and anyCanceled
	// cover the whole subtree.
	outstanding int
	anyFailed   bool
	anyCanceled bool
	followUps   []Draft
	// settled is set once the task and all of its descendants are terminal.
	settled bool
}

// ID returns the task id.
func (t *Task) ID() TaskID { return t.id }

func (t *Task) String() string {
	return fmt.Sprintf("task %d (%s)", t.id, t.kind)
}

// canceled reports whether the task, one of its ancestors, its group or the
// engine has been canceled. Safe without locks.
func (t *Task) canceled() bool {
	return t.cancel.ctx.Err() != nil
}

// cancelRequested reports whether cancel was requested for the task, an
// ancestor or its group. Unlike canceled it stays false for tasks whose
// context was merely released after finishing.
func (t *Task) cancelRequested() bool {
	for p := t; p != nil; p = p.parent {
		if p.cancel.IsSet() {
			return true
		}
	}
	return t.group.cancel.IsSet()
}

// ancestorOf reports whether t is o or an ancestor of o.
func (t *Task) ancestorOf(o *Task) bool {
	for p := o; p != nil; p = p.parent {
		if p == t {
			return true
		}
	}
	return false
}

// primaryPath is the path reported for failures: the first source, or the
// destination for kinds that only create.
func (t *Task) primaryPath() string {
	if len(t.sources) > 0 {
		return t.sources[0]
	}
	return t.dest
}

// TaskInfo is an immutable copy of a task's public state.
type TaskInfo struct {
	ID          TaskID    `json:"id"`
	Kind        Kind      `json:"kind"`
	Category    Category  `json:"category"`
	Sources     []string  `json:"sources,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Entry       string    `json:"entry,omitempty"`
	Priority    int       `json:"priority"`
	Group       GroupID   `json:"group"`
	Parent      TaskID    `json:"parent,omitempty"`
	State       State     `json:"state"`
	Progress    Progress  `json:"progress"`
	Retries     int       `json:"retries"`
	LastError   *Failure  `json:"last_error,omitempty"`
	Container   bool      `json:"container,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// infoLocked copies the task state. The caller holds t.group.mu.
func (t *Task) infoLocked() TaskInfo {
	info := TaskInfo{
		ID:          t.id,
		Kind:        t.kind,
		Category:    t.category,
		Sources:     slices.Clone(t.sources),
		Destination: t.dest,
		Entry:       t.entry,
		Priority:    t.priority,
		Group:       t.group.id,
		State:       t.state,
		Progress:    t.progress,
		Retries:     t.retries,
		Container:   t.container,
		CreatedAt:   t.createdAt,
		StartedAt:   t.started,
		FinishedAt:  t.finished,
	}
	if t.parent != nil {
		info.Parent = t.parent.id
	}
	if t.lastErr != nil {
		f := failureOf(t, t.lastErr)
		info.LastError = &f
	}
	return info
}

// expandSources splits a multi-source request into one draft per source.
// Destination-taking kinds place each source inside the destination
// directory.
func expandSources(kind Kind, sources []string, dest string, policy ConflictPolicy) []Draft {
	_, needDst := kind.needs()
	drafts := make([]Draft, 0, len(sources))
	for _, src := range sources {
		d := Draft{Kind: kind, Sources: []string{src}, OnConflict: policy}
		if needDst {
			d.Destination = filepath.Join(dest, filepath.Base(src))
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// estimateDraft sizes a draft through its hint or the kind's handler.
func (e *Engine) estimateDraft(ctx context.Context, d Draft, h Handler) Estimate {
	if d.Hint != nil {
		return *d.Hint
	}
	if h == nil {
		return UnknownEstimate
	}
	return h.Estimate(ctx, e.adaptor, d)
}
