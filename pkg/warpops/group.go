package warpops

import (
	"slices"
	"sync"
	"time"
)

// GroupID identifies the tasks produced by one user request.
type GroupID string

// Failure describes one failed task in a group.
type Failure struct {
	Task    TaskID    `json:"task"`
	Kind    Kind      `json:"kind"`
	Path    string    `json:"path"`
	Error   ErrorKind `json:"error"`
	Message string    `json:"message"`
	// Resolution is the policy the ConflictResolver chose for a conflict,
	// or ConflictAsk while none was applied.
	Resolution ConflictPolicy `json:"resolution,omitempty"`
}

func failureOf(t *Task, err *OpError) Failure {
	path := err.Path
	if path == "" {
		path = t.primaryPath()
	}
	return Failure{Task: t.id, Kind: t.kind, Path: path, Error: err.Kind, Message: err.Error()}
}

// Snapshot is the aggregate state of a group. TotalBytes and TotalItems are
// Unknown while any counted task has not discovered its size.
type Snapshot struct {
	Group     GroupID  `json:"group"`
	Progress  Progress `json:"progress"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Canceled  int      `json:"canceled"`
	// Resolved counts failed conflicts the ConflictResolver decided.
	Resolved        int        `json:"resolved"`
	Running         int        `json:"running"`
	Pending         int        `json:"pending"`
	Completed       bool       `json:"completed"`
	Paused          bool       `json:"paused"`
	CancelRequested bool       `json:"cancel_requested"`
	Categories      []Category `json:"categories"`
	CreatedAt       time.Time  `json:"created_at"`
	Failures        []Failure  `json:"failures,omitempty"`
}

// totals is the incrementally maintained group aggregate. Unknown task
// totals are counted rather than summed so a later discovery can replace
// them without re-summing.
type totals struct {
	processedBytes int64
	knownBytes     int64
	unknownBytes   int
	processedItems int64
	knownItems     int64
	unknownItems   int
}

func (a *totals) add(p Progress, sign int64) {
	a.processedBytes += sign * p.ProcessedBytes
	a.processedItems += sign * p.ProcessedItems
	if p.TotalBytes == Unknown {
		a.unknownBytes += int(sign)
	} else {
		a.knownBytes += sign * p.TotalBytes
	}
	if p.TotalItems == Unknown {
		a.unknownItems += int(sign)
	} else {
		a.knownItems += sign * p.TotalItems
	}
}

func (a *totals) progress() Progress {
	p := Progress{
		ProcessedBytes: a.processedBytes,
		TotalBytes:     a.knownBytes,
		ProcessedItems: a.processedItems,
		TotalItems:     a.knownItems,
	}
	if a.unknownBytes > 0 {
		p.TotalBytes = Unknown
	}
	if a.unknownItems > 0 {
		p.TotalItems = Unknown
	}
	return p
}

type group struct {
	id             GroupID
	createdAt      time.Time
	abortOnFailure bool
	cancel         *cancelFlag
	gate           *gate

	mu         sync.Mutex
	tasks      []*Task
	categories map[Category]struct{}
	totals     totals

	pending   int
	running   int
	succeeded int
	failed    int
	canceled  int
	// containers and conflict resolutions that keep the group open
	live      int
	resolving int
	resolved  int
	failures  []Failure

	completed   bool
	completedAt time.Time
	done        chan struct{}
	removed     bool

	// emission throttle state, see progress.go
	dirty      bool
	deltas     []*Task
	lastEmit   time.Time
	flushTimer *time.Timer
}

func newGroup(id GroupID, abort bool, flag *cancelFlag) *group {
	return &group{
		id:             id,
		createdAt:      time.Now(),
		abortOnFailure: abort,
		cancel:         flag,
		gate:           newGate(),
		categories:     make(map[Category]struct{}),
		done:           make(chan struct{}),
	}
}

// addLocked registers a new pending task and its estimate.
func (g *group) addLocked(t *Task, est Estimate) {
	t.progress = Progress{TotalBytes: est.Bytes, TotalItems: est.Items}
	t.counted = true
	g.tasks = append(g.tasks, t)
	g.categories[t.category] = struct{}{}
	g.pending++
	g.totals.add(t.progress, 1)
	g.reopenLocked()
}

// reopenLocked makes a completed group incomplete again when new work is
// added to it through a group hint.
func (g *group) reopenLocked() {
	if g.completed {
		g.completed = false
		g.completedAt = time.Time{}
		g.done = make(chan struct{})
	}
}

func (g *group) isCompleteLocked() bool {
	return g.pending == 0 && g.running == 0 && g.live == 0 && g.resolving == 0
}

// markResolvedLocked records the resolver's decision on a failed conflict.
func (g *group) markResolvedLocked(id TaskID, policy ConflictPolicy) {
	for i := range g.failures {
		if g.failures[i].Task == id && g.failures[i].Resolution == ConflictAsk {
			g.failures[i].Resolution = policy
			g.resolved++
			return
		}
	}
}

func (g *group) snapshotLocked() Snapshot {
	cats := make([]Category, 0, len(g.categories))
	for c := range g.categories {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	return Snapshot{
		Group:           g.id,
		Progress:        g.totals.progress(),
		Succeeded:       g.succeeded,
		Failed:          g.failed,
		Canceled:        g.canceled,
		Resolved:        g.resolved,
		Running:         g.running,
		Pending:         g.pending,
		Completed:       g.completed,
		Paused:          g.gate.Paused(),
		CancelRequested: g.cancel.IsSet(),
		Categories:      cats,
		CreatedAt:       g.createdAt,
		Failures:        slices.Clone(g.failures),
	}
}
