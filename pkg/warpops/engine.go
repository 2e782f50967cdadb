package warpops

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpops/internal/retention"
	"github.com/warpdl/warpops/pkg/logger"
)

// ConflictInfo describes a task that failed because its destination exists.
type ConflictInfo struct {
	Task        TaskID
	Group       GroupID
	Kind        Kind
	Source      string
	Destination string
	Err         *OpError
}

// ConflictResolver decides how a conflicting task is retried. Returning
// ConflictOverwrite or ConflictRename submits a fresh task with that policy;
// anything else drops it. ctx is canceled when the group is.
type ConflictResolver interface {
	ResolveConflict(ctx context.Context, c ConflictInfo) ConflictPolicy
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithNotifier sets the receiver of engine events.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithResolver sets the conflict resolver consulted for ConflictAsk tasks.
func WithResolver(r ConflictResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithHandler replaces the handler of a kind.
func WithHandler(k Kind, h Handler) Option {
	return func(e *Engine) { e.handlers[k] = h }
}

// Engine schedules and runs file operations.
type Engine struct {
	cfg      Config
	adaptor  Adaptor
	log      logger.Logger
	notifier Notifier
	resolver ConflictResolver
	handlers map[Kind]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
	nextID atomic.Uint64

	queue       *IntakeQueue
	registry    *Registry
	dispatchers map[Category]*dispatcher
	pump        *eventPump
	janitor     *retention.Janitor
}

// New starts an engine. The engine stops when ctx is canceled or Close is
// called; Close must be called in both cases to release its goroutines.
func New(ctx context.Context, cfg Config, a Adaptor, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: nil adaptor", ErrInvalidRequest)
	}
	e := &Engine{
		cfg:      cfg,
		adaptor:  a,
		log:      logger.NewNopLogger(),
		notifier: NotifierFunc(func(Event) {}),
		handlers: defaultHandlers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.queue = NewIntakeQueue()
	e.registry = newRegistry(e.ctx)
	e.pump = newEventPump(e.notifier, e.log)
	e.janitor = retention.New(e.ctx, func(key string) {
		go e.expire(GroupID(key))
	})
	e.dispatchers = make(map[Category]*dispatcher, len(Categories))
	for _, c := range Categories {
		e.dispatchers[c] = newDispatcher(e, c, cfg.Limits[c])
	}

	go e.pump.run()
	for _, d := range e.dispatchers {
		safeGo(e.log, &e.wg, "dispatcher "+d.cat.String(), nil, d.run)
	}
	return e, nil
}

// Submit validates req and enqueues its root task.
func (e *Engine) Submit(req Request) (TaskID, GroupID, error) {
	if e.closed.Load() {
		return 0, "", ErrEngineClosed
	}
	if err := req.validate(); err != nil {
		return 0, "", err
	}
	gid := req.Group
	if gid == "" {
		gid = GroupID(uuid.NewString())
	}
	abort := e.cfg.AbortOnFailure
	if req.AbortOnFailure != nil {
		abort = *req.AbortOnFailure
	}
	d := Draft{
		Kind:        req.Kind,
		Sources:     req.Sources,
		Destination: req.Destination,
		OnConflict:  req.OnConflict,
	}
	est := UnknownEstimate
	if len(req.Sources) <= 1 || req.Kind == KindCompress {
		est = e.estimateDraft(e.ctx, d, e.handlers[req.Kind])
	}

	for {
		g, created := e.registry.groupOrCreate(gid, abort)
		g.mu.Lock()
		if g.removed {
			g.mu.Unlock()
			continue
		}
		if created {
			e.log.Debug("group %s created", gid)
		} else if g.completed {
			e.janitor.Remove(string(gid))
		}
		t := e.newTaskLocked(g, nil, d, req.Priority, est)
		e.enqueueLocked(t)
		e.touchLocked(g)
		g.mu.Unlock()
		e.log.Debug("%s submitted to group %s", t, gid)
		return t.id, gid, nil
	}
}

// newTaskLocked creates a pending task in g. The caller holds g.mu.
func (e *Engine) newTaskLocked(g *group, parent *Task, d Draft, priority int, est Estimate) *Task {
	t := &Task{
		id:         TaskID(e.nextID.Add(1)),
		kind:       d.Kind,
		category:   d.Kind.Category(),
		sources:    slices.Clone(d.Sources),
		dest:       d.Destination,
		priority:   priority,
		onConflict: d.OnConflict,
		emptyOnly:  d.EmptyOnly,
		entry:      d.Entry,
		group:      g,
		parent:     parent,
		createdAt:  time.Now(),
		state:      StatePending,
	}
	if parent != nil {
		parent.outstanding++
	}
	e.registry.addTask(t)
	g.addLocked(t, est)
	return t
}

// enqueueLocked queues a new task, or cancels it right away when its group
// or an ancestor is already canceled.
func (e *Engine) enqueueLocked(t *Task) {
	if t.canceled() {
		e.finishLocked(t, StateCanceled, nil)
		return
	}
	e.queue.Submit(t)
	e.dispatchers[t.category].signal()
}

// start moves a popped task to Running. It reports false when the task was
// canceled in the meantime.
func (e *Engine) start(t *Task) bool {
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.state != StatePending {
		return false
	}
	if t.canceled() {
		e.finishLocked(t, StateCanceled, nil)
		e.checkCompleteLocked(g)
		return false
	}
	t.state = StateRunning
	t.started = time.Now()
	g.pending--
	g.running++
	e.log.Debug("%s dispatched", t)
	e.pump.publish(newTaskStartedEvent(t))
	e.touchLocked(g)
	return true
}

// fanOut turns t into a container on its first batch and enqueues the
// children with t's priority.
func (e *Engine) fanOut(t *Task, j *Job, drafts []Draft) {
	ests := make([]Estimate, len(drafts))
	for i, d := range drafts {
		ests[i] = e.estimateDraft(j.Context(), d, e.handlers[d.Kind])
	}

	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if !t.container {
		t.container = true
		e.uncountLocked(t)
		g.live++
	}
	children := make([]*Task, 0, len(drafts))
	for i, d := range drafts {
		children = append(children, e.newTaskLocked(g, t, d, t.priority, ests[i]))
	}
	if t.canceled() {
		for _, c := range children {
			e.finishLocked(c, StateCanceled, nil)
		}
		return
	}
	e.queue.SubmitBatch(children)
	for _, c := range children {
		e.dispatchers[c.category].signal()
	}
	e.log.Debug("%s fanned out %d children", t, len(children))
	e.touchLocked(g)
}

// endEmission records that container t will emit no more children. The
// container itself is complete at this point: Succeeded, Failed when its own
// enumeration failed, or Canceled when it was cut short. Its descendants keep
// the group open until they are terminal.
func (e *Engine) endEmission(t *Task, canceled bool, oe *OpError) {
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	to := StateSucceeded
	switch {
	case oe != nil:
		to = StateFailed
		t.anyFailed = true
		t.progress.TotalBytes = t.progress.ProcessedBytes
		t.progress.TotalItems = t.progress.ProcessedItems
		e.recountLocked(t)
	case canceled:
		to = StateCanceled
		t.anyCanceled = true
	}
	e.finishLocked(t, to, oe)
	e.checkCompleteLocked(g)
}

// childSettledLocked folds a settled child's subtree into its container.
func (e *Engine) childSettledLocked(p *Task, c *Task) {
	p.outstanding--
	if c.state == StateFailed || c.anyFailed {
		p.anyFailed = true
	}
	if c.state == StateCanceled || c.anyCanceled {
		p.anyCanceled = true
	}
	if p.state.Terminal() && p.outstanding == 0 {
		e.settleLocked(p)
	}
}

// settleLocked runs once t and every descendant are terminal. A container
// whose whole subtree succeeded submits its follow-ups here.
func (e *Engine) settleLocked(t *Task) {
	if t.settled {
		return
	}
	t.settled = true
	if t.container {
		t.group.live--
		if !t.anyFailed && !t.anyCanceled && !t.canceled() {
			for _, d := range t.followUps {
				est := UnknownEstimate
				if d.Hint != nil {
					est = *d.Hint
				}
				e.enqueueLocked(e.newTaskLocked(t.group, t.parent, d, t.priority, est))
			}
		}
		t.followUps = nil
	}
	t.cancel.release()
	if t.parent != nil {
		e.childSettledLocked(t.parent, t)
	}
}

func (e *Engine) finish(t *Task, to State, oe *OpError) {
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	e.finishLocked(t, to, oe)
	e.checkCompleteLocked(g)
}

// fail marks t Failed, then applies abort-on-first-failure and hands
// conflicts to the resolver.
func (e *Engine) fail(t *Task, oe *OpError) {
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	ask := oe.Kind == ErrKindConflict && t.onConflict == ConflictAsk && e.resolver != nil && !g.abortOnFailure
	if ask {
		g.resolving++
	}
	e.finishLocked(t, StateFailed, oe)
	if ask {
		e.askResolver(t, oe)
	}
	e.checkCompleteLocked(g)
}

// finishLocked moves t to a terminal state, updates the tallies and the
// parent, and publishes the terminal event immediately.
func (e *Engine) finishLocked(t *Task, to State, oe *OpError) {
	if t.state.Terminal() {
		return
	}
	g := t.group
	if t.counted {
		switch t.state {
		case StatePending:
			g.pending--
		case StateRunning, StatePaused:
			g.running--
		}
		switch to {
		case StateSucceeded:
			g.succeeded++
		case StateFailed:
			g.failed++
			if oe != nil {
				g.failures = append(g.failures, failureOf(t, oe))
			}
		case StateCanceled:
			g.canceled++
		}
	}
	t.state = to
	t.finished = time.Now()
	if oe != nil {
		t.lastErr = oe
	}
	if !t.container && to == StateSucceeded {
		e.finalizeLocked(t)
	}
	e.emitTerminalLocked(t)
	if !t.container || t.outstanding == 0 {
		e.settleLocked(t)
	}
	if to == StateFailed && t.counted && g.abortOnFailure && !g.cancel.IsSet() {
		e.log.Info("group %s aborted after failure of %s", g.id, t)
		e.cancelGroupLocked(g)
	}
}

// cancelGroupLocked raises the group's flag and cancels its queued tasks.
// Running tasks stop at their next checkpoint.
func (e *Engine) cancelGroupLocked(g *group) {
	g.cancel.Set()
	for _, t := range e.queue.RemoveIf(func(t *Task) bool { return t.group == g }) {
		e.finishLocked(t, StateCanceled, nil)
	}
}

// checkCompleteLocked completes the group once nothing in it can change
// anymore.
func (e *Engine) checkCompleteLocked(g *group) {
	if g.completed || !g.isCompleteLocked() {
		return
	}
	g.completed = true
	g.completedAt = time.Now()
	close(g.done)
	e.flushLocked(g, g.completedAt)
	snap := g.snapshotLocked()
	e.pump.publish(GroupCompletedEvent{baseEvent: newBaseEvent(), Snapshot: snap})
	e.log.Info("group %s completed: %d succeeded, %d failed, %d canceled", g.id, snap.Succeeded, snap.Failed, snap.Canceled)
	if e.cfg.Retention > 0 {
		e.janitor.Add(string(g.id), g.completedAt.Add(e.cfg.Retention))
	}
}

// askResolver consults the resolver in the background. The group stays
// incomplete until the decision is applied.
func (e *Engine) askResolver(t *Task, oe *OpError) {
	g := t.group
	info := ConflictInfo{
		Task:        t.id,
		Group:       g.id,
		Kind:        t.kind,
		Source:      t.primaryPath(),
		Destination: t.dest,
		Err:         oe,
	}
	d := Draft{Kind: t.kind, Sources: slices.Clone(t.sources), Destination: t.dest, EmptyOnly: t.emptyOnly, Entry: t.entry}
	priority := t.priority
	safeGo(e.log, &e.wg, "conflict "+t.String(), func(any) {
		g.mu.Lock()
		g.resolving--
		e.checkCompleteLocked(g)
		g.mu.Unlock()
	}, func() {
		ctx := g.cancel.ctx
		policy := e.resolver.ResolveConflict(ctx, info)
		retry := ctx.Err() == nil && (policy == ConflictOverwrite || policy == ConflictRename)
		var est Estimate
		if retry {
			d.OnConflict = policy
			est = e.estimateDraft(ctx, d, e.handlers[d.Kind])
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		g.resolving--
		if ctx.Err() == nil {
			g.markResolvedLocked(info.Task, policy)
		}
		if retry && !g.removed {
			nt := e.newTaskLocked(g, nil, d, priority, est)
			e.log.Info("conflict on %s resolved as %s, resubmitted as %s", info.Destination, policy, nt)
			e.enqueueLocked(nt)
		} else {
			e.log.Info("conflict on %s resolved as %s", info.Destination, policy)
		}
		e.checkCompleteLocked(g)
	})
}

// Cancel cancels every non-terminal task of the group, including children
// not discovered yet.
func (e *Engine) Cancel(id GroupID) error {
	g, ok := e.registry.group(id)
	if !ok {
		return ErrGroupNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cancel.IsSet() {
		e.log.Info("group %s canceled", id)
	}
	e.cancelGroupLocked(g)
	e.checkCompleteLocked(g)
	return nil
}

// CancelTask cancels a task and all of its descendants.
func (e *Engine) CancelTask(id TaskID) error {
	t, ok := e.registry.task(id)
	if !ok {
		return ErrTaskNotFound
	}
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.settled {
		return nil
	}
	t.cancel.Set()
	for _, q := range e.queue.RemoveIf(func(q *Task) bool { return q.group == g && t.ancestorOf(q) }) {
		e.finishLocked(q, StateCanceled, nil)
	}
	e.checkCompleteLocked(g)
	return nil
}

// Pause stops dispatching the group's tasks; running ones block at their
// next checkpoint.
func (e *Engine) Pause(id GroupID) error {
	g, ok := e.registry.group(id)
	if !ok {
		return ErrGroupNotFound
	}
	if g.gate.Pause() {
		e.log.Info("group %s paused", id)
		g.mu.Lock()
		e.touchLocked(g)
		g.mu.Unlock()
	}
	return nil
}

// Resume undoes Pause.
func (e *Engine) Resume(id GroupID) error {
	g, ok := e.registry.group(id)
	if !ok {
		return ErrGroupNotFound
	}
	if g.gate.Resume() {
		e.log.Info("group %s resumed", id)
		for _, d := range e.dispatchers {
			d.signal()
		}
		g.mu.Lock()
		e.touchLocked(g)
		g.mu.Unlock()
	}
	return nil
}

// Snapshot returns the aggregate state of a group.
func (e *Engine) Snapshot(id GroupID) (Snapshot, error) {
	g, ok := e.registry.group(id)
	if !ok {
		return Snapshot{}, ErrGroupNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(), nil
}

// Task returns the state of one task.
func (e *Engine) Task(id TaskID) (TaskInfo, error) {
	t, ok := e.registry.task(id)
	if !ok {
		return TaskInfo{}, ErrTaskNotFound
	}
	t.group.mu.Lock()
	defer t.group.mu.Unlock()
	return t.infoLocked(), nil
}

// Tasks returns the state of every task of a group in creation order.
func (e *Engine) Tasks(id GroupID) ([]TaskInfo, error) {
	g, ok := e.registry.group(id)
	if !ok {
		return nil, ErrGroupNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	infos := make([]TaskInfo, 0, len(g.tasks))
	for _, t := range g.tasks {
		infos = append(infos, t.infoLocked())
	}
	return infos, nil
}

// Wait blocks until the group completes or ctx is done.
func (e *Engine) Wait(ctx context.Context, id GroupID) (Snapshot, error) {
	for {
		g, ok := e.registry.group(id)
		if !ok {
			return Snapshot{}, ErrGroupNotFound
		}
		g.mu.Lock()
		done := g.done
		if g.completed {
			snap := g.snapshotLocked()
			g.mu.Unlock()
			return snap, nil
		}
		g.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			snap, err := e.Snapshot(id)
			if err != nil {
				return snap, err
			}
			return snap, ctx.Err()
		}
	}
}

// Acknowledge removes a completed group and its tasks.
func (e *Engine) Acknowledge(id GroupID) error {
	g, ok := e.registry.group(id)
	if !ok {
		return ErrGroupNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.completed {
		return ErrGroupActive
	}
	e.removeGroupLocked(g)
	e.janitor.Remove(string(id))
	return nil
}

func (e *Engine) expire(id GroupID) {
	g, ok := e.registry.group(id)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.completed && !g.removed {
		e.log.Debug("group %s expired", id)
		e.removeGroupLocked(g)
	}
}

func (e *Engine) removeGroupLocked(g *group) {
	g.removed = true
	if g.flushTimer != nil {
		g.flushTimer.Stop()
		g.flushTimer = nil
	}
	e.registry.forget(g, g.tasks)
	g.cancel.release()
}

// Groups returns snapshots of all live groups, oldest first.
func (e *Engine) Groups() []Snapshot {
	gs := e.registry.allGroups()
	snaps := make([]Snapshot, 0, len(gs))
	for _, g := range gs {
		g.mu.Lock()
		snaps = append(snaps, g.snapshotLocked())
		g.mu.Unlock()
	}
	slices.SortFunc(snaps, func(a, b Snapshot) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Group, b.Group)
	})
	return snaps
}

// RunningCount returns the number of slots in use in a category.
func (e *Engine) RunningCount(c Category) int {
	d, ok := e.dispatchers[c]
	if !ok {
		return 0
	}
	return d.slots.running()
}

// Registry exposes the cancellation registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Close cancels all work, waits for workers to stop and delivers the
// remaining events.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	for _, g := range e.registry.allGroups() {
		g.mu.Lock()
		e.cancelGroupLocked(g)
		e.checkCompleteLocked(g)
		g.mu.Unlock()
	}
	e.wg.Wait()
	e.pump.stop()
	return nil
}
