package warpops

import (
	"context"
	"sync"
	"sync/atomic"
)

// cancelFlag is a monotonic cancel flag. Its context is derived from the
// parent scope (engine, group or parent task), so setting a flag also
// cancels every flag derived from it and closes their Done channels exactly
// once.
type cancelFlag struct {
	ctx    context.Context
	cancel context.CancelFunc
	set    atomic.Bool
}

func newCancelFlag(parent context.Context) *cancelFlag {
	ctx, cancel := context.WithCancel(parent)
	return &cancelFlag{ctx: ctx, cancel: cancel}
}

// Set raises the flag. It reports whether this call raised it.
func (f *cancelFlag) Set() bool {
	if f.set.CompareAndSwap(false, true) {
		f.cancel()
		return true
	}
	return false
}

// IsSet reports whether the flag itself was raised, ignoring its parents.
func (f *cancelFlag) IsSet() bool { return f.set.Load() }

// Done is closed once the flag or any parent is raised.
func (f *cancelFlag) Done() <-chan struct{} { return f.ctx.Done() }

// release frees the context without raising the flag. Only called once the
// owner and all of its descendants are terminal.
func (f *cancelFlag) release() { f.cancel() }

// gate blocks running tasks of a paused group at their next checkpoint.
type gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func newGate() *gate { return &gate{} }

// Pause closes the gate. It reports whether the state changed.
func (g *gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return false
	}
	g.paused = true
	g.resume = make(chan struct{})
	return true
}

// Resume opens the gate and wakes every waiter.
func (g *gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	g.resume = nil
	return true
}

// Paused reports whether the gate is closed.
func (g *gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// wait returns a channel that is closed on resume, or nil when the gate is
// open.
func (g *gate) wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return nil
	}
	return g.resume
}

// Registry maps group and task ids to their cancel flags and pause gates.
// Flags and gates are safe to query without holding any engine lock.
type Registry struct {
	base   context.Context
	mu     sync.RWMutex
	groups map[GroupID]*group
	tasks  map[TaskID]*Task
}

func newRegistry(base context.Context) *Registry {
	return &Registry{
		base:   base,
		groups: make(map[GroupID]*group),
		tasks:  make(map[TaskID]*Task),
	}
}

func (r *Registry) group(id GroupID) (*group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	return g, ok
}

func (r *Registry) task(id TaskID) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// groupOrCreate returns the group with the given id, creating it when
// missing. created reports whether a new group was made.
func (r *Registry) groupOrCreate(id GroupID, abort bool) (g *group, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[id]; ok {
		return g, false
	}
	g = newGroup(id, abort, newCancelFlag(r.base))
	r.groups[id] = g
	return g, true
}

// addTask attaches a fresh cancel flag to t, derived from its parent task or
// its group, and indexes it.
func (r *Registry) addTask(t *Task) {
	parent := t.group.cancel.ctx
	if t.parent != nil {
		parent = t.parent.cancel.ctx
	}
	t.cancel = newCancelFlag(parent)
	r.mu.Lock()
	r.tasks[t.id] = t
	r.mu.Unlock()
}

// forget drops a group and all of its tasks.
func (r *Registry) forget(g *group, tasks []*Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groups[g.id] == g {
		delete(r.groups, g.id)
	}
	for _, t := range tasks {
		if r.tasks[t.id] == t {
			delete(r.tasks, t.id)
		}
	}
}

func (r *Registry) allGroups() []*group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gs := make([]*group, 0, len(r.groups))
	for _, g := range r.groups {
		gs = append(gs, g)
	}
	return gs
}

// CancelGroup raises the group's flag. It reports whether the flag changed.
func (r *Registry) CancelGroup(id GroupID) (bool, error) {
	g, ok := r.group(id)
	if !ok {
		return false, ErrGroupNotFound
	}
	return g.cancel.Set(), nil
}

// CancelTask raises the task's flag, which covers all of its descendants.
func (r *Registry) CancelTask(id TaskID) (bool, error) {
	t, ok := r.task(id)
	if !ok {
		return false, ErrTaskNotFound
	}
	return t.cancel.Set(), nil
}

// IsGroupCanceled reports whether cancel was requested for the group.
func (r *Registry) IsGroupCanceled(id GroupID) bool {
	g, ok := r.group(id)
	return ok && g.cancel.IsSet()
}

// IsTaskCanceled reports whether the task, an ancestor or its group was
// canceled.
func (r *Registry) IsTaskCanceled(id TaskID) bool {
	t, ok := r.task(id)
	return ok && t.cancelRequested()
}

// Pause closes the group's gate.
func (r *Registry) Pause(id GroupID) (bool, error) {
	g, ok := r.group(id)
	if !ok {
		return false, ErrGroupNotFound
	}
	return g.gate.Pause(), nil
}

// Resume opens the group's gate.
func (r *Registry) Resume(id GroupID) (bool, error) {
	g, ok := r.group(id)
	if !ok {
		return false, ErrGroupNotFound
	}
	return g.gate.Resume(), nil
}

// IsPaused reports whether the group is paused.
func (r *Registry) IsPaused(id GroupID) bool {
	g, ok := r.group(id)
	return ok && g.gate.Paused()
}
