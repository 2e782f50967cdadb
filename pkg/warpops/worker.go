package warpops

import (
	"context"
	"runtime/debug"
	"slices"

	"github.com/warpdl/warpops/pkg/logger"
)

type outcomeKind int

const (
	outcomeDone outcomeKind = iota
	outcomeFanOut
	outcomeFailed
	outcomeCanceled
)

// Outcome is what one Execute call of a Handler produced.
type Outcome struct {
	kind     outcomeKind
	children []Draft
	more     bool
	err      error
}

// Done reports that the task finished its work.
func Done() Outcome { return Outcome{kind: outcomeDone} }

// FanOut hands children to the scheduler. With more set the worker calls
// Execute again so the handler can emit the next batch; the handler keeps
// its position in Job.Cursor.
func FanOut(more bool, children ...Draft) Outcome {
	return Outcome{kind: outcomeFanOut, children: children, more: more}
}

// Failed reports a failure. Errors are classified with KindOf; transient
// ones are retried.
func Failed(err error) Outcome { return Outcome{kind: outcomeFailed, err: err} }

// Canceled reports that the handler stopped because of cancellation.
func Canceled() Outcome { return Outcome{kind: outcomeCanceled} }

// Handler implements one Kind.
type Handler interface {
	// Estimate sizes the work of a draft without side effects. It is called
	// at discovery time and may return Unknown fields.
	Estimate(ctx context.Context, a Adaptor, d Draft) Estimate
	// Execute performs the work, or the next slice of it.
	Execute(j *Job) Outcome
}

// Job is a handler's view of the task it runs: its parameters, the
// cancellation token and the progress sink.
type Job struct {
	e *Engine
	t *Task
	// Cursor is handler state kept across repeated Execute calls and
	// retries of the same task.
	Cursor any
}

func (j *Job) ID() TaskID                 { return j.t.id }
func (j *Job) Kind() Kind                 { return j.t.kind }
func (j *Job) Group() GroupID             { return j.t.group.id }
func (j *Job) Sources() []string          { return slices.Clone(j.t.sources) }
func (j *Job) Destination() string        { return j.t.dest }
func (j *Job) OnConflict() ConflictPolicy { return j.t.onConflict }
func (j *Job) EmptyOnly() bool            { return j.t.emptyOnly }
func (j *Job) Entry() string              { return j.t.entry }
func (j *Job) Adaptor() Adaptor           { return j.e.adaptor }
func (j *Job) ChunkSize() int64           { return j.e.cfg.ChunkSize }
func (j *Job) Logger() logger.Logger      { return j.e.log }

// Source returns the first source path, or "" for create-only kinds.
func (j *Job) Source() string {
	if len(j.t.sources) == 0 {
		return ""
	}
	return j.t.sources[0]
}

// Context is canceled together with the task.
func (j *Job) Context() context.Context { return j.t.cancel.ctx }

// Canceled reports whether the task, an ancestor or its group was canceled.
func (j *Job) Canceled() bool { return j.t.canceled() }

// Checkpoint returns ErrCanceled once the task is canceled. While the group
// is paused it blocks, with the task in state Paused, until the group is
// resumed or the task canceled.
func (j *Job) Checkpoint() error {
	for {
		if j.t.canceled() {
			return ErrCanceled
		}
		resume := j.t.group.gate.wait()
		if resume == nil {
			return nil
		}
		j.e.setPaused(j.t, true)
		select {
		case <-resume:
		case <-j.t.cancel.Done():
		}
		j.e.setPaused(j.t, false)
	}
}

// AddProgress records processed bytes and items.
func (j *Job) AddProgress(bytes, items int64) {
	g := j.t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	j.e.addProgressLocked(j.t, bytes, items)
}

// SetTotal records a discovered total. Pass Unknown to leave a field alone.
func (j *Job) SetTotal(bytes, items int64) {
	g := j.t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	j.e.setTotalLocked(j.t, bytes, items)
}

// Processed returns the task's progress so far. Retried handlers resume
// from it.
func (j *Job) Processed() Progress {
	g := j.t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	return j.t.progress
}

// Then registers a follow-up submitted once every child this task fanned
// out has succeeded.
func (j *Job) Then(d Draft) {
	g := j.t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	j.t.followUps = append(j.t.followUps, d)
}

func (e *Engine) setPaused(t *Task, paused bool) {
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case paused && t.state == StateRunning:
		t.state = StatePaused
	case !paused && t.state == StatePaused:
		t.state = StateRunning
	default:
		return
	}
	e.touchLocked(g)
}

// invoke runs one Execute call, turning panics into failures. A task with
// several sources first splits into one child per source.
func (e *Engine) invoke(h Handler, j *Job) (out Outcome) {
	t := j.t
	if len(t.sources) > 1 && t.kind != KindCompress && !t.container {
		return FanOut(false, expandSources(t.kind, t.sources, t.dest, t.onConflict)...)
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler for %s panicked: %v\n%s", t, r, debug.Stack())
			out = Failed(Errorf(ErrKindOther, t.kind.String(), t.primaryPath(), "handler panic: %v", r))
		}
	}()
	return h.Execute(j)
}

// execute runs t on a worker goroutine until it is terminal.
func (e *Engine) execute(t *Task, d *dispatcher) {
	h := e.handlers[t.kind]
	j := &Job{e: e, t: t}
	held := true
	release := func() {
		if held {
			held = false
			d.release()
		}
	}
	defer release()

	attempt := 1
	for {
		out := e.invoke(h, j)
		switch out.kind {
		case outcomeFanOut:
			if len(out.children) > 0 {
				e.fanOut(t, j, out.children)
			}
			if !out.more {
				e.conclude(t, release, StateSucceeded, nil)
				return
			}
			if t.canceled() {
				e.conclude(t, release, StateCanceled, nil)
				return
			}

		case outcomeDone:
			e.conclude(t, release, StateSucceeded, nil)
			return

		case outcomeCanceled:
			e.conclude(t, release, StateCanceled, nil)
			return

		case outcomeFailed:
			if isCanceled(out.err) || t.canceled() {
				e.conclude(t, release, StateCanceled, nil)
				return
			}
			oe := asOpError(t.kind.String(), t.primaryPath(), out.err)
			if !e.cfg.Retry.ShouldRetry(attempt, oe.Kind) {
				e.log.Warning("%s failed: %v", t, oe)
				e.conclude(t, release, StateFailed, oe)
				return
			}
			e.noteRetry(t, oe)
			e.log.Warning("%s attempt %d/%d failed, retrying: %v", t, attempt, e.cfg.Retry.MaxAttempts, oe)
			if err := e.cfg.Retry.WaitForRetry(j.Context(), attempt); err != nil {
				e.conclude(t, release, StateCanceled, nil)
				return
			}
			attempt++
		}
	}
}

// conclude ends the worker's part of t. A leaf becomes terminal; a container
// becomes terminal once it stops emitting. The slot is returned only after
// the state change so no observer sees more Running tasks than slots.
func (e *Engine) conclude(t *Task, release func(), to State, oe *OpError) {
	if to == StateCanceled {
		e.log.Info("%s canceled", t)
	}
	if t.container {
		e.endEmission(t, to == StateCanceled, oe)
		release()
		return
	}
	if to == StateFailed {
		e.fail(t, oe)
		return
	}
	e.finish(t, to, nil)
}

func (e *Engine) noteRetry(t *Task, oe *OpError) {
	g := t.group
	g.mu.Lock()
	defer g.mu.Unlock()
	t.retries++
	t.lastErr = oe
}
