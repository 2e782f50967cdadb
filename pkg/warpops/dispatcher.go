package warpops

import "sync"

// slots counts running tasks of one category against its limit.
type slots struct {
	mu    sync.Mutex
	limit int // 0 = unbounded
	inUse int
}

func (s *slots) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && s.inUse >= s.limit {
		return false
	}
	s.inUse++
	return true
}

func (s *slots) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse > 0 {
		s.inUse--
	}
}

func (s *slots) running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// dispatcher moves tasks of one category from the intake queue to workers.
// It sleeps on a coalescing signal and never polls.
type dispatcher struct {
	e     *Engine
	cat   Category
	slots slots
	wake  chan struct{}
}

func newDispatcher(e *Engine, cat Category, limit int) *dispatcher {
	return &dispatcher{
		e:     e,
		cat:   cat,
		slots: slots{limit: limit},
		wake:  make(chan struct{}, 1),
	}
}

// signal wakes the loop. Signals sent while the loop is busy coalesce.
func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// release returns a slot and wakes the loop.
func (d *dispatcher) release() {
	d.slots.release()
	d.signal()
}

func (d *dispatcher) wait() bool {
	select {
	case <-d.wake:
		return true
	case <-d.e.ctx.Done():
		return false
	}
}

// skipPaused keeps tasks of paused groups queued. Canceled tasks are popped
// regardless so they can be marked Canceled.
func skipPaused(t *Task) bool {
	return t.group.gate.Paused() && !t.canceled()
}

func (d *dispatcher) run() {
	for d.e.ctx.Err() == nil {
		if !d.slots.tryAcquire() {
			if !d.wait() {
				return
			}
			continue
		}
		t := d.e.queue.PopReady(d.cat, skipPaused)
		if t == nil {
			d.slots.release()
			if !d.wait() {
				return
			}
			continue
		}
		if !d.e.start(t) {
			d.slots.release()
			continue
		}
		safeGo(d.e.log, &d.e.wg, t.String(), nil, func() {
			d.e.execute(t, d)
		})
	}
}
