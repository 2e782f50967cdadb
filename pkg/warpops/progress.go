package warpops

import (
	"time"
)

// All functions in this file are called with t.group.mu held.

// addProgressLocked records work done by t and folds it into the group
// aggregate. A known total that is overtaken grows with the processed count.
func (e *Engine) addProgressLocked(t *Task, bytes, items int64) {
	if bytes <= 0 && items <= 0 {
		return
	}
	bytes, items = max(bytes, 0), max(items, 0)
	g := t.group
	before := t.progress
	t.progress.ProcessedBytes += bytes
	t.progress.ProcessedItems += items
	if t.progress.TotalBytes != Unknown && t.progress.ProcessedBytes > t.progress.TotalBytes {
		t.progress.TotalBytes = t.progress.ProcessedBytes
	}
	if t.progress.TotalItems != Unknown && t.progress.ProcessedItems > t.progress.TotalItems {
		t.progress.TotalItems = t.progress.ProcessedItems
	}
	if t.pendingDelta == (Progress{}) {
		g.deltas = append(g.deltas, t)
	}
	t.pendingDelta.ProcessedBytes += bytes
	t.pendingDelta.ProcessedItems += items
	if t.counted {
		g.totals.add(before, -1)
		g.totals.add(t.progress, 1)
	}
	e.touchLocked(g)
}

// setTotalLocked records a discovered total. Unknown leaves the current
// value alone and a total never shrinks below what is already known or
// processed.
func (e *Engine) setTotalLocked(t *Task, bytes, items int64) {
	before := t.progress
	if bytes != Unknown {
		bytes = max(bytes, t.progress.ProcessedBytes)
		if t.progress.TotalBytes == Unknown || bytes > t.progress.TotalBytes {
			t.progress.TotalBytes = bytes
		}
	}
	if items != Unknown {
		items = max(items, t.progress.ProcessedItems)
		if t.progress.TotalItems == Unknown || items > t.progress.TotalItems {
			t.progress.TotalItems = items
		}
	}
	if before == t.progress {
		return
	}
	if t.counted {
		t.group.totals.add(before, -1)
		t.group.totals.add(t.progress, 1)
	}
	e.touchLocked(t.group)
}

// finalizeLocked pins t's totals to what it actually processed. This is the
// only way a total may decrease, and only happens when t succeeded.
func (e *Engine) finalizeLocked(t *Task) {
	before := t.progress
	t.progress.TotalBytes = t.progress.ProcessedBytes
	t.progress.TotalItems = t.progress.ProcessedItems
	if t.counted && before != t.progress {
		t.group.totals.add(before, -1)
		t.group.totals.add(t.progress, 1)
	}
}

// uncountLocked removes a task turning into a container from the group's
// tallies and aggregate; its children are counted instead.
func (e *Engine) uncountLocked(t *Task) {
	if !t.counted {
		return
	}
	g := t.group
	g.totals.add(t.progress, -1)
	switch t.state {
	case StatePending:
		g.pending--
	case StateRunning, StatePaused:
		g.running--
	}
	t.counted = false
	t.pendingDelta = Progress{}
}

// recountLocked puts a container back into the tallies, used when its own
// enumeration fails so the failure is visible in the group counts.
func (e *Engine) recountLocked(t *Task) {
	if t.counted {
		return
	}
	t.counted = true
	t.group.totals.add(t.progress, 1)
	t.group.running++
}

// touchLocked marks the group dirty and emits at most once per EmitInterval.
// A trailing flush makes sure the last update is never lost.
func (e *Engine) touchLocked(g *group) {
	g.dirty = true
	now := time.Now()
	if e.cfg.EmitInterval <= 0 || now.Sub(g.lastEmit) >= e.cfg.EmitInterval {
		e.flushLocked(g, now)
		return
	}
	if g.flushTimer != nil {
		return
	}
	g.flushTimer = time.AfterFunc(g.lastEmit.Add(e.cfg.EmitInterval).Sub(now), func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.flushTimer = nil
		if g.dirty {
			e.flushLocked(g, time.Now())
		}
	})
}

// flushLocked publishes coalesced TaskProgress deltas followed by a
// GroupSnapshot.
func (e *Engine) flushLocked(g *group, now time.Time) {
	for _, t := range g.deltas {
		e.flushTaskLocked(t)
	}
	g.deltas = g.deltas[:0]
	if g.flushTimer != nil {
		g.flushTimer.Stop()
		g.flushTimer = nil
	}
	g.dirty = false
	g.lastEmit = now
	e.pump.publish(GroupSnapshotEvent{baseEvent: newBaseEvent(), Snapshot: g.snapshotLocked()})
}

func (e *Engine) flushTaskLocked(t *Task) {
	if t.pendingDelta == (Progress{}) {
		return
	}
	e.pump.publish(TaskProgressEvent{
		baseEvent: newBaseEvent(),
		Task:      t.id,
		Group:     t.group.id,
		Delta:     t.pendingDelta,
		Progress:  t.progress,
	})
	t.pendingDelta = Progress{}
}

// emitTerminalLocked publishes t's outstanding progress, its terminal event
// and an immediate group snapshot, bypassing the throttle.
func (e *Engine) emitTerminalLocked(t *Task) {
	e.flushTaskLocked(t)
	e.pump.publish(terminalEvent(t))
	e.flushLocked(t.group, time.Now())
}
