package warpops

import (
	"sync"

	"github.com/warpdl/warpops/pkg/logger"
)

// Notifier receives engine events. Notify is called from a single goroutine
// in the order events were produced; a slow Notifier delays later events but
// never blocks task execution.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ev Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// MultiNotifier fans every event out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}

// LogNotifier writes terminal task and group events to a logger. Progress
// and snapshots go to Debug.
type LogNotifier struct {
	l logger.Logger
}

// NewLogNotifier returns a LogNotifier writing to l.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	return &LogNotifier{l: l}
}

func (n *LogNotifier) Notify(ev Event) {
	switch e := ev.(type) {
	case TaskStartedEvent:
		n.l.Debug("task %d started: %s %s", e.Task, e.Kind, e.Path)
	case TaskProgressEvent:
		n.l.Debug("task %d progress: +%d bytes, +%d items", e.Task, e.Delta.ProcessedBytes, e.Delta.ProcessedItems)
	case TaskSucceededEvent:
		n.l.Info("task %d succeeded: %s %s", e.Task, e.Kind, e.Path)
	case TaskFailedEvent:
		n.l.Warning("task %d failed: %s %s: %s", e.Task, e.Reason.Kind, e.Reason.Path, e.Reason.Message)
	case TaskCanceledEvent:
		n.l.Info("task %d canceled: %s %s", e.Task, e.Kind, e.Path)
	case GroupSnapshotEvent:
		n.l.Debug("group %s: %d/%d bytes, %d running, %d pending", e.Group, e.Progress.ProcessedBytes, e.Progress.TotalBytes, e.Running, e.Pending)
	case GroupCompletedEvent:
		n.l.Info("group %s completed: %d succeeded, %d failed, %d canceled", e.Group, e.Succeeded, e.Failed, e.Canceled)
	}
}

// eventPump delivers events to a Notifier from a single goroutine. publish
// never blocks; the backlog is unbounded.
type eventPump struct {
	notifier Notifier
	log      logger.Logger

	mu      sync.Mutex
	seq     uint64
	backlog []Event
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newEventPump(n Notifier, l logger.Logger) *eventPump {
	return &eventPump{
		notifier: n,
		log:      l,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (p *eventPump) publish(ev Event) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if s, ok := ev.(sequenced); ok {
		p.seq++
		ev = s.withSeq(p.seq)
	}
	p.backlog = append(p.backlog, ev)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run delivers events until stop is called and the backlog is drained.
func (p *eventPump) run() {
	defer close(p.done)
	for {
		<-p.wake
		for {
			p.mu.Lock()
			batch := p.backlog
			p.backlog = nil
			stopped := p.stopped
			p.mu.Unlock()
			if len(batch) == 0 {
				if stopped {
					return
				}
				break
			}
			for _, ev := range batch {
				p.deliver(ev)
			}
		}
	}
}

func (p *eventPump) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("notifier panicked on %s: %v", ev.EventType(), r)
		}
	}()
	p.notifier.Notify(ev)
}

// stop delivers what is queued, then ends run.
func (p *eventPump) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
	<-p.done
}
