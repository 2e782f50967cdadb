package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"github.com/warpdl/warpops/pkg/warpops"
)

const maxSleepCap = 60 * time.Second

// Scheduler holds entries until their trigger time and passes them to the
// onTrigger callback given to New.
type Scheduler struct {
	addChan    chan Entry
	removeChan chan removeReq
	listChan   chan chan []Entry
	ctx        context.Context
}

type removeReq struct {
	id    string
	found chan bool
}

// New creates and starts a Scheduler. onTrigger runs on the scheduler's
// goroutine and must not block. The goroutine exits when ctx is canceled.
func New(ctx context.Context, onTrigger func(Entry)) *Scheduler {
	s := &Scheduler{
		addChan:    make(chan Entry, 64),
		removeChan: make(chan removeReq),
		listChan:   make(chan chan []Entry),
		ctx:        ctx,
	}
	go s.run(onTrigger)
	return s
}

// NewEntry builds an entry for req. A zero at with a cron expression starts
// at the next occurrence; a non-zero at with one fires first at at and then
// follows the expression.
func NewEntry(req warpops.Request, at time.Time, cron string, now time.Time) (Entry, error) {
	cron = strings.TrimSpace(cron)
	if at.IsZero() && cron == "" {
		return Entry{}, ErrNoTrigger
	}
	if cron != "" {
		// gronx also takes a sixth seconds field
		if len(strings.Fields(cron)) != 5 || !gronx.IsValid(cron) {
			return Entry{}, fmt.Errorf("%w: %q", ErrInvalidCron, cron)
		}
		if !hasOccurrenceWithinYear(cron, now) {
			return Entry{}, fmt.Errorf("%w: %q", ErrNeverFires, cron)
		}
		if at.IsZero() {
			next, err := nextCronOccurrence(cron, now)
			if err != nil {
				return Entry{}, fmt.Errorf("%w: %v", ErrInvalidCron, err)
			}
			at = next
		}
	}
	return Entry{
		ID:        uuid.NewString(),
		Request:   req,
		TriggerAt: at,
		Cron:      cron,
	}, nil
}

// Add queues e. An entry whose time has passed fires right away.
func (s *Scheduler) Add(e Entry) {
	select {
	case s.addChan <- e:
	case <-s.ctx.Done():
	}
}

// Remove drops the entry with the given id before it fires again.
func (s *Scheduler) Remove(id string) error {
	req := removeReq{id: id, found: make(chan bool, 1)}
	select {
	case s.removeChan <- req:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	if !<-req.found {
		return ErrNotFound
	}
	return nil
}

// List returns the pending entries, earliest first.
func (s *Scheduler) List() []Entry {
	reply := make(chan []Entry, 1)
	select {
	case s.listChan <- reply:
	case <-s.ctx.Done():
		return nil
	}
	return <-reply
}

func (s *Scheduler) run(onTrigger func(Entry)) {
	h := &entryHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			return nil
		}
		dur := time.Until((*h)[0].TriggerAt)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case e := <-s.addChan:
			heapPush(h, e)
			timerCh = resetTimer()

		case req := <-s.removeChan:
			req.found <- heapRemove(h, req.id)
			timerCh = resetTimer()

		case reply := <-s.listChan:
			l := slices.Clone(*h)
			slices.SortFunc(l, func(a, b Entry) int { return a.TriggerAt.Compare(b.TriggerAt) })
			reply <- l

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].TriggerAt.After(now) {
				e := heapPop(h)
				e.Fired++
				onTrigger(e)
				if e.Cron == "" {
					continue
				}
				if next, err := nextCronOccurrence(e.Cron, now); err == nil {
					e.TriggerAt = next
					heapPush(h, e)
				}
			}
			timerCh = resetTimer()
		}
	}
}

// nextCronOccurrence returns the first time expr fires strictly after start.
func nextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}

func hasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return false
	}
	return next.Before(from.Add(365 * 24 * time.Hour))
}
