package retention

import (
	"container/heap"
	"context"
	"time"
)

const maxSleepCap = 60 * time.Second

type request struct {
	key    string
	at     time.Time
	remove bool
}

// Janitor calls onExpire for each key once its deadline has passed.
// Adding a key that is already scheduled moves its deadline.
type Janitor struct {
	reqs chan request
	ctx  context.Context
}

// New starts a Janitor that stops when ctx is canceled. onExpire runs on
// the janitor goroutine and must not block on callers of Add or Remove.
func New(ctx context.Context, onExpire func(key string)) *Janitor {
	j := &Janitor{
		reqs: make(chan request, 64),
		ctx:  ctx,
	}
	go j.run(onExpire)
	return j
}

// Add schedules key to expire at the given time.
func (j *Janitor) Add(key string, at time.Time) {
	select {
	case j.reqs <- request{key: key, at: at}:
	case <-j.ctx.Done():
	}
}

// Remove unschedules key.
func (j *Janitor) Remove(key string) {
	select {
	case j.reqs <- request{key: key, remove: true}:
	case <-j.ctx.Done():
	}
}

func (j *Janitor) run(onExpire func(string)) {
	h := &expiryHeap{}

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
		dur := time.Until(time.Unix(0, (*h)[0].at))
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
		case <-j.ctx.Done():
			return

		case r := <-j.reqs:
			h.removeKey(r.key)
			if !r.remove {
				heap.Push(h, expiry{key: r.key, at: r.at.UnixNano()})
			}
			timerCh = resetTimer()

		case <-timerCh:
			if j.ctx.Err() != nil {
				return
			}
			now := time.Now().UnixNano()
			for h.Len() > 0 && (*h)[0].at <= now {
				e := heap.Pop(h).(expiry)
				onExpire(e.key)
			}
			timerCh = resetTimer()
		}
	}
}
