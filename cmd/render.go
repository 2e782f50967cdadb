package cmd

import (
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/warpdl/warpops/cmd/common"
	"github.com/warpdl/warpops/pkg/warpops"
)

const refreshRate = 120 * time.Millisecond

// renderer draws the progress of one operation group. It is fed group
// snapshots, either by an in-process engine as a warpops.Notifier or by the
// daemon's pushed events.
type renderer struct {
	p      *mpb.Progress
	prefix string
	stop   chan struct{}

	mu    sync.Mutex
	bbar  *mpb.Bar
	ibar  *mpb.Bar
	held  bool
	ended bool
}

func newRenderer(out io.Writer, prefix string, quiet bool) *renderer {
	if quiet {
		out = io.Discard
	}
	refresh := make(chan interface{})
	r := &renderer{
		p:      mpb.New(mpb.WithOutput(out), mpb.WithWidth(64), mpb.WithManualRefresh(refresh)),
		prefix: prefix + " ",
		stop:   make(chan struct{}),
	}
	go r.tick(refresh)
	return r
}

// tick redraws the bars unless a prompt holds the terminal.
func (r *renderer) tick(refresh chan<- interface{}) {
	t := time.NewTicker(refreshRate)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
		}
		r.mu.Lock()
		held := r.held
		r.mu.Unlock()
		if held {
			continue
		}
		select {
		case refresh <- struct{}{}:
		case <-r.stop:
			return
		}
	}
}

func (r *renderer) Notify(ev warpops.Event) {
	switch ev := ev.(type) {
	case warpops.GroupSnapshotEvent:
		r.update(ev.Snapshot)
	case warpops.GroupCompletedEvent:
		r.update(ev.Snapshot)
	}
}

// update moves the bars to snap. Bars are created on the first snapshot so
// their totals start from the group's estimate.
func (r *renderer) update(snap warpops.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	pr := snap.Progress
	if r.bbar == nil {
		r.bbar, r.ibar = common.InitBars(r.p, r.prefix, pr.TotalBytes, pr.TotalItems)
	} else {
		if pr.TotalBytes >= 0 {
			r.bbar.SetTotal(pr.TotalBytes, false)
		}
		if pr.TotalItems >= 0 {
			r.ibar.SetTotal(pr.TotalItems, false)
		}
	}
	r.bbar.SetCurrent(pr.ProcessedBytes)
	r.ibar.SetCurrent(pr.ProcessedItems)
}

// hold stops drawing while the terminal is used for a prompt.
func (r *renderer) hold() {
	r.mu.Lock()
	r.held = true
	r.mu.Unlock()
}

func (r *renderer) release() {
	r.mu.Lock()
	r.held = false
	r.mu.Unlock()
}

// finish completes the bars at the group's final state and waits for the
// last frame to be drawn.
func (r *renderer) finish(snap warpops.Snapshot) {
	r.update(snap)
	r.end(false)
}

// abort drops the bars without completing them.
func (r *renderer) abort() {
	r.end(true)
}

func (r *renderer) end(drop bool) {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	for _, b := range []*mpb.Bar{r.bbar, r.ibar} {
		if b == nil {
			continue
		}
		if drop {
			b.Abort(true)
		} else {
			b.SetTotal(-1, true)
		}
	}
	r.held = false
	r.mu.Unlock()
	r.p.Wait()
	close(r.stop)
}
