package warpops

import (
	"container/heap"
	"sync"
)

// taskHeap implements container/heap.Interface ordered by priority
// (highest first), then submission sequence (oldest first).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// IntakeQueue holds pending tasks, one priority heap per category.
type IntakeQueue struct {
	mu    sync.Mutex
	seq   uint64
	heaps map[Category]*taskHeap
}

// NewIntakeQueue returns an empty queue.
func NewIntakeQueue() *IntakeQueue {
	q := &IntakeQueue{heaps: make(map[Category]*taskHeap, len(Categories))}
	for _, c := range Categories {
		q.heaps[c] = &taskHeap{}
	}
	return q
}

// Submit enqueues one task.
func (q *IntakeQueue) Submit(t *Task) {
	q.SubmitBatch([]*Task{t})
}

// SubmitBatch enqueues tasks with contiguous sequence numbers, so siblings
// of one fan-out batch are never interleaved with unrelated tasks of equal
// priority.
func (q *IntakeQueue) SubmitBatch(ts []*Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range ts {
		q.seq++
		t.seq = q.seq
		heap.Push(q.heaps[t.category], t)
	}
}

// PeekReady returns the task PopReady would return without removing it.
func (q *IntakeQueue) PeekReady(c Category, skip func(*Task) bool) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.find(c, skip, false)
}

// PopReady removes and returns the highest-priority task of category c for
// which skip returns false. Skipped tasks keep their position. It returns
// nil when no task is ready.
func (q *IntakeQueue) PopReady(c Category, skip func(*Task) bool) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.find(c, skip, true)
}

func (q *IntakeQueue) find(c Category, skip func(*Task) bool, remove bool) *Task {
	h := q.heaps[c]
	if h.Len() == 0 {
		return nil
	}
	if skip == nil || !skip((*h)[0]) {
		if remove {
			return heap.Pop(h).(*Task)
		}
		return (*h)[0]
	}
	var held []*Task
	var found *Task
	for h.Len() > 0 {
		t := heap.Pop(h).(*Task)
		if !skip(t) {
			found = t
			break
		}
		held = append(held, t)
	}
	if found != nil && !remove {
		held = append(held, found)
	}
	for _, t := range held {
		heap.Push(h, t)
	}
	return found
}

// RemoveIf removes and returns every queued task matching pred.
func (q *IntakeQueue) RemoveIf(pred func(*Task) bool) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var removed []*Task
	for _, h := range q.heaps {
		kept := (*h)[:0]
		for _, t := range *h {
			if pred(t) {
				removed = append(removed, t)
				continue
			}
			kept = append(kept, t)
		}
		for i := len(kept); i < len(*h); i++ {
			(*h)[i] = nil
		}
		*h = kept
		heap.Init(h)
	}
	return removed
}

// Len returns the number of queued tasks in category c.
func (q *IntakeQueue) Len(c Category) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heaps[c].Len()
}
