package scheduler

import "container/heap"

// entryHeap orders entries by TriggerAt, earliest first.
type entryHeap []Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].TriggerAt.Before(h[j].TriggerAt) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *entryHeap, e Entry) {
	heap.Push(h, e)
}

// heapPop panics on an empty heap.
func heapPop(h *entryHeap) Entry {
	return heap.Pop(h).(Entry)
}

// heapRemove removes the entry with the given id and reports whether it
// was there.
func heapRemove(h *entryHeap, id string) bool {
	for i, e := range *h {
		if e.ID == id {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
