package retention

import "container/heap"

// expiry is a key due for removal at a deadline.
type expiry struct {
	key string
	at  int64 // unix nanoseconds
}

// expiryHeap implements container/heap.Interface, earliest deadline first.
type expiryHeap []expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at < h[j].at }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) {
	*h = append(*h, x.(expiry))
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// removeKey drops every entry for key and reports whether one was found.
func (h *expiryHeap) removeKey(key string) bool {
	found := false
	for i := 0; i < h.Len(); {
		if (*h)[i].key == key {
			heap.Remove(h, i)
			found = true
			continue
		}
		i++
	}
	return found
}
