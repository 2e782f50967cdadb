package warpcli

import (
	"bytes"
	"encoding/json"
	"sync"
)

// notification is a pushed event as it came off the wire.
type notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

// parseNotification reports whether msg is a single JSON-RPC notification.
// Responses and batches are left to jrpc2.
func parseNotification(msg []byte) (notification, bool) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || msg[0] != '{' {
		return notification{}, false
	}
	var n notification
	if err := json.Unmarshal(msg, &n); err != nil {
		return notification{}, false
	}
	if n.Method == "" || (len(n.ID) > 0 && !bytes.Equal(n.ID, []byte("null"))) {
		return notification{}, false
	}
	return n, true
}

// eventQueue hands notifications to deliver on a single goroutine in the
// order they were pushed. push never blocks the connection reader.
type eventQueue struct {
	deliver func(notification)

	mu      sync.Mutex
	backlog []notification
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newEventQueue(deliver func(notification)) *eventQueue {
	return &eventQueue{
		deliver: deliver,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *eventQueue) push(n notification) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.backlog = append(q.backlog, n)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run delivers notifications until stop is called and the backlog is
// drained.
func (q *eventQueue) run() {
	defer close(q.done)
	for {
		<-q.wake
		for {
			q.mu.Lock()
			batch := q.backlog
			q.backlog = nil
			stopped := q.stopped
			q.mu.Unlock()
			if len(batch) == 0 {
				if stopped {
					return
				}
				break
			}
			for _, n := range batch {
				q.deliver(n)
			}
		}
	}
}

// stop delivers what is queued, then ends run. It must not be called from
// a handler.
func (q *eventQueue) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.stopped = true
	q.mu.Unlock()
	q.signal()
	<-q.done
}
