package host

import (
	"sync"

	"github.com/dmitrijs2005/peerchat/internal/models"
)

// queued is a logged message waiting to be broadcast.
type queued struct {
	seq    int
	msg    models.Message
	sender *peer
}

// broadcastQueue is an unbounded FIFO. Producers never block, so it can be
// fed while the log mutex is held.
type broadcastQueue struct {
	mu     sync.Mutex
	items  []queued
	notify chan struct{}
}

func newBroadcastQueue() *broadcastQueue {
	return &broadcastQueue{notify: make(chan struct{}, 1)}
}

func (q *broadcastQueue) push(item queued) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until at least one item is queued or done is closed, then
// drains up to max items without blocking.
func (q *broadcastQueue) pop(done <-chan struct{}, max int) []queued {
	for {
		q.mu.Lock()
		if n := len(q.items); n > 0 {
			if n > max {
				n = max
			}
			batch := make([]queued, n)
			copy(batch, q.items)
			q.items = q.items[n:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return batch
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-done:
			return nil
		}
	}
}

func (q *broadcastQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
