package uevent

import (
	"context"
	"sync"
)

// queue is the single-producer/single-consumer FIFO handoff between the
// listener and the dispatcher. Events appended by one AppendBatch call keep
// their listener-insertion order all the way through Drain.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Event
	busy    bool
	closed  bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// AppendBatch splices events onto the tail of the queue and wakes the
// dispatcher. Ownership of events transfers to the queue.
func (q *queue) AppendBatch(events []*Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, events...)
	q.mu.Unlock()
	q.cond.Signal()
}

// Drain blocks until the queue is non-empty or Close is called, then
// atomically transfers the entire queue to the caller. It sets the busy flag
// before transferring and clears it before waiting again, so IsBusy can
// observe whether a drain is in flight even while the queue itself is
// momentarily empty. Returns ok=false only once the queue has been closed
// and drained dry.
func (q *queue) Drain(ctx context.Context) ([]*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.closed {
		q.busy = false
		if ctx.Err() != nil {
			return nil, false
		}
		// sync.Cond has no context-aware wait; Close and AppendBatch both
		// signal the condition, and shutdown additionally sets closed, so
		// a cancelled context is observed on the next wake rather than
		// immediately. Callers that need prompt cancellation also select
		// on ctx.Done() outside the queue (see Dispatcher.Run).
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}

	q.busy = true
	batch := q.pending
	q.pending = nil
	return batch, true
}

// IsBusy reports whether the queue currently holds events or a drain is in
// progress.
func (q *queue) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0 || q.busy
}

// Close wakes any blocked Drain call and makes future Drain calls return
// immediately once the queue is empty.
func (q *queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// drainRemaining returns whatever is left in the queue without blocking,
// used during shutdown to release anything still pending.
func (q *queue) drainRemaining() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	q.busy = false
	return batch
}
