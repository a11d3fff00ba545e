package bus

import (
	"errors"
	"sync/atomic"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("signal queue full")
	ErrQueueClosed = errors.New("signal queue closed")
)

// Queue is a bounded, non-blocking signal queue. The engine publishes
// signals while dispatching a bar and drains them in a single serialized
// pass before the next bar.
type Queue struct {
	ch     chan schema.Signal
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan schema.Signal, capacity)}
}

// TryPublish enqueues a signal without blocking.
func (q *Queue) TryPublish(s schema.Signal) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- s:
		return nil
	default:
		return ErrQueueFull
	}
}

// TryConsume dequeues the next signal without blocking.
func (q *Queue) TryConsume() (schema.Signal, bool) {
	select {
	case s := <-q.ch:
		return s, true
	default:
		return schema.Signal{}, false
	}
}

// Drain empties the queue in FIFO order.
func (q *Queue) Drain() []schema.Signal {
	var out []schema.Signal
	for {
		s, ok := q.TryConsume()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}

// Len returns the number of queued signals.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new signals.
func (q *Queue) Close() {
	atomic.StoreUint32(&q.closed, 1)
}
