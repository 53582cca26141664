package engine

import (
	"context"
	"sync"

	"github.com/roach88/causeway/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeInit carries the committed snapshot delivery starts from.
	EventTypeInit EventType = iota + 1
	// EventTypeCommit carries one commit notification.
	EventTypeCommit
)

func (t EventType) String() string {
	switch t {
	case EventTypeInit:
		return "init"
	case EventTypeCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Event wraps init snapshots and commits for the inbox.
type Event struct {
	Type     EventType
	Snapshot *ir.ExceptionClock
	Commit   *ir.Commit
}

// eventQueue is a bounded, thread-safe FIFO hand-off between producers
// (Submit callers, HTTP handlers) and the Runner's Run loop.
//
// Producers block in Enqueue while the queue is full, so a slow consumer
// applies back-pressure instead of growing memory without bound.
//
// Two buffered (size 1) channels carry wakeups: signal tells the consumer
// events may be available, space tells producers a slot may have freed.
// Close closes both, waking every waiter.
type eventQueue struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	closed   bool
	signal   chan struct{}
	space    chan struct{}
}

// newEventQueue creates an empty queue holding at most capacity events.
// capacity < 1 is treated as 1.
func newEventQueue(capacity int) *eventQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &eventQueue{
		events:   make([]Event, 0, min(capacity, 64)),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue, waiting for space.
// Returns ErrClosed if the queue is closed, or ctx.Err() if ctx ends first.
func (q *eventQueue) Enqueue(ctx context.Context, e Event) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if len(q.events) < q.capacity {
			q.events = append(q.events, e)
			notify(q.signal)
			if len(q.events) < q.capacity {
				// Pass the wakeup on to another blocked producer
				notify(q.space)
			}
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.space:
		}
	}
}

// TryDequeue removes the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Nil out the slot so the backing array does not pin the payload
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	if !q.closed {
		notify(q.space)
	}
	return e, true
}

// notify performs a non-blocking send; the size-1 buffer coalesces wakeups.
// Callers hold q.mu and have checked the queue is open.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Wait returns a channel that signals when events may be available.
// It is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Drained reports whether the queue is closed and empty: the consumer has
// seen every event it will ever get.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

// Close stops accepting events. Queued events can still be dequeued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
	close(q.space)
}
