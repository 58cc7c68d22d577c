package storage

import (
	"sync"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/repository"
)

// EventQueue implements repository.EventQueue
type EventQueue struct {
	ch     chan entity.Event
	done   chan struct{}
	once   sync.Once
	closed bool
	mu     sync.RWMutex
}

// NewEventQueue creates a new event queue
func NewEventQueue(size int) repository.EventQueue {
	return &EventQueue{
		ch:   make(chan entity.Event, size),
		done: make(chan struct{}),
	}
}

// Send sends an event to the queue.
// It blocks while the buffer is full and drops the event once the queue is
// closed, including a send already blocked when Close is called.
func (q *EventQueue) Send(event entity.Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return
	}
	select {
	case q.ch <- event:
	case <-q.done:
	}
}

// Receive receives an event from the queue
func (q *EventQueue) Receive() (entity.Event, bool) {
	event, ok := <-q.ch
	return event, ok
}

// Len returns the number of buffered events
func (q *EventQueue) Len() int {
	return len(q.ch)
}

// Close closes the queue. Blocked senders are released before the channel
// is closed so a stalled receiver cannot hold Close forever.
func (q *EventQueue) Close() {
	q.once.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
