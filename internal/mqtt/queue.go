package mqtt

import (
	"errors"
	"log"
	"sync"

	"github.com/sweeney/actuator-control/internal/logic"
)

// EventQueueSize is the number of controller events held for the broker
// before new ones are dropped.
const EventQueueSize = 64

var (
	ErrQueueFull   = errors.New("mqtt: event queue full")
	ErrQueueClosed = errors.New("mqtt: event queue closed")
)

// EventPublisher sends controller events.
type EventPublisher interface {
	Publish(event logic.Event) error
}

// Queue hands controller events to a background goroutine that publishes
// them in order. Publish never waits on the broker, so a reconnect replay
// cannot hold up the cycle loop or a command reply.
type Queue struct {
	pub  EventPublisher
	ch   chan logic.Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a queue of the given size in front of pub.
func NewQueue(pub EventPublisher, size int) *Queue {
	if size < 1 {
		size = 1
	}
	q := &Queue{
		pub:  pub,
		ch:   make(chan logic.Event, size),
		done: make(chan struct{}),
	}
	go q.drain()
	return q
}

// Publish queues e. It returns ErrQueueFull instead of blocking.
func (q *Queue) Publish(e logic.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queued ones to be sent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
	return nil
}

func (q *Queue) drain() {
	defer close(q.done)
	for e := range q.ch {
		if err := q.pub.Publish(e); err != nil {
			log.Printf("mqtt: publish %s event: %v", e.Type, err)
		}
	}
}
