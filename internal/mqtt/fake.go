package mqtt

import (
	"sync"

	"github.com/sweeney/actuator-control/internal/logic"
)

// FakePublisher records what would have been sent to the broker.
// Set the error and connection fields before use; read recordings through
// the accessor methods while publishers may still be running.
type FakePublisher struct {
	mu sync.Mutex

	Events       []logic.Event
	EventBodies  [][]byte
	System       []SystemMessage
	SystemBodies [][]byte
	EventErr     error // returned by Publish
	SystemErr    error // returned by PublishSystem
	Closed       bool
	Connected    bool
}

// NewFakePublisher returns an empty, disconnected fake.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish encodes and records e unless EventErr is set.
func (f *FakePublisher) Publish(e logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EventErr != nil {
		return f.EventErr
	}
	body, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, e)
	f.EventBodies = append(f.EventBodies, body)
	return nil
}

// PublishSystem encodes and records msg unless SystemErr is set.
func (f *FakePublisher) PublishSystem(msg SystemMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SystemErr != nil {
		return f.SystemErr
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	f.System = append(f.System, msg)
	f.SystemBodies = append(f.SystemBodies, body)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	f.Connected = connected
	f.mu.Unlock()
}

// RecordedEvents returns a copy of the published controller events.
func (f *FakePublisher) RecordedEvents() []logic.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Event(nil), f.Events...)
}

// RecordedSystem returns a copy of the published lifecycle messages.
func (f *FakePublisher) RecordedSystem() []SystemMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemMessage(nil), f.System...)
}

// Reset returns the fake to its initial state.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events, f.EventBodies = nil, nil
	f.System, f.SystemBodies = nil, nil
	f.EventErr, f.SystemErr = nil, nil
	f.Closed, f.Connected = false, false
}
