// Package logic contains the pure relay encoding and event types for the actuator.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
package logic

import "time"

// Intent is the motion requested from the actuator.
type Intent int

const (
	Stop Intent = iota
	Extend
	Retract
)

func (i Intent) String() string {
	switch i {
	case Extend:
		return "EXTEND"
	case Retract:
		return "RETRACT"
	default:
		return "STOP"
	}
}

// Levels is the pair of relay channel levels. true = channel active (relay energized).
type Levels struct {
	A bool
	B bool
}

// EventType identifies a controller lifecycle event.
type EventType string

const (
	EventStarted     EventType = "STARTED"
	EventStopped     EventType = "STOPPED"
	EventCycle       EventType = "CYCLE"
	EventFault       EventType = "FAULT"
	EventWaitChanged EventType = "WAIT_CHANGED"
)

// Event is a controller lifecycle event to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Running   bool
	CycleWait time.Duration
	Cycle     int    // completed cycles in the current run
	Reason    string // fault description (FAULT only)
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Starts int
	Stops  int
	Cycles int
	Faults int
}

// Count adds e to the counts.
func (c *EventCounts) Count(e Event) {
	switch e.Type {
	case EventStarted:
		c.Starts++
	case EventStopped:
		c.Stops++
	case EventCycle:
		c.Cycles++
	case EventFault:
		c.Faults++
	}
}
