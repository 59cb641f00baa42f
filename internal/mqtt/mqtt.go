// Package mqtt publishes controller events and daemon lifecycle messages.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/actuator-control/internal/logic"
)

const (
	// Topic carries one message per controller event (QoS 0).
	Topic = "actuator/controller/events"
	// TopicSystem carries daemon lifecycle messages (QoS 1).
	TopicSystem = "actuator/controller/system"
)

// SystemKind names a daemon lifecycle message.
type SystemKind string

const (
	Startup     SystemKind = "STARTUP"
	Heartbeat   SystemKind = "HEARTBEAT"
	Shutdown    SystemKind = "SHUTDOWN"
	Offline     SystemKind = "OFFLINE" // last will
	Reconnected SystemKind = "RECONNECTED"
)

// Retained reports whether the broker keeps the latest message of this kind
// for new subscribers.
func (k SystemKind) Retained() bool {
	switch k {
	case Startup, Shutdown, Offline:
		return true
	}
	return false
}

// Publisher sends controller events and lifecycle messages to the broker.
// A failed publish is reported, never fatal.
type Publisher interface {
	Publish(event logic.Event) error
	PublishSystem(msg SystemMessage) error
	Close() error
}

// ConnectionStatus reports whether the broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemMessage is a daemon lifecycle message. When Snapshot is set it is
// sent as the body unchanged; otherwise a short notice is encoded.
type SystemMessage struct {
	Time     time.Time
	Kind     SystemKind
	Reason   string // shutdown signal or will reason
	Snapshot []byte // pre-encoded status document
}

type eventMessage struct {
	Actuator eventBody `json:"actuator"`
}

type eventBody struct {
	Timestamp        string  `json:"timestamp"`
	Event            string  `json:"event"`
	Running          bool    `json:"running"`
	CycleWaitSeconds float64 `json:"cycle_wait_seconds"`
	Cycle            int     `json:"cycle"`
	Reason           string  `json:"reason,omitempty"`
}

// EncodeEvent returns the JSON body published on Topic for a controller event.
func EncodeEvent(e logic.Event) ([]byte, error) {
	return json.Marshal(eventMessage{
		Actuator: eventBody{
			Timestamp:        e.Timestamp.UTC().Format(time.RFC3339),
			Event:            string(e.Type),
			Running:          e.Running,
			CycleWaitSeconds: e.CycleWait.Seconds(),
			Cycle:            e.Cycle,
			Reason:           e.Reason,
		},
	})
}

type notice struct {
	System noticeBody `json:"system"`
}

type noticeBody struct {
	Timestamp string     `json:"timestamp"`
	Event     SystemKind `json:"event"`
	Reason    string     `json:"reason,omitempty"`
}

// Encode returns the JSON body published on TopicSystem.
func (m SystemMessage) Encode() ([]byte, error) {
	if m.Snapshot != nil {
		return m.Snapshot, nil
	}
	return json.Marshal(notice{
		System: noticeBody{
			Timestamp: m.Time.UTC().Format(time.RFC3339),
			Event:     m.Kind,
			Reason:    m.Reason,
		},
	})
}
