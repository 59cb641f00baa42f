// Package status provides a thread-safe status tracker for the actuator-control daemon.
// It is read by HTTP handlers and used to build MQTT system payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/actuator-control/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PinA             int
	PinB             int
	ActiveLow        bool
	InitialRetractMs int64
	ExtendMs         int64
	RetractMs        int64
	PauseMs          int64
	HeartbeatMs      int64
	Broker           string
	HTTPAddr         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Running       bool
	CycleWait     time.Duration
	Cycles        int
	LastFault     string
	LastEvent     *logic.Event
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller state.
func (t *Tracker) Update(running bool, wait time.Duration, cycles int, lastFault string) {
	t.mu.Lock()
	t.snap.Running = running
	t.snap.CycleWait = wait
	t.snap.Cycles = cycles
	t.snap.LastFault = lastFault
	t.mu.Unlock()
}

// Record counts a controller event and takes its state as current.
func (t *Tracker) Record(e logic.Event) {
	t.mu.Lock()
	t.snap.Counts.Count(e)
	t.snap.Running = e.Running
	t.snap.CycleWait = e.CycleWait
	t.snap.Cycles = e.Cycle
	switch e.Type {
	case logic.EventFault:
		t.snap.LastFault = e.Reason
	case logic.EventStarted:
		t.snap.LastFault = ""
	}
	ev := e
	t.snap.LastEvent = &ev
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
