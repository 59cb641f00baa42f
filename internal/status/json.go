package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Actuator      ActuatorJSON   `json:"actuator"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// ActuatorJSON reports the cycle controller state.
type ActuatorJSON struct {
	Running          bool    `json:"running"`
	CycleWaitSeconds float64 `json:"cycle_wait_time"`
	Cycles           int     `json:"cycles"`
	LastFault        string  `json:"last_fault,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Starts int `json:"starts"`
	Stops  int `json:"stops"`
	Cycles int `json:"cycles"`
	Faults int `json:"faults"`
}

// LastEventJSON is the most recent controller event.
type LastEventJSON struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PinA             int    `json:"pin_a"`
	PinB             int    `json:"pin_b"`
	ActiveLow        bool   `json:"active_low"`
	InitialRetractMs int64  `json:"initial_retract_ms"`
	ExtendMs         int64  `json:"extend_ms"`
	RetractMs        int64  `json:"retract_ms"`
	PauseMs          int64  `json:"pause_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Actuator: ActuatorJSON{
			Running:          snap.Running,
			CycleWaitSeconds: snap.CycleWait.Seconds(),
			Cycles:           snap.Cycles,
			LastFault:        snap.LastFault,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Starts: snap.Counts.Starts,
			Stops:  snap.Counts.Stops,
			Cycles: snap.Counts.Cycles,
			Faults: snap.Counts.Faults,
		},
		Config: ConfigJSON{
			PinA:             snap.Config.PinA,
			PinB:             snap.Config.PinB,
			ActiveLow:        snap.Config.ActiveLow,
			InitialRetractMs: snap.Config.InitialRetractMs,
			ExtendMs:         snap.Config.ExtendMs,
			RetractMs:        snap.Config.RetractMs,
			PauseMs:          snap.Config.PauseMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}

	if snap.LastEvent != nil {
		inner.LastEvent = &LastEventJSON{
			Type:      string(snap.LastEvent.Type),
			Timestamp: snap.LastEvent.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
