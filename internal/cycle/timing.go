package cycle

import (
	"fmt"
	"time"
)

// Timing holds the cycle durations. Only Wait can change at runtime, via Configure.
type Timing struct {
	InitialRetract time.Duration // homing retract when a run starts
	Extend         time.Duration
	Retract        time.Duration
	Pause          time.Duration // between extend and retract
	Wait           time.Duration // between cycles (initial value)
}

// DefaultTiming returns the stock cycle durations.
func DefaultTiming() Timing {
	return Timing{
		InitialRetract: 5 * time.Second,
		Extend:         3 * time.Second,
		Retract:        3 * time.Second,
		Pause:          100 * time.Millisecond,
		Wait:           10 * time.Second,
	}
}

// Validate rejects negative durations.
func (t Timing) Validate() error {
	fields := []struct {
		name string
		d    time.Duration
	}{
		{"initial retract", t.InitialRetract},
		{"extend", t.Extend},
		{"retract", t.Retract},
		{"pause", t.Pause},
		{"wait", t.Wait},
	}
	for _, f := range fields {
		if f.d < 0 {
			return fmt.Errorf("timing: %s must be non-negative, got %v", f.name, f.d)
		}
	}
	return nil
}
