// Package actuator executes timed motions on a two-channel relay actuator.
// The Driver owns every write to the relay outputs.
package actuator

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/actuator-control/internal/gpio"
	"github.com/sweeney/actuator-control/internal/logic"
)

// ErrDisarmed is returned by Drive after ForceStop until the driver is re-armed.
var ErrDisarmed = errors.New("actuator: driver disarmed")

// DefaultStopAttempts bounds the retries of a failing forced stop.
const DefaultStopAttempts = 3

// Driver applies motions to the relay outputs.
//
// Both channel writes of a level change happen under one lock, so a forced
// stop from another goroutine lands either before or after a motion write,
// never between its two halves.
type Driver struct {
	out          gpio.Output
	sleep        func(time.Duration)
	stopAttempts int

	mu    sync.Mutex
	armed bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithSleep replaces time.Sleep for motion holds.
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = sleep }
}

// WithStopAttempts sets how many times ForceStop tries the stop write.
func WithStopAttempts(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.stopAttempts = n
		}
	}
}

// NewDriver creates an armed driver on the given output.
func NewDriver(out gpio.Output, opts ...Option) *Driver {
	d := &Driver{
		out:          out,
		sleep:        time.Sleep,
		stopAttempts: DefaultStopAttempts,
		armed:        true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Drive applies intent, holds it for dur, then returns to Stop.
//
// The hold is not interruptible: a ForceStop during the hold writes Stop
// immediately, and Drive writes Stop again when the hold ends. On return the
// outputs are at the Stop levels unless the stop write itself failed.
func (d *Driver) Drive(intent logic.Intent, dur time.Duration) error {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return ErrDisarmed
	}
	err := d.apply(intent)
	if err != nil {
		// Don't hold a half-applied motion.
		stopErr := d.apply(logic.Stop)
		d.mu.Unlock()
		return errors.Join(fmt.Errorf("apply %s: %w", intent, err), stopErr)
	}
	d.mu.Unlock()

	if dur > 0 {
		d.sleep(dur)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.apply(logic.Stop); err != nil {
		return fmt.Errorf("stop after %s: %w", intent, err)
	}
	return nil
}

// Apply writes intent's levels immediately with no hold. Used to put the
// relays in a known state at startup; ignores the armed gate.
func (d *Driver) Apply(intent logic.Intent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apply(intent)
}

// ForceStop disarms the driver and writes the Stop levels.
// A failing write is retried up to the configured attempts, then given up.
func (d *Driver) ForceStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = false

	var err error
	for attempt := 1; attempt <= d.stopAttempts; attempt++ {
		if err = d.apply(logic.Stop); err == nil {
			return nil
		}
		log.Printf("actuator: forced stop attempt %d/%d failed: %v", attempt, d.stopAttempts, err)
	}
	return fmt.Errorf("forced stop: %w", err)
}

// Arm re-enables Drive after a ForceStop.
func (d *Driver) Arm() {
	d.mu.Lock()
	d.armed = true
	d.mu.Unlock()
}

// Armed reports whether Drive will apply motions.
func (d *Driver) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// apply writes both channels. Caller must hold d.mu.
func (d *Driver) apply(intent logic.Intent) error {
	l := logic.Encode(intent)
	if err := d.out.Set(gpio.ChannelA, l.A); err != nil {
		return fmt.Errorf("channel A: %w", err)
	}
	if err := d.out.Set(gpio.ChannelB, l.B); err != nil {
		return fmt.Errorf("channel B: %w", err)
	}
	return nil
}
