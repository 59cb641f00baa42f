// Package cycle runs the repeating extend/retract cycle of the actuator.
//
// A Controller owns the running flag and the inter-cycle wait time behind a
// single mutex. Start spawns at most one background loop; Stop flips the flag
// and forces the relays to Stop without waiting for the loop to notice.
// Holds and waits are not interruptible, so the loop exits at the next
// boundary after a stop. Every run begins with the homing retract, including
// one started while the previous run's loop is still winding down.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/actuator-control/internal/logic"
)

var (
	ErrAlreadyRunning = errors.New("actuator is already running")
	ErrNotRunning     = errors.New("actuator is not running")
	ErrNegativeWait   = errors.New("cycle wait time must be non-negative")
)

// Driver executes timed motions. Implemented by *actuator.Driver.
type Driver interface {
	// Drive applies intent for d then returns to Stop.
	// Returns actuator.ErrDisarmed without writing after ForceStop.
	Drive(intent logic.Intent, d time.Duration) error
	// ForceStop disarms the driver and writes Stop immediately.
	ForceStop() error
	// Arm re-enables Drive.
	Arm()
}

// Status is a point-in-time view of the controller.
type Status struct {
	Running   bool
	CycleWait time.Duration
	Cycles    int    // completed cycles in the current or last run
	LastFault string // driver fault that ended the last run, if any
}

// Controller is the actuator cycle state machine.
type Controller struct {
	driver Driver
	timing Timing
	sleep  func(time.Duration)
	now    func() time.Time
	notify func(logic.Event)

	mu        sync.Mutex
	running   bool
	wait      time.Duration
	done      chan struct{} // nil when no loop is alive, closed when it exits
	run       uint64        // bumped by every Start
	cycles    int
	lastFault string
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces time.Sleep for the pause and wait steps.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithNotify registers a callback for lifecycle events.
// It is called outside the controller lock, from whichever goroutine caused the event.
func WithNotify(notify func(logic.Event)) Option {
	return func(c *Controller) { c.notify = notify }
}

// New creates an idle controller.
func New(driver Driver, timing Timing, opts ...Option) (*Controller, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		driver: driver,
		timing: timing,
		sleep:  time.Sleep,
		now:    time.Now,
		wait:   timing.Wait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start begins cycling. Returns ErrAlreadyRunning if a run is active.
//
// If a loop from an earlier Stop is still finishing its hold or wait, it is
// taken over rather than spawning a second loop beside it: once that hold or
// wait ends, the loop starts the new run with the homing retract.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.run++
	c.cycles = 0
	c.lastFault = ""
	c.driver.Arm()
	if c.done == nil {
		c.done = make(chan struct{})
		go c.loop(c.done, c.run)
		log.Printf("cycle: started (wait=%v)", c.wait)
	} else {
		log.Printf("cycle: restarting winding-down loop from the homing retract (wait=%v)", c.wait)
	}
	ev := c.eventLocked(logic.EventStarted, "")
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// Stop ends cycling and forces the relays to Stop. Returns ErrNotRunning if
// idle, without touching the outputs. Does not wait for the loop to exit.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.running = false
	err := c.driver.ForceStop()
	ev := c.eventLocked(logic.EventStopped, "")
	c.mu.Unlock()

	log.Printf("cycle: stopped")
	c.emit(ev)
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Configure sets the inter-cycle wait. A wait already in progress keeps its
// original length; the loop picks up the new value at its next wait.
func (c *Controller) Configure(wait time.Duration) error {
	if wait < 0 {
		return ErrNegativeWait
	}
	c.mu.Lock()
	c.wait = wait
	ev := c.eventLocked(logic.EventWaitChanged, "")
	c.mu.Unlock()

	log.Printf("cycle: wait time set to %v", wait)
	c.emit(ev)
	return nil
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:   c.running,
		CycleWait: c.wait,
		Cycles:    c.cycles,
		LastFault: c.lastFault,
	}
}

// Done returns a channel that is closed once no loop is alive.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return closedCh
	}
	return c.done
}

// Shutdown forces the relays to Stop through the same path as Stop, whatever
// the current state, then waits for the loop to exit or ctx to expire.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	err := c.driver.ForceStop()
	done := c.done
	var ev logic.Event
	if wasRunning {
		ev = c.eventLocked(logic.EventStopped, "shutdown")
	}
	c.mu.Unlock()

	if wasRunning {
		c.emit(ev)
	}
	if err != nil {
		err = fmt.Errorf("shutdown: %w", err)
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return errors.Join(err, fmt.Errorf("waiting for cycle loop: %w", ctx.Err()))
		}
	}
	return err
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (c *Controller) eventLocked(t logic.EventType, reason string) logic.Event {
	return logic.Event{
		Timestamp: c.now(),
		Type:      t,
		Running:   c.running,
		CycleWait: c.wait,
		Cycle:     c.cycles,
		Reason:    reason,
	}
}

func (c *Controller) emit(ev logic.Event) {
	if c.notify != nil {
		c.notify(ev)
	}
}
