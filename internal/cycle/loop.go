package cycle

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/actuator-control/internal/actuator"
	"github.com/sweeney/actuator-control/internal/logic"
)

// verdict is what the loop does at a boundary.
type verdict int

const (
	carryOn verdict = iota
	rehome          // a newer Start took over; begin again with the homing retract
	retire          // stopped or faulted; the loop has been retired
)

// loop runs background cycles until the running flag clears or the driver
// faults. done identifies this loop and is closed on exit. run is the Start
// generation the loop is currently serving.
func (c *Controller) loop(done chan struct{}, run uint64) {
	for c.runOnce(done, &run) == rehome {
	}
}

// runOnce drives one run from the homing retract until it is stopped,
// faults or is taken over by a newer Start.
func (c *Controller) runOnce(done chan struct{}, run *uint64) verdict {
	if v := c.step(done, run, logic.Retract, c.timing.InitialRetract); v != carryOn {
		return v
	}

	for {
		wait, v := c.nextWait(done, run)
		if v != carryOn {
			return v
		}
		c.sleep(wait)

		if v := c.step(done, run, logic.Extend, c.timing.Extend); v != carryOn {
			return v
		}
		if v := c.check(done, run); v != carryOn {
			return v
		}
		c.sleep(c.timing.Pause)
		if v := c.step(done, run, logic.Retract, c.timing.Retract); v != carryOn {
			return v
		}
		if v := c.completeCycle(run); v != carryOn {
			return v
		}
	}
}

// step drives one motion if the run is still current.
func (c *Controller) step(done chan struct{}, run *uint64, intent logic.Intent, dur time.Duration) verdict {
	for {
		if v := c.check(done, run); v != carryOn {
			return v
		}
		err := c.driver.Drive(intent, dur)
		if err == nil {
			return carryOn
		}
		if errors.Is(err, actuator.ErrDisarmed) {
			// Stopped between the check and the drive. The next check
			// either retires the loop or hands it to a newer run.
			continue
		}
		c.fault(done, intent, err)
		return retire
	}
}

// check reports whether the loop should carry on. When stopped it retires the
// loop under the same lock, so a concurrent Start either sees it alive (and
// takes it over) or gone (and spawns a new one).
func (c *Controller) check(done chan struct{}, run *uint64) verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked(done, run)
}

func (c *Controller) checkLocked(done chan struct{}, run *uint64) verdict {
	if !c.running {
		c.retireLocked(done)
		return retire
	}
	if c.run != *run {
		*run = c.run
		log.Printf("cycle: run %d taking over, homing", c.run)
		return rehome
	}
	return carryOn
}

// nextWait reads the current wait time if the run is still current.
func (c *Controller) nextWait(done chan struct{}, run *uint64) (time.Duration, verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.checkLocked(done, run); v != carryOn {
		return 0, v
	}
	return c.wait, carryOn
}

// completeCycle counts a finished cycle against the run that drove it. A
// cycle finished after a newer Start belongs to no run and is not counted.
func (c *Controller) completeCycle(run *uint64) verdict {
	c.mu.Lock()
	if c.run != *run {
		*run = c.run
		c.mu.Unlock()
		return rehome
	}
	c.cycles++
	ev := c.eventLocked(logic.EventCycle, "")
	c.mu.Unlock()

	log.Printf("cycle: completed cycle #%d", ev.Cycle)
	c.emit(ev)
	return carryOn
}

// fault ends the run after a driver error. The forced stop is best effort:
// ForceStop retries a bounded number of times and the failure is logged.
func (c *Controller) fault(done chan struct{}, intent logic.Intent, err error) {
	c.mu.Lock()
	c.running = false
	stopErr := c.driver.ForceStop()
	c.lastFault = err.Error()
	c.retireLocked(done)
	ev := c.eventLocked(logic.EventFault, c.lastFault)
	c.mu.Unlock()

	log.Printf("cycle: driver fault during %s, run ended: %v", intent, err)
	if stopErr != nil {
		log.Printf("cycle: forced stop after fault failed: %v", stopErr)
	}
	c.emit(ev)
}

func (c *Controller) retireLocked(done chan struct{}) {
	if c.done == done {
		close(done)
		c.done = nil
	}
}
