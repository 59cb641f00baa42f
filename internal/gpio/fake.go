package gpio

import (
	"sync"

	"github.com/sweeney/actuator-control/internal/logic"
)

// Write is a single recorded channel write.
type Write struct {
	Channel Channel
	Active  bool
}

// FakeOutput is a test double that records every write.
// Safe for concurrent use: the control loop and request handlers write from
// different goroutines.
type FakeOutput struct {
	mu     sync.Mutex
	writes []Write
	levels logic.Levels
	closed bool

	// failure injection
	err       error
	failAfter int // writes allowed before err is returned; <0 = immediately
	failing   bool
}

// NewFakeOutput creates a FakeOutput with both channels inactive.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the write and updates the current levels.
func (f *FakeOutput) Set(ch Channel, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		if f.failAfter <= 0 {
			return f.err
		}
		f.failAfter--
	}

	f.writes = append(f.writes, Write{Channel: ch, Active: active})
	if ch == ChannelB {
		f.levels.B = active
	} else {
		f.levels.A = active
	}
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// FailWith makes every subsequent Set return err. A nil err clears the failure.
func (f *FakeOutput) FailWith(err error) {
	f.FailAfter(0, err)
}

// FailAfter lets n more writes succeed, then makes Set return err.
func (f *FakeOutput) FailAfter(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	f.failAfter = n
	f.failing = err != nil
}

// Writes returns a copy of all recorded writes.
func (f *FakeOutput) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// WriteCount returns the number of recorded writes.
func (f *FakeOutput) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// Levels returns the current channel levels.
func (f *FakeOutput) Levels() logic.Levels {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded writes and failure injection.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.levels = logic.Levels{}
	f.closed = false
	f.err = nil
	f.failing = false
	f.failAfter = 0
}

// Pairs folds recorded writes into level pairs, one per A-then-B write sequence.
// Useful for asserting the order of motions applied by the driver.
func Pairs(writes []Write) []logic.Levels {
	var out []logic.Levels
	for i := 0; i+1 < len(writes); {
		if writes[i].Channel != ChannelA || writes[i+1].Channel != ChannelB {
			i++
			continue
		}
		out = append(out, logic.Levels{A: writes[i].Active, B: writes[i+1].Active})
		i += 2
	}
	return out
}
