package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/actuator-control/internal/actuator"
	"github.com/sweeney/actuator-control/internal/gpio"
	"github.com/sweeney/actuator-control/internal/logic"
)

// Distinct durations so each blocking point is identifiable.
var testTiming = Timing{
	InitialRetract: 7 * time.Second,
	Extend:         2 * time.Second,
	Retract:        3 * time.Second,
	Pause:          100 * time.Millisecond,
	Wait:           10 * time.Second,
}

// gate is a sleep func that blocks every call until the test releases it.
// It stands in for both the driver's holds and the controller's waits.
type gate struct {
	calls   chan time.Duration
	release chan struct{}
}

func newGate() *gate {
	return &gate{calls: make(chan time.Duration), release: make(chan struct{})}
}

func (g *gate) sleep(d time.Duration) {
	g.calls <- d
	<-g.release
}

// next waits for the loop to block on a sleep and returns its duration.
func (g *gate) next(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-g.calls:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the loop to sleep")
		return 0
	}
}

func (g *gate) pass() {
	g.release <- struct{}{}
}

// expect asserts the next blocking sleep has duration want, then releases it.
func (g *gate) expect(t *testing.T, want time.Duration) {
	t.Helper()
	if got := g.next(t); got != want {
		t.Fatalf("sleep: got %v, want %v", got, want)
	}
	g.pass()
}

// events collects notifications from any goroutine.
type events struct {
	mu   sync.Mutex
	list []logic.Event
}

func (e *events) record(ev logic.Event) {
	e.mu.Lock()
	e.list = append(e.list, ev)
	e.mu.Unlock()
}

func (e *events) types() []logic.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []logic.EventType
	for _, ev := range e.list {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	c   *Controller
	out *gpio.FakeOutput
	g   *gate
	ev  *events
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	out := gpio.NewFakeOutput()
	g := newGate()
	ev := &events{}
	drv := actuator.NewDriver(out, actuator.WithSleep(g.sleep))
	c, err := New(drv, testTiming, WithSleep(g.sleep), WithNotify(ev.record))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := &harness{c: c, out: out, g: g, ev: ev}
	t.Cleanup(func() { h.drain(t) })
	return h
}

// drain stops the controller and releases sleeps until the loop exits.
func (h *harness) drain(t *testing.T) {
	h.c.Stop()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-h.c.Done():
			return
		case <-h.g.calls:
			h.g.pass()
		case <-deadline:
			t.Error("cycle loop did not exit")
			return
		}
	}
}

func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loop exit")
	}
}

func assertPairs(t *testing.T, out *gpio.FakeOutput, want ...logic.Intent) {
	t.Helper()
	pairs := gpio.Pairs(out.Writes())
	if len(pairs) != len(want) {
		t.Fatalf("expected %d level pairs, got %d: %+v", len(want), len(pairs), pairs)
	}
	for i, intent := range want {
		if pairs[i] != logic.Encode(intent) {
			t.Errorf("pair %d: got %+v, want %s %+v", i, pairs[i], intent, logic.Encode(intent))
		}
	}
}

func TestNewIdle(t *testing.T) {
	h := newHarness(t)

	st := h.c.Status()
	if st.Running {
		t.Error("expected idle controller")
	}
	if st.CycleWait != testTiming.Wait {
		t.Errorf("CycleWait: got %v, want %v", st.CycleWait, testTiming.Wait)
	}
	select {
	case <-h.c.Done():
	default:
		t.Error("Done should be closed when no loop is alive")
	}
}

func TestNewRejectsNegativeTiming(t *testing.T) {
	bad := testTiming
	bad.Pause = -time.Second
	if _, err := New(actuator.NewDriver(gpio.NewFakeOutput()), bad); err == nil {
		t.Error("expected error for negative pause")
	}
}

func TestStartFirstActionIsInitialRetract(t *testing.T) {
	h := newHarness(t)

	if err := h.c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.c.Status().Running {
		t.Error("expected running after Start")
	}

	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("first hold: got %v, want initial retract %v", got, testTiming.InitialRetract)
	}
	if h.out.Levels() != logic.Encode(logic.Retract) {
		t.Errorf("expected retract levels during first hold, got %+v", h.out.Levels())
	}
	h.g.pass()

	// Then the inter-cycle wait, with the relays stopped.
	if got := h.g.next(t); got != testTiming.Wait {
		t.Fatalf("second sleep: got %v, want wait %v", got, testTiming.Wait)
	}
	if !h.out.Levels().IsStop() {
		t.Errorf("expected stop levels during wait, got %+v", h.out.Levels())
	}
	if !h.c.Status().Running {
		t.Error("expected still running until Stop")
	}
	h.g.pass()

	assertPairs(t, h.out, logic.Retract, logic.Stop)
}

func TestFullCycleSequence(t *testing.T) {
	h := newHarness(t)
	h.c.Start()

	h.g.expect(t, testTiming.InitialRetract)
	h.g.expect(t, testTiming.Wait)
	h.g.expect(t, testTiming.Extend)
	h.g.expect(t, testTiming.Pause)
	h.g.expect(t, testTiming.Retract)

	// Next blocking point is the following wait.
	if got := h.g.next(t); got != testTiming.Wait {
		t.Fatalf("after cycle: got %v, want wait", got)
	}

	if st := h.c.Status(); st.Cycles != 1 {
		t.Errorf("Cycles: got %d, want 1", st.Cycles)
	}
	assertPairs(t, h.out,
		logic.Retract, logic.Stop,
		logic.Extend, logic.Stop,
		logic.Retract, logic.Stop,
	)
	h.g.pass()
}

func TestDoubleStartSpawnsOneLoop(t *testing.T) {
	h := newHarness(t)

	if err := h.c.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := h.c.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start: got %v, want ErrAlreadyRunning", err)
	}

	h.g.expect(t, testTiming.InitialRetract)
	h.g.expect(t, testTiming.Wait)
	h.g.expect(t, testTiming.Extend)
	h.g.expect(t, testTiming.Pause)
	h.g.expect(t, testTiming.Retract)
	if got := h.g.next(t); got != testTiming.Wait {
		t.Fatalf("got %v, want wait", got)
	}

	// Exactly one sequence of level writes.
	assertPairs(t, h.out,
		logic.Retract, logic.Stop,
		logic.Extend, logic.Stop,
		logic.Retract, logic.Stop,
	)

	select {
	case d := <-h.g.calls:
		t.Fatalf("unexpected second sleeper blocked for %v", d)
	case <-time.After(20 * time.Millisecond):
	}
	h.g.pass()
}

func TestConcurrentStartsSingleWinner(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, already := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.c.Start()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyRunning):
				already++
			}
		}()
	}
	wg.Wait()

	if wins != 1 || already != 19 {
		t.Errorf("got %d successes and %d already-running, want 1 and 19", wins, already)
	}
}

func TestStopWhileIdle(t *testing.T) {
	h := newHarness(t)

	if err := h.c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop: got %v, want ErrNotRunning", err)
	}
	if h.out.WriteCount() != 0 {
		t.Errorf("Stop while idle wrote %d levels, want 0", h.out.WriteCount())
	}
}

func TestStopDuringHold(t *testing.T) {
	h := newHarness(t)
	h.c.Start()

	// The initial retract hold is in progress.
	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("got %v, want initial retract", got)
	}

	// Stop returns immediately even though the loop is blocked in its hold.
	if err := h.c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.c.Status().Running {
		t.Error("expected running=false right after Stop")
	}
	if !h.out.Levels().IsStop() {
		t.Errorf("expected forced stop levels while hold continues, got %+v", h.out.Levels())
	}

	h.g.pass()
	waitDone(t, h.c)

	// motion -> forced stop -> stop at end of hold
	assertPairs(t, h.out, logic.Retract, logic.Stop, logic.Stop)

	before := h.out.WriteCount()
	if err := h.c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop: got %v, want ErrNotRunning", err)
	}
	if h.out.WriteCount() != before {
		t.Error("second Stop must not write")
	}
}

func TestStopDuringWaitNoFurtherMotion(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	h.g.expect(t, testTiming.InitialRetract)

	if got := h.g.next(t); got != testTiming.Wait {
		t.Fatalf("got %v, want wait", got)
	}
	h.c.Stop()
	h.g.pass()
	waitDone(t, h.c)

	// No extend after the stop.
	assertPairs(t, h.out, logic.Retract, logic.Stop, logic.Stop)
}

func TestConfigureAppliesAtNextWait(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	h.g.expect(t, testTiming.InitialRetract)

	// A 10s wait is in progress when the new value arrives.
	if got := h.g.next(t); got != 10*time.Second {
		t.Fatalf("got %v, want 10s wait", got)
	}
	if err := h.c.Configure(3 * time.Second); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := h.c.Status().CycleWait; got != 3*time.Second {
		t.Errorf("status CycleWait: got %v, want 3s", got)
	}
	h.g.pass()

	h.g.expect(t, testTiming.Extend)
	h.g.expect(t, testTiming.Pause)
	h.g.expect(t, testTiming.Retract)

	if got := h.g.next(t); got != 3*time.Second {
		t.Fatalf("next wait: got %v, want 3s", got)
	}
	h.g.pass()
}

func TestConfigureNegativeRejected(t *testing.T) {
	h := newHarness(t)

	if err := h.c.Configure(-time.Second); !errors.Is(err, ErrNegativeWait) {
		t.Fatalf("got %v, want ErrNegativeWait", err)
	}
	if got := h.c.Status().CycleWait; got != testTiming.Wait {
		t.Errorf("CycleWait changed to %v", got)
	}

	if err := h.c.Configure(0); err != nil {
		t.Errorf("zero wait should be accepted: %v", err)
	}
	if got := h.c.Status().CycleWait; got != 0 {
		t.Errorf("CycleWait: got %v, want 0", got)
	}
}

func TestDriverFaultEndsRun(t *testing.T) {
	h := newHarness(t)
	h.c.Start()

	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("got %v, want initial retract", got)
	}
	boom := errors.New("line lost")
	h.out.FailWith(boom)
	h.g.pass()
	waitDone(t, h.c)

	st := h.c.Status()
	if st.Running {
		t.Error("expected running=false after fault")
	}
	if st.LastFault == "" {
		t.Error("expected LastFault to be recorded")
	}

	// A later Start retries.
	h.out.FailWith(nil)
	if err := h.c.Start(); err != nil {
		t.Fatalf("Start after fault: %v", err)
	}
	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("retry: got %v, want initial retract", got)
	}
	if h.c.Status().LastFault != "" {
		t.Error("LastFault should clear on a new run")
	}
	h.g.pass()

	types := h.ev.types()
	found := false
	for _, typ := range types {
		if typ == logic.EventFault {
			found = true
		}
	}
	if !found {
		t.Errorf("expected FAULT event, got %v", types)
	}
}

func TestRestartDuringHomingHoldsHomesAgain(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	loopDone := h.c.Done()

	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("got %v, want initial retract", got)
	}
	h.c.Stop()
	if err := h.c.Start(); err != nil {
		t.Fatalf("Start while winding down: %v", err)
	}
	if h.c.Done() != loopDone {
		t.Error("restart spawned a second loop")
	}
	h.g.pass()

	// The new run begins with its own homing retract, not the old run's wait.
	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("restart: got %v, want initial retract", got)
	}
	h.g.pass()
	h.g.expect(t, testTiming.Wait)
	if got := h.g.next(t); got != testTiming.Extend {
		t.Fatalf("got %v, want extend", got)
	}

	// Retract (held), forced Stop, Stop at hold end, Retract (new run), Stop,
	// Extend (held).
	assertPairs(t, h.out, logic.Retract, logic.Stop, logic.Stop, logic.Retract, logic.Stop, logic.Extend)
	h.g.pass()
}

func TestRestartDuringWaitResetsRun(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	h.g.expect(t, testTiming.InitialRetract)
	h.g.expect(t, testTiming.Wait)
	h.g.expect(t, testTiming.Extend)
	h.g.expect(t, testTiming.Pause)
	h.g.expect(t, testTiming.Retract)
	if got := h.g.next(t); got != testTiming.Wait {
		t.Fatalf("got %v, want wait", got)
	}
	if got := h.c.Status().Cycles; got != 1 {
		t.Fatalf("Cycles: got %d, want 1", got)
	}

	h.c.Stop()
	if err := h.c.Start(); err != nil {
		t.Fatalf("Start while winding down: %v", err)
	}
	if got := h.c.Status().Cycles; got != 0 {
		t.Errorf("Cycles after restart: got %d, want 0", got)
	}
	h.g.pass()

	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("after wait: got %v, want initial retract of the new run", got)
	}
	h.g.pass()

	want := []logic.EventType{logic.EventStarted, logic.EventCycle, logic.EventStopped, logic.EventStarted}
	got := h.ev.types()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestShutdownForcesStop(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("got %v, want initial retract", got)
	}

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errCh <- h.c.Shutdown(ctx)
	}()

	// Shutdown forces stop levels before waiting on the loop.
	deadline := time.Now().Add(2 * time.Second)
	for h.c.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("Shutdown did not clear running")
		}
		time.Sleep(time.Millisecond)
	}
	if !h.out.Levels().IsStop() {
		t.Errorf("expected stop levels, got %+v", h.out.Levels())
	}

	h.g.pass()
	if err := <-errCh; err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestShutdownIdleWritesStop(t *testing.T) {
	h := newHarness(t)

	if err := h.c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !h.out.Levels().IsStop() {
		t.Errorf("expected stop levels, got %+v", h.out.Levels())
	}
	if len(h.ev.types()) != 0 {
		t.Errorf("idle shutdown should not emit events, got %v", h.ev.types())
	}
}

func TestShutdownContextExpires(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	if got := h.g.next(t); got != testTiming.InitialRetract {
		t.Fatalf("got %v, want initial retract", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.c.Shutdown(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	h.g.pass()
}

func TestEventsEmitted(t *testing.T) {
	h := newHarness(t)
	h.c.Start()
	h.g.expect(t, testTiming.InitialRetract)
	h.g.expect(t, testTiming.Wait)
	h.g.expect(t, testTiming.Extend)
	h.g.expect(t, testTiming.Pause)
	h.g.expect(t, testTiming.Retract)
	if got := h.g.next(t); got != testTiming.Wait {
		t.Fatalf("got %v, want wait", got)
	}
	h.c.Configure(time.Second)
	h.c.Stop()
	h.g.pass()
	waitDone(t, h.c)

	want := []logic.EventType{logic.EventStarted, logic.EventCycle, logic.EventWaitChanged, logic.EventStopped}
	got := h.ev.types()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTimingValidate(t *testing.T) {
	if err := DefaultTiming().Validate(); err != nil {
		t.Errorf("default timing invalid: %v", err)
	}
	bad := DefaultTiming()
	bad.Wait = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative wait")
	}
}
