package logic

import "testing"

func TestEncodeTruthTable(t *testing.T) {
	tests := []struct {
		intent Intent
		want   Levels
	}{
		{Stop, Levels{A: true, B: false}},
		{Extend, Levels{A: true, B: true}},
		{Retract, Levels{A: false, B: false}},
	}

	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			got := Encode(tt.intent)
			if got != tt.want {
				t.Errorf("Encode(%s): got %+v, want %+v", tt.intent, got, tt.want)
			}
			// Same intent twice yields identical levels
			if again := Encode(tt.intent); again != got {
				t.Errorf("Encode(%s) not idempotent: %+v then %+v", tt.intent, got, again)
			}
		})
	}
}

func TestEncodeUnknownIsStop(t *testing.T) {
	if got := Encode(Intent(42)); !got.IsStop() {
		t.Errorf("unknown intent: got %+v, want stop levels", got)
	}
}

func TestStopLevelsDiffer(t *testing.T) {
	stop := Encode(Stop)
	if stop.A == stop.B {
		t.Error("stop levels must differ so a stuck pair is distinguishable from idle")
	}
	for _, i := range []Intent{Extend, Retract} {
		l := Encode(i)
		if l.A != l.B {
			t.Errorf("%s: expected matching levels, got %+v", i, l)
		}
		if l.IsStop() {
			t.Errorf("%s: must not encode as stop", i)
		}
	}
}

func TestIntentString(t *testing.T) {
	want := map[Intent]string{Stop: "STOP", Extend: "EXTEND", Retract: "RETRACT", Intent(9): "STOP"}
	for i, s := range want {
		if i.String() != s {
			t.Errorf("Intent(%d).String(): got %q, want %q", int(i), i.String(), s)
		}
	}
}

func TestEventCountsCount(t *testing.T) {
	var c EventCounts
	for _, typ := range []EventType{EventStarted, EventCycle, EventCycle, EventWaitChanged, EventFault, EventStopped} {
		c.Count(Event{Type: typ})
	}

	want := EventCounts{Starts: 1, Stops: 1, Cycles: 2, Faults: 1}
	if c != want {
		t.Errorf("counts: got %+v, want %+v", c, want)
	}
}
