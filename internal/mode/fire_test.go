package mode

import (
	"testing"
	"time"
)

func TestFireAfterTimeout(t *testing.T) {
	s := DefaultSettings()
	s.FireMode = FireAfterTimeout
	s.PressDurationMin = 100 * time.Millisecond
	var f fireState

	t0 := time.Now()
	if _, ok := f.feed(s, 1, t0); ok {
		t.Fatal("press must be swallowed")
	}
	if _, ok := f.poll(s, t0.Add(50*time.Millisecond)); ok {
		t.Fatal("no fire before timeout")
	}
	v, ok := f.poll(s, t0.Add(150*time.Millisecond))
	if !ok {
		t.Fatal("fire due after timeout")
	}
	if v != 1 {
		t.Errorf("fired value should keep press value, got %v", v)
	}
	if _, ok := f.poll(s, t0.Add(200*time.Millisecond)); ok {
		t.Error("must fire only once")
	}
}

func TestFireAfterTimeoutCancelledByRelease(t *testing.T) {
	s := DefaultSettings()
	s.FireMode = FireAfterTimeout
	s.PressDurationMin = 100 * time.Millisecond
	var f fireState

	t0 := time.Now()
	f.feed(s, 1, t0)
	f.feed(s, 0, t0.Add(50*time.Millisecond))
	if _, ok := f.poll(s, t0.Add(150*time.Millisecond)); ok {
		t.Error("release before timeout cancels the fire")
	}
}

func TestFireAfterTimeoutKeepFiring(t *testing.T) {
	s := DefaultSettings()
	s.FireMode = FireAfterTimeoutKeepFiring
	s.PressDurationMin = 100 * time.Millisecond
	s.TurboRate = 50 * time.Millisecond
	var f fireState

	t0 := time.Now()
	f.feed(s, 1, t0)
	if _, ok := f.poll(s, t0.Add(100*time.Millisecond)); !ok {
		t.Fatal("initial fire after timeout")
	}
	if _, ok := f.poll(s, t0.Add(120*time.Millisecond)); ok {
		t.Fatal("turbo rate not yet elapsed")
	}
	if _, ok := f.poll(s, t0.Add(160*time.Millisecond)); !ok {
		t.Fatal("turbo fire due")
	}
	f.feed(s, 0, t0.Add(170*time.Millisecond))
	if _, ok := f.poll(s, t0.Add(300*time.Millisecond)); ok {
		t.Error("release stops turbo firing")
	}
}

func TestFireOnSinglePressWindow(t *testing.T) {
	s := DefaultSettings()
	s.FireMode = FireOnSinglePress
	s.PressDurationMin = 50 * time.Millisecond
	s.PressDurationMax = 200 * time.Millisecond
	var f fireState

	t0 := time.Now()
	f.feed(s, 0.8, t0)
	v, ok := f.feed(s, 0, t0.Add(100*time.Millisecond))
	if !ok {
		t.Fatal("press within window fires on release")
	}
	if v != 0.8 {
		t.Errorf("fired value should keep press value, got %v", v)
	}

	// Too short.
	f.feed(s, 1, t0)
	if _, ok := f.feed(s, 0, t0.Add(20*time.Millisecond)); ok {
		t.Error("press shorter than minimum must not fire")
	}

	// Too long.
	f.feed(s, 1, t0)
	if _, ok := f.feed(s, 0, t0.Add(300*time.Millisecond)); ok {
		t.Error("press longer than maximum must not fire")
	}
}

func TestFireOnDoublePress(t *testing.T) {
	s := DefaultSettings()
	s.FireMode = FireOnDoublePress
	var f fireState

	t0 := time.Now()
	if _, ok := f.feed(s, 1, t0); ok {
		t.Fatal("first press alone must not fire")
	}
	if _, ok := f.feed(s, 1, t0.Add(150*time.Millisecond)); !ok {
		t.Fatal("second press within the window fires")
	}
	// The pair is consumed; a third press starts over.
	if _, ok := f.feed(s, 1, t0.Add(250*time.Millisecond)); ok {
		t.Error("third press starts a new pair")
	}
}

func TestFireOnDoublePressTooSlow(t *testing.T) {
	s := DefaultSettings()
	s.FireMode = FireOnDoublePress
	var f fireState

	t0 := time.Now()
	f.feed(s, 1, t0)
	if _, ok := f.feed(s, 1, t0.Add(time.Second)); ok {
		t.Error("presses further apart than the window must not fire")
	}
}
