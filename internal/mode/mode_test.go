package mode

import (
	"testing"
	"time"

	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/unit"
)

// fakeTarget is a minimal transform target for tests.
type fakeTarget struct {
	value     unit.Value
	hasValue  bool
	character TargetCharacter
	count     int
}

func newFakeTarget(v unit.Value) *fakeTarget {
	return &fakeTarget{value: v, hasValue: true, character: TargetContinuous}
}

func (t *fakeTarget) CurrentValue() (unit.AbsoluteValue, bool) {
	return unit.ContinuousValue(t.value), t.hasValue
}
func (t *fakeTarget) Character() TargetCharacter { return t.character }
func (t *fakeTarget) DiscreteCount() int         { return t.count }

var rangeChars = []source.Character{source.CharacterRange}
var buttonChars = []source.Character{source.CharacterMomentaryButton}
var encoderChars = []source.Character{source.CharacterRelative}

func TestAbsoluteNormalPassthrough(t *testing.T) {
	m := New(DefaultSettings(), rangeChars)
	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(0.5), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.5 {
		t.Errorf("expected 0.5, got %v", out.Unit())
	}
}

func TestSourceIntervalNormalization(t *testing.T) {
	s := DefaultSettings()
	s.SourceInterval = unit.NewInterval(0.25, 0.75)
	m := New(s, rangeChars)
	tg := newFakeTarget(0)

	out, ok := m.Control(unit.AbsoluteContinuous(0.5), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.5 {
		t.Errorf("expected 0.5, got %v", out.Unit())
	}

	// Below the interval: clamps to the minimum, normalizing to 0.
	out, ok = m.Control(unit.AbsoluteContinuous(0.1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0 {
		t.Errorf("expected 0, got %v", out.Unit())
	}
}

func TestOutOfRangeIgnore(t *testing.T) {
	s := DefaultSettings()
	s.SourceInterval = unit.NewInterval(0.25, 0.75)
	s.OutOfRangeBehavior = OutOfRangeIgnore
	m := New(s, rangeChars)
	tg := newFakeTarget(0)
	if _, ok := m.Control(unit.AbsoluteContinuous(0.1), tg, time.Now()); ok {
		t.Error("value below source interval should be ignored")
	}
}

func TestReverse(t *testing.T) {
	s := DefaultSettings()
	s.Reverse = true
	m := New(s, rangeChars)
	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(0.25), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.75 {
		t.Errorf("expected 0.75, got %v", out.Unit())
	}
}

func TestTargetIntervalDenormalization(t *testing.T) {
	s := DefaultSettings()
	s.TargetInterval = unit.NewInterval(0.2, 0.6)
	m := New(s, rangeChars)
	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(0.5), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if got := out.Unit(); got < 0.3999 || got > 0.4001 {
		t.Errorf("expected 0.4, got %v", got)
	}
}

func TestToggleButton(t *testing.T) {
	s := DefaultSettings()
	s.AbsoluteMode = ToggleButton
	m := New(s, buttonChars)

	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 1 {
		t.Errorf("toggle from off: expected 1, got %v", out.Unit())
	}

	tg.value = 1
	out, ok = m.Control(unit.AbsoluteContinuous(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0 {
		t.Errorf("toggle from on: expected 0, got %v", out.Unit())
	}

	// Releases never toggle.
	if _, ok := m.Control(unit.AbsoluteContinuous(0), tg, time.Now()); ok {
		t.Error("release should not toggle")
	}
}

func TestRelativeEncoderSpeed(t *testing.T) {
	s := DefaultSettings()
	s.StepInterval = unit.NewSoftSymmetricInterval(0.01, 0.05)
	m := New(s, encoderChars)
	tg := newFakeTarget(0.5)

	// Slow turn: minimum step size.
	out, ok := m.Control(unit.Relative(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if got := out.Unit(); got < 0.5099 || got > 0.5101 {
		t.Errorf("slow turn: expected 0.51, got %v", got)
	}

	// Fast turn: step scales up to the maximum.
	tg.value = 0.5
	out, ok = m.Control(unit.Relative(10), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if got := out.Unit(); got < 0.5499 || got > 0.5501 {
		t.Errorf("fast turn: expected 0.55, got %v", got)
	}

	// Decrement.
	tg.value = 0.5
	out, ok = m.Control(unit.Relative(-1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if got := out.Unit(); got < 0.4899 || got > 0.4901 {
		t.Errorf("decrement: expected 0.49, got %v", got)
	}
}

func TestRelativeRotate(t *testing.T) {
	s := DefaultSettings()
	s.StepInterval = unit.NewSoftSymmetricInterval(0.05, 0.05)
	s.Rotate = true
	m := New(s, encoderChars)
	tg := newFakeTarget(0.99)
	out, ok := m.Control(unit.Relative(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0 {
		t.Errorf("rotate past max: expected wrap to 0, got %v", out.Unit())
	}
}

func TestRelativeClampWithoutRotate(t *testing.T) {
	s := DefaultSettings()
	s.StepInterval = unit.NewSoftSymmetricInterval(0.05, 0.05)
	m := New(s, encoderChars)
	tg := newFakeTarget(1)
	if _, ok := m.Control(unit.Relative(1), tg, time.Now()); ok {
		t.Error("increment at max without rotate should produce no change")
	}
}

func TestRelativeDiscreteTarget(t *testing.T) {
	s := DefaultSettings()
	m := New(s, encoderChars)
	tg := &fakeTarget{value: 0, hasValue: true, character: TargetDiscrete, count: 5}
	out, ok := m.Control(unit.Relative(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	// 5 discrete values: step from index 0 to 1 = 0.25.
	if got := out.Unit(); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}

func TestEncoderFilter(t *testing.T) {
	s := DefaultSettings()
	s.EncoderUsage = EncoderIncrementOnly
	m := New(s, encoderChars)
	tg := newFakeTarget(0.5)
	if _, ok := m.Control(unit.Relative(-1), tg, time.Now()); ok {
		t.Error("decrement should be filtered")
	}
	if _, ok := m.Control(unit.Relative(1), tg, time.Now()); !ok {
		t.Error("increment should pass")
	}
}

func TestButtonFilter(t *testing.T) {
	s := DefaultSettings()
	s.ButtonUsage = ButtonPressOnly
	m := New(s, buttonChars)
	tg := newFakeTarget(0)
	if _, ok := m.Control(unit.AbsoluteContinuous(0), tg, time.Now()); ok {
		t.Error("release should be filtered")
	}
}

func TestPickUpTakeover(t *testing.T) {
	s := DefaultSettings()
	s.JumpInterval = unit.NewInterval(0, 0.1)
	s.TakeoverMode = TakeoverPickUp
	m := New(s, rangeChars)
	tg := newFakeTarget(0.8)

	// Far away: not picked up yet.
	if _, ok := m.Control(unit.AbsoluteContinuous(0.2), tg, time.Now()); ok {
		t.Fatal("jump beyond max should be ignored before pickup")
	}
	// Crossing the current value picks up.
	out, ok := m.Control(unit.AbsoluteContinuous(0.9), tg, time.Now())
	if !ok {
		t.Fatal("crossing should pick up")
	}
	if out.Unit() != 0.9 {
		t.Errorf("expected 0.9, got %v", out.Unit())
	}
	// From now on everything passes.
	tg.value = 0.9
	if _, ok := m.Control(unit.AbsoluteContinuous(0.1), tg, time.Now()); !ok {
		t.Error("after pickup even large jumps pass")
	}
}

func TestLongTimeNoSeeTakeover(t *testing.T) {
	s := DefaultSettings()
	s.JumpInterval = unit.NewInterval(0, 0.1)
	s.TakeoverMode = TakeoverLongTimeNoSee
	m := New(s, rangeChars)
	tg := newFakeTarget(0.8)
	out, ok := m.Control(unit.AbsoluteContinuous(0.2), tg, time.Now())
	if !ok {
		t.Fatal("expected a catch-up value")
	}
	if got := out.Unit(); got < 0.6999 || got > 0.7001 {
		t.Errorf("expected 0.7 (one max jump toward control), got %v", got)
	}
}

func TestTargetValueSequenceAbsolute(t *testing.T) {
	s := DefaultSettings()
	s.TargetValueSequence = []unit.Value{0.25, 0.5, 0.75}
	m := New(s, rangeChars)
	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.75 {
		t.Errorf("expected last sequence entry, got %v", out.Unit())
	}
}

func TestTargetValueSequenceRelative(t *testing.T) {
	s := DefaultSettings()
	s.TargetValueSequence = []unit.Value{0.25, 0.5, 0.75}
	m := New(s, encoderChars)
	tg := newFakeTarget(0.5)
	out, ok := m.Control(unit.Relative(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.75 {
		t.Errorf("expected next entry 0.75, got %v", out.Unit())
	}
}

func TestControlTransformation(t *testing.T) {
	s := DefaultSettings()
	s.ControlTransformation = "x / 2"
	m := New(s, rangeChars)
	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(1), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.5 {
		t.Errorf("expected 0.5, got %v", out.Unit())
	}
}

func TestBrokenControlTransformationIsIdentity(t *testing.T) {
	s := DefaultSettings()
	s.ControlTransformation = "x +* nonsense("
	m := New(s, rangeChars)
	tg := newFakeTarget(0)
	out, ok := m.Control(unit.AbsoluteContinuous(0.3), tg, time.Now())
	if !ok {
		t.Fatal("expected a value")
	}
	if out.Unit() != 0.3 {
		t.Errorf("broken script must pass through, got %v", out.Unit())
	}
}

func TestFeedbackChain(t *testing.T) {
	s := DefaultSettings()
	s.SourceInterval = unit.NewInterval(0, 0.5)
	s.TargetInterval = unit.NewInterval(0.5, 1)
	m := New(s, rangeChars)
	v, ok := m.Feedback(unit.ContinuousValue(0.75))
	if !ok {
		t.Fatal("expected feedback")
	}
	// Target 0.75 normalizes to 0.5 in [0.5,1], denormalizes to 0.25 in [0,0.5].
	if v != 0.25 {
		t.Errorf("expected 0.25, got %v", v)
	}
}

func TestIrrelevantSettingsCollapse(t *testing.T) {
	s := DefaultSettings()
	// Rotate is meaningless for a plain absolute fader and must not leak
	// into behavior even if configured.
	s.Rotate = true
	m := New(s, rangeChars)
	if m.Settings().Rotate {
		t.Error("rotate should collapse to default for a range source")
	}
	// For an encoder it stays.
	m = New(s, encoderChars)
	if !m.Settings().Rotate {
		t.Error("rotate should stay relevant for an encoder source")
	}
}

func TestStepMaxCollapsesWithoutAcceleration(t *testing.T) {
	s := DefaultSettings()
	s.StepInterval = unit.NewSoftSymmetricInterval(0.01, 0.05)
	m := New(s, rangeChars) // range source: no step parameters at all
	if m.stepSizes.Min != m.stepSizes.Max {
		t.Error("step max should collapse to min when irrelevant")
	}
}
