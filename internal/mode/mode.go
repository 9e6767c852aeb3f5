package mode

import (
	"math"
	"time"

	"github.com/tilde-audio/remap/internal/script"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/unit"
)

// TargetCharacter is what the transform needs to know about the bound
// target's value space.
type TargetCharacter int

const (
	// TargetContinuous accepts any unit value.
	TargetContinuous TargetCharacter = iota
	// TargetDiscrete has a fixed number of distinct values.
	TargetDiscrete
	// TargetSwitch is on/off.
	TargetSwitch
	// TargetTrigger has no value, it just fires.
	TargetTrigger
)

// Target is the transform's view of the bound target.
type Target interface {
	// CurrentValue returns the target's current value if available.
	CurrentValue() (unit.AbsoluteValue, bool)
	// Character classifies the target's value space.
	Character() TargetCharacter
	// DiscreteCount returns the number of distinct values for discrete
	// targets, 0 otherwise.
	DiscreteCount() int
}

// Mode is the runtime transform built from Settings for a concrete source.
// It carries per-mapping state (takeover bookkeeping, fire timers, y_last)
// and is therefore not shared between mappings.
type Mode struct {
	set        Settings
	stepCounts unit.IncrementInterval
	stepSizes  stepSizeInterval
	controlTf  *script.Transformation
	feedbackTf *script.Transformation
	characters []source.Character

	prevSourceValue unit.Value
	hasPrevSource   bool
	pickedUp        bool
	makeAbsValue    unit.Value
	tickAccum       int
	yLast           float64
	fire            fireState
}

// New builds a runtime mode. Irrelevant settings are collapsed to their
// defaults based on the characters the bound source can exhibit.
func New(s Settings, characters []source.Character) *Mode {
	eff, counts, sizes := s.effective(characters)
	controlTf, feedbackTf := eff.compileScripts()
	return &Mode{
		set:        eff,
		stepCounts: counts,
		stepSizes:  sizes,
		controlTf:  controlTf,
		feedbackTf: feedbackTf,
		characters: characters,
	}
}

// Settings returns the effective settings.
func (m *Mode) Settings() Settings { return m.set }

// GroupInteraction returns the configured group interaction policy.
func (m *Mode) GroupInteraction() GroupInteraction { return m.set.GroupInteraction }

// UsesTextFeedback reports whether feedback is textual.
func (m *Mode) UsesTextFeedback() bool { return m.set.FeedbackType == FeedbackText }

// WantsPolling reports whether the mode needs regular Poll calls to
// advance fire timers.
func (m *Mode) WantsPolling() bool {
	switch m.set.FireMode {
	case FireAfterTimeout, FireAfterTimeoutKeepFiring, FireOnSinglePress:
		return true
	}
	return false
}

func (m *Mode) isButtonSource() bool {
	for _, c := range m.characters {
		if c == source.CharacterRange || c == source.CharacterRelative {
			return false
		}
	}
	return len(m.characters) > 0
}

// Control transforms an incoming control value into a target value.
// ok is false when the value is filtered out (button/encoder filter, out of
// range with ignore behavior, takeover not picked up yet, fire deferred).
func (m *Mode) Control(cv unit.ControlValue, t Target, now time.Time) (unit.AbsoluteValue, bool) {
	if cv.IsRelative() {
		return m.controlRelative(cv.Increment, t)
	}
	v := cv.Unit()
	if m.isButtonSource() {
		switch m.set.ButtonUsage {
		case ButtonPressOnly:
			if !v.IsOn() {
				return unit.AbsoluteValue{}, false
			}
		case ButtonReleaseOnly:
			if v.IsOn() {
				return unit.AbsoluteValue{}, false
			}
		}
		fired, ok := m.fire.feed(m.set, v, now)
		if !ok {
			return unit.AbsoluteValue{}, false
		}
		v = fired
	}
	return m.controlAbsolute(v, t)
}

// Poll advances deferred fire timers. It returns a fired target value when
// a timeout or turbo fire is due.
func (m *Mode) Poll(t Target, now time.Time) (unit.AbsoluteValue, bool) {
	v, ok := m.fire.poll(m.set, now)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return m.controlAbsolute(v, t)
}

func (m *Mode) controlAbsolute(v unit.Value, t Target) (unit.AbsoluteValue, bool) {
	switch m.set.AbsoluteMode {
	case ToggleButton:
		if !v.IsOn() {
			return unit.AbsoluteValue{}, false
		}
		cur, ok := t.CurrentValue()
		if !ok {
			return unit.AbsoluteValue{}, false
		}
		center := unit.Value((float64(m.set.TargetInterval.Min) + float64(m.set.TargetInterval.Max)) / 2)
		if cur.Unit() > center {
			return unit.ContinuousValue(m.set.TargetInterval.Min), true
		}
		return unit.ContinuousValue(m.set.TargetInterval.Max), true
	case IncrementalButton:
		if !v.IsOn() {
			return unit.AbsoluteValue{}, false
		}
		// Button value (velocity) scales the increment speed.
		speed := 1 + unit.UnitToDiscrete(v, m.stepCounts.Max.Abs()+1)
		inc := unit.NewIncrement(speed)
		if m.set.Reverse {
			inc = inc.Inverse()
		}
		return m.applyIncrement(inc, t)
	case MakeRelativeMode:
		if !m.hasPrevSource {
			m.prevSourceValue = v
			m.hasPrevSource = true
			return unit.AbsoluteValue{}, false
		}
		delta := float64(v) - float64(m.prevSourceValue)
		m.prevSourceValue = v
		cur, ok := t.CurrentValue()
		if !ok {
			return unit.AbsoluteValue{}, false
		}
		return unit.ContinuousValue(m.clampToTarget(cur.Unit().Add(delta))), true
	default:
		return m.controlAbsoluteNormal(v, t)
	}
}

func (m *Mode) controlAbsoluteNormal(v unit.Value, t Target) (unit.AbsoluteValue, bool) {
	// Source interval with out-of-range behavior.
	if !m.set.SourceInterval.Contains(v) {
		switch m.set.OutOfRangeBehavior {
		case OutOfRangeIgnore:
			return unit.AbsoluteValue{}, false
		case OutOfRangeMin:
			v = m.set.SourceInterval.Min
		default:
			v = m.set.SourceInterval.Clamp(v)
		}
	}
	norm := m.set.SourceInterval.Normalize(v)
	// Control transformation script. Errors degrade to identity.
	if m.controlTf != nil {
		curNorm := 0.0
		if cur, ok := t.CurrentValue(); ok {
			curNorm = m.set.TargetInterval.Normalize(cur.Unit()).Get()
		}
		if out, err := m.controlTf.Transform(norm.Get(), curNorm, m.yLast, script.ControlDirection); err == nil {
			norm = unit.NewValue(out)
			m.yLast = out
		}
	}
	if m.set.Reverse {
		norm = 1 - norm
	}
	// A value sequence replaces the target interval mapping.
	if len(m.set.TargetValueSequence) > 0 {
		idx := unit.UnitToDiscrete(norm, len(m.set.TargetValueSequence))
		return unit.ContinuousValue(m.set.TargetValueSequence[idx]), true
	}
	out := m.set.TargetInterval.Denormalize(norm)
	out = m.roundIfConfigured(out, t)
	if out2, ok := m.applyTakeover(norm, out, t); ok {
		return unit.ContinuousValue(out2), true
	}
	return unit.AbsoluteValue{}, false
}

// applyTakeover enforces the jump interval. norm is the post-transform
// source-normalized value, out the candidate target value.
func (m *Mode) applyTakeover(norm, out unit.Value, t Target) (unit.Value, bool) {
	defer func() {
		m.prevSourceValue = norm
		m.hasPrevSource = true
	}()
	if m.set.JumpInterval.IsFull() {
		return out, true
	}
	cur, ok := t.CurrentValue()
	if !ok {
		return out, true
	}
	curV := cur.Unit()
	dist := math.Abs(float64(out) - float64(curV))
	if dist < float64(m.set.JumpInterval.Min) {
		// Distance below the minimum jump is considered jitter.
		return 0, false
	}
	if dist <= float64(m.set.JumpInterval.Max) {
		m.pickedUp = true
		return out, true
	}
	switch m.set.TakeoverMode {
	case TakeoverLongTimeNoSee:
		step := float64(m.set.JumpInterval.Max)
		if out < curV {
			step = -step
		}
		return m.clampToTarget(curV.Add(step)), true
	case TakeoverParallel:
		if !m.hasPrevSource {
			return 0, false
		}
		delta := float64(norm) - float64(m.prevSourceValue)
		if delta == 0 {
			return 0, false
		}
		return m.clampToTarget(curV.Add(delta)), true
	case TakeoverValueScaling:
		curNorm := m.set.TargetInterval.Normalize(curV)
		var scaled float64
		if norm >= curNorm {
			remainingSource := 1 - float64(curNorm)
			if remainingSource == 0 {
				return 0, false
			}
			frac := (float64(norm) - float64(curNorm)) / remainingSource
			scaled = float64(curNorm) + frac*(1-float64(curNorm))
		} else {
			if curNorm == 0 {
				return 0, false
			}
			frac := (float64(curNorm) - float64(norm)) / float64(curNorm)
			scaled = float64(curNorm) - frac*float64(curNorm)
		}
		return m.set.TargetInterval.Denormalize(unit.NewValue(scaled)), true
	default: // TakeoverPickUp
		if m.pickedUp {
			return out, true
		}
		// Picked up once the control crosses the current target value.
		if m.hasPrevSource {
			prevOut := m.set.TargetInterval.Denormalize(m.prevSourceValue)
			if (float64(prevOut)-float64(curV))*(float64(out)-float64(curV)) <= 0 {
				m.pickedUp = true
				return out, true
			}
		}
		return 0, false
	}
}

func (m *Mode) controlRelative(inc unit.Increment, t Target) (unit.AbsoluteValue, bool) {
	switch m.set.EncoderUsage {
	case EncoderIncrementOnly:
		if !inc.IsPositive() {
			return unit.AbsoluteValue{}, false
		}
	case EncoderDecrementOnly:
		if inc.IsPositive() {
			return unit.AbsoluteValue{}, false
		}
	}
	if m.set.Reverse {
		inc = inc.Inverse()
	}
	if m.set.MakeAbsolute {
		step := m.continuousStepSize(inc)
		next := unit.NewValue(float64(m.makeAbsValue) + step*float64(inc.Signum()))
		m.makeAbsValue = next
		return m.controlAbsoluteNormal(next, t)
	}
	return m.applyIncrement(inc, t)
}

// applyIncrement is the shared relative path for encoders and incremental
// buttons.
func (m *Mode) applyIncrement(inc unit.Increment, t Target) (unit.AbsoluteValue, bool) {
	if len(m.set.TargetValueSequence) > 0 {
		return m.stepThroughSequence(inc, t)
	}
	cur, ok := t.CurrentValue()
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	curV := cur.Unit()
	if t.Character() == TargetDiscrete && t.DiscreteCount() > 1 {
		steps, ok := m.discreteSteps(inc)
		if !ok {
			return unit.AbsoluteValue{}, false
		}
		count := t.DiscreteCount()
		curIdx := unit.UnitToDiscrete(curV, count)
		nextIdx := m.wrapOrClampIndex(curIdx+steps, count, t)
		if nextIdx == curIdx {
			return unit.AbsoluteValue{}, false
		}
		return unit.DiscreteValue(unit.NewFraction(nextIdx, count-1)), true
	}
	step := m.continuousStepSize(inc)
	delta := step * float64(inc.Signum())
	next := float64(curV) + delta
	min, max := float64(m.set.TargetInterval.Min), float64(m.set.TargetInterval.Max)
	if next > max {
		if m.set.Rotate {
			next = min
		} else {
			next = max
		}
	} else if next < min {
		if m.set.Rotate {
			next = max
		} else {
			next = min
		}
	}
	if next == float64(curV) {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(next)), true
}

// continuousStepSize maps the increment's speed onto the step size
// interval: magnitude 1 is the minimum step, higher magnitudes scale up
// linearly, clamped at the maximum.
func (m *Mode) continuousStepSize(inc unit.Increment) float64 {
	step := float64(m.stepSizes.Min) * float64(inc.Abs())
	if step > float64(m.stepSizes.Max) {
		step = float64(m.stepSizes.Max)
	}
	if step < float64(m.stepSizes.Min) {
		step = float64(m.stepSizes.Min)
	}
	return step
}

// discreteSteps converts an increment into a signed number of discrete
// steps, honoring the step count interval. Negative effective counts mean
// "fire one step every Nth tick" (slow-down).
func (m *Mode) discreteSteps(inc unit.Increment) (int, bool) {
	eff := int(inc.ClampMagnitude(1, 1<<30))
	minC, maxC := int(m.stepCounts.Min), int(m.stepCounts.Max)
	mag := inc.Abs()
	sign := inc.Signum()
	switch {
	case minC > 0:
		if mag < minC {
			mag = minC
		}
		if maxC > 0 && mag > maxC {
			mag = maxC
		}
		return mag * sign, true
	case minC < 0:
		// Slow-down: pass one step every |minC| ticks.
		m.tickAccum++
		if m.tickAccum < -minC {
			return 0, false
		}
		m.tickAccum = 0
		return sign, true
	default:
		return eff, true
	}
}

func (m *Mode) stepThroughSequence(inc unit.Increment, t Target) (unit.AbsoluteValue, bool) {
	seq := m.set.TargetValueSequence
	cur, ok := t.CurrentValue()
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	// Find the sequence entry closest to the current value.
	curV := cur.Unit()
	best, bestDist := 0, math.Inf(1)
	for i, e := range seq {
		d := math.Abs(float64(e) - float64(curV))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	next := best + inc.Signum()
	if next >= len(seq) {
		if m.set.Rotate {
			next = 0
		} else {
			next = len(seq) - 1
		}
	} else if next < 0 {
		if m.set.Rotate {
			next = len(seq) - 1
		} else {
			next = 0
		}
	}
	if next == best {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(seq[next]), true
}

func (m *Mode) wrapOrClampIndex(idx, count int, t Target) int {
	if idx >= count {
		if m.set.Rotate {
			return 0
		}
		return count - 1
	}
	if idx < 0 {
		if m.set.Rotate {
			return count - 1
		}
		return 0
	}
	return idx
}

func (m *Mode) roundIfConfigured(v unit.Value, t Target) unit.Value {
	if !m.set.RoundTargetValue {
		return v
	}
	if t.Character() == TargetDiscrete && t.DiscreteCount() > 1 {
		count := t.DiscreteCount()
		return unit.DiscreteToUnit(unit.UnitToDiscrete(v, count), count)
	}
	return unit.NewValue(math.Round(float64(v)*100) / 100)
}

func (m *Mode) clampToTarget(v unit.Value) unit.Value {
	return m.set.TargetInterval.Clamp(v)
}

// Feedback transforms a current target value into the value the source
// should display. ok is false when feedback must be suppressed (target
// value outside the interval with ignore behavior).
func (m *Mode) Feedback(targetValue unit.AbsoluteValue) (unit.Value, bool) {
	v := targetValue.Unit()
	if !m.set.TargetInterval.Contains(v) {
		switch m.set.OutOfRangeBehavior {
		case OutOfRangeIgnore:
			return 0, false
		case OutOfRangeMin:
			v = m.set.TargetInterval.Min
		default:
			v = m.set.TargetInterval.Clamp(v)
		}
	}
	norm := m.set.TargetInterval.Normalize(v)
	if m.set.Reverse {
		norm = 1 - norm
	}
	if m.feedbackTf != nil {
		if out, err := m.feedbackTf.Transform(norm.Get(), norm.Get(), m.yLast, script.FeedbackDirection); err == nil {
			norm = unit.NewValue(out)
		}
	}
	return m.set.SourceInterval.Denormalize(norm), true
}
