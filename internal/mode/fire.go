package mode

import (
	"time"

	"github.com/tilde-audio/remap/internal/unit"
)

// defaultDoublePressWindow applies when no explicit press duration maximum
// is configured for double-press detection.
const defaultDoublePressWindow = 300 * time.Millisecond

// fireState is the timing state machine behind the button fire modes.
// feed consumes presses/releases, poll advances timers. Fired values keep
// the original press value so velocity survives deferred fires.
type fireState struct {
	pressed     bool
	pressValue  unit.Value
	pressedAt   time.Time
	firedOnce   bool
	lastTurbo   time.Time
	lastPressAt time.Time
	hasLast     bool
}

// feed consumes a button value. ok is true when the value should continue
// through the transform immediately.
func (f *fireState) feed(s Settings, v unit.Value, now time.Time) (unit.Value, bool) {
	switch s.FireMode {
	case FireAfterTimeout, FireAfterTimeoutKeepFiring:
		if v.IsOn() {
			f.pressed = true
			f.pressValue = v
			f.pressedAt = now
			f.firedOnce = false
			return 0, false
		}
		f.pressed = false
		return 0, false
	case FireOnSinglePress:
		if v.IsOn() {
			f.pressed = true
			f.pressValue = v
			f.pressedAt = now
			return 0, false
		}
		if !f.pressed {
			return 0, false
		}
		f.pressed = false
		dur := now.Sub(f.pressedAt)
		if dur < s.PressDurationMin {
			return 0, false
		}
		if s.PressDurationMax > 0 && dur > s.PressDurationMax {
			return 0, false
		}
		return f.pressValue, true
	case FireOnDoublePress:
		if !v.IsOn() {
			return 0, false
		}
		window := s.PressDurationMax
		if window == 0 {
			window = defaultDoublePressWindow
		}
		isDouble := f.hasLast && now.Sub(f.lastPressAt) <= window
		f.lastPressAt = now
		f.hasLast = true
		if isDouble {
			f.hasLast = false
			return v, true
		}
		return 0, false
	default: // FireOnPressAndRelease
		return v, true
	}
}

// poll advances deferred timers. ok is true when a fire is due.
func (f *fireState) poll(s Settings, now time.Time) (unit.Value, bool) {
	switch s.FireMode {
	case FireAfterTimeout:
		if f.pressed && !f.firedOnce && now.Sub(f.pressedAt) >= s.PressDurationMin {
			f.firedOnce = true
			return f.pressValue, true
		}
	case FireAfterTimeoutKeepFiring:
		if !f.pressed {
			return 0, false
		}
		if !f.firedOnce {
			if now.Sub(f.pressedAt) >= s.PressDurationMin {
				f.firedOnce = true
				f.lastTurbo = now
				return f.pressValue, true
			}
			return 0, false
		}
		if now.Sub(f.lastTurbo) >= s.TurboRate {
			f.lastTurbo = now
			return f.pressValue, true
		}
	}
	return 0, false
}
