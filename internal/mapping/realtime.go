package mapping

import (
	"time"

	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/unit"
)

// RealTimeMapping is the audio-thread projection of a mapping: source and
// mode only, no host target. The source is a fresh clone so stateful
// matching never races with the main-thread instance, and the mode is a
// fresh instance for the same reason.
type RealTimeMapping struct {
	ID        QualifiedID
	ControlOn bool

	Source source.Source
	Mode   *mode.Mode

	// RealTimeTarget is set when the mapping's target can be hit directly
	// on the audio thread (send-MIDI). Everything else is forwarded to the
	// main processor.
	RealTimeTarget target.RealTimeTarget
}

// HitsOnAudioThread reports whether the mapping's target is hit directly
// by the real-time processor. The main processor must not hit such a
// mapping again for events that already passed through the audio thread.
func (m *Mapping) HitsOnAudioThread() bool {
	return m.Descriptor.Kind == target.KindSendMidi && len(m.Descriptor.MidiPattern) > 0
}

// SplinterRealTime projects the mapping for the audio thread. It is called
// on every mapping sync, so the projection always reflects the current
// effective control state.
func (m *Mapping) SplinterRealTime(instanceControlOn bool) *RealTimeMapping {
	rt := &RealTimeMapping{
		ID:        m.QualifiedID(),
		ControlOn: m.ControlIsEffectivelyOn(instanceControlOn),
		Source:    m.Source.Clone(),
		Mode:      mode.New(m.Settings, m.Source.Characters()),
	}
	if m.HitsOnAudioThread() {
		rt.RealTimeTarget = &target.SendMidi{Pattern: m.Descriptor.MidiPattern}
	}
	return rt
}

// Match offers a message to the splinter's source without transforming.
func (rt *RealTimeMapping) Match(msg source.Message) (unit.ControlValue, bool) {
	if !rt.ControlOn {
		return unit.ControlValue{}, false
	}
	return rt.Source.Control(msg)
}

// HitLocal runs the transform against the real-time target and hits it on
// the audio thread. ok is false when the mapping has no real-time target
// or the transform rejected the value.
func (rt *RealTimeMapping) HitLocal(cv unit.ControlValue, out target.MidiSender, now time.Time) bool {
	if rt.RealTimeTarget == nil {
		return false
	}
	v, ok := rt.Mode.Control(cv, rtModeTarget{t: rt.RealTimeTarget}, now)
	if !ok {
		return false
	}
	return rt.RealTimeTarget.HitFromAudioThread(v, out) == nil
}

// PollLocal advances fire timers on the audio thread.
func (rt *RealTimeMapping) PollLocal(out target.MidiSender, now time.Time) {
	if rt.RealTimeTarget == nil || !rt.Mode.WantsPolling() {
		return
	}
	if v, ok := rt.Mode.Poll(rtModeTarget{t: rt.RealTimeTarget}, now); ok {
		rt.RealTimeTarget.HitFromAudioThread(v, out)
	}
}

// rtModeTarget adapts a real-time target for the transform without a
// provider context; real-time targets never consult the host.
type rtModeTarget struct {
	t target.RealTimeTarget
}

func (a rtModeTarget) CurrentValue() (unit.AbsoluteValue, bool) {
	return a.t.CurrentValue(target.Context{})
}

func (a rtModeTarget) Character() mode.TargetCharacter { return mode.TargetContinuous }

func (a rtModeTarget) DiscreteCount() int { return 0 }
