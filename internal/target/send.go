package target

import (
	"errors"
	"fmt"

	"github.com/hypebeast/go-osc/osc"
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/unit"
)

// SendMidi emits a raw MIDI message with the control value filled into the
// pattern's variable bytes. It is the one target that is safe to hit
// straight from the audio thread, since it never touches the host object
// graph.
type SendMidi struct {
	continuousTarget
	Pattern []source.PatternByte

	last    unit.Value
	hasLast bool
}

func (t *SendMidi) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if !t.hasLast {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(t.last), true
}

func (t *SendMidi) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	if ctx.MidiOut == nil {
		return nil, errors.New("no midi output assigned")
	}
	return nil, t.HitFromAudioThread(v, ctx.MidiOut)
}

// HitFromAudioThread implements RealTimeTarget.
func (t *SendMidi) HitFromAudioThread(v unit.AbsoluteValue, out MidiSender) error {
	if len(t.Pattern) == 0 {
		return errors.New("empty midi pattern")
	}
	raw := make([]byte, len(t.Pattern))
	data := byte(unit.UnitToDiscrete(v.Unit(), 128))
	for i, pb := range t.Pattern {
		if pb.Variable {
			raw[i] = data
		} else {
			raw[i] = pb.Value
		}
	}
	out.SendMidi(midi.Message(raw))
	t.last = v.Unit()
	t.hasLast = true
	return nil
}

func (t *SendMidi) IsAvailable(ctx Context) bool { return len(t.Pattern) > 0 }

func (t *SendMidi) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t *SendMidi) TextValue(ctx Context) string {
	if !t.hasLast {
		return ""
	}
	return fmt.Sprintf("%d", unit.UnitToDiscrete(t.last, 128))
}

// SendOsc emits an OSC message carrying the control value as its single
// typed argument.
type SendOsc struct {
	continuousTarget
	Address string
	ArgKind source.OscArgKind

	last    unit.Value
	hasLast bool
}

func (t *SendOsc) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if !t.hasLast {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(t.last), true
}

func (t *SendOsc) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	if ctx.OscOut == nil {
		return nil, errors.New("no osc output assigned")
	}
	msg := osc.NewMessage(t.Address)
	u := v.Unit()
	switch t.ArgKind {
	case source.ArgFloat:
		msg.Append(float32(u.Get()))
	case source.ArgDouble:
		msg.Append(u.Get())
	case source.ArgBool:
		msg.Append(u.IsOn())
	case source.ArgInt:
		msg.Append(int32(unit.UnitToDiscrete(u, 128)))
	case source.ArgLong:
		msg.Append(int64(unit.UnitToDiscrete(u, 128)))
	case source.ArgNil, source.ArgInf:
		// Typeless trigger, no argument.
	default:
		msg.Append(float32(u.Get()))
	}
	ctx.OscOut.SendOsc(msg)
	t.last = u
	t.hasLast = true
	return nil, nil
}

func (t *SendOsc) IsAvailable(ctx Context) bool { return t.Address != "" }

func (t *SendOsc) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t *SendOsc) TextValue(ctx Context) string {
	if !t.hasLast {
		return ""
	}
	return fmt.Sprintf("%.2f", t.last.Get())
}
