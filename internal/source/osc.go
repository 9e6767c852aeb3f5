package source

import (
	"math"

	"github.com/hypebeast/go-osc/osc"

	"github.com/tilde-audio/remap/internal/unit"
)

// OscArgKind enumerates the OSC argument types a source can bind to.
type OscArgKind int

const (
	ArgFloat OscArgKind = iota
	ArgDouble
	ArgBool
	ArgInt
	ArgLong
	ArgString
	ArgBlob
	ArgNil
	ArgInf
)

// Osc matches a single OSC address, optionally extracting a typed argument
// as the control value. A message without a usable argument acts as a
// trigger.
type Osc struct {
	Address  string
	ArgIndex int
	ArgKind  OscArgKind
	// Relative interprets integer arguments as signed increments.
	Relative bool
	// ValueRange scales numeric arguments into the unit interval.
	// The zero value means the identity range 0..1.
	RangeMin float64
	RangeMax float64
	Behavior FeedbackBehavior
}

func (s *Osc) valueRange() (float64, float64) {
	if s.RangeMin == 0 && s.RangeMax == 0 {
		return 0, 1
	}
	return s.RangeMin, s.RangeMax
}

// Control implements Source.
func (s *Osc) Control(msg Message) (unit.ControlValue, bool) {
	if msg.Kind != KindOsc || msg.Osc == nil || msg.Osc.Address != s.Address {
		return unit.ControlValue{}, false
	}
	args := msg.Osc.Arguments
	if s.ArgIndex < 0 || s.ArgIndex >= len(args) {
		// Address match without a bound argument is a trigger.
		return unit.AbsoluteContinuous(1), true
	}
	return s.controlArg(args[s.ArgIndex])
}

func (s *Osc) controlArg(arg any) (unit.ControlValue, bool) {
	min, max := s.valueRange()
	toUnit := func(raw float64) unit.ControlValue {
		span := max - min
		if span == 0 {
			return unit.AbsoluteContinuous(0)
		}
		return unit.AbsoluteContinuous(unit.NewValue((raw - min) / span))
	}
	switch v := arg.(type) {
	case float32:
		if math.IsInf(float64(v), 0) {
			return unit.AbsoluteContinuous(1), true
		}
		return toUnit(float64(v)), true
	case float64:
		return toUnit(v), true
	case bool:
		if v {
			return unit.AbsoluteContinuous(1), true
		}
		return unit.AbsoluteContinuous(0), true
	case int32:
		if s.Relative {
			return unit.Relative(unit.NewIncrement(int(v))), true
		}
		return toUnit(float64(v)), true
	case int64:
		if s.Relative {
			return unit.Relative(unit.NewIncrement(int(v))), true
		}
		return toUnit(float64(v)), true
	case string, []byte, nil:
		// Presence of the argument is the trigger.
		return unit.AbsoluteContinuous(1), true
	default:
		return unit.AbsoluteContinuous(1), true
	}
}

// Feedback implements Source.
func (s *Osc) Feedback(v unit.Value, style FeedbackStyle) (FeedbackValue, bool) {
	min, max := s.valueRange()
	raw := min + v.Get()*(max-min)
	msg := osc.NewMessage(s.Address)
	switch s.ArgKind {
	case ArgDouble:
		msg.Append(raw)
	case ArgBool:
		msg.Append(v.IsOn())
	case ArgInt:
		msg.Append(int32(math.Round(raw)))
	case ArgLong:
		msg.Append(int64(math.Round(raw)))
	case ArgString:
		msg.Append(style.Text)
	default:
		msg.Append(float32(raw))
	}
	addr, _ := s.FeedbackAddress()
	return FeedbackValue{Kind: OscFeedback, Osc: msg, Address: addr, Style: style}, true
}

// FeedbackAddress implements Source.
func (s *Osc) FeedbackAddress() (Address, bool) {
	return Address{Proto: ProtocolOsc, OscAddr: s.Address}, true
}

// Characters implements Source.
func (s *Osc) Characters() []Character {
	if s.Relative {
		return []Character{CharacterRelative}
	}
	switch s.ArgKind {
	case ArgBool:
		return []Character{CharacterMomentaryButton}
	case ArgString, ArgBlob, ArgNil, ArgInf:
		return []Character{CharacterTrigger}
	default:
		return []Character{CharacterRange}
	}
}

// Clone implements Source.
func (s *Osc) Clone() Source {
	c := *s
	return &c
}

// FlattenPacket recursively flattens an OSC packet (message or bundle)
// into its messages, in bundle order.
func FlattenPacket(p osc.Packet) []*osc.Message {
	switch v := p.(type) {
	case *osc.Message:
		return []*osc.Message{v}
	case *osc.Bundle:
		var out []*osc.Message
		for _, m := range v.Messages {
			out = append(out, m)
		}
		for _, b := range v.Bundles {
			out = append(out, FlattenPacket(b)...)
		}
		return out
	default:
		return nil
	}
}
