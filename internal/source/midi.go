package source

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/unit"
)

// MidiKind enumerates the MIDI source variants.
type MidiKind int

const (
	NoteVelocity MidiKind = iota
	NoteKeyNumber
	PolyPressure
	ControlChangeValue
	ProgramChangeNumber
	ChannelPressure
	PitchBendChangeValue
	ParameterNumberValue
	ClockTempo
	ClockTransport
	Raw
)

// CCCharacter tells the engine how to interpret control change values.
type CCCharacter int

const (
	// CCRange treats values as a continuous 0..127 range.
	CCRange CCCharacter = iota
	// CCButton treats non-zero as press and zero as release.
	CCButton
	// CCEncoder1 decodes 7-bit two's complement increments.
	CCEncoder1
	// CCEncoder2 decodes offset-binary increments (64 = rest).
	CCEncoder2
	// CCEncoder3 decodes sign-magnitude increments.
	CCEncoder3
)

// TransportMessage selects which system realtime message a clock transport
// source reacts to.
type TransportMessage int

const (
	TransportStart TransportMessage = iota
	TransportContinue
	TransportStop
)

// AnyChannel / AnyNumber make a midi source match regardless of channel or
// key/controller number.
const (
	AnyChannel = -1
	AnyNumber  = -1
)

// PatternByte is one byte of a raw midi pattern. A variable byte matches
// any data byte and carries the control value.
type PatternByte struct {
	Value    byte
	Variable bool
}

// Midi matches one kind of MIDI message, optionally filtered by channel
// and note/controller number.
type Midi struct {
	Kind        MidiKind
	Channel     int
	Number      int
	Character   CCCharacter
	FourteenBit bool
	// Registered selects RPN instead of NRPN for ParameterNumberValue.
	Registered bool
	Behavior   FeedbackBehavior
	Transport  TransportMessage
	Pattern    []PatternByte

	// pendingMSB pairs the MSB of a 14-bit CC with its LSB on number+32.
	pendingMSB int
	hasMSB     bool
	nrpn       nrpnState
}

// NewMidi builds a midi source matching any channel and number.
func NewMidi(kind MidiKind) *Midi {
	return &Midi{Kind: kind, Channel: AnyChannel, Number: AnyNumber}
}

func (s *Midi) channelMatches(ch uint8) bool {
	return s.Channel == AnyChannel || s.Channel == int(ch)
}

func (s *Midi) numberMatches(n uint8) bool {
	return s.Number == AnyNumber || s.Number == int(n)
}

// Control implements Source.
func (s *Midi) Control(msg Message) (unit.ControlValue, bool) {
	switch msg.Kind {
	case KindMidi:
		return s.controlMidi(msg.Midi)
	case KindMeta:
		if s.Kind == ClockTempo && msg.Meta.Kind == MetaClockTempo {
			return unit.AbsoluteContinuous(bpmToUnit(msg.Meta.Bpm)), true
		}
		return unit.ControlValue{}, false
	default:
		return unit.ControlValue{}, false
	}
}

func (s *Midi) controlMidi(m midi.Message) (unit.ControlValue, bool) {
	var ch, key, vel, cc, val, prog, pressure uint8
	var pbRel int16
	var pbAbs uint16
	switch s.Kind {
	case NoteVelocity:
		if m.GetNoteOn(&ch, &key, &vel) && s.channelMatches(ch) && s.numberMatches(key) {
			return unit.AbsoluteDiscrete(unit.NewFraction(int(vel), 127)), true
		}
		if m.GetNoteOff(&ch, &key, &vel) && s.channelMatches(ch) && s.numberMatches(key) {
			return unit.AbsoluteDiscrete(unit.NewFraction(0, 127)), true
		}
	case NoteKeyNumber:
		if m.GetNoteOn(&ch, &key, &vel) && s.channelMatches(ch) && vel > 0 {
			return unit.AbsoluteDiscrete(unit.NewFraction(int(key), 127)), true
		}
	case PolyPressure:
		if m.GetPolyAfterTouch(&ch, &key, &pressure) && s.channelMatches(ch) && s.numberMatches(key) {
			return unit.AbsoluteDiscrete(unit.NewFraction(int(pressure), 127)), true
		}
	case ControlChangeValue:
		if !m.GetControlChange(&ch, &cc, &val) || !s.channelMatches(ch) {
			return unit.ControlValue{}, false
		}
		return s.controlCC(cc, val)
	case ProgramChangeNumber:
		if m.GetProgramChange(&ch, &prog) && s.channelMatches(ch) {
			return unit.AbsoluteDiscrete(unit.NewFraction(int(prog), 127)), true
		}
	case ChannelPressure:
		if m.GetAfterTouch(&ch, &pressure) && s.channelMatches(ch) {
			return unit.AbsoluteDiscrete(unit.NewFraction(int(pressure), 127)), true
		}
	case PitchBendChangeValue:
		if m.GetPitchBend(&ch, &pbRel, &pbAbs) && s.channelMatches(ch) {
			return unit.AbsoluteDiscrete(unit.NewFraction(int(pbAbs), 16383)), true
		}
	case ParameterNumberValue:
		if m.GetControlChange(&ch, &cc, &val) && s.channelMatches(ch) {
			return s.nrpn.feed(s, cc, val)
		}
	case ClockTransport:
		if transportMatches(m, s.Transport) {
			return unit.AbsoluteContinuous(1), true
		}
	case Raw:
		return s.controlRaw(m)
	}
	return unit.ControlValue{}, false
}

func (s *Midi) controlCC(cc, val uint8) (unit.ControlValue, bool) {
	switch s.Character {
	case CCEncoder1, CCEncoder2, CCEncoder3:
		if !s.numberMatches(cc) {
			return unit.ControlValue{}, false
		}
		inc, ok := decodeEncoder(s.Character, val)
		if !ok {
			return unit.ControlValue{}, false
		}
		return unit.Relative(inc), true
	default:
		if s.FourteenBit {
			return s.controlCC14(cc, val)
		}
		if !s.numberMatches(cc) {
			return unit.ControlValue{}, false
		}
		return unit.AbsoluteDiscrete(unit.NewFraction(int(val), 127)), true
	}
}

// controlCC14 pairs an MSB on the configured number with an LSB on
// number+32, the convention for 14-bit control changes.
func (s *Midi) controlCC14(cc, val uint8) (unit.ControlValue, bool) {
	if s.Number == AnyNumber || s.Number > 31 {
		return unit.ControlValue{}, false
	}
	switch int(cc) {
	case s.Number:
		s.pendingMSB = int(val)
		s.hasMSB = true
		return unit.ControlValue{}, false
	case s.Number + 32:
		if !s.hasMSB {
			return unit.ControlValue{}, false
		}
		combined := s.pendingMSB<<7 | int(val)
		return unit.AbsoluteDiscrete(unit.NewFraction(combined, 16383)), true
	default:
		return unit.ControlValue{}, false
	}
}

func (s *Midi) controlRaw(m midi.Message) (unit.ControlValue, bool) {
	raw := m.Bytes()
	if len(raw) != len(s.Pattern) {
		return unit.ControlValue{}, false
	}
	value := -1
	for i, p := range s.Pattern {
		if p.Variable {
			value = int(raw[i])
			continue
		}
		if raw[i] != p.Value {
			return unit.ControlValue{}, false
		}
	}
	if value < 0 {
		// Pure trigger pattern without a value byte.
		return unit.AbsoluteContinuous(1), true
	}
	return unit.AbsoluteDiscrete(unit.NewFraction(value, 127)), true
}

// Feedback implements Source.
func (s *Midi) Feedback(v unit.Value, style FeedbackStyle) (FeedbackValue, bool) {
	addr, ok := s.FeedbackAddress()
	if !ok {
		return FeedbackValue{}, false
	}
	ch := uint8(0)
	if s.Channel != AnyChannel {
		ch = uint8(s.Channel)
	}
	num := uint8(0)
	if s.Number != AnyNumber {
		num = uint8(s.Number)
	}
	var msgs []midi.Message
	switch s.Kind {
	case NoteVelocity:
		msgs = []midi.Message{midi.NoteOn(ch, num, to7Bit(v))}
	case NoteKeyNumber:
		msgs = []midi.Message{midi.NoteOn(ch, to7Bit(v), 127)}
	case PolyPressure:
		msgs = []midi.Message{midi.PolyAfterTouch(ch, num, to7Bit(v))}
	case ControlChangeValue:
		if s.FourteenBit && s.Number != AnyNumber && s.Number <= 31 {
			combined := to14Bit(v)
			msgs = []midi.Message{
				midi.ControlChange(ch, num, uint8(combined>>7)),
				midi.ControlChange(ch, num+32, uint8(combined&0x7F)),
			}
		} else {
			msgs = []midi.Message{midi.ControlChange(ch, num, to7Bit(v))}
		}
	case ProgramChangeNumber:
		msgs = []midi.Message{midi.ProgramChange(ch, to7Bit(v))}
	case ChannelPressure:
		msgs = []midi.Message{midi.AfterTouch(ch, to7Bit(v))}
	case PitchBendChangeValue:
		msgs = []midi.Message{midi.Pitchbend(ch, int16(int(to14Bit(v))-8192))}
	case ParameterNumberValue:
		msgs = s.parameterNumberFeedback(ch, v)
	case Raw:
		raw := make([]byte, len(s.Pattern))
		for i, p := range s.Pattern {
			if p.Variable {
				raw[i] = to7Bit(v)
			} else {
				raw[i] = p.Value
			}
		}
		msgs = []midi.Message{midi.Message(raw)}
	default:
		return FeedbackValue{}, false
	}
	return FeedbackValue{Kind: MidiFeedback, Midi: msgs, Address: addr, Style: style}, true
}

func (s *Midi) parameterNumberFeedback(ch uint8, v unit.Value) []midi.Message {
	paramMSB, paramLSB := uint8(0), uint8(0)
	if s.Number != AnyNumber {
		paramMSB = uint8(s.Number >> 7)
		paramLSB = uint8(s.Number & 0x7F)
	}
	selMSB, selLSB := uint8(99), uint8(98)
	if s.Registered {
		selMSB, selLSB = 101, 100
	}
	msgs := []midi.Message{
		midi.ControlChange(ch, selMSB, paramMSB),
		midi.ControlChange(ch, selLSB, paramLSB),
	}
	if s.FourteenBit {
		combined := to14Bit(v)
		msgs = append(msgs,
			midi.ControlChange(ch, 6, uint8(combined>>7)),
			midi.ControlChange(ch, 38, uint8(combined&0x7F)),
		)
	} else {
		msgs = append(msgs, midi.ControlChange(ch, 6, to7Bit(v)))
	}
	return msgs
}

// FeedbackAddress implements Source.
func (s *Midi) FeedbackAddress() (Address, bool) {
	switch s.Kind {
	case ClockTempo, ClockTransport:
		return Address{}, false
	}
	return Address{
		Proto: ProtocolMidi,
		Midi:  MidiAddress{Kind: s.Kind, Channel: s.Channel, Number: s.Number},
	}, true
}

// Characters implements Source.
func (s *Midi) Characters() []Character {
	switch s.Kind {
	case NoteVelocity:
		return []Character{CharacterMomentaryButton, CharacterRange}
	case ControlChangeValue:
		switch s.Character {
		case CCButton:
			return []Character{CharacterMomentaryButton}
		case CCEncoder1, CCEncoder2, CCEncoder3:
			return []Character{CharacterRelative}
		default:
			return []Character{CharacterRange}
		}
	case ClockTransport:
		return []Character{CharacterTrigger}
	default:
		return []Character{CharacterRange}
	}
}

// Clone implements Source. Pairing state is reset, not copied.
func (s *Midi) Clone() Source {
	c := *s
	c.hasMSB = false
	c.pendingMSB = 0
	c.nrpn = nrpnState{}
	if len(s.Pattern) > 0 {
		c.Pattern = append([]PatternByte(nil), s.Pattern...)
	}
	return &c
}

// decodeEncoder turns an encoder CC data byte into a signed increment.
// A rest value (no movement) reports ok=false.
func decodeEncoder(c CCCharacter, val uint8) (unit.Increment, bool) {
	var i int
	switch c {
	case CCEncoder1:
		// 7-bit two's complement: 1..63 up, 127..65 down.
		if val < 64 {
			i = int(val)
		} else {
			i = int(val) - 128
		}
	case CCEncoder2:
		// Offset binary: 64 is rest.
		i = int(val) - 64
	case CCEncoder3:
		// Sign magnitude: bit 6 set means down.
		if val < 64 {
			i = int(val)
		} else {
			i = -(int(val) - 64)
		}
	}
	if i == 0 {
		return 0, false
	}
	return unit.Increment(i), true
}

// nrpnState tracks the (N)RPN controller sequence per source.
type nrpnState struct {
	paramNumber int
	registered  bool
	hasParam    bool
	dataMSB     int
	hasDataMSB  bool
}

func (n *nrpnState) feed(s *Midi, cc, val uint8) (unit.ControlValue, bool) {
	switch cc {
	case 99, 101: // param MSB (NRPN, RPN)
		n.registered = cc == 101
		n.paramNumber = int(val) << 7
		n.hasParam = true
		n.hasDataMSB = false
	case 98, 100: // param LSB
		n.registered = cc == 100
		n.paramNumber = n.paramNumber&^0x7F | int(val)
		n.hasParam = true
	case 6: // data entry MSB
		if !n.matches(s) {
			return unit.ControlValue{}, false
		}
		if s.FourteenBit {
			n.dataMSB = int(val)
			n.hasDataMSB = true
			return unit.ControlValue{}, false
		}
		return unit.AbsoluteDiscrete(unit.NewFraction(int(val), 127)), true
	case 38: // data entry LSB
		if !n.matches(s) || !s.FourteenBit || !n.hasDataMSB {
			return unit.ControlValue{}, false
		}
		combined := n.dataMSB<<7 | int(val)
		return unit.AbsoluteDiscrete(unit.NewFraction(combined, 16383)), true
	}
	return unit.ControlValue{}, false
}

func (n *nrpnState) matches(s *Midi) bool {
	if !n.hasParam || n.registered != s.Registered {
		return false
	}
	return s.Number == AnyNumber || n.paramNumber == s.Number
}

func transportMatches(m midi.Message, t TransportMessage) bool {
	switch t {
	case TransportStart:
		return m.Type() == midi.StartMsg
	case TransportContinue:
		return m.Type() == midi.ContinueMsg
	case TransportStop:
		return m.Type() == midi.StopMsg
	}
	return false
}

func to7Bit(v unit.Value) uint8 {
	return uint8(unit.UnitToDiscrete(v, 128))
}

func to14Bit(v unit.Value) int {
	return unit.UnitToDiscrete(v, 16384)
}

// bpmToUnit maps the detectable tempo range 1..960 bpm onto the unit
// interval.
func bpmToUnit(bpm float64) unit.Value {
	return unit.NewValue((bpm - 1.0) / 959.0)
}

// UnitToBpm is the inverse of the tempo mapping, used by feedback text.
func UnitToBpm(v unit.Value) float64 {
	return 1.0 + v.Get()*959.0
}
