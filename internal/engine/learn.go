package engine

import (
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/source"
)

// pairWindow is how long the scanner waits for the second half of a
// multi-message source (14-bit CC LSB, (N)RPN data entry) before settling
// on the single-message interpretation.
const pairWindow = 150 * time.Millisecond

// learnScanner turns captured MIDI into a source guess. Some sources only
// reveal themselves across several messages: a 14-bit CC is an MSB on
// controller n followed by an LSB on n+32, and (N)RPN is a parameter
// number select pair followed by a data entry CC. The scanner therefore
// holds single CCs briefly and upgrades them when their partner arrives.
type learnScanner struct {
	pending   bool
	pendingCh uint8
	pendingCC uint8
	pendingAt time.Time

	nrpnActive     bool
	nrpnRegistered bool
	nrpnCh         uint8
	nrpnParam      int
	nrpnAt         time.Time
}

// Feed consumes one message and returns a finished source guess, if any.
func (s *learnScanner) Feed(msg midi.Message, now time.Time) (*source.Midi, bool) {
	var ch, key, vel, cc, val, prog uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&ch, &key, &vel), msg.GetNoteOff(&ch, &key, &vel):
		return s.simple(source.NoteVelocity, ch, int(key)), true
	case msg.GetPolyAfterTouch(&ch, &key, &vel):
		return s.simple(source.PolyPressure, ch, int(key)), true
	case msg.GetControlChange(&ch, &cc, &val):
		return s.feedCC(ch, cc, val, now)
	case msg.GetProgramChange(&ch, &prog):
		return s.simple(source.ProgramChangeNumber, ch, source.AnyNumber), true
	case msg.GetAfterTouch(&ch, &vel):
		return s.simple(source.ChannelPressure, ch, source.AnyNumber), true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return s.simple(source.PitchBendChangeValue, ch, source.AnyNumber), true
	default:
		return nil, false
	}
}

// Poll settles pending guesses whose partner never arrived.
func (s *learnScanner) Poll(now time.Time) (*source.Midi, bool) {
	if s.pending && now.Sub(s.pendingAt) > pairWindow {
		s.pending = false
		return s.simple(source.ControlChangeValue, s.pendingCh, int(s.pendingCC)), true
	}
	if s.nrpnActive && now.Sub(s.nrpnAt) > pairWindow {
		s.nrpnActive = false
	}
	return nil, false
}

func (s *learnScanner) feedCC(ch, cc, val uint8, now time.Time) (*source.Midi, bool) {
	switch cc {
	case 99, 98, 101, 100:
		// Parameter number select. 99/98 is NRPN, 101/100 RPN; the odd
		// controller carries the parameter MSB, the even one the LSB.
		if !s.nrpnActive || s.nrpnCh != ch {
			s.nrpnParam = 0
		}
		s.nrpnActive = true
		s.nrpnRegistered = cc == 101 || cc == 100
		s.nrpnCh = ch
		s.nrpnAt = now
		if cc == 99 || cc == 101 {
			s.nrpnParam = int(val)<<7 | (s.nrpnParam & 0x7F)
		} else {
			s.nrpnParam = (s.nrpnParam &^ 0x7F) | int(val)
		}
		return nil, false
	case 6, 38:
		if s.nrpnActive && s.nrpnCh == ch {
			s.nrpnActive = false
			guess := s.simple(source.ParameterNumberValue, ch, s.nrpnParam)
			guess.Registered = s.nrpnRegistered
			return guess, true
		}
		return s.plainCC(ch, cc, now)
	default:
		return s.plainCC(ch, cc, now)
	}
}

func (s *learnScanner) plainCC(ch, cc uint8, now time.Time) (*source.Midi, bool) {
	if s.pending && s.pendingCh == ch && cc == s.pendingCC+32 &&
		now.Sub(s.pendingAt) <= pairWindow {
		// MSB/LSB pair complete.
		s.pending = false
		guess := s.simple(source.ControlChangeValue, ch, int(s.pendingCC))
		guess.FourteenBit = true
		return guess, true
	}
	if cc < 32 {
		// Could be the MSB of a 14-bit pair; hold it.
		s.pending = true
		s.pendingCh = ch
		s.pendingCC = cc
		s.pendingAt = now
		return nil, false
	}
	return s.simple(source.ControlChangeValue, ch, int(cc)), true
}

func (s *learnScanner) simple(kind source.MidiKind, ch uint8, number int) *source.Midi {
	m := source.NewMidi(kind)
	m.Channel = int(ch)
	m.Number = number
	return m
}
