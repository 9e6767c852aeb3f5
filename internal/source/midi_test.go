package source

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/unit"
)

func TestNoteVelocityControl(t *testing.T) {
	s := NewMidi(NoteVelocity)
	s.Channel = 0
	s.Number = 60

	cv, ok := s.Control(NewMidiMessage(midi.NoteOn(0, 60, 127)))
	if !ok {
		t.Fatal("expected match")
	}
	if cv.Unit() != 1 {
		t.Errorf("expected 1, got %v", cv.Unit())
	}

	cv, ok = s.Control(NewMidiMessage(midi.NoteOff(0, 60)))
	if !ok {
		t.Fatal("expected note off match")
	}
	if cv.Unit() != 0 {
		t.Errorf("expected 0, got %v", cv.Unit())
	}

	if _, ok := s.Control(NewMidiMessage(midi.NoteOn(0, 61, 127))); ok {
		t.Error("wrong key should not match")
	}
	if _, ok := s.Control(NewMidiMessage(midi.NoteOn(1, 60, 127))); ok {
		t.Error("wrong channel should not match")
	}
}

func TestAnyChannelMatches(t *testing.T) {
	s := NewMidi(NoteVelocity)
	s.Number = 60
	for ch := uint8(0); ch < 16; ch++ {
		if _, ok := s.Control(NewMidiMessage(midi.NoteOn(ch, 60, 100))); !ok {
			t.Fatalf("channel %d should match", ch)
		}
	}
}

func TestControlChangeValue(t *testing.T) {
	s := NewMidi(ControlChangeValue)
	s.Channel = 0
	s.Number = 7

	cv, ok := s.Control(NewMidiMessage(midi.ControlChange(0, 7, 64)))
	if !ok {
		t.Fatal("expected match")
	}
	f := cv.Abs.Fraction()
	if f.Actual != 64 || f.Max != 127 {
		t.Errorf("expected 64/127, got %d/%d", f.Actual, f.Max)
	}
}

func TestEncoderDecoding(t *testing.T) {
	cases := []struct {
		char CCCharacter
		val  uint8
		want unit.Increment
		ok   bool
	}{
		{CCEncoder1, 1, 1, true},
		{CCEncoder1, 3, 3, true},
		{CCEncoder1, 127, -1, true},
		{CCEncoder1, 125, -3, true},
		{CCEncoder2, 65, 1, true},
		{CCEncoder2, 63, -1, true},
		{CCEncoder2, 64, 0, false},
		{CCEncoder3, 1, 1, true},
		{CCEncoder3, 65, -1, true},
		{CCEncoder3, 67, -3, true},
	}
	for _, c := range cases {
		got, ok := decodeEncoder(c.char, c.val)
		if ok != c.ok {
			t.Errorf("char %d val %d: ok=%v, expected %v", c.char, c.val, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("char %d val %d: got %d, expected %d", c.char, c.val, got, c.want)
		}
	}
}

func TestFourteenBitCCPairing(t *testing.T) {
	s := NewMidi(ControlChangeValue)
	s.Number = 7
	s.FourteenBit = true

	if _, ok := s.Control(NewMidiMessage(midi.ControlChange(0, 7, 0x40))); ok {
		t.Fatal("MSB alone should not produce a value")
	}
	cv, ok := s.Control(NewMidiMessage(midi.ControlChange(0, 39, 0x01)))
	if !ok {
		t.Fatal("LSB after MSB should produce a value")
	}
	f := cv.Abs.Fraction()
	if f.Actual != 0x40<<7|0x01 || f.Max != 16383 {
		t.Errorf("unexpected fraction %d/%d", f.Actual, f.Max)
	}
}

func TestNrpnSequence(t *testing.T) {
	s := NewMidi(ParameterNumberValue)
	s.Number = 130

	feed := func(cc, val uint8) (unit.ControlValue, bool) {
		return s.Control(NewMidiMessage(midi.ControlChange(0, cc, val)))
	}
	if _, ok := feed(99, 1); ok {
		t.Fatal("param MSB should not produce a value")
	}
	if _, ok := feed(98, 2); ok {
		t.Fatal("param LSB should not produce a value")
	}
	cv, ok := feed(6, 100)
	if !ok {
		t.Fatal("data entry should produce a value")
	}
	if cv.Abs.Fraction().Actual != 100 {
		t.Errorf("expected 100, got %d", cv.Abs.Fraction().Actual)
	}

	// A different parameter number must not match.
	if _, ok := feed(99, 5); ok {
		t.Fatal("param MSB should not produce a value")
	}
	if _, ok := feed(6, 50); ok {
		t.Error("data entry for foreign parameter should not match")
	}
}

func TestRawPattern(t *testing.T) {
	s := NewMidi(Raw)
	s.Pattern = []PatternByte{
		{Value: 0xB0}, {Value: 0x14}, {Variable: true},
	}
	cv, ok := s.Control(NewMidiMessage(midi.Message([]byte{0xB0, 0x14, 0x7F})))
	if !ok {
		t.Fatal("expected match")
	}
	if cv.Unit() != 1 {
		t.Errorf("expected 1, got %v", cv.Unit())
	}
	if _, ok := s.Control(NewMidiMessage(midi.Message([]byte{0xB0, 0x15, 0x7F}))); ok {
		t.Error("fixed byte mismatch should not match")
	}
}

func TestCCFeedbackRoundTrip(t *testing.T) {
	s := NewMidi(ControlChangeValue)
	s.Channel = 2
	s.Number = 20

	fb, ok := s.Feedback(1, FeedbackStyle{})
	if !ok {
		t.Fatal("expected feedback")
	}
	if len(fb.Midi) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fb.Midi))
	}
	var ch, cc, val uint8
	if !fb.Midi[0].GetControlChange(&ch, &cc, &val) {
		t.Fatal("expected a control change")
	}
	if ch != 2 || cc != 20 || val != 127 {
		t.Errorf("unexpected feedback %d %d %d", ch, cc, val)
	}
}

func TestFourteenBitFeedback(t *testing.T) {
	s := NewMidi(ControlChangeValue)
	s.Number = 7
	s.FourteenBit = true

	fb, ok := s.Feedback(1, FeedbackStyle{})
	if !ok {
		t.Fatal("expected feedback")
	}
	if len(fb.Midi) != 2 {
		t.Fatalf("expected MSB+LSB pair, got %d messages", len(fb.Midi))
	}
}

func TestFeedbackAddressEquality(t *testing.T) {
	a := NewMidi(ControlChangeValue)
	a.Channel = 0
	a.Number = 1
	b := NewMidi(ControlChangeValue)
	b.Channel = 0
	b.Number = 1
	c := NewMidi(ControlChangeValue)
	c.Channel = 0
	c.Number = 2

	if !HasSameFeedbackAddress(a, b) {
		t.Error("same cc sources should share a feedback address")
	}
	if HasSameFeedbackAddress(a, c) {
		t.Error("different cc numbers must not share a feedback address")
	}
}

func TestClockTransport(t *testing.T) {
	s := NewMidi(ClockTransport)
	s.Transport = TransportStart
	if _, ok := s.Control(NewMidiMessage(midi.Start())); !ok {
		t.Error("start message should match")
	}
	if _, ok := s.Control(NewMidiMessage(midi.Stop())); ok {
		t.Error("stop message should not match a start source")
	}
}
