package mapping_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/target/targettest"
	"github.com/tilde-audio/remap/internal/unit"
)

func ccSource(number int) *source.Midi {
	s := source.NewMidi(source.ControlChangeValue)
	s.Channel = 0
	s.Number = number
	return s
}

func volumeMapping(t *testing.T, p *targettest.Provider, trackIndex int) *mapping.Mapping {
	t.Helper()
	m := mapping.New(
		mapping.CompartmentMain,
		uuid.New(),
		ccSource(20),
		mode.DefaultSettings(),
		target.Descriptor{
			Kind:  target.KindTrackVolume,
			Track: target.TrackSelector{Kind: target.TrackByIndex, Index: trackIndex},
		},
	)
	if err := m.RefreshTargets(target.ResolveContext{Provider: p}); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestControlEndToEnd(t *testing.T) {
	p := targettest.New()
	ts := p.AddTrack("A")
	m := volumeMapping(t, p, 0)
	ctx := target.Context{Provider: p}

	res := m.Control(source.NewMidiMessage(midi.ControlChange(0, 20, 127)), ctx, time.Now())
	if !res.Matched || !res.Successful {
		t.Fatalf("expected a successful hit, got %+v", res)
	}
	if ts.Volume != 1 {
		t.Errorf("expected volume 1, got %v", ts.Volume)
	}

	// A non-matching message leaves everything untouched.
	res = m.Control(source.NewMidiMessage(midi.ControlChange(0, 21, 10)), ctx, time.Now())
	if res.Matched {
		t.Error("foreign controller number must not match")
	}
}

func TestControlWithValueSkipsMatching(t *testing.T) {
	p := targettest.New()
	ts := p.AddTrack("A")
	m := volumeMapping(t, p, 0)
	ctx := target.Context{Provider: p}

	res := m.ControlWithValue(unit.AbsoluteContinuous(0.25), ctx, time.Now())
	if !res.Successful {
		t.Fatal("expected a hit")
	}
	if ts.Volume != 0.25 {
		t.Errorf("expected volume 0.25, got %v", ts.Volume)
	}
}

func TestFeedbackRendersSourceMessage(t *testing.T) {
	p := targettest.New()
	ts := p.AddTrack("A")
	ts.Volume = 0.5
	m := volumeMapping(t, p, 0)

	fb, ok := m.Feedback(target.Context{Provider: p})
	if !ok {
		t.Fatal("expected feedback")
	}
	if fb.Kind != source.MidiFeedback || len(fb.Midi) == 0 {
		t.Fatalf("expected midi feedback, got %+v", fb)
	}
}

func TestEffectiveOnConjunction(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	m := volumeMapping(t, p, 0)

	if !m.ControlIsEffectivelyOn(true) {
		t.Fatal("fresh mapping should be on")
	}
	if m.ControlIsEffectivelyOn(false) {
		t.Error("instance-wide disable must win")
	}
	m.ControlEnabled = false
	if m.ControlIsEffectivelyOn(true) {
		t.Error("control flag must gate control")
	}
	if !m.FeedbackIsEffectivelyOn(true) {
		t.Error("feedback side is independent of the control flag")
	}
}

func TestBankActivationFlip(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	m := volumeMapping(t, p, 0)
	m.Activation = mapping.ActivationCondition{
		Kind:           mapping.ActivationBank,
		BankParamIndex: 5,
		BankIndex:      2,
	}

	params := make([]float64, mapping.CompartmentParamCount)
	if _, changed := m.RefreshActivation(params, true); !changed {
		t.Fatal("initial evaluation should deactivate (bank 0 != 2)")
	}
	if m.IsActive() {
		t.Fatal("bank 0 must not activate bank-2 condition")
	}

	params[5] = 0.02 // computes to bank 2
	change, changed := m.RefreshActivation(params, true)
	if !changed || !change.NowActive {
		t.Fatalf("expected activation flip, got %+v changed=%v", change, changed)
	}
	if !m.DependsOnParameter(5) {
		t.Error("mapping should report dependency on parameter 5")
	}
	if m.DependsOnParameter(6) {
		t.Error("mapping should not depend on parameter 6")
	}
}

func TestModifierActivation(t *testing.T) {
	c := mapping.ActivationCondition{
		Kind: mapping.ActivationModifier,
		Modifiers: []mapping.ModifierState{
			{ParamIndex: 0, On: true},
			{ParamIndex: 1, On: false},
		},
	}
	params := make([]float64, 100)
	if c.IsActive(params) {
		t.Fatal("modifier 0 is off, condition must not hold")
	}
	params[0] = 1
	if !c.IsActive(params) {
		t.Fatal("condition should hold now")
	}
	params[1] = 1
	if c.IsActive(params) {
		t.Fatal("modifier 1 must be off")
	}
}

func TestExprActivation(t *testing.T) {
	c, err := mapping.NewExprActivation("p[0] > 0.5 && p[1] < 0.5")
	if err != nil {
		t.Fatal(err)
	}
	params := make([]float64, 100)
	params[0] = 0.6
	if !c.IsActive(params) {
		t.Error("expression should evaluate to true")
	}
	params[1] = 0.9
	if c.IsActive(params) {
		t.Error("expression should evaluate to false")
	}
	if !c.DependsOnParameter(42) {
		t.Error("expression conditions depend on every parameter")
	}
}

func TestGroupActivationGatesMapping(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	m := volumeMapping(t, p, 0)

	params := make([]float64, mapping.CompartmentParamCount)
	if _, changed := m.RefreshActivation(params, false); !changed {
		t.Fatal("group deactivation should flip the mapping")
	}
	if m.ControlIsEffectivelyOn(true) {
		t.Error("inactive group must gate control")
	}
}

func TestSplinterHasIndependentSourceState(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")

	src := ccSource(20)
	src.FourteenBit = true
	m := mapping.New(mapping.CompartmentMain, uuid.New(), src, mode.DefaultSettings(),
		target.Descriptor{
			Kind:  target.KindTrackVolume,
			Track: target.TrackSelector{Kind: target.TrackByIndex, Index: 0},
		})
	rt := m.SplinterRealTime(true)

	// Feed the MSB only to the main source; the splinter must still be
	// waiting for its own MSB and not complete the pair from shared state.
	if _, ok := m.Source.Control(source.NewMidiMessage(midi.ControlChange(0, 20, 64))); ok {
		t.Fatal("MSB alone must not complete a 14-bit value")
	}
	if _, ok := rt.Match(source.NewMidiMessage(midi.ControlChange(0, 52, 0))); ok {
		t.Error("LSB without a preceding MSB on the splinter must not match")
	}
}

func TestSplinterRealTimeTarget(t *testing.T) {
	m := mapping.New(mapping.CompartmentMain, uuid.New(), ccSource(20), mode.DefaultSettings(),
		target.Descriptor{
			Kind: target.KindSendMidi,
			MidiPattern: []source.PatternByte{
				{Value: 0xB0}, {Value: 30}, {Variable: true},
			},
		})
	rt := m.SplinterRealTime(true)
	if rt.RealTimeTarget == nil {
		t.Fatal("send-midi mapping should splinter with a real-time target")
	}

	out := &captureSender{}
	cv, ok := rt.Match(source.NewMidiMessage(midi.ControlChange(0, 20, 127)))
	if !ok {
		t.Fatal("expected a match")
	}
	if !rt.HitLocal(cv, out, time.Now()) {
		t.Fatal("expected a local hit")
	}
	if len(out.msgs) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(out.msgs))
	}
}

type captureSender struct {
	msgs []midi.Message
}

func (c *captureSender) SendMidi(msg midi.Message) { c.msgs = append(c.msgs, msg) }

func TestEffectiveTagMerge(t *testing.T) {
	g := mapping.NewGroup(uuid.New(), "faders")
	g.Tags = []string{"hw", "bank-a"}
	got := g.EffectiveTags([]string{"bank-a", "synth"})
	want := []string{"hw", "bank-a", "synth"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}
