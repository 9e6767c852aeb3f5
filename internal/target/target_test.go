package target_test

import (
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/target/targettest"
	"github.com/tilde-audio/remap/internal/unit"
)

func TestResolveTrackByNameWildcard(t *testing.T) {
	p := targettest.New()
	p.AddTrack("Drums 1")
	p.AddTrack("Drums 2")
	p.AddTrack("Bass")

	d := target.Descriptor{
		Kind:  target.KindTrackVolume,
		Track: target.TrackSelector{Kind: target.TrackByName, Name: "Drums *"},
	}
	targets, err := d.Resolve(target.ResolveContext{Provider: p})
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
}

func TestResolveEmptyIsError(t *testing.T) {
	p := targettest.New()
	d := target.Descriptor{
		Kind:  target.KindTrackMute,
		Track: target.TrackSelector{Kind: target.TrackByIndex, Index: 5},
	}
	_, err := d.Resolve(target.ResolveContext{Provider: p})
	if !errors.Is(err, target.ErrEmptyResolution) {
		t.Fatalf("expected ErrEmptyResolution, got %v", err)
	}
}

func TestResolveDynamicTrackSelector(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	p.AddTrack("B")
	p.AddTrack("C")

	sel, err := target.NewDynamicTrackSelector("p[0] * 8")
	if err != nil {
		t.Fatal(err)
	}
	d := target.Descriptor{Kind: target.KindTrackVolume, Track: sel}
	if !d.DependsOnParameters() {
		t.Error("dynamic selector must report parameter dependency")
	}

	params := make([]float64, 200)
	params[0] = 0.25 // 0.25 * 8 = 2
	targets, err := d.Resolve(target.ResolveContext{Provider: p, Params: params})
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	tv := targets[0].(target.TrackVolume)
	if tv.Track.Name != "C" {
		t.Errorf("expected track C, got %q", tv.Track.Name)
	}
}

func TestTrackMuteHitAndChangeEvent(t *testing.T) {
	p := targettest.New()
	ts := p.AddTrack("A")
	ctx := target.Context{Provider: p}

	tm := target.TrackMute{Track: ts.Track}
	if _, err := tm.Hit(unit.ContinuousValue(1), ctx); err != nil {
		t.Fatal(err)
	}
	if !ts.Muted {
		t.Fatal("track should be muted")
	}
	v, ok := tm.CurrentValue(ctx)
	if !ok || !v.IsOn() {
		t.Error("current value should be on")
	}

	evt := <-p.Notifications()
	nv, ok := tm.ProcessChangeEvent(evt, ctx)
	if !ok {
		t.Fatal("event should concern this target")
	}
	if !nv.IsOn() {
		t.Error("event value should be on")
	}
	// An event for another track must not match.
	other := p.AddTrack("B")
	if _, ok := tm.ProcessChangeEvent(target.ChangeEvent{
		Kind: target.EventTrackMute, Track: other.Track.ID, On: true,
	}, ctx); ok {
		t.Error("foreign track event must not match")
	}
}

func TestFxParameterDiscreteCharacter(t *testing.T) {
	p := targettest.New()
	ts := p.AddTrack("A")
	fx := p.AddFx(ts, "Comp", 3)
	fx.StepCounts[1] = 4

	d := target.Descriptor{
		Kind:       target.KindFxParameter,
		Track:      target.TrackSelector{Kind: target.TrackByIndex, Index: 0},
		Fx:         target.FxSelector{Kind: target.FxByIndex, Index: 0},
		ParamIndex: 1,
	}
	targets, err := d.Resolve(target.ResolveContext{Provider: p})
	if err != nil {
		t.Fatal(err)
	}
	fp := targets[0].(target.FxParameter)
	if fp.Character() != target.CharacterDiscrete {
		t.Error("stepped parameter should be discrete")
	}
	if fp.DiscreteCount() != 4 {
		t.Errorf("expected 4 steps, got %d", fp.DiscreteCount())
	}
}

func TestVirtualTargetRecordsValue(t *testing.T) {
	vt := &target.Virtual{
		Element:          source.IndexedElement(3),
		ElementCharacter: source.Button,
	}
	ctx := target.Context{}
	if _, ok := vt.CurrentValue(ctx); ok {
		t.Fatal("no value before the first hit")
	}
	if _, err := vt.Hit(unit.ContinuousValue(1), ctx); err != nil {
		t.Fatal(err)
	}
	v, ok := vt.CurrentValue(ctx)
	if !ok || !v.IsOn() {
		t.Error("hit value should be recorded")
	}
	if vt.Character() != target.CharacterSwitch {
		t.Error("button element should have switch character")
	}
}

type midiCapture struct {
	msgs []midi.Message
}

func (c *midiCapture) SendMidi(msg midi.Message) { c.msgs = append(c.msgs, msg) }

func TestSendMidiFillsPattern(t *testing.T) {
	st := &target.SendMidi{Pattern: []source.PatternByte{
		{Value: 0xB0}, {Value: 20}, {Variable: true},
	}}
	out := &midiCapture{}
	if err := st.HitFromAudioThread(unit.ContinuousValue(1), out); err != nil {
		t.Fatal(err)
	}
	if len(out.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out.msgs))
	}
	want := []byte{0xB0, 20, 127}
	got := []byte(out.msgs[0])
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTransportActionPlayStop(t *testing.T) {
	p := targettest.New()
	ctx := target.Context{Provider: p}
	ta := target.TransportAction{Op: target.OpPlayStop}

	if v, _ := ta.CurrentValue(ctx); v.IsOn() {
		t.Fatal("stopped transport should read off")
	}
	if _, err := ta.Hit(unit.ContinuousValue(1), ctx); err != nil {
		t.Fatal(err)
	}
	if p.Transport() != target.TransportPlaying {
		t.Fatal("transport should be playing")
	}
	if v, _ := ta.CurrentValue(ctx); !v.IsOn() {
		t.Error("playing transport should read on")
	}
	if _, err := ta.Hit(unit.ContinuousValue(0), ctx); err != nil {
		t.Fatal(err)
	}
	if p.Transport() != target.TransportStopped {
		t.Error("transport should be stopped again")
	}
}

func TestEnableMappingsProducesInstruction(t *testing.T) {
	em := &target.EnableMappings{Tags: []string{"synth"}, Exclusive: true}
	instr, err := em.Hit(unit.ContinuousValue(1), target.Context{})
	if err != nil {
		t.Fatal(err)
	}
	if instr == nil {
		t.Fatal("expected an instruction")
	}
	if instr.Kind != target.InstructionEnableMappings || !instr.On || !instr.Exclusive {
		t.Errorf("unexpected instruction: %+v", instr)
	}
	if len(instr.Tags) != 1 || instr.Tags[0] != "synth" {
		t.Errorf("unexpected tags: %v", instr.Tags)
	}
}

func TestSeekTextValue(t *testing.T) {
	p := targettest.New()
	p.Position = 83.5
	ctx := target.Context{Provider: p}
	got := target.Seek{}.TextValue(ctx)
	if got != "1:23.500" {
		t.Errorf("expected 1:23.500, got %q", got)
	}
}
