package engine_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/engine"
	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/mode"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/target/targettest"
	"github.com/tilde-audio/remap/internal/unit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// midiLog captures everything flushed to a registered output device.
type midiLog struct {
	msgs []midi.Message
}

func (l *midiLog) SendMidi(m midi.Message) { l.msgs = append(l.msgs, m) }

// ccValues extracts the values of all captured messages for one
// controller number.
func (l *midiLog) ccValues(number uint8) []uint8 {
	var out []uint8
	for _, m := range l.msgs {
		var ch, cc, val uint8
		if m.GetControlChange(&ch, &cc, &val) && cc == number {
			out = append(out, val)
		}
	}
	return out
}

func ccSource(number int) *source.Midi {
	s := source.NewMidi(source.ControlChangeValue)
	s.Channel = 0
	s.Number = number
	return s
}

func volumeMapping(t *testing.T, p *targettest.Provider, ccNumber, trackIndex int) *mapping.Mapping {
	t.Helper()
	return mapping.New(
		mapping.CompartmentMain,
		uuid.New(),
		ccSource(ccNumber),
		mode.DefaultSettings(),
		target.Descriptor{
			Kind:  target.KindTrackVolume,
			Track: target.TrackSelector{Kind: target.TrackByIndex, Index: trackIndex},
		},
	)
}

func newInstance(id string, hook *engine.AudioHook, bb *engine.Backbone, p *targettest.Provider) *engine.MainProcessor {
	mp := engine.NewMainProcessor(id, testLogger(), hook, bb, p, "X", nil)
	bb.Register(mp)
	return mp
}

// cycle runs one main-processor cycle and flushes the hook's feedback
// queue into the registered outputs.
func cycle(hook *engine.AudioHook, mps ...*engine.MainProcessor) {
	now := time.Now()
	for _, mp := range mps {
		mp.Run(now)
	}
	hook.Poll(nil, now)
}

func loadMain(mp *engine.MainProcessor, ms ...*mapping.Mapping) {
	mp.EnqueueSessionCommand(engine.UpdateAllMappings{
		Compartment: mapping.CompartmentMain,
		Mappings:    ms,
	})
}

func TestFeedbackDedupIdempotence(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)

	m := volumeMapping(t, p, 20, 0)
	m.FeedbackBehavior = source.SendFeedbackAfterControl
	loadMain(mp, m)
	cycle(hook, mp)

	initial := len(out.ccValues(20))
	if initial != 1 {
		t.Fatalf("expected exactly one initial feedback message, got %d", initial)
	}

	// Identical recomputation must be suppressed.
	mp.EnqueueFeedbackCommand(engine.FeedbackCommand{MappingID: m.QualifiedID(), HasID: true})
	cycle(hook, mp)
	if n := len(out.ccValues(20)); n != initial {
		t.Errorf("identical feedback must be deduplicated, got %d messages", n)
	}

	// A control action with after-control echo bypasses dedup even when the
	// rendered bytes are identical to the cached ones (0.71 renders as 90,
	// and CC value 90 writes back 90/127).
	mp.EnqueueControl(source.NewMidiMessage(midi.ControlChange(0, 20, 90)))
	cycle(hook, mp)
	if n := len(out.ccValues(20)); n != initial+1 {
		t.Errorf("after-control feedback must bypass dedup, got %d messages", n)
	}
}

func TestGroupInteractionFanOut(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	p.AddTrack("B")
	p.AddTrack("C")
	hook := engine.NewAudioHook(testLogger())
	hook.RegisterOutput("X", &midiLog{})
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)

	settings := mode.DefaultSettings()
	settings.GroupInteraction = mode.SameControl
	group := uuid.New()
	var ms []*mapping.Mapping
	for i, cc := range []int{20, 21, 22} {
		m := mapping.New(mapping.CompartmentMain, uuid.New(), ccSource(cc), settings,
			target.Descriptor{
				Kind:  target.KindTrackVolume,
				Track: target.TrackSelector{Kind: target.TrackByIndex, Index: i},
			})
		m.GroupID = group
		ms = append(ms, m)
	}
	loadMain(mp, ms...)
	cycle(hook, mp)
	drainEvents(p)

	mp.EnqueueControl(source.NewMidiMessage(midi.ControlChange(0, 20, 64)))
	cycle(hook, mp)

	// Exactly one volume write per track, all with the identical value.
	hits := map[uuid.UUID]int{}
	for _, evt := range drainEvents(p) {
		if evt.Kind == target.EventTrackVolume {
			hits[evt.Track]++
			if want := 64.0 / 127.0; evt.Value != want {
				t.Errorf("expected fanned-out value %v, got %v", want, evt.Value)
			}
		}
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 tracks hit, got %d", len(hits))
	}
	for id, n := range hits {
		if n != 1 {
			t.Errorf("track %s hit %d times, want exactly once", id, n)
		}
	}
}

func drainEvents(p *targettest.Provider) []target.ChangeEvent {
	var out []target.ChangeEvent
	for {
		select {
		case evt := <-p.Notifications():
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestSourceTakeoverAcrossInstances(t *testing.T) {
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())

	pa := targettest.New()
	ta := pa.AddTrack("A")
	ta.Volume = 0.71
	pb := targettest.New()
	tb := pb.AddTrack("B")
	tb.Volume = 0.40

	a := newInstance("a", hook, bb, pa)
	b := newInstance("b", hook, bb, pb)
	loadMain(a, volumeMapping(t, pa, 1, 0))
	loadMain(b, volumeMapping(t, pb, 1, 0))
	cycle(hook, a, b)

	// Disabling A's feedback must not dim the shared control: B takes over
	// and re-asserts its own value instead.
	out.msgs = nil
	a.EnqueueSessionCommand(engine.UpdateSettings{ControlOn: true, FeedbackOn: false})
	cycle(hook, a, b)

	vals := out.ccValues(1)
	if len(vals) == 0 {
		t.Fatal("expected a takeover resend from instance b")
	}
	for _, v := range vals {
		if v == 0 {
			t.Fatal("no off-message may be sent while another instance still uses the address")
		}
	}
	if vals[len(vals)-1] != 51 { // 0.40 * 127 rounded
		t.Errorf("takeover must resend b's own value, got %d", vals[len(vals)-1])
	}

	// With B gone too, the true off value finally goes out.
	out.msgs = nil
	b.EnqueueSessionCommand(engine.UpdateSettings{ControlOn: true, FeedbackOn: false})
	cycle(hook, a, b)

	vals = out.ccValues(1)
	if len(vals) != 1 || vals[0] != 0 {
		t.Fatalf("expected exactly one off message, got %v", vals)
	}
}

func TestVirtualRoutingEndToEnd(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	t2 := p.AddTrack("B")
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)
	adapter := engine.NewControlSurfaceAdapter(testLogger(), mp, nil)

	// Controller compartment: CC20 drives virtual button #3.
	ctrl := mapping.New(mapping.CompartmentController, uuid.New(), ccSource(20),
		mode.DefaultSettings(), target.Descriptor{
			Kind:             target.KindVirtual,
			Element:          source.IndexedElement(3),
			ElementCharacter: source.Button,
		})
	// Main compartment: virtual button #3 toggles mute on track 2.
	main := mapping.New(mapping.CompartmentMain, uuid.New(),
		&source.Virtual{Element: source.IndexedElement(3), Character: source.Button},
		mode.DefaultSettings(), target.Descriptor{
			Kind:  target.KindTrackMute,
			Track: target.TrackSelector{Kind: target.TrackByIndex, Index: 1},
		})
	mp.EnqueueSessionCommand(engine.UpdateAllMappings{
		Compartment: mapping.CompartmentController,
		Mappings:    []*mapping.Mapping{ctrl},
	})
	loadMain(mp, main)
	cycle(hook, mp)

	// Hardware press travels CC20 -> virtual #3 -> TrackMute.
	mp.EnqueueControl(source.NewMidiMessage(midi.ControlChange(0, 20, 127)))
	cycle(hook, mp)
	if !t2.Muted {
		t.Fatal("expected track 2 to be muted via virtual routing")
	}
	// Settle the change event the control hit itself produced.
	adapter.Poll()
	cycle(hook, mp)

	// Muting through another path feeds back as a binary on value on CC20.
	out.msgs = nil
	if err := p.SetTrackMuted(t2.Track.ID, false); err != nil {
		t.Fatal(err)
	}
	adapter.Poll()
	cycle(hook, mp)
	if err := p.SetTrackMuted(t2.Track.ID, true); err != nil {
		t.Fatal(err)
	}
	adapter.Poll()
	cycle(hook, mp)

	vals := out.ccValues(20)
	if len(vals) != 2 || vals[0] != 0 || vals[1] != 127 {
		t.Fatalf("expected binary off/on feedback [0 127], got %v", vals)
	}
}

func TestBankActivationGating(t *testing.T) {
	p := targettest.New()
	p.AddTrack("A")
	tb := p.AddTrack("B")
	tb.Volume = 0.30
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)

	// Two mappings share CC30; bank selection decides which one is live.
	a := volumeMapping(t, p, 30, 0)
	a.Activation = mapping.ActivationCondition{
		Kind: mapping.ActivationBank, BankParamIndex: 5, BankIndex: 0,
	}
	b := volumeMapping(t, p, 30, 1)
	b.Activation = mapping.ActivationCondition{
		Kind: mapping.ActivationBank, BankParamIndex: 5, BankIndex: 2,
	}
	loadMain(mp, a, b)
	cycle(hook, mp)

	if !a.ControlIsEffectivelyOn(true) || b.ControlIsEffectivelyOn(true) {
		t.Fatal("bank 0 must activate mapping a only")
	}
	if vals := out.ccValues(30); len(vals) != 1 || vals[0] != 90 {
		t.Fatalf("expected a's initial feedback [90], got %v", vals)
	}

	// Switching to bank 2 flips activation; the shared address stays in use
	// so no off-message appears, only b's initial feedback.
	out.msgs = nil
	mp.EnqueueParameter(engine.ParameterTask{Index: 5, Value: 0.02})
	cycle(hook, mp)

	if a.ControlIsEffectivelyOn(true) || !b.ControlIsEffectivelyOn(true) {
		t.Fatal("bank 2 must flip activation from a to b")
	}
	vals := out.ccValues(30)
	if len(vals) == 0 {
		t.Fatal("expected an initial feedback send for the newly active mapping")
	}
	for _, v := range vals {
		if v == 0 {
			t.Error("shared address still in use, no off-feedback allowed")
		}
	}
	if vals[len(vals)-1] != 38 { // 0.30 * 127 rounded
		t.Errorf("expected b's value 38, got %d", vals[len(vals)-1])
	}

	// A bank nobody listens to releases the address for real.
	out.msgs = nil
	mp.EnqueueParameter(engine.ParameterTask{Index: 5, Value: 0.05})
	cycle(hook, mp)

	vals = out.ccValues(30)
	if len(vals) != 1 || vals[0] != 0 {
		t.Fatalf("expected exactly one off message, got %v", vals)
	}
}

func TestSendMidiHitsOncePerControlEvent(t *testing.T) {
	p := targettest.New()
	ta := p.AddTrack("A")
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)
	mp.SetInputDevice("IN")
	hook.AddProcessor(mp.RealTime())

	// CC20 drives a raw emit and a volume mapping at once. The emit is hit
	// on the audio thread; the forwarded event covers the volume mapping
	// only.
	emit := mapping.New(mapping.CompartmentMain, uuid.New(), ccSource(20),
		mode.DefaultSettings(), target.Descriptor{
			Kind: target.KindSendMidi,
			MidiPattern: []source.PatternByte{
				{Value: 0xB0}, {Value: 1}, {Variable: true},
			},
		})
	loadMain(mp, emit, volumeMapping(t, p, 20, 0))
	cycle(hook, mp)

	out.msgs = nil
	now := time.Now()
	hook.Poll([]engine.DeviceEvents{{
		Device:   "IN",
		Messages: []midi.Message{midi.ControlChange(0, 20, 64)},
	}}, now)
	mp.Run(now)
	hook.Poll(nil, now)

	if vals := out.ccValues(1); len(vals) != 1 || vals[0] != 64 {
		t.Fatalf("raw emit must happen exactly once per control event, got %v", vals)
	}
	if ta.Volume != 64.0/127.0 {
		t.Errorf("the volume mapping on the same source must still hit, got %v", ta.Volume)
	}
}

func TestPreventEchoFeedbackSuppressesEcho(t *testing.T) {
	p := targettest.New()
	ta := p.AddTrack("A")
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)
	adapter := engine.NewControlSurfaceAdapter(testLogger(), mp, nil)

	m := volumeMapping(t, p, 20, 0)
	m.FeedbackBehavior = source.PreventEchoFeedback
	loadMain(mp, m)
	cycle(hook, mp)

	// The encoder moved itself; mirroring the change event its own hit
	// produced back to it would fight the user's finger.
	out.msgs = nil
	mp.EnqueueControl(source.NewMidiMessage(midi.ControlChange(0, 20, 100)))
	cycle(hook, mp)
	adapter.Poll()
	cycle(hook, mp)
	if vals := out.ccValues(20); len(vals) != 0 {
		t.Fatalf("echo feedback leaked: %v", vals)
	}

	// A change from elsewhere is not an echo and still feeds back.
	if err := p.SetTrackVolume(ta.Track.ID, unit.NewValue(0.3)); err != nil {
		t.Fatal(err)
	}
	adapter.Poll()
	cycle(hook, mp)
	if vals := out.ccValues(20); len(vals) != 1 || vals[0] != 38 {
		t.Fatalf("expected external change feedback [38], got %v", vals)
	}
}

func TestUpperFloorSuspension(t *testing.T) {
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())

	pa := targettest.New()
	pa.AddTrack("A")
	pb := targettest.New()
	tb := pb.AddTrack("B")
	tb.Volume = 0.40

	a := newInstance("a", hook, bb, pa)
	b := newInstance("b", hook, bb, pb)
	loadMain(a, volumeMapping(t, pa, 1, 0))
	loadMain(b, volumeMapping(t, pb, 2, 0))
	cycle(hook, a, b)

	// B takes the ceiling; A goes dark on its next cycle, B keeps its
	// state untouched.
	out.msgs = nil
	b.EnqueueSessionCommand(engine.UpdateSettings{
		ControlOn: true, FeedbackOn: true, UpperFloor: true,
	})
	cycle(hook, a, b)
	cycle(hook, a, b)
	if vals := out.ccValues(1); len(vals) != 1 || vals[0] != 0 {
		t.Fatalf("expected suspension off-message [0] on cc1, got %v", vals)
	}
	if vals := out.ccValues(2); len(vals) != 0 {
		t.Fatalf("the ceiling holder must not resend, got %v", vals)
	}

	// Releasing the ceiling brings A back with a full resend.
	out.msgs = nil
	b.EnqueueSessionCommand(engine.UpdateSettings{
		ControlOn: true, FeedbackOn: true, UpperFloor: false,
	})
	cycle(hook, a, b)
	cycle(hook, a, b)
	if vals := out.ccValues(1); len(vals) != 1 || vals[0] != 90 {
		t.Fatalf("expected reactivation resend [90] on cc1, got %v", vals)
	}
}

func TestClaimedEventsWithheldFromLaterInstances(t *testing.T) {
	hook := engine.NewAudioHook(testLogger())
	hook.RegisterOutput("X", &midiLog{})
	bb := engine.NewBackbone(testLogger())

	pa := targettest.New()
	ta := pa.AddTrack("A")
	pb := targettest.New()
	tb := pb.AddTrack("B")

	a := newInstance("a", hook, bb, pa)
	b := newInstance("b", hook, bb, pb)
	a.SetInputDevice("IN")
	b.SetInputDevice("IN")
	hook.AddProcessor(a.RealTime())
	hook.AddProcessor(b.RealTime())
	loadMain(a, volumeMapping(t, pa, 20, 0))
	loadMain(b, volumeMapping(t, pb, 20, 0))
	// Processor adds drain at one per audio cycle.
	cycle(hook, a, b)
	cycle(hook, a, b)

	send := func(val uint8) {
		now := time.Now()
		hook.Poll([]engine.DeviceEvents{{
			Device:   "IN",
			Messages: []midi.Message{midi.ControlChange(0, 20, val)},
		}}, now)
		a.Run(now)
		b.Run(now)
	}

	send(64)
	if ta.Volume != 64.0/127.0 || tb.Volume != 64.0/127.0 {
		t.Fatalf("both instances should react without a claim, got %v / %v", ta.Volume, tb.Volume)
	}

	a.EnqueueSessionCommand(engine.UpdateSettings{
		ControlOn: true, FeedbackOn: true, ClaimMatchedEvents: true,
	})
	cycle(hook, a, b)
	send(32)
	if ta.Volume != 32.0/127.0 {
		t.Errorf("the claiming instance must still react, got %v", ta.Volume)
	}
	if tb.Volume != 64.0/127.0 {
		t.Errorf("claimed event leaked to the second instance, volume %v", tb.Volume)
	}
}

func TestReleasedAddressResendsAfterReload(t *testing.T) {
	p := targettest.New()
	ta := p.AddTrack("A")
	ta.Volume = 0
	hook := engine.NewAudioHook(testLogger())
	out := &midiLog{}
	hook.RegisterOutput("X", out)
	bb := engine.NewBackbone(testLogger())
	mp := newInstance("a", hook, bb, p)

	m := volumeMapping(t, p, 20, 0)
	loadMain(mp, m)
	cycle(hook, mp)
	if vals := out.ccValues(20); len(vals) != 1 || vals[0] != 0 {
		t.Fatalf("expected initial feedback [0], got %v", vals)
	}

	// Unloading releases the address with a final off. Reloading must send
	// the identical value again; the hardware may have changed hands in
	// between.
	loadMain(mp)
	cycle(hook, mp)
	out.msgs = nil
	loadMain(mp, m)
	cycle(hook, mp)
	if vals := out.ccValues(20); len(vals) != 1 || vals[0] != 0 {
		t.Fatalf("expected the reloaded address to resend [0], got %v", vals)
	}
}

func TestLearnScannerDetectsFourteenBitPair(t *testing.T) {
	hook := engine.NewAudioHook(testLogger())
	capture := make(chan *source.Midi, 4)
	hook.StartLearning(capture)

	now := time.Now()
	hook.Poll([]engine.DeviceEvents{{
		Device:   "X",
		Messages: []midi.Message{midi.ControlChange(0, 2, 1), midi.ControlChange(0, 34, 5)},
	}}, now)

	select {
	case guess := <-capture:
		if guess.Kind != source.ControlChangeValue || guess.Number != 2 || !guess.FourteenBit {
			t.Fatalf("expected 14-bit CC2 guess, got %+v", guess)
		}
	default:
		t.Fatal("expected a captured source guess")
	}

	// A lone low CC settles as a plain 7-bit source after the pair window.
	hook.Poll([]engine.DeviceEvents{{
		Device:   "X",
		Messages: []midi.Message{midi.ControlChange(0, 7, 99)},
	}}, now)
	hook.Poll(nil, now.Add(200*time.Millisecond))

	select {
	case guess := <-capture:
		if guess.Number != 7 || guess.FourteenBit {
			t.Fatalf("expected plain CC7 guess, got %+v", guess)
		}
	default:
		t.Fatal("expected the pending guess to settle")
	}
}
