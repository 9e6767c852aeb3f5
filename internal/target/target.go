package target

import (
	"github.com/hypebeast/go-osc/osc"
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/unit"
)

// Character classifies a target's value space. The mode transform uses it
// to decide between continuous stepping and discrete index arithmetic.
type Character int

const (
	CharacterContinuous Character = iota
	CharacterDiscrete
	CharacterSwitch
	CharacterTrigger
)

// FeedbackResolution declares how a target's value changes reach the
// engine. Normal targets push change events; Beat and High targets have no
// usable push notification and must be polled.
type FeedbackResolution int

const (
	// ResolutionNormal relies on host change events.
	ResolutionNormal FeedbackResolution = iota
	// ResolutionBeat is re-evaluated once per musical beat.
	ResolutionBeat
	// ResolutionHigh is re-evaluated every main loop cycle.
	ResolutionHigh
)

// MidiSender emits MIDI messages toward a feedback output or device.
type MidiSender interface {
	SendMidi(msg midi.Message)
}

// OscSender emits OSC messages toward a configured output device.
type OscSender interface {
	SendOsc(msg *osc.Message)
}

// Context carries the collaborators a target needs at dispatch time.
type Context struct {
	Provider Provider
	MidiOut  MidiSender
	OscOut   OscSender
	// LastTouched is the globally last touched target, maintained by the
	// engine; the LastTouched target delegates to it.
	LastTouched Target
}

// InstructionKind discriminates hit instructions.
type InstructionKind int

const (
	// InstructionEnableMappings flips the enabled state of mappings matched
	// by tag within this instance.
	InstructionEnableMappings InstructionKind = iota
	// InstructionEnableInstances flips the enabled state of whole instances
	// matched by id or tag.
	InstructionEnableInstances
	// InstructionLoadSnapshot loads a named mapping snapshot.
	InstructionLoadSnapshot
)

// Instruction is a deferred side effect on the mapping table itself,
// produced by meta targets and executed by the main processor after the
// regular control stages. Instructions may produce one more generation of
// instructions; the processor stops after two.
type Instruction struct {
	Kind      InstructionKind
	Tags      []string
	Exclusive bool
	On        bool
	Instances []string
	Snapshot  string
}

// Target is the dispatch surface of one resolved target variant.
type Target interface {
	// CurrentValue returns the target's current value if available.
	CurrentValue(ctx Context) (unit.AbsoluteValue, bool)
	// Hit writes a new value. Meta targets return an instruction instead of
	// touching host state.
	Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error)
	// Character classifies the value space.
	Character() Character
	// DiscreteCount returns the number of distinct values for discrete
	// targets, 0 otherwise.
	DiscreteCount() int
	// IsAvailable reports whether the underlying host object still exists.
	IsAvailable(ctx Context) bool
	// ProcessChangeEvent returns the target's new value when the event
	// concerns it, ok=false otherwise.
	ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool)
	// FeedbackResolution declares push vs. polled feedback.
	FeedbackResolution() FeedbackResolution
	// TextValue renders the current value for textual feedback.
	TextValue(ctx Context) string
}

// RealTimeTarget is the subset of targets that may be hit directly from
// the audio thread without touching the host object graph.
type RealTimeTarget interface {
	Target
	HitFromAudioThread(v unit.AbsoluteValue, out MidiSender) error
}

// Embeddable dispatch defaults per value space.

type continuousTarget struct{}

func (continuousTarget) Character() Character                   { return CharacterContinuous }
func (continuousTarget) DiscreteCount() int                     { return 0 }
func (continuousTarget) FeedbackResolution() FeedbackResolution { return ResolutionNormal }

type switchTarget struct{}

func (switchTarget) Character() Character                   { return CharacterSwitch }
func (switchTarget) DiscreteCount() int                     { return 2 }
func (switchTarget) FeedbackResolution() FeedbackResolution { return ResolutionNormal }

type triggerTarget struct{}

func (triggerTarget) Character() Character                   { return CharacterTrigger }
func (triggerTarget) DiscreteCount() int                     { return 0 }
func (triggerTarget) FeedbackResolution() FeedbackResolution { return ResolutionNormal }

func onOffValue(on bool) unit.AbsoluteValue {
	if on {
		return unit.ContinuousValue(1)
	}
	return unit.ContinuousValue(0)
}
