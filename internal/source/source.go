// Package source implements the input message matchers of the mapping
// engine. A source recognizes incoming control-surface messages (MIDI,
// OSC, virtual control elements, engine meta events), extracts a control
// value from them and knows how to render a feedback value back into the
// same message vocabulary.
package source

import (
	"github.com/hypebeast/go-osc/osc"
	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/unit"
)

// Character is the detailed control character a source can exhibit. Mode
// parameter relevance is checked against every character a source
// supports.
type Character int

const (
	// CharacterRange is a continuous absolute control (fader, knob).
	CharacterRange Character = iota
	// CharacterMomentaryButton sends a non-zero value on press and zero on
	// release.
	CharacterMomentaryButton
	// CharacterTrigger sends presses only, never a release.
	CharacterTrigger
	// CharacterRelative sends signed increments (endless encoder).
	CharacterRelative
)

// FeedbackBehavior configures echo handling for sources that support both
// control and feedback.
type FeedbackBehavior int

const (
	// FeedbackNormal lets the regular dedup logic decide.
	FeedbackNormal FeedbackBehavior = iota
	// SendFeedbackAfterControl explicitly echoes feedback after each
	// control action, bypassing dedup.
	SendFeedbackAfterControl
	// PreventEchoFeedback suppresses feedback that was caused by this
	// source's own control action.
	PreventEchoFeedback
)

// MessageKind discriminates incoming messages.
type MessageKind int

const (
	// KindMidi is a raw MIDI short message or sysex from a device.
	KindMidi MessageKind = iota
	// KindOsc is a single (bundle-flattened) OSC message.
	KindOsc
	// KindVirtual is a virtual control element value produced by the
	// virtual routing layer.
	KindVirtual
	// KindMeta is an engine-internal event (device list changed, instance
	// start, detected clock tempo).
	KindMeta
)

// MetaEventKind enumerates engine meta events a meta source can match.
type MetaEventKind int

const (
	MetaDeviceChanges MetaEventKind = iota
	MetaInstanceStart
	MetaClockTempo
)

// MetaEvent is an engine-internal event.
type MetaEvent struct {
	Kind MetaEventKind
	// Bpm is set for MetaClockTempo.
	Bpm float64
}

// VirtualValue is a control element id plus the value traveling through it.
type VirtualValue struct {
	Element ElementID
	Value   unit.ControlValue
}

// Message is the single input type offered to all sources.
type Message struct {
	Kind    MessageKind
	Midi    midi.Message
	Osc     *osc.Message
	Virtual VirtualValue
	Meta    MetaEvent
}

// NewMidiMessage wraps raw MIDI bytes.
func NewMidiMessage(m midi.Message) Message { return Message{Kind: KindMidi, Midi: m} }

// NewOscMessage wraps an OSC message.
func NewOscMessage(m *osc.Message) Message { return Message{Kind: KindOsc, Osc: m} }

// NewVirtualMessage wraps a virtual control element value.
func NewVirtualMessage(v VirtualValue) Message { return Message{Kind: KindVirtual, Virtual: v} }

// NewMetaMessage wraps a meta event.
func NewMetaMessage(e MetaEvent) Message { return Message{Kind: KindMeta, Meta: e} }

// Protocol tags a feedback address.
type Protocol int

const (
	ProtocolMidi Protocol = iota
	ProtocolOsc
	ProtocolVirtual
)

// Address identifies the physical (or virtual) output a source's feedback
// lands on, independent of the value. Two mappings whose sources share an
// address drive the same LED/display cell. The type is comparable so it
// can key dedup caches and arbitration tables.
type Address struct {
	Proto   Protocol
	Midi    MidiAddress
	OscAddr string
	Element ElementID
}

// MidiAddress locates a MIDI feedback destination.
type MidiAddress struct {
	Kind    MidiKind
	Channel int
	Number  int
}

// FeedbackKind discriminates rendered feedback values.
type FeedbackKind int

const (
	// MidiFeedback carries one or more MIDI messages.
	MidiFeedback FeedbackKind = iota
	// OscFeedback carries one OSC message.
	OscFeedback
	// VirtualFeedback needs further routing through a controller mapping
	// whose target is the same virtual control element.
	VirtualFeedback
)

// FeedbackStyle carries optional display styling for sources that render
// text or colors.
type FeedbackStyle struct {
	Text            string
	Color           int32
	BackgroundColor int32
	HasColor        bool
}

// FeedbackValue is a rendered outgoing feedback message.
type FeedbackValue struct {
	Kind    FeedbackKind
	Midi    []midi.Message
	Osc     *osc.Message
	Virtual VirtualValue
	Address Address
	Style   FeedbackStyle
}

// Source is the matcher interface implemented by all source kinds.
type Source interface {
	// Control tries to extract a control value from msg. ok is false if the
	// message does not concern this source.
	Control(msg Message) (value unit.ControlValue, ok bool)
	// Feedback renders v into an outgoing feedback value. ok is false if
	// the source has no feedback capability.
	Feedback(v unit.Value, style FeedbackStyle) (FeedbackValue, bool)
	// FeedbackAddress returns the output address feedback lands on. ok is
	// false for control-only sources.
	FeedbackAddress() (Address, bool)
	// Characters lists every detailed character this source can exhibit.
	Characters() []Character
	// Clone returns an independent copy with fresh matching state. The
	// real-time mapping splinter needs its own instance because stateful
	// matching (14-bit pairing, parameter number sequences) must not be
	// shared across threads.
	Clone() Source
}

// HasSameFeedbackAddress reports whether a and b would drive the same
// output address.
func HasSameFeedbackAddress(a, b Source) bool {
	aa, ok := a.FeedbackAddress()
	if !ok {
		return false
	}
	ba, ok := b.FeedbackAddress()
	if !ok {
		return false
	}
	return aa == ba
}
