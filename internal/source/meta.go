package source

import "github.com/tilde-audio/remap/internal/unit"

// MetaSourceKind enumerates the engine meta sources.
type MetaSourceKind int

const (
	// DeviceChanges fires when the MIDI device list changes.
	DeviceChanges MetaSourceKind = iota
	// InstanceStart fires once when the owning instance comes alive,
	// useful for controller initialization sequences.
	InstanceStart
)

// Meta matches engine-internal events. Control only.
type Meta struct {
	Kind MetaSourceKind
}

// Control implements Source.
func (s *Meta) Control(msg Message) (unit.ControlValue, bool) {
	if msg.Kind != KindMeta {
		return unit.ControlValue{}, false
	}
	switch {
	case s.Kind == DeviceChanges && msg.Meta.Kind == MetaDeviceChanges:
		return unit.AbsoluteContinuous(1), true
	case s.Kind == InstanceStart && msg.Meta.Kind == MetaInstanceStart:
		return unit.AbsoluteContinuous(1), true
	}
	return unit.ControlValue{}, false
}

// Feedback implements Source. Meta sources have no feedback capability.
func (s *Meta) Feedback(unit.Value, FeedbackStyle) (FeedbackValue, bool) {
	return FeedbackValue{}, false
}

// FeedbackAddress implements Source.
func (s *Meta) FeedbackAddress() (Address, bool) { return Address{}, false }

// Characters implements Source.
func (s *Meta) Characters() []Character { return []Character{CharacterTrigger} }

// Clone implements Source.
func (s *Meta) Clone() Source {
	c := *s
	return &c
}
