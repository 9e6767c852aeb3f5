package source

import (
	"fmt"

	"github.com/tilde-audio/remap/internal/unit"
)

// ElementID identifies a virtual control element, either by index or by
// name. The zero value is element 0.
type ElementID struct {
	Index int
	Name  string
	Named bool
}

// IndexedElement builds an indexed element id.
func IndexedElement(i int) ElementID { return ElementID{Index: i} }

// NamedElement builds a named element id.
func NamedElement(name string) ElementID { return ElementID{Name: name, Named: true} }

func (e ElementID) String() string {
	if e.Named {
		return e.Name
	}
	return fmt.Sprintf("%d", e.Index+1)
}

// ElementCharacter distinguishes continuous from button-like virtual
// control elements.
type ElementCharacter int

const (
	// Multi is a continuous or relative-capable element (fader, encoder).
	Multi ElementCharacter = iota
	// Button is an on/off element.
	Button
)

// Virtual matches values traveling through a virtual control element. It
// is the "main" side of the virtual routing indirection.
type Virtual struct {
	Element   ElementID
	Character ElementCharacter
}

// Control implements Source.
func (s *Virtual) Control(msg Message) (unit.ControlValue, bool) {
	if msg.Kind != KindVirtual || msg.Virtual.Element != s.Element {
		return unit.ControlValue{}, false
	}
	return msg.Virtual.Value, true
}

// Feedback implements Source. Virtual feedback carries the element id and
// must be routed through a controller mapping with a matching virtual
// target before it reaches hardware.
func (s *Virtual) Feedback(v unit.Value, style FeedbackStyle) (FeedbackValue, bool) {
	addr, _ := s.FeedbackAddress()
	fbv := v
	if s.Character == Button {
		// Button elements are binary on the wire.
		if v.IsOn() {
			fbv = 1
		} else {
			fbv = 0
		}
	}
	return FeedbackValue{
		Kind:    VirtualFeedback,
		Virtual: VirtualValue{Element: s.Element, Value: unit.AbsoluteContinuous(fbv)},
		Address: addr,
		Style:   style,
	}, true
}

// FeedbackAddress implements Source.
func (s *Virtual) FeedbackAddress() (Address, bool) {
	return Address{Proto: ProtocolVirtual, Element: s.Element}, true
}

// Clone implements Source.
func (s *Virtual) Clone() Source {
	c := *s
	return &c
}

// Characters implements Source.
func (s *Virtual) Characters() []Character {
	if s.Character == Button {
		return []Character{CharacterMomentaryButton}
	}
	return []Character{CharacterRange, CharacterRelative}
}
