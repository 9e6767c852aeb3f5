package target

import (
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/unit"
)

// Virtual is the controller-compartment side of the virtual routing
// indirection: hitting it never touches host state, it only records the
// value that the main processor then feeds into every main mapping with a
// matching virtual source. The recorded value also serves as the
// controller mapping's feedback state.
type Virtual struct {
	Element          source.ElementID
	ElementCharacter source.ElementCharacter

	last    unit.AbsoluteValue
	hasLast bool
}

func (t *Virtual) Character() Character {
	if t.ElementCharacter == source.Button {
		return CharacterSwitch
	}
	return CharacterContinuous
}

func (t *Virtual) DiscreteCount() int {
	if t.ElementCharacter == source.Button {
		return 2
	}
	return 0
}

func (t *Virtual) FeedbackResolution() FeedbackResolution { return ResolutionNormal }

func (t *Virtual) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if !t.hasLast {
		return unit.AbsoluteValue{}, false
	}
	return t.last, true
}

func (t *Virtual) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	t.last = v
	t.hasLast = true
	return nil, nil
}

func (t *Virtual) IsAvailable(ctx Context) bool { return true }

func (t *Virtual) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t *Virtual) TextValue(ctx Context) string { return t.Element.String() }
