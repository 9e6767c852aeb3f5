package target

import (
	"strings"

	"github.com/tilde-audio/remap/internal/unit"
)

// EnableMappings flips the enabled state of tag-matched mappings in this
// instance. Hitting it produces an instruction for the main processor
// instead of touching host state, since the mapping table cannot be
// mutated while it is being iterated.
type EnableMappings struct {
	switchTarget
	Tags      []string
	Exclusive bool

	last    bool
	hasLast bool
}

func (t *EnableMappings) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if !t.hasLast {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(t.last), true
}

func (t *EnableMappings) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	t.last = v.IsOn()
	t.hasLast = true
	return &Instruction{
		Kind:      InstructionEnableMappings,
		Tags:      t.Tags,
		Exclusive: t.Exclusive,
		On:        v.IsOn(),
	}, nil
}

func (t *EnableMappings) IsAvailable(ctx Context) bool { return true }

func (t *EnableMappings) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t *EnableMappings) TextValue(ctx Context) string { return strings.Join(t.Tags, ", ") }

// EnableInstances flips the enabled state of whole engine instances
// matched by id.
type EnableInstances struct {
	switchTarget
	Instances []string
	Exclusive bool

	last    bool
	hasLast bool
}

func (t *EnableInstances) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if !t.hasLast {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(t.last), true
}

func (t *EnableInstances) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	t.last = v.IsOn()
	t.hasLast = true
	return &Instruction{
		Kind:      InstructionEnableInstances,
		Instances: t.Instances,
		Exclusive: t.Exclusive,
		On:        v.IsOn(),
	}, nil
}

func (t *EnableInstances) IsAvailable(ctx Context) bool { return true }

func (t *EnableInstances) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t *EnableInstances) TextValue(ctx Context) string { return strings.Join(t.Instances, ", ") }

// LoadMappingSnapshot restores a named snapshot of the mapping table.
type LoadMappingSnapshot struct {
	triggerTarget
	Snapshot string
}

func (t LoadMappingSnapshot) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t LoadMappingSnapshot) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	if !v.IsOn() {
		return nil, nil
	}
	return &Instruction{Kind: InstructionLoadSnapshot, Snapshot: t.Snapshot}, nil
}

func (t LoadMappingSnapshot) IsAvailable(ctx Context) bool { return t.Snapshot != "" }

func (t LoadMappingSnapshot) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t LoadMappingSnapshot) TextValue(ctx Context) string { return t.Snapshot }

// LastTouched delegates every operation to the globally last touched
// target tracked by the engine.
type LastTouched struct{}

func (t LastTouched) Character() Character { return CharacterContinuous }

func (t LastTouched) DiscreteCount() int { return 0 }

func (t LastTouched) FeedbackResolution() FeedbackResolution {
	// The delegate can change at any time without a change event.
	return ResolutionHigh
}

func (t LastTouched) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if ctx.LastTouched == nil {
		return unit.AbsoluteValue{}, false
	}
	return ctx.LastTouched.CurrentValue(ctx)
}

func (t LastTouched) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	if ctx.LastTouched == nil {
		return nil, nil
	}
	return ctx.LastTouched.Hit(v, ctx)
}

func (t LastTouched) IsAvailable(ctx Context) bool {
	return ctx.LastTouched != nil && ctx.LastTouched.IsAvailable(ctx)
}

func (t LastTouched) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if ctx.LastTouched == nil {
		return unit.AbsoluteValue{}, false
	}
	return ctx.LastTouched.ProcessChangeEvent(evt, ctx)
}

func (t LastTouched) TextValue(ctx Context) string {
	if ctx.LastTouched == nil {
		return ""
	}
	return ctx.LastTouched.TextValue(ctx)
}
