package target

import (
	"fmt"

	"github.com/tilde-audio/remap/internal/unit"
)

// FxParameter controls one parameter of an FX instance. StepCount is
// captured at resolution time so the character stays queryable without a
// provider round trip.
type FxParameter struct {
	Track      Track
	FxIndex    int
	ParamIndex int
	StepCount  int
}

func (t FxParameter) Character() Character {
	if t.StepCount > 1 {
		return CharacterDiscrete
	}
	return CharacterContinuous
}

func (t FxParameter) DiscreteCount() int { return t.StepCount }

func (t FxParameter) FeedbackResolution() FeedbackResolution { return ResolutionNormal }

func (t FxParameter) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	v, ok := ctx.Provider.FxParameter(t.Track.ID, t.FxIndex, t.ParamIndex)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	if t.StepCount > 1 {
		idx := unit.UnitToDiscrete(v, t.StepCount)
		return unit.DiscreteValue(unit.NewFraction(idx, t.StepCount-1)), true
	}
	return unit.ContinuousValue(v), true
}

func (t FxParameter) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetFxParameter(t.Track.ID, t.FxIndex, t.ParamIndex, v.Unit())
}

func (t FxParameter) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.FxParameter(t.Track.ID, t.FxIndex, t.ParamIndex)
	return ok
}

func (t FxParameter) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventFxParameter || evt.Track != t.Track.ID ||
		evt.Fx != t.FxIndex || evt.Param != t.ParamIndex {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(evt.Value)), true
}

func (t FxParameter) TextValue(ctx Context) string {
	v, ok := ctx.Provider.FxParameter(t.Track.ID, t.FxIndex, t.ParamIndex)
	if !ok {
		return ""
	}
	if t.StepCount > 1 {
		return fmt.Sprintf("%d", unit.UnitToDiscrete(v, t.StepCount)+1)
	}
	return fmt.Sprintf("%.1f %%", v.Get()*100)
}

// FxEnable bypasses/enables an FX instance.
type FxEnable struct {
	switchTarget
	Track   Track
	FxIndex int
}

func (t FxEnable) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	enabled, ok := ctx.Provider.FxEnabled(t.Track.ID, t.FxIndex)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(enabled), true
}

func (t FxEnable) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetFxEnabled(t.Track.ID, t.FxIndex, v.IsOn())
}

func (t FxEnable) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.FxEnabled(t.Track.ID, t.FxIndex)
	return ok
}

func (t FxEnable) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventFxEnabled || evt.Track != t.Track.ID || evt.Fx != t.FxIndex {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(evt.On), true
}

func (t FxEnable) TextValue(ctx Context) string {
	enabled, ok := ctx.Provider.FxEnabled(t.Track.ID, t.FxIndex)
	if !ok {
		return ""
	}
	if enabled {
		return "enabled"
	}
	return "bypassed"
}

// FxPreset steps through an FX instance's preset list. PresetCount is
// captured at resolution time.
type FxPreset struct {
	Track       Track
	FxIndex     int
	PresetCount int
}

func (t FxPreset) Character() Character { return CharacterDiscrete }

func (t FxPreset) DiscreteCount() int { return t.PresetCount }

func (t FxPreset) FeedbackResolution() FeedbackResolution { return ResolutionNormal }

func (t FxPreset) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	idx, count, ok := ctx.Provider.FxPresetIndex(t.Track.ID, t.FxIndex)
	if !ok || count < 2 {
		return unit.AbsoluteValue{}, false
	}
	return unit.DiscreteValue(unit.NewFraction(idx, count-1)), true
}

func (t FxPreset) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	if t.PresetCount < 2 {
		return nil, nil
	}
	idx := unit.UnitToDiscrete(v.Unit(), t.PresetCount)
	return nil, ctx.Provider.SetFxPresetIndex(t.Track.ID, t.FxIndex, idx)
}

func (t FxPreset) IsAvailable(ctx Context) bool {
	_, _, ok := ctx.Provider.FxPresetIndex(t.Track.ID, t.FxIndex)
	return ok
}

func (t FxPreset) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventFxPreset || evt.Track != t.Track.ID || evt.Fx != t.FxIndex {
		return unit.AbsoluteValue{}, false
	}
	return t.CurrentValue(ctx)
}

func (t FxPreset) TextValue(ctx Context) string {
	idx, _, ok := ctx.Provider.FxPresetIndex(t.Track.ID, t.FxIndex)
	if !ok {
		return ""
	}
	return fmt.Sprintf("preset %d", idx+1)
}
