package target

import (
	"fmt"

	"github.com/tilde-audio/remap/internal/unit"
)

// TrackVolume controls a track's volume fader.
type TrackVolume struct {
	continuousTarget
	Track Track
}

func (t TrackVolume) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	v, ok := ctx.Provider.TrackVolume(t.Track.ID)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(v), true
}

func (t TrackVolume) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTrackVolume(t.Track.ID, v.Unit())
}

func (t TrackVolume) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.TrackByID(t.Track.ID)
	return ok
}

func (t TrackVolume) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTrackVolume || evt.Track != t.Track.ID {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(evt.Value)), true
}

func (t TrackVolume) TextValue(ctx Context) string {
	v, ok := ctx.Provider.TrackVolume(t.Track.ID)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.1f %%", v.Get()*100)
}

// TrackPan controls a track's pan position.
type TrackPan struct {
	continuousTarget
	Track Track
}

func (t TrackPan) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	v, ok := ctx.Provider.TrackPan(t.Track.ID)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(v), true
}

func (t TrackPan) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTrackPan(t.Track.ID, v.Unit())
}

func (t TrackPan) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.TrackByID(t.Track.ID)
	return ok
}

func (t TrackPan) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTrackPan || evt.Track != t.Track.ID {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(evt.Value)), true
}

func (t TrackPan) TextValue(ctx Context) string {
	v, ok := ctx.Provider.TrackPan(t.Track.ID)
	if !ok {
		return ""
	}
	return formatPan(v)
}

// formatPan renders a unit pan value as L..C..R.
func formatPan(v unit.Value) string {
	pos := v.Get()*2 - 1
	switch {
	case pos < -0.005:
		return fmt.Sprintf("%.0f%% L", -pos*100)
	case pos > 0.005:
		return fmt.Sprintf("%.0f%% R", pos*100)
	default:
		return "center"
	}
}

// TrackWidth controls a track's stereo width.
type TrackWidth struct {
	continuousTarget
	Track Track
}

func (t TrackWidth) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	v, ok := ctx.Provider.TrackWidth(t.Track.ID)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(v), true
}

func (t TrackWidth) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTrackWidth(t.Track.ID, v.Unit())
}

func (t TrackWidth) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.TrackByID(t.Track.ID)
	return ok
}

func (t TrackWidth) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTrackWidth || evt.Track != t.Track.ID {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(evt.Value)), true
}

func (t TrackWidth) TextValue(ctx Context) string {
	v, ok := ctx.Provider.TrackWidth(t.Track.ID)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.0f %%", v.Get()*100)
}

// TrackMute mutes/unmutes a track.
type TrackMute struct {
	switchTarget
	Track Track
}

func (t TrackMute) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	muted, ok := ctx.Provider.TrackMuted(t.Track.ID)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(muted), true
}

func (t TrackMute) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTrackMuted(t.Track.ID, v.IsOn())
}

func (t TrackMute) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.TrackByID(t.Track.ID)
	return ok
}

func (t TrackMute) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTrackMute || evt.Track != t.Track.ID {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(evt.On), true
}

func (t TrackMute) TextValue(ctx Context) string {
	muted, ok := ctx.Provider.TrackMuted(t.Track.ID)
	if !ok {
		return ""
	}
	if muted {
		return "muted"
	}
	return "unmuted"
}

// TrackArm arms/disarms a track for recording.
type TrackArm struct {
	switchTarget
	Track Track
}

func (t TrackArm) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	armed, ok := ctx.Provider.TrackArmed(t.Track.ID)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(armed), true
}

func (t TrackArm) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTrackArmed(t.Track.ID, v.IsOn())
}

func (t TrackArm) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.TrackByID(t.Track.ID)
	return ok
}

func (t TrackArm) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTrackArm || evt.Track != t.Track.ID {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(evt.On), true
}

func (t TrackArm) TextValue(ctx Context) string {
	armed, ok := ctx.Provider.TrackArmed(t.Track.ID)
	if !ok {
		return ""
	}
	if armed {
		return "armed"
	}
	return "unarmed"
}

// TrackSelection selects/deselects a track.
type TrackSelection struct {
	switchTarget
	Track Track
}

func (t TrackSelection) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	sel, ok := ctx.Provider.TrackSelected(t.Track.ID)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(sel), true
}

func (t TrackSelection) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTrackSelected(t.Track.ID, v.IsOn())
}

func (t TrackSelection) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.TrackByID(t.Track.ID)
	return ok
}

func (t TrackSelection) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTrackSelection || evt.Track != t.Track.ID {
		return unit.AbsoluteValue{}, false
	}
	return onOffValue(evt.On), true
}

func (t TrackSelection) TextValue(ctx Context) string {
	return t.Track.Name
}
