package target

import (
	"fmt"

	"github.com/tilde-audio/remap/internal/unit"
)

// RouteVolume controls the volume of a track send/receive route.
type RouteVolume struct {
	continuousTarget
	Track      Track
	RouteIndex int
}

func (t RouteVolume) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	v, ok := ctx.Provider.RouteVolume(t.Track.ID, t.RouteIndex)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(v), true
}

func (t RouteVolume) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetRouteVolume(t.Track.ID, t.RouteIndex, v.Unit())
}

func (t RouteVolume) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.RouteVolume(t.Track.ID, t.RouteIndex)
	return ok
}

func (t RouteVolume) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventRouteVolume || evt.Track != t.Track.ID || evt.Route != t.RouteIndex {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(evt.Value)), true
}

func (t RouteVolume) TextValue(ctx Context) string {
	v, ok := ctx.Provider.RouteVolume(t.Track.ID, t.RouteIndex)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.1f %%", v.Get()*100)
}

// RoutePan controls the pan of a track send/receive route.
type RoutePan struct {
	continuousTarget
	Track      Track
	RouteIndex int
}

func (t RoutePan) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	v, ok := ctx.Provider.RoutePan(t.Track.ID, t.RouteIndex)
	if !ok {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(v), true
}

func (t RoutePan) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetRoutePan(t.Track.ID, t.RouteIndex, v.Unit())
}

func (t RoutePan) IsAvailable(ctx Context) bool {
	_, ok := ctx.Provider.RoutePan(t.Track.ID, t.RouteIndex)
	return ok
}

func (t RoutePan) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventRoutePan || evt.Track != t.Track.ID || evt.Route != t.RouteIndex {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(evt.Value)), true
}

func (t RoutePan) TextValue(ctx Context) string {
	v, ok := ctx.Provider.RoutePan(t.Track.ID, t.RouteIndex)
	if !ok {
		return ""
	}
	return formatPan(v)
}
