package target

import (
	"fmt"

	"github.com/tilde-audio/remap/internal/unit"
)

// TransportAction drives the host transport (play/stop/pause/record) or
// the repeat flag.
type TransportAction struct {
	switchTarget
	Op TransportOp
}

func (t TransportAction) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	if t.Op == OpRepeat {
		return onOffValue(ctx.Provider.RepeatEnabled()), true
	}
	state := ctx.Provider.Transport()
	var on bool
	switch t.Op {
	case OpPlayStop, OpPlayPause:
		on = state == TransportPlaying || state == TransportRecording
	case OpStop:
		on = state == TransportStopped
	case OpPause:
		on = state == TransportPaused
	case OpRecord:
		on = state == TransportRecording
	}
	return onOffValue(on), true
}

func (t TransportAction) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.TransportDo(t.Op, v.IsOn())
}

func (t TransportAction) IsAvailable(ctx Context) bool { return true }

func (t TransportAction) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	switch evt.Kind {
	case EventTransport:
		if t.Op == OpRepeat {
			return unit.AbsoluteValue{}, false
		}
	case EventRepeat:
		if t.Op != OpRepeat {
			return unit.AbsoluteValue{}, false
		}
		return onOffValue(evt.On), true
	default:
		return unit.AbsoluteValue{}, false
	}
	return t.CurrentValue(ctx)
}

func (t TransportAction) TextValue(ctx Context) string {
	switch ctx.Provider.Transport() {
	case TransportPlaying:
		return "playing"
	case TransportPaused:
		return "paused"
	case TransportRecording:
		return "recording"
	default:
		return "stopped"
	}
}

// Tempo bpm range addressable through the unit interval.
const (
	minBpm = 1.0
	maxBpm = 960.0
)

func bpmToUnit(bpm float64) unit.Value {
	return unit.NewValue((bpm - minBpm) / (maxBpm - minBpm))
}

func unitToBpm(v unit.Value) float64 {
	return minBpm + v.Get()*(maxBpm-minBpm)
}

// Tempo controls the project tempo.
type Tempo struct {
	continuousTarget
}

func (t Tempo) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	return unit.ContinuousValue(bpmToUnit(ctx.Provider.Tempo())), true
}

func (t Tempo) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.SetTempo(unitToBpm(v.Unit()))
}

func (t Tempo) IsAvailable(ctx Context) bool { return true }

func (t Tempo) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventTempo {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(bpmToUnit(evt.Value)), true
}

func (t Tempo) TextValue(ctx Context) string {
	return fmt.Sprintf("%.2f bpm", ctx.Provider.Tempo())
}

// Seek moves the edit/play cursor within the project. It has no push
// notification worth using, so it declares high-resolution polling.
type Seek struct {
	continuousTarget
}

func (t Seek) FeedbackResolution() FeedbackResolution { return ResolutionHigh }

func (t Seek) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	length := ctx.Provider.ProjectLength()
	if length <= 0 {
		return unit.AbsoluteValue{}, false
	}
	return unit.ContinuousValue(unit.NewValue(ctx.Provider.PlayPosition() / length)), true
}

func (t Seek) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	return nil, ctx.Provider.Seek(v.Unit().Get() * ctx.Provider.ProjectLength())
}

func (t Seek) IsAvailable(ctx Context) bool { return ctx.Provider.ProjectLength() > 0 }

func (t Seek) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	return unit.AbsoluteValue{}, false
}

func (t Seek) TextValue(ctx Context) string {
	return formatPosition(ctx.Provider.PlayPosition())
}

// formatPosition renders seconds as m:ss.mmm.
func formatPosition(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds) / 60
	rest := seconds - float64(mins*60)
	return fmt.Sprintf("%d:%06.3f", mins, rest)
}

// GoToBookmark jumps to a project marker/region. The current bookmark
// follows the play position, so feedback is polled per beat.
type GoToBookmark struct {
	switchTarget
	Bookmark Bookmark
}

func (t GoToBookmark) FeedbackResolution() FeedbackResolution { return ResolutionBeat }

func (t GoToBookmark) CurrentValue(ctx Context) (unit.AbsoluteValue, bool) {
	cur, ok := ctx.Provider.CurrentBookmark()
	if !ok {
		return unit.ContinuousValue(0), true
	}
	return onOffValue(cur == t.Bookmark.ID), true
}

func (t GoToBookmark) Hit(v unit.AbsoluteValue, ctx Context) (*Instruction, error) {
	if !v.IsOn() {
		return nil, nil
	}
	return nil, ctx.Provider.GoToBookmark(t.Bookmark.ID)
}

func (t GoToBookmark) IsAvailable(ctx Context) bool {
	for _, b := range ctx.Provider.Bookmarks() {
		if b.ID == t.Bookmark.ID {
			return true
		}
	}
	return false
}

func (t GoToBookmark) ProcessChangeEvent(evt ChangeEvent, ctx Context) (unit.AbsoluteValue, bool) {
	if evt.Kind != EventBookmark {
		return unit.AbsoluteValue{}, false
	}
	return t.CurrentValue(ctx)
}

func (t GoToBookmark) TextValue(ctx Context) string { return t.Bookmark.Name }
