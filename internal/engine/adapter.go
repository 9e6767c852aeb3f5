package engine

import (
	"log/slog"
	"math"

	"github.com/hypebeast/go-osc/osc"

	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
)

// Per-cycle drain limits for host notifications and OSC input.
const (
	notificationBulkSize = 200
	oscBulkSize          = 200
)

// ControlSurfaceAdapter bridges host change notifications and OSC input
// into the main processor's channels. It never mutates engine state
// directly: structure changes become a self-addressed refresh command
// executed on the next cycle, because host callbacks are not safe to
// react to with further host mutation.
type ControlSurfaceAdapter struct {
	log  *slog.Logger
	main *MainProcessor

	oscIn <-chan osc.Packet

	lastBeat float64
	hasBeat  bool
}

// NewControlSurfaceAdapter wires the adapter to one instance. oscIn may be
// nil when no OSC input device is configured.
func NewControlSurfaceAdapter(log *slog.Logger, main *MainProcessor, oscIn <-chan osc.Packet) *ControlSurfaceAdapter {
	return &ControlSurfaceAdapter{log: log, main: main, oscIn: oscIn}
}

// Poll runs one adapter cycle: drain host notifications, detect beat
// boundaries, drain OSC input. Called from the main loop before the
// processor's Run.
func (a *ControlSurfaceAdapter) Poll() {
	a.drainNotifications()
	a.detectBeat()
	a.drainOsc()
}

func (a *ControlSurfaceAdapter) drainNotifications() {
	ch := a.main.provider.Notifications()
	if ch == nil {
		return
	}
	refresh := false
loop:
	for i := 0; i < notificationBulkSize; i++ {
		select {
		case evt, ok := <-ch:
			if !ok {
				break loop
			}
			switch {
			case evt.Kind == target.EventParameterTouched:
				a.trackTouch(evt)
			case evt.IsStatic():
				// Deferred to the next cycle via the feedback command; never
				// resolve targets inside the notification wave.
				refresh = true
			default:
				a.main.EnqueueChangeEvent(evt)
			}
		default:
			break loop
		}
	}
	if refresh {
		a.main.EnqueueFeedbackCommand(FeedbackCommand{RefreshTargets: true})
	}
}

// trackTouch updates the globally last touched target from a touch event.
func (a *ControlSurfaceAdapter) trackTouch(evt target.ChangeEvent) {
	track, ok := a.main.provider.TrackByID(evt.Track)
	if !ok {
		return
	}
	if evt.Fx >= 0 {
		step := a.main.provider.FxParameterStepCount(evt.Track, evt.Fx, evt.Param)
		a.main.SetLastTouched(target.FxParameter{
			Track:      track,
			FxIndex:    evt.Fx,
			ParamIndex: evt.Param,
			StepCount:  step,
		})
		return
	}
	a.main.SetLastTouched(target.TrackVolume{Track: track})
}

// detectBeat watches the play position for beat boundary crossings so that
// beat-resolution mappings get their poll tick.
func (a *ControlSurfaceAdapter) detectBeat() {
	bpm := a.main.provider.Tempo()
	if bpm <= 0 || a.main.provider.Transport() == target.TransportStopped {
		a.hasBeat = false
		return
	}
	beat := a.main.provider.PlayPosition() * bpm / 60
	if a.hasBeat && math.Floor(beat) != math.Floor(a.lastBeat) {
		a.main.NotifyBeat()
	}
	a.lastBeat = beat
	a.hasBeat = true
}

func (a *ControlSurfaceAdapter) drainOsc() {
	if a.oscIn == nil {
		return
	}
	for i := 0; i < oscBulkSize; i++ {
		select {
		case pkt, ok := <-a.oscIn:
			if !ok {
				a.oscIn = nil
				return
			}
			for _, msg := range source.FlattenPacket(pkt) {
				a.main.EnqueueControl(source.NewOscMessage(msg))
			}
		default:
			return
		}
	}
}
