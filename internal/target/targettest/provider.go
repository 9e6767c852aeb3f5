// Package targettest provides an in-memory target.Provider for tests.
package targettest

import (
	"github.com/google/uuid"

	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/unit"
)

// TrackState is the mutable state behind one fake track.
type TrackState struct {
	Track    target.Track
	Volume   unit.Value
	Pan      unit.Value
	Width    unit.Value
	Muted    bool
	Armed    bool
	Selected bool
	Fxs      []FxState
	Routes   []RouteState
}

// FxState is the mutable state behind one fake FX instance.
type FxState struct {
	Fx          target.Fx
	Params      []unit.Value
	StepCounts  []int
	Enabled     bool
	PresetIndex int
	PresetCount int
}

// RouteState is the mutable state behind one fake route.
type RouteState struct {
	Route  target.Route
	Volume unit.Value
	Pan    unit.Value
}

// Provider is an in-memory target.Provider. Mutations emit change events
// into the notification channel so adapter/engine tests can drive the
// full feedback path; the channel is buffered and drops when full.
type Provider struct {
	TrackStates []*TrackState
	Master      *TrackState

	State       target.TransportState
	Repeat      bool
	Bpm         float64
	Position    float64
	Length      float64
	Marks       []target.Bookmark
	CurrentMark int
	HasMark     bool

	events chan target.ChangeEvent
}

// New returns an empty provider with a 120 bpm default tempo.
func New() *Provider {
	return &Provider{
		Bpm:    120,
		Length: 60,
		events: make(chan target.ChangeEvent, 256),
	}
}

// AddTrack appends a track with a fresh id and returns its state.
func (p *Provider) AddTrack(name string) *TrackState {
	ts := &TrackState{
		Track:  target.Track{ID: uuid.New(), Index: len(p.TrackStates), Name: name},
		Volume: 0.71,
		Pan:    0.5,
		Width:  1,
	}
	p.TrackStates = append(p.TrackStates, ts)
	return ts
}

// AddFx appends an FX instance to a track and returns its state.
func (p *Provider) AddFx(ts *TrackState, name string, paramCount int) *FxState {
	fx := FxState{
		Fx:         target.Fx{Index: len(ts.Fxs), Name: name},
		Params:     make([]unit.Value, paramCount),
		StepCounts: make([]int, paramCount),
		Enabled:    true,
	}
	ts.Fxs = append(ts.Fxs, fx)
	return &ts.Fxs[len(ts.Fxs)-1]
}

func (p *Provider) emit(evt target.ChangeEvent) {
	select {
	case p.events <- evt:
	default:
	}
}

// Emit injects an arbitrary change event, e.g. a parameter touch.
func (p *Provider) Emit(evt target.ChangeEvent) { p.emit(evt) }

func (p *Provider) trackState(id uuid.UUID) *TrackState {
	if p.Master != nil && p.Master.Track.ID == id {
		return p.Master
	}
	for _, ts := range p.TrackStates {
		if ts.Track.ID == id {
			return ts
		}
	}
	return nil
}

func (p *Provider) Tracks() []target.Track {
	out := make([]target.Track, len(p.TrackStates))
	for i, ts := range p.TrackStates {
		out[i] = ts.Track
	}
	return out
}

func (p *Provider) TrackByID(id uuid.UUID) (target.Track, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Track, true
	}
	return target.Track{}, false
}

func (p *Provider) MasterTrack() (target.Track, bool) {
	if p.Master == nil {
		return target.Track{}, false
	}
	return p.Master.Track, true
}

func (p *Provider) SelectedTracks() []target.Track {
	var out []target.Track
	for _, ts := range p.TrackStates {
		if ts.Selected {
			out = append(out, ts.Track)
		}
	}
	return out
}

func (p *Provider) TrackVolume(id uuid.UUID) (unit.Value, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Volume, true
	}
	return 0, false
}

func (p *Provider) SetTrackVolume(id uuid.UUID, v unit.Value) error {
	ts := p.trackState(id)
	if ts == nil {
		return errTrackGone
	}
	ts.Volume = v
	p.emit(target.ChangeEvent{Kind: target.EventTrackVolume, Track: id, Value: v.Get()})
	return nil
}

func (p *Provider) TrackPan(id uuid.UUID) (unit.Value, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Pan, true
	}
	return 0, false
}

func (p *Provider) SetTrackPan(id uuid.UUID, v unit.Value) error {
	ts := p.trackState(id)
	if ts == nil {
		return errTrackGone
	}
	ts.Pan = v
	p.emit(target.ChangeEvent{Kind: target.EventTrackPan, Track: id, Value: v.Get()})
	return nil
}

func (p *Provider) TrackWidth(id uuid.UUID) (unit.Value, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Width, true
	}
	return 0, false
}

func (p *Provider) SetTrackWidth(id uuid.UUID, v unit.Value) error {
	ts := p.trackState(id)
	if ts == nil {
		return errTrackGone
	}
	ts.Width = v
	p.emit(target.ChangeEvent{Kind: target.EventTrackWidth, Track: id, Value: v.Get()})
	return nil
}

func (p *Provider) TrackMuted(id uuid.UUID) (bool, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Muted, true
	}
	return false, false
}

func (p *Provider) SetTrackMuted(id uuid.UUID, muted bool) error {
	ts := p.trackState(id)
	if ts == nil {
		return errTrackGone
	}
	ts.Muted = muted
	p.emit(target.ChangeEvent{Kind: target.EventTrackMute, Track: id, On: muted})
	return nil
}

func (p *Provider) TrackArmed(id uuid.UUID) (bool, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Armed, true
	}
	return false, false
}

func (p *Provider) SetTrackArmed(id uuid.UUID, armed bool) error {
	ts := p.trackState(id)
	if ts == nil {
		return errTrackGone
	}
	ts.Armed = armed
	p.emit(target.ChangeEvent{Kind: target.EventTrackArm, Track: id, On: armed})
	return nil
}

func (p *Provider) TrackSelected(id uuid.UUID) (bool, bool) {
	if ts := p.trackState(id); ts != nil {
		return ts.Selected, true
	}
	return false, false
}

func (p *Provider) SetTrackSelected(id uuid.UUID, selected bool) error {
	ts := p.trackState(id)
	if ts == nil {
		return errTrackGone
	}
	ts.Selected = selected
	p.emit(target.ChangeEvent{Kind: target.EventTrackSelection, Track: id, On: selected})
	return nil
}

func (p *Provider) Fxs(track uuid.UUID) []target.Fx {
	ts := p.trackState(track)
	if ts == nil {
		return nil
	}
	out := make([]target.Fx, len(ts.Fxs))
	for i, fx := range ts.Fxs {
		out[i] = fx.Fx
	}
	return out
}

func (p *Provider) fxState(track uuid.UUID, fx int) *FxState {
	ts := p.trackState(track)
	if ts == nil || fx < 0 || fx >= len(ts.Fxs) {
		return nil
	}
	return &ts.Fxs[fx]
}

func (p *Provider) FxParameter(track uuid.UUID, fx, param int) (unit.Value, bool) {
	fs := p.fxState(track, fx)
	if fs == nil || param < 0 || param >= len(fs.Params) {
		return 0, false
	}
	return fs.Params[param], true
}

func (p *Provider) SetFxParameter(track uuid.UUID, fx, param int, v unit.Value) error {
	fs := p.fxState(track, fx)
	if fs == nil || param < 0 || param >= len(fs.Params) {
		return errTrackGone
	}
	fs.Params[param] = v
	p.emit(target.ChangeEvent{
		Kind: target.EventFxParameter, Track: track, Fx: fx, Param: param, Value: v.Get(),
	})
	return nil
}

func (p *Provider) FxParameterStepCount(track uuid.UUID, fx, param int) int {
	fs := p.fxState(track, fx)
	if fs == nil || param < 0 || param >= len(fs.StepCounts) {
		return 0
	}
	return fs.StepCounts[param]
}

func (p *Provider) FxEnabled(track uuid.UUID, fx int) (bool, bool) {
	fs := p.fxState(track, fx)
	if fs == nil {
		return false, false
	}
	return fs.Enabled, true
}

func (p *Provider) SetFxEnabled(track uuid.UUID, fx int, enabled bool) error {
	fs := p.fxState(track, fx)
	if fs == nil {
		return errTrackGone
	}
	fs.Enabled = enabled
	p.emit(target.ChangeEvent{Kind: target.EventFxEnabled, Track: track, Fx: fx, On: enabled})
	return nil
}

func (p *Provider) FxPresetIndex(track uuid.UUID, fx int) (int, int, bool) {
	fs := p.fxState(track, fx)
	if fs == nil || fs.PresetCount == 0 {
		return 0, 0, false
	}
	return fs.PresetIndex, fs.PresetCount, true
}

func (p *Provider) SetFxPresetIndex(track uuid.UUID, fx, index int) error {
	fs := p.fxState(track, fx)
	if fs == nil {
		return errTrackGone
	}
	fs.PresetIndex = index
	p.emit(target.ChangeEvent{Kind: target.EventFxPreset, Track: track, Fx: fx, Value: float64(index)})
	return nil
}

func (p *Provider) Routes(track uuid.UUID) []target.Route {
	ts := p.trackState(track)
	if ts == nil {
		return nil
	}
	out := make([]target.Route, len(ts.Routes))
	for i, r := range ts.Routes {
		out[i] = r.Route
	}
	return out
}

func (p *Provider) routeState(track uuid.UUID, route int) *RouteState {
	ts := p.trackState(track)
	if ts == nil || route < 0 || route >= len(ts.Routes) {
		return nil
	}
	return &ts.Routes[route]
}

func (p *Provider) RouteVolume(track uuid.UUID, route int) (unit.Value, bool) {
	rs := p.routeState(track, route)
	if rs == nil {
		return 0, false
	}
	return rs.Volume, true
}

func (p *Provider) SetRouteVolume(track uuid.UUID, route int, v unit.Value) error {
	rs := p.routeState(track, route)
	if rs == nil {
		return errTrackGone
	}
	rs.Volume = v
	p.emit(target.ChangeEvent{Kind: target.EventRouteVolume, Track: track, Route: route, Value: v.Get()})
	return nil
}

func (p *Provider) RoutePan(track uuid.UUID, route int) (unit.Value, bool) {
	rs := p.routeState(track, route)
	if rs == nil {
		return 0, false
	}
	return rs.Pan, true
}

func (p *Provider) SetRoutePan(track uuid.UUID, route int, v unit.Value) error {
	rs := p.routeState(track, route)
	if rs == nil {
		return errTrackGone
	}
	rs.Pan = v
	p.emit(target.ChangeEvent{Kind: target.EventRoutePan, Track: track, Route: route, Value: v.Get()})
	return nil
}

func (p *Provider) Transport() target.TransportState { return p.State }

func (p *Provider) TransportDo(op target.TransportOp, on bool) error {
	switch op {
	case target.OpPlayStop:
		if on {
			p.State = target.TransportPlaying
		} else {
			p.State = target.TransportStopped
		}
	case target.OpPlayPause:
		if on {
			p.State = target.TransportPlaying
		} else {
			p.State = target.TransportPaused
		}
	case target.OpStop:
		if on {
			p.State = target.TransportStopped
		}
	case target.OpPause:
		if on {
			p.State = target.TransportPaused
		}
	case target.OpRecord:
		if on {
			p.State = target.TransportRecording
		} else {
			p.State = target.TransportStopped
		}
	case target.OpRepeat:
		p.Repeat = on
		p.emit(target.ChangeEvent{Kind: target.EventRepeat, On: on})
		return nil
	}
	p.emit(target.ChangeEvent{Kind: target.EventTransport, State: p.State})
	return nil
}

func (p *Provider) RepeatEnabled() bool { return p.Repeat }

func (p *Provider) Tempo() float64 { return p.Bpm }

func (p *Provider) SetTempo(bpm float64) error {
	p.Bpm = bpm
	p.emit(target.ChangeEvent{Kind: target.EventTempo, Value: bpm})
	return nil
}

func (p *Provider) PlayPosition() float64 { return p.Position }

func (p *Provider) ProjectLength() float64 { return p.Length }

func (p *Provider) Seek(pos float64) error {
	p.Position = pos
	return nil
}

func (p *Provider) Bookmarks() []target.Bookmark { return p.Marks }

func (p *Provider) CurrentBookmark() (int, bool) { return p.CurrentMark, p.HasMark }

func (p *Provider) GoToBookmark(id int) error {
	p.CurrentMark = id
	p.HasMark = true
	p.emit(target.ChangeEvent{Kind: target.EventBookmark, Value: float64(id)})
	return nil
}

func (p *Provider) Notifications() <-chan target.ChangeEvent { return p.events }

type gone string

func (g gone) Error() string { return string(g) }

const errTrackGone = gone("track no longer exists")
