package main

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/tilde-audio/remap/internal/target"
	"github.com/tilde-audio/remap/internal/unit"
)

// demoTrack is one track of the built-in demo project.
type demoTrack struct {
	track    target.Track
	volume   unit.Value
	pan      unit.Value
	width    unit.Value
	muted    bool
	armed    bool
	selected bool
	fxs      []*demoFx
	routes   []*demoRoute
}

type demoFx struct {
	fx      target.Fx
	params  []unit.Value
	steps   []int
	enabled bool
	preset  int
	presets int
}

type demoRoute struct {
	route  target.Route
	volume unit.Value
	pan    unit.Value
}

// project is the daemon's built-in host object model. Without a DAW
// behind the daemon, mappings still need something to land on: a small
// in-memory project whose mutations are logged and fed back through the
// notification stream, so feedback, polling and virtual routing behave
// exactly as they would against a real host. All methods run on the main
// loop goroutine.
type project struct {
	log    *slog.Logger
	tracks []*demoTrack
	byID   map[uuid.UUID]*demoTrack
	master *demoTrack

	state    target.TransportState
	repeat   bool
	bpm      float64
	position float64
	length   float64
	marks    []target.Bookmark
	mark     int
	hasMark  bool

	events chan target.ChangeEvent
}

// newProject builds the demo project: a master plus a few named tracks,
// each with a synth FX carrying 8 parameters.
func newProject(log *slog.Logger) *project {
	p := &project{
		log:    log,
		byID:   make(map[uuid.UUID]*demoTrack),
		bpm:    120,
		length: 240,
		events: make(chan target.ChangeEvent, 1024),
	}
	p.master = &demoTrack{
		track:  target.Track{ID: uuid.New(), Index: -1, Name: "Master"},
		volume: 0.71, pan: 0.5, width: 1,
	}
	p.byID[p.master.track.ID] = p.master
	for _, name := range []string{"Drums", "Bass", "Keys", "Vocals"} {
		t := &demoTrack{
			track:  target.Track{ID: uuid.New(), Index: len(p.tracks), Name: name},
			volume: 0.71, pan: 0.5, width: 1,
		}
		t.fxs = append(t.fxs, &demoFx{
			fx:      target.Fx{Index: 0, Name: "Synth"},
			params:  make([]unit.Value, 8),
			steps:   make([]int, 8),
			enabled: true,
			presets: 16,
		})
		p.tracks = append(p.tracks, t)
		p.byID[t.track.ID] = t
	}
	return p
}

// advance moves the play position while the transport runs. Called once
// per main loop cycle.
func (p *project) advance(seconds float64) {
	if p.state != target.TransportPlaying && p.state != target.TransportRecording {
		return
	}
	p.position += seconds
	if p.position > p.length {
		p.position = 0
	}
}

func (p *project) emit(evt target.ChangeEvent) {
	select {
	case p.events <- evt:
	default:
	}
}

func (p *project) Tracks() []target.Track {
	out := make([]target.Track, len(p.tracks))
	for i, t := range p.tracks {
		out[i] = t.track
	}
	return out
}

func (p *project) TrackByID(id uuid.UUID) (target.Track, bool) {
	if t, ok := p.byID[id]; ok {
		return t.track, true
	}
	return target.Track{}, false
}

func (p *project) MasterTrack() (target.Track, bool) { return p.master.track, true }

func (p *project) SelectedTracks() []target.Track {
	var out []target.Track
	for _, t := range p.tracks {
		if t.selected {
			out = append(out, t.track)
		}
	}
	return out
}

func (p *project) TrackVolume(id uuid.UUID) (unit.Value, bool) {
	if t, ok := p.byID[id]; ok {
		return t.volume, true
	}
	return 0, false
}

func (p *project) SetTrackVolume(id uuid.UUID, v unit.Value) error {
	t, ok := p.byID[id]
	if !ok {
		return target.ErrEmptyResolution
	}
	t.volume = v
	p.log.Debug("set track volume", "track", t.track.Name, "value", v.Get())
	p.emit(target.ChangeEvent{Kind: target.EventTrackVolume, Track: id, Value: v.Get()})
	return nil
}

func (p *project) TrackPan(id uuid.UUID) (unit.Value, bool) {
	if t, ok := p.byID[id]; ok {
		return t.pan, true
	}
	return 0, false
}

func (p *project) SetTrackPan(id uuid.UUID, v unit.Value) error {
	t, ok := p.byID[id]
	if !ok {
		return target.ErrEmptyResolution
	}
	t.pan = v
	p.log.Debug("set track pan", "track", t.track.Name, "value", v.Get())
	p.emit(target.ChangeEvent{Kind: target.EventTrackPan, Track: id, Value: v.Get()})
	return nil
}

func (p *project) TrackWidth(id uuid.UUID) (unit.Value, bool) {
	if t, ok := p.byID[id]; ok {
		return t.width, true
	}
	return 0, false
}

func (p *project) SetTrackWidth(id uuid.UUID, v unit.Value) error {
	t, ok := p.byID[id]
	if !ok {
		return target.ErrEmptyResolution
	}
	t.width = v
	p.emit(target.ChangeEvent{Kind: target.EventTrackWidth, Track: id, Value: v.Get()})
	return nil
}

func (p *project) TrackMuted(id uuid.UUID) (bool, bool) {
	if t, ok := p.byID[id]; ok {
		return t.muted, true
	}
	return false, false
}

func (p *project) SetTrackMuted(id uuid.UUID, muted bool) error {
	t, ok := p.byID[id]
	if !ok {
		return target.ErrEmptyResolution
	}
	t.muted = muted
	p.log.Debug("set track mute", "track", t.track.Name, "muted", muted)
	p.emit(target.ChangeEvent{Kind: target.EventTrackMute, Track: id, On: muted})
	return nil
}

func (p *project) TrackArmed(id uuid.UUID) (bool, bool) {
	if t, ok := p.byID[id]; ok {
		return t.armed, true
	}
	return false, false
}

func (p *project) SetTrackArmed(id uuid.UUID, armed bool) error {
	t, ok := p.byID[id]
	if !ok {
		return target.ErrEmptyResolution
	}
	t.armed = armed
	p.emit(target.ChangeEvent{Kind: target.EventTrackArm, Track: id, On: armed})
	return nil
}

func (p *project) TrackSelected(id uuid.UUID) (bool, bool) {
	if t, ok := p.byID[id]; ok {
		return t.selected, true
	}
	return false, false
}

func (p *project) SetTrackSelected(id uuid.UUID, selected bool) error {
	t, ok := p.byID[id]
	if !ok {
		return target.ErrEmptyResolution
	}
	t.selected = selected
	p.emit(target.ChangeEvent{Kind: target.EventTrackSelection, Track: id, On: selected})
	return nil
}

func (p *project) fx(track uuid.UUID, fx int) *demoFx {
	t, ok := p.byID[track]
	if !ok || fx < 0 || fx >= len(t.fxs) {
		return nil
	}
	return t.fxs[fx]
}

func (p *project) Fxs(track uuid.UUID) []target.Fx {
	t, ok := p.byID[track]
	if !ok {
		return nil
	}
	out := make([]target.Fx, len(t.fxs))
	for i, f := range t.fxs {
		out[i] = f.fx
	}
	return out
}

func (p *project) FxParameter(track uuid.UUID, fx, param int) (unit.Value, bool) {
	f := p.fx(track, fx)
	if f == nil || param < 0 || param >= len(f.params) {
		return 0, false
	}
	return f.params[param], true
}

func (p *project) SetFxParameter(track uuid.UUID, fx, param int, v unit.Value) error {
	f := p.fx(track, fx)
	if f == nil || param < 0 || param >= len(f.params) {
		return target.ErrEmptyResolution
	}
	f.params[param] = v
	p.log.Debug("set fx parameter", "fx", f.fx.Name, "param", param, "value", v.Get())
	p.emit(target.ChangeEvent{Kind: target.EventFxParameter, Track: track, Fx: fx, Param: param, Value: v.Get()})
	return nil
}

func (p *project) FxParameterStepCount(track uuid.UUID, fx, param int) int {
	f := p.fx(track, fx)
	if f == nil || param < 0 || param >= len(f.steps) {
		return 0
	}
	return f.steps[param]
}

func (p *project) FxEnabled(track uuid.UUID, fx int) (bool, bool) {
	f := p.fx(track, fx)
	if f == nil {
		return false, false
	}
	return f.enabled, true
}

func (p *project) SetFxEnabled(track uuid.UUID, fx int, enabled bool) error {
	f := p.fx(track, fx)
	if f == nil {
		return target.ErrEmptyResolution
	}
	f.enabled = enabled
	p.emit(target.ChangeEvent{Kind: target.EventFxEnabled, Track: track, Fx: fx, On: enabled})
	return nil
}

func (p *project) FxPresetIndex(track uuid.UUID, fx int) (int, int, bool) {
	f := p.fx(track, fx)
	if f == nil || f.presets == 0 {
		return 0, 0, false
	}
	return f.preset, f.presets, true
}

func (p *project) SetFxPresetIndex(track uuid.UUID, fx, index int) error {
	f := p.fx(track, fx)
	if f == nil {
		return target.ErrEmptyResolution
	}
	f.preset = index
	p.emit(target.ChangeEvent{Kind: target.EventFxPreset, Track: track, Fx: fx, Value: float64(index)})
	return nil
}

func (p *project) route(track uuid.UUID, route int) *demoRoute {
	t, ok := p.byID[track]
	if !ok || route < 0 || route >= len(t.routes) {
		return nil
	}
	return t.routes[route]
}

func (p *project) Routes(track uuid.UUID) []target.Route {
	t, ok := p.byID[track]
	if !ok {
		return nil
	}
	out := make([]target.Route, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.route
	}
	return out
}

func (p *project) RouteVolume(track uuid.UUID, route int) (unit.Value, bool) {
	r := p.route(track, route)
	if r == nil {
		return 0, false
	}
	return r.volume, true
}

func (p *project) SetRouteVolume(track uuid.UUID, route int, v unit.Value) error {
	r := p.route(track, route)
	if r == nil {
		return target.ErrEmptyResolution
	}
	r.volume = v
	p.emit(target.ChangeEvent{Kind: target.EventRouteVolume, Track: track, Route: route, Value: v.Get()})
	return nil
}

func (p *project) RoutePan(track uuid.UUID, route int) (unit.Value, bool) {
	r := p.route(track, route)
	if r == nil {
		return 0, false
	}
	return r.pan, true
}

func (p *project) SetRoutePan(track uuid.UUID, route int, v unit.Value) error {
	r := p.route(track, route)
	if r == nil {
		return target.ErrEmptyResolution
	}
	r.pan = v
	p.emit(target.ChangeEvent{Kind: target.EventRoutePan, Track: track, Route: route, Value: v.Get()})
	return nil
}

func (p *project) Transport() target.TransportState { return p.state }

func (p *project) TransportDo(op target.TransportOp, on bool) error {
	switch op {
	case target.OpPlayStop:
		if on {
			p.state = target.TransportPlaying
		} else {
			p.state = target.TransportStopped
			p.position = 0
		}
	case target.OpPlayPause:
		if on {
			p.state = target.TransportPlaying
		} else {
			p.state = target.TransportPaused
		}
	case target.OpStop:
		if on {
			p.state = target.TransportStopped
			p.position = 0
		}
	case target.OpPause:
		if on {
			p.state = target.TransportPaused
		}
	case target.OpRecord:
		if on {
			p.state = target.TransportRecording
		} else {
			p.state = target.TransportStopped
		}
	case target.OpRepeat:
		p.repeat = on
		p.emit(target.ChangeEvent{Kind: target.EventRepeat, On: on})
		return nil
	}
	p.log.Info("transport", "state", p.state)
	p.emit(target.ChangeEvent{Kind: target.EventTransport, State: p.state})
	return nil
}

func (p *project) RepeatEnabled() bool { return p.repeat }

func (p *project) Tempo() float64 { return p.bpm }

func (p *project) SetTempo(bpm float64) error {
	p.bpm = bpm
	p.log.Debug("set tempo", "bpm", bpm)
	p.emit(target.ChangeEvent{Kind: target.EventTempo, Value: bpm})
	return nil
}

func (p *project) PlayPosition() float64 { return p.position }

func (p *project) ProjectLength() float64 { return p.length }

func (p *project) Seek(pos float64) error {
	p.position = pos
	return nil
}

func (p *project) Bookmarks() []target.Bookmark { return p.marks }

func (p *project) CurrentBookmark() (int, bool) { return p.mark, p.hasMark }

func (p *project) GoToBookmark(id int) error {
	for _, b := range p.marks {
		if b.ID == id {
			p.position = b.Position
			p.mark = id
			p.hasMark = true
			p.emit(target.ChangeEvent{Kind: target.EventBookmark, Value: float64(id)})
			return nil
		}
	}
	return target.ErrEmptyResolution
}

func (p *project) Notifications() <-chan target.ChangeEvent { return p.events }
