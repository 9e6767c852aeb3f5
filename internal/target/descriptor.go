package target

import (
	"errors"

	"github.com/tilde-audio/remap/internal/source"
)

// ErrEmptyResolution is returned when a descriptor matches no live host
// object. It is recoverable: the mapping is treated as unavailable and
// resolution is retried on the next structure change.
var ErrEmptyResolution = errors.New("target resolved to empty list")

// Kind discriminates the target union.
type Kind int

const (
	KindTrackVolume Kind = iota
	KindTrackPan
	KindTrackWidth
	KindTrackMute
	KindTrackArm
	KindTrackSelection
	KindFxParameter
	KindFxEnable
	KindFxPreset
	KindRouteVolume
	KindRoutePan
	KindTransportAction
	KindTempo
	KindSeek
	KindGoToBookmark
	KindSendMidi
	KindSendOsc
	KindLastTouched
	KindEnableMappings
	KindEnableInstances
	KindLoadMappingSnapshot
	KindVirtual
)

// Descriptor is an unresolved target: selectors plus per-kind settings.
// It is re-resolved against current host state whenever relevant host
// structure changes or, for dynamic selectors, parameters change.
type Descriptor struct {
	Kind  Kind
	Track TrackSelector
	Fx    FxSelector
	Route RouteSelector

	ParamIndex int
	Op         TransportOp
	BookmarkID int

	MidiPattern []source.PatternByte
	OscAddress  string
	OscArgKind  source.OscArgKind

	Element          source.ElementID
	ElementCharacter source.ElementCharacter

	Tags      []string
	Exclusive bool
	Instances []string
	Snapshot  string
}

// DependsOnParameters reports whether Resolve can yield different targets
// when the parameter array changes.
func (d Descriptor) DependsOnParameters() bool {
	return d.Track.DependsOnParameters() || d.Fx.DependsOnParameters()
}

// Resolve materializes the descriptor into live targets. Selectors may
// legitimately match multiple objects ("all tracks named Drum*"); zero
// matches yields ErrEmptyResolution.
func (d Descriptor) Resolve(ctx ResolveContext) ([]Target, error) {
	var out []Target
	switch d.Kind {
	case KindTrackVolume:
		for _, t := range d.Track.Resolve(ctx) {
			out = append(out, TrackVolume{Track: t})
		}
	case KindTrackPan:
		for _, t := range d.Track.Resolve(ctx) {
			out = append(out, TrackPan{Track: t})
		}
	case KindTrackWidth:
		for _, t := range d.Track.Resolve(ctx) {
			out = append(out, TrackWidth{Track: t})
		}
	case KindTrackMute:
		for _, t := range d.Track.Resolve(ctx) {
			out = append(out, TrackMute{Track: t})
		}
	case KindTrackArm:
		for _, t := range d.Track.Resolve(ctx) {
			out = append(out, TrackArm{Track: t})
		}
	case KindTrackSelection:
		for _, t := range d.Track.Resolve(ctx) {
			out = append(out, TrackSelection{Track: t})
		}
	case KindFxParameter:
		for _, t := range d.Track.Resolve(ctx) {
			for _, fx := range d.Fx.Resolve(ctx, t) {
				out = append(out, FxParameter{
					Track:      t,
					FxIndex:    fx.Index,
					ParamIndex: d.ParamIndex,
					StepCount:  ctx.Provider.FxParameterStepCount(t.ID, fx.Index, d.ParamIndex),
				})
			}
		}
	case KindFxEnable:
		for _, t := range d.Track.Resolve(ctx) {
			for _, fx := range d.Fx.Resolve(ctx, t) {
				out = append(out, FxEnable{Track: t, FxIndex: fx.Index})
			}
		}
	case KindFxPreset:
		for _, t := range d.Track.Resolve(ctx) {
			for _, fx := range d.Fx.Resolve(ctx, t) {
				_, count, ok := ctx.Provider.FxPresetIndex(t.ID, fx.Index)
				if !ok {
					continue
				}
				out = append(out, FxPreset{Track: t, FxIndex: fx.Index, PresetCount: count})
			}
		}
	case KindRouteVolume:
		for _, t := range d.Track.Resolve(ctx) {
			for _, r := range d.Route.Resolve(ctx, t) {
				out = append(out, RouteVolume{Track: t, RouteIndex: r.Index})
			}
		}
	case KindRoutePan:
		for _, t := range d.Track.Resolve(ctx) {
			for _, r := range d.Route.Resolve(ctx, t) {
				out = append(out, RoutePan{Track: t, RouteIndex: r.Index})
			}
		}
	case KindTransportAction:
		out = append(out, TransportAction{Op: d.Op})
	case KindTempo:
		out = append(out, Tempo{})
	case KindSeek:
		out = append(out, Seek{})
	case KindGoToBookmark:
		for _, b := range ctx.Provider.Bookmarks() {
			if b.ID == d.BookmarkID {
				out = append(out, GoToBookmark{Bookmark: b})
				break
			}
		}
	case KindSendMidi:
		if len(d.MidiPattern) > 0 {
			out = append(out, &SendMidi{Pattern: d.MidiPattern})
		}
	case KindSendOsc:
		if d.OscAddress != "" {
			out = append(out, &SendOsc{Address: d.OscAddress, ArgKind: d.OscArgKind})
		}
	case KindLastTouched:
		out = append(out, LastTouched{})
	case KindEnableMappings:
		out = append(out, &EnableMappings{Tags: d.Tags, Exclusive: d.Exclusive})
	case KindEnableInstances:
		out = append(out, &EnableInstances{Instances: d.Instances, Exclusive: d.Exclusive})
	case KindLoadMappingSnapshot:
		if d.Snapshot != "" {
			out = append(out, LoadMappingSnapshot{Snapshot: d.Snapshot})
		}
	case KindVirtual:
		out = append(out, &Virtual{Element: d.Element, ElementCharacter: d.ElementCharacter})
	}
	if len(out) == 0 {
		return nil, ErrEmptyResolution
	}
	return out, nil
}

// IsVirtual reports whether the descriptor targets a virtual control
// element and therefore participates in controller-to-main routing.
func (d Descriptor) IsVirtual() bool { return d.Kind == KindVirtual }
