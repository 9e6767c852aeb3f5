package target

import (
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/tilde-audio/remap/internal/script"
)

// TrackSelectorKind enumerates the ways a descriptor can address tracks.
type TrackSelectorKind int

const (
	// TrackByID addresses one track by its stable id.
	TrackByID TrackSelectorKind = iota
	// TrackByName matches track names against a wildcard pattern; multiple
	// matches are valid and intentional.
	TrackByName
	// TrackByIndex addresses one track by list position.
	TrackByIndex
	// TrackDynamic computes the index from an expression over the
	// parameter array.
	TrackDynamic
	// TrackThis is the track the instance's plugin sits on.
	TrackThis
	// TrackSelected is the first currently selected track.
	TrackSelected
	// TrackAllSelected is every currently selected track.
	TrackAllSelected
	// TrackMaster is the master track.
	TrackMaster
)

// TrackSelector picks tracks from current host state. Dynamic selectors
// carry their expression pre-compiled; a compile failure leaves expr nil
// and the selector resolves to nothing.
type TrackSelector struct {
	Kind  TrackSelectorKind
	ID    uuid.UUID
	Name  string
	Index int
	Expr  string

	expr *script.Index
}

// NewDynamicTrackSelector compiles the index expression once.
func NewDynamicTrackSelector(expression string) (TrackSelector, error) {
	idx, err := script.CompileIndex(expression)
	if err != nil {
		return TrackSelector{}, fmt.Errorf("track selector: %w", err)
	}
	return TrackSelector{Kind: TrackDynamic, Expr: expression, expr: idx}, nil
}

// ResolveContext is the state selectors resolve against.
type ResolveContext struct {
	Provider Provider
	// Params is the instance's parameter array, exposed to dynamic
	// selector expressions.
	Params []float64
	// ThisTrack is the track the instance lives on.
	ThisTrack uuid.UUID
}

// Resolve returns all tracks the selector currently addresses. An empty
// result is not an error here; Descriptor.Resolve turns it into
// ErrEmptyResolution.
func (s TrackSelector) Resolve(ctx ResolveContext) []Track {
	p := ctx.Provider
	switch s.Kind {
	case TrackByID:
		if t, ok := p.TrackByID(s.ID); ok {
			return []Track{t}
		}
	case TrackByName:
		var out []Track
		for _, t := range p.Tracks() {
			if nameMatches(s.Name, t.Name) {
				out = append(out, t)
			}
		}
		return out
	case TrackByIndex:
		tracks := p.Tracks()
		if s.Index >= 0 && s.Index < len(tracks) {
			return []Track{tracks[s.Index]}
		}
	case TrackDynamic:
		if s.expr == nil {
			return nil
		}
		idx, err := s.expr.Eval(ctx.Params)
		if err != nil {
			return nil
		}
		tracks := p.Tracks()
		if idx < len(tracks) {
			return []Track{tracks[idx]}
		}
	case TrackThis:
		if t, ok := p.TrackByID(ctx.ThisTrack); ok {
			return []Track{t}
		}
	case TrackSelected:
		if sel := p.SelectedTracks(); len(sel) > 0 {
			return sel[:1]
		}
	case TrackAllSelected:
		return p.SelectedTracks()
	case TrackMaster:
		if t, ok := p.MasterTrack(); ok {
			return []Track{t}
		}
	}
	return nil
}

// DependsOnParameters reports whether resolution can change when the
// parameter array changes.
func (s TrackSelector) DependsOnParameters() bool { return s.Kind == TrackDynamic }

// nameMatches matches a name against a wildcard pattern ('*', '?'). An
// empty pattern matches everything.
func nameMatches(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// FxSelectorKind enumerates the ways a descriptor can address FX within a
// track's chain.
type FxSelectorKind int

const (
	FxByIndex FxSelectorKind = iota
	FxByName
	FxDynamic
)

// FxSelector picks FX instances from a resolved track.
type FxSelector struct {
	Kind  FxSelectorKind
	Index int
	Name  string
	Expr  string

	expr *script.Index
}

// NewDynamicFxSelector compiles the index expression once.
func NewDynamicFxSelector(expression string) (FxSelector, error) {
	idx, err := script.CompileIndex(expression)
	if err != nil {
		return FxSelector{}, fmt.Errorf("fx selector: %w", err)
	}
	return FxSelector{Kind: FxDynamic, Expr: expression, expr: idx}, nil
}

// Resolve returns all FX the selector addresses on the given track.
func (s FxSelector) Resolve(ctx ResolveContext, track Track) []Fx {
	fxs := ctx.Provider.Fxs(track.ID)
	switch s.Kind {
	case FxByIndex:
		if s.Index >= 0 && s.Index < len(fxs) {
			return []Fx{fxs[s.Index]}
		}
	case FxByName:
		var out []Fx
		for _, fx := range fxs {
			if nameMatches(s.Name, fx.Name) {
				out = append(out, fx)
			}
		}
		return out
	case FxDynamic:
		if s.expr == nil {
			return nil
		}
		idx, err := s.expr.Eval(ctx.Params)
		if err != nil {
			return nil
		}
		if idx < len(fxs) {
			return []Fx{fxs[idx]}
		}
	}
	return nil
}

// DependsOnParameters reports whether resolution can change when the
// parameter array changes.
func (s FxSelector) DependsOnParameters() bool { return s.Kind == FxDynamic }

// RouteSelectorKind enumerates the ways a descriptor can address routes.
type RouteSelectorKind int

const (
	RouteByIndex RouteSelectorKind = iota
	RouteByName
)

// RouteSelector picks send/receive routes from a resolved track.
type RouteSelector struct {
	Kind  RouteSelectorKind
	Index int
	Name  string
}

// Resolve returns all routes the selector addresses on the given track.
func (s RouteSelector) Resolve(ctx ResolveContext, track Track) []Route {
	routes := ctx.Provider.Routes(track.ID)
	switch s.Kind {
	case RouteByIndex:
		if s.Index >= 0 && s.Index < len(routes) {
			return []Route{routes[s.Index]}
		}
	case RouteByName:
		var out []Route
		for _, r := range routes {
			if nameMatches(s.Name, r.Name) {
				out = append(out, r)
			}
		}
		return out
	}
	return nil
}
