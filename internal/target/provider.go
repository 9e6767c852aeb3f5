// Package target implements the resolved target union and the selector
// descriptors that bind mappings to host objects. The host itself is only
// reached through the Provider capability interface, so any host (or a
// test fake) can sit behind it.
package target

import (
	"github.com/google/uuid"

	"github.com/tilde-audio/remap/internal/unit"
)

// Track is a live track handle as returned by the provider.
type Track struct {
	ID    uuid.UUID
	Index int
	Name  string
}

// Fx is a live FX handle within a track's FX chain.
type Fx struct {
	Index int
	Name  string
}

// Route is a send/receive route of a track.
type Route struct {
	Index int
	Name  string
}

// Bookmark is a project marker/region the transport can jump to.
type Bookmark struct {
	ID       int
	Name     string
	Position float64
}

// TransportState is the host transport's current state.
type TransportState int

const (
	TransportStopped TransportState = iota
	TransportPlaying
	TransportPaused
	TransportRecording
)

// TransportOp is a transport operation a target can perform.
type TransportOp int

const (
	OpPlayStop TransportOp = iota
	OpPlayPause
	OpStop
	OpPause
	OpRecord
	OpRepeat
)

// Provider is the capability interface onto the host object model. All
// values cross this boundary normalized to the unit interval; the provider
// owns the mapping to its native ranges.
type Provider interface {
	Tracks() []Track
	TrackByID(id uuid.UUID) (Track, bool)
	MasterTrack() (Track, bool)
	SelectedTracks() []Track

	TrackVolume(id uuid.UUID) (unit.Value, bool)
	SetTrackVolume(id uuid.UUID, v unit.Value) error
	TrackPan(id uuid.UUID) (unit.Value, bool)
	SetTrackPan(id uuid.UUID, v unit.Value) error
	TrackWidth(id uuid.UUID) (unit.Value, bool)
	SetTrackWidth(id uuid.UUID, v unit.Value) error
	TrackMuted(id uuid.UUID) (bool, bool)
	SetTrackMuted(id uuid.UUID, muted bool) error
	TrackArmed(id uuid.UUID) (bool, bool)
	SetTrackArmed(id uuid.UUID, armed bool) error
	TrackSelected(id uuid.UUID) (bool, bool)
	SetTrackSelected(id uuid.UUID, selected bool) error

	Fxs(track uuid.UUID) []Fx
	FxParameter(track uuid.UUID, fx, param int) (unit.Value, bool)
	SetFxParameter(track uuid.UUID, fx, param int, v unit.Value) error
	// FxParameterStepCount returns the number of discrete values of a
	// parameter, 0 for continuous parameters.
	FxParameterStepCount(track uuid.UUID, fx, param int) int
	FxEnabled(track uuid.UUID, fx int) (bool, bool)
	SetFxEnabled(track uuid.UUID, fx int, enabled bool) error
	FxPresetIndex(track uuid.UUID, fx int) (index, count int, ok bool)
	SetFxPresetIndex(track uuid.UUID, fx, index int) error

	Routes(track uuid.UUID) []Route
	RouteVolume(track uuid.UUID, route int) (unit.Value, bool)
	SetRouteVolume(track uuid.UUID, route int, v unit.Value) error
	RoutePan(track uuid.UUID, route int) (unit.Value, bool)
	SetRoutePan(track uuid.UUID, route int, v unit.Value) error

	Transport() TransportState
	TransportDo(op TransportOp, on bool) error
	RepeatEnabled() bool
	Tempo() float64
	SetTempo(bpm float64) error
	PlayPosition() float64
	ProjectLength() float64
	Seek(pos float64) error
	Bookmarks() []Bookmark
	CurrentBookmark() (int, bool)
	GoToBookmark(id int) error

	// Notifications is the host change event stream the control surface
	// adapter drains. The provider closes it on shutdown.
	Notifications() <-chan ChangeEvent
}

// ChangeEventKind classifies host change notifications.
type ChangeEventKind int

const (
	EventTrackVolume ChangeEventKind = iota
	EventTrackPan
	EventTrackWidth
	EventTrackMute
	EventTrackArm
	EventTrackSelection
	EventFxParameter
	EventFxEnabled
	EventFxPreset
	EventRouteVolume
	EventRoutePan
	EventTransport
	EventRepeat
	EventTempo
	EventBookmark
	// EventTrackList and EventFxList are "static" events: they invalidate
	// target resolution as a whole instead of carrying a value.
	EventTrackList
	EventFxList
	// EventParameterTouched feeds the last-touched tracker.
	EventParameterTouched
)

// ChangeEvent is one host change notification. Only the fields relevant
// for the kind are populated.
type ChangeEvent struct {
	Kind  ChangeEventKind
	Track uuid.UUID
	Fx    int
	Param int
	Route int
	Value float64
	On    bool
	State TransportState
}

// IsStatic reports whether the event invalidates target resolution
// (structure changed) rather than carrying a single target's new value.
func (e ChangeEvent) IsStatic() bool {
	switch e.Kind {
	case EventTrackList, EventFxList, EventTrackSelection:
		return true
	}
	return false
}
