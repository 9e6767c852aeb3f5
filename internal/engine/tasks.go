// Package engine contains the two processing halves of the mapping
// engine (real-time processor on the audio thread, main processor on the
// main thread), the process-wide audio hook and backbone, and the control
// surface adapter bridging host notifications into the main processor.
package engine

import (
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/source"
)

// ControlMode is the main processor's control state. Real control happens
// only in Controlling; while learning, captured messages are forwarded to
// the session instead and only essential bookkeeping runs.
type ControlMode int

const (
	Controlling ControlMode = iota
	LearningSource
	ControlDisabled
)

// ControlEvent is one control message forwarded from the audio thread.
type ControlEvent struct {
	Msg       source.Message
	Timestamp time.Time
}

// SessionCommand is a main-thread task from the owning session (UI,
// preset load). Commands are drained once per cycle in arrival order.
type SessionCommand interface{ sessionCommand() }

// UpdateAllMappings replaces one compartment's mapping set.
type UpdateAllMappings struct {
	Compartment mapping.Compartment
	Mappings    []*mapping.Mapping
	Groups      []*mapping.Group
}

// UpdateSingleMapping replaces or adds one mapping.
type UpdateSingleMapping struct {
	Mapping *mapping.Mapping
}

// UpdateSettings flips the instance-wide enable flags.
type UpdateSettings struct {
	ControlOn  bool
	FeedbackOn bool
	// ClaimMatchedEvents withholds matched input events from later
	// instances and the host (exclusive takeover of the input device).
	ClaimMatchedEvents bool
	// UpperFloor claims exclusive use of the feedback output: all other
	// instances sharing it are suspended until the claim is dropped.
	UpperFloor bool
}

// StartLearning switches the processor into source capture mode.
// Captured messages go to the channel instead of the control pipeline.
type StartLearning struct {
	AllowVirtual bool
	Capture      chan<- source.Message
}

// StopLearning returns to normal control.
type StopLearning struct{}

// TakeSnapshot records the current value of every main mapping's target
// under a name, for later restoration by a load-snapshot target.
type TakeSnapshot struct {
	Name string
}

func (UpdateAllMappings) sessionCommand()   {}
func (UpdateSingleMapping) sessionCommand() {}
func (UpdateSettings) sessionCommand()      {}
func (StartLearning) sessionCommand()       {}
func (StopLearning) sessionCommand()        {}
func (TakeSnapshot) sessionCommand()        {}

// ParameterTask updates parameter slots.
type ParameterTask struct {
	// Index is the absolute slot (0..199). All is set for bulk updates.
	Index int
	Value float64
	All   *[mapping.ParamSlotCount]float64
}

// FeedbackCommand asks for feedback recomputation.
type FeedbackCommand struct {
	// Resync recomputes and resends everything (cache cleared).
	Resync bool
	// RefreshTargets re-resolves all targets first. Deferred structure
	// change handling enqueues this instead of mutating inside the host
	// callback.
	RefreshTargets bool
	// MappingID limits the recomputation to one mapping.
	MappingID mapping.QualifiedID
	HasID     bool
}

// InstanceEvent is a cross-instance orchestration event delivered by the
// backbone.
type InstanceEvent struct {
	// Suspend/Reactivate toggle the floor suspension state.
	Suspend    bool
	Reactivate bool
}

// FeedbackTask is one queued direct-device feedback write, flushed in
// global FIFO order by the audio hook.
type FeedbackTask struct {
	Device string
	Msg    midi.Message
}

// DeviceEvents is one input device's messages for the current audio
// buffer.
type DeviceEvents struct {
	Device   string
	Messages []midi.Message
}

// Bulk sizes per audio callback. Feedback drains generously; processor
// add/remove drains deliberately slowly because the audio thread is
// shared across all instances.
const (
	feedbackBulkSize = 1000
	procTaskBulkSize = 1
)
