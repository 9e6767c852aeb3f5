package engine

import (
	"log/slog"
	"sync"

	"github.com/tilde-audio/remap/internal/source"
)

// Instance is the backbone's view of one engine instance. MainProcessor
// implements it.
type Instance interface {
	InstanceID() string
	// UsesFeedbackOutput reports whether the instance currently sends
	// feedback to the named output device.
	UsesFeedbackOutput(device string) bool
	// MaybeTakeoverSource gives the instance a chance to re-assert its own
	// feedback for a just-released address on a shared output. It returns
	// true when it did, which cancels the releasing instance's off-send.
	MaybeTakeoverSource(device string, addr source.Address) bool
	// EnqueueInstanceEvent delivers a suspend/reactivate order. Delivery is
	// deferred to the instance's own cycle; the backbone never mutates a
	// foreign instance mid-cycle.
	EnqueueInstanceEvent(evt InstanceEvent)
	// SetEnabled flips the whole instance on or off (enable-instances meta
	// target).
	SetEnabled(on bool)
}

// Backbone is the process-wide instance registry and feedback arbitration
// point. One per host process; instances register at creation and
// deregister at destruction.
//
// All callers run on the host's main thread, which invokes every
// instance's callbacks serially, but the mutex keeps the registry safe for
// hosts that do not.
type Backbone struct {
	log *slog.Logger

	mu        sync.Mutex
	instances []Instance
	// suspendedBy maps device -> instance id currently holding the ceiling.
	suspendedBy map[string]string
}

// NewBackbone builds the registry. One per host process.
func NewBackbone(log *slog.Logger) *Backbone {
	return &Backbone{log: log, suspendedBy: make(map[string]string)}
}

// Register adds an instance. An instance arriving on a device whose
// ceiling is already held gets suspended right away.
func (b *Backbone) Register(inst Instance) {
	b.mu.Lock()
	b.instances = append(b.instances, inst)
	suspend := false
	for device, holder := range b.suspendedBy {
		if holder != inst.InstanceID() && inst.UsesFeedbackOutput(device) {
			suspend = true
		}
	}
	b.mu.Unlock()
	if suspend {
		inst.EnqueueInstanceEvent(InstanceEvent{Suspend: true})
	}
	b.log.Info("instance registered", "instance", inst.InstanceID())
}

// Deregister removes an instance and releases any ceiling it held.
func (b *Backbone) Deregister(inst Instance) {
	b.mu.Lock()
	for i, x := range b.instances {
		if x == inst {
			b.instances = append(b.instances[:i], b.instances[i+1:]...)
			break
		}
	}
	var release []Instance
	for device, holder := range b.suspendedBy {
		if holder != inst.InstanceID() {
			continue
		}
		delete(b.suspendedBy, device)
		for _, other := range b.instances {
			if other.UsesFeedbackOutput(device) {
				release = append(release, other)
			}
		}
	}
	b.mu.Unlock()
	for _, other := range release {
		other.EnqueueInstanceEvent(InstanceEvent{Reactivate: true})
	}
	b.log.Info("instance deregistered", "instance", inst.InstanceID())
}

// MaybeTakeoverSource runs the release protocol for one feedback address.
// The releasing instance calls this instead of immediately sending its off
// value; every other instance sharing the output gets a takeover chance in
// registration order. It returns true when someone took over, in which
// case the caller must not switch the source off.
func (b *Backbone) MaybeTakeoverSource(releasing Instance, device string, addr source.Address) bool {
	b.mu.Lock()
	others := make([]Instance, 0, len(b.instances))
	for _, inst := range b.instances {
		if inst != releasing && inst.UsesFeedbackOutput(device) {
			others = append(others, inst)
		}
	}
	b.mu.Unlock()
	for _, inst := range others {
		if inst.MaybeTakeoverSource(device, addr) {
			b.log.Debug("source taken over",
				"device", device, "by", inst.InstanceID(), "from", releasing.InstanceID())
			return true
		}
	}
	return false
}

// SuspendLowerFloors suspends every other instance sharing the device.
// The ceiling instance gets exclusive use until ReleaseCeiling.
func (b *Backbone) SuspendLowerFloors(ceiling Instance, device string) {
	b.mu.Lock()
	b.suspendedBy[device] = ceiling.InstanceID()
	var lower []Instance
	for _, inst := range b.instances {
		if inst != ceiling && inst.UsesFeedbackOutput(device) {
			lower = append(lower, inst)
		}
	}
	b.mu.Unlock()
	for _, inst := range lower {
		inst.EnqueueInstanceEvent(InstanceEvent{Suspend: true})
	}
}

// ReleaseCeiling reactivates instances suspended for the device. Only the
// instance holding the ceiling may release it.
func (b *Backbone) ReleaseCeiling(ceiling Instance, device string) {
	b.mu.Lock()
	if b.suspendedBy[device] != ceiling.InstanceID() {
		b.mu.Unlock()
		return
	}
	delete(b.suspendedBy, device)
	var lower []Instance
	for _, inst := range b.instances {
		if inst != ceiling && inst.UsesFeedbackOutput(device) {
			lower = append(lower, inst)
		}
	}
	b.mu.Unlock()
	for _, inst := range lower {
		inst.EnqueueInstanceEvent(InstanceEvent{Reactivate: true})
	}
}

// EnableInstances executes an enable-instances hit instruction: named
// instances are flipped to on; with exclusive set, every unnamed instance
// except the originator is flipped the other way.
func (b *Backbone) EnableInstances(from Instance, ids []string, on, exclusive bool) {
	named := make(map[string]bool, len(ids))
	for _, id := range ids {
		named[id] = true
	}
	b.mu.Lock()
	insts := make([]Instance, len(b.instances))
	copy(insts, b.instances)
	b.mu.Unlock()
	for _, inst := range insts {
		switch {
		case named[inst.InstanceID()]:
			inst.SetEnabled(on)
		case exclusive && inst != from:
			inst.SetEnabled(!on)
		}
	}
}
