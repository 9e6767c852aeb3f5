package engine

import (
	"sync"
	"time"

	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
)

// RealTimeProcessor runs on the audio callback thread. It owns the
// splintered mapping table and performs source matching there; matched
// events either hit real-time targets locally or travel to the main
// processor over a bounded channel that drops when full.
//
// The mutex is uncontended in the common case; the main thread takes it
// only while swapping the mapping table or flags.
type RealTimeProcessor struct {
	instanceID string

	mu        sync.Mutex
	mappings  []*mapping.RealTimeMapping
	device    string
	outDevice string
	controlOn bool
	// claimMatched filters matched events out so other instances and the
	// host never see them (exclusive takeover).
	claimMatched bool

	toMain chan<- ControlEvent
}

// NewRealTimeProcessor wires the processor to the main processor's
// channel.
func NewRealTimeProcessor(instanceID string, toMain chan<- ControlEvent) *RealTimeProcessor {
	return &RealTimeProcessor{instanceID: instanceID, toMain: toMain}
}

// UpdateMappings swaps the splinter table.
func (p *RealTimeProcessor) UpdateMappings(ms []*mapping.RealTimeMapping) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mappings = ms
}

// SetControlOn flips the instance-wide control flag.
func (p *RealTimeProcessor) SetControlOn(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controlOn = on
}

// SetInputDevice assigns the MIDI input this instance listens to. Empty
// means none.
func (p *RealTimeProcessor) SetInputDevice(device string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.device = device
}

// SetOutputDevice assigns where local real-time hits land.
func (p *RealTimeProcessor) SetOutputDevice(device string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outDevice = device
}

func (p *RealTimeProcessor) feedbackDevice() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outDevice
}

// SetClaimMatched controls exclusive event claiming.
func (p *RealTimeProcessor) SetClaimMatched(claim bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimMatched = claim
}

// ListensTo reports whether the processor wants events from the device.
func (p *RealTimeProcessor) ListensTo(device string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlOn && p.device == device
}

// ProcessEvent offers one device message to the mapping table. The
// returned claim tells the hook to withhold the event from later
// processors.
func (p *RealTimeProcessor) ProcessEvent(device string, msg source.Message, out target.MidiSender, now time.Time) (claimed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.controlOn || p.device != device {
		return false
	}
	matched := false
	for _, rt := range p.mappings {
		cv, ok := rt.Match(msg)
		if !ok {
			continue
		}
		matched = true
		if rt.RealTimeTarget != nil {
			rt.HitLocal(cv, out, now)
			continue
		}
		// Full processing happens on the main thread. A full channel
		// drops; control is lossy under overload, never blocking.
		select {
		case p.toMain <- ControlEvent{Msg: msg, Timestamp: now}:
		default:
		}
		// One forward covers all main-thread mappings; they re-match.
		break
	}
	return matched && p.claimMatched
}

// Advance moves fire timers of locally-hittable mappings forward.
func (p *RealTimeProcessor) Advance(out target.MidiSender, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.controlOn {
		return
	}
	for _, rt := range p.mappings {
		rt.PollLocal(out, now)
	}
}
