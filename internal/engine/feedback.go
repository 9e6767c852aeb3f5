package engine

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/tilde-audio/remap/internal/source"
)

// FeedbackReason says why a feedback value is being sent. It decides
// whether the dedup cache and the instance-wide feedback enable gate
// apply.
type FeedbackReason int

const (
	// ReasonNormal is regular state-mirroring feedback, fully subject to
	// dedup and the enable gate.
	ReasonNormal FeedbackReason = iota
	// ReasonAfterControl is an explicit echo after a control action and
	// bypasses dedup.
	ReasonAfterControl
	// ReasonTakeover re-asserts this instance's value after another
	// instance released the shared address; the value may equal the cached
	// one, so dedup must not apply.
	ReasonTakeover
	// ReasonFinalOff is the true lights-off after no instance took over.
	// It must go out even when this instance's feedback is disabled.
	ReasonFinalOff
	// ReasonSuspension is the all-zero feedback of an instance being
	// suspended by a higher-floor instance; always allowed.
	ReasonSuspension
	// ReasonReactivation is the full resend after suspension ends; it
	// bypasses dedup because the cache predates the suspension.
	ReasonReactivation
)

// BypassesDedup reports whether the value must be sent even when the
// cache says it is unchanged.
func (r FeedbackReason) BypassesDedup() bool { return r != ReasonNormal }

// AlwaysAllowed reports whether the send ignores the instance-wide
// feedback enable gate.
func (r FeedbackReason) AlwaysAllowed() bool {
	return r == ReasonFinalOff || r == ReasonSuspension
}

// feedbackCache suppresses re-sending identical feedback per output
// address.
type feedbackCache struct {
	checksums map[source.Address]uint64
}

func newFeedbackCache() *feedbackCache {
	return &feedbackCache{checksums: make(map[source.Address]uint64)}
}

// shouldSend records the value and reports whether it differs from the
// last sent one (or the reason forces a send).
func (c *feedbackCache) shouldSend(fv source.FeedbackValue, reason FeedbackReason) bool {
	sum := feedbackChecksum(fv)
	prev, seen := c.checksums[fv.Address]
	c.checksums[fv.Address] = sum
	if reason.BypassesDedup() {
		return true
	}
	return !seen || prev != sum
}

// forget drops the cached value so the next send always goes through.
func (c *feedbackCache) forget(addr source.Address) {
	delete(c.checksums, addr)
}

// reset drops everything (instance reactivation).
func (c *feedbackCache) reset() {
	c.checksums = make(map[source.Address]uint64)
}

// feedbackChecksum hashes the rendered payload, not the address.
func feedbackChecksum(fv source.FeedbackValue) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	switch fv.Kind {
	case source.MidiFeedback:
		for _, msg := range fv.Midi {
			h.Write([]byte(msg))
		}
	case source.OscFeedback:
		if fv.Osc != nil {
			h.Write([]byte(fv.Osc.Address))
			for _, arg := range fv.Osc.Arguments {
				binary.LittleEndian.PutUint64(buf[:], argBits(arg))
				h.Write(buf[:])
			}
		}
	case source.VirtualFeedback:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(fv.Virtual.Value.Unit().Get()))
		h.Write(buf[:])
	}
	if fv.Style.Text != "" {
		h.Write([]byte(fv.Style.Text))
	}
	if fv.Style.HasColor {
		binary.LittleEndian.PutUint64(buf[:], uint64(uint32(fv.Style.Color))<<32|uint64(uint32(fv.Style.BackgroundColor)))
		h.Write(buf[:])
	}
	return h.Sum64()
}

func argBits(arg interface{}) uint64 {
	switch v := arg.(type) {
	case float32:
		return uint64(math.Float32bits(v))
	case float64:
		return math.Float64bits(v)
	case int32:
		return uint64(uint32(v))
	case int64:
		return uint64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		h := fnv.New64a()
		h.Write([]byte(v))
		return h.Sum64()
	default:
		return 0
	}
}
