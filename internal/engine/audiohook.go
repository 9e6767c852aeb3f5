package engine

import (
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
)

// AudioHook is the process-wide dispatcher driven once per audio buffer,
// before any per-instance callbacks. It fans device input out to all
// registered real-time processors and owns the single global feedback
// write queue, which is what gives direct hardware feedback one
// deterministic order across all instances sharing a device.
type AudioHook struct {
	log *slog.Logger

	feedback chan FeedbackTask
	procOps  chan procOp

	mu         sync.Mutex
	processors []*RealTimeProcessor
	outputs    map[string]target.MidiSender
	learning   bool
	capture    chan<- *source.Midi
	scanner    learnScanner
}

type procOp struct {
	add    *RealTimeProcessor
	remove *RealTimeProcessor
}

// NewAudioHook builds the hook. One per host process.
func NewAudioHook(log *slog.Logger) *AudioHook {
	return &AudioHook{
		log:      log,
		feedback: make(chan FeedbackTask, 8192),
		procOps:  make(chan procOp, 256),
		outputs:  make(map[string]target.MidiSender),
	}
}

// RegisterOutput attaches a physical MIDI output under a device name.
func (h *AudioHook) RegisterOutput(device string, out target.MidiSender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputs[device] = out
}

// Sender returns a MidiSender that funnels through the global feedback
// queue, preserving the single write order. Real-time local hits use this
// instead of writing to the device directly.
func (h *AudioHook) Sender(device string) target.MidiSender {
	return queueSender{hook: h, device: device}
}

type queueSender struct {
	hook   *AudioHook
	device string
}

func (s queueSender) SendMidi(msg midi.Message) {
	s.hook.EnqueueFeedback(FeedbackTask{Device: s.device, Msg: msg})
}

// EnqueueFeedback queues one direct-device write. A full queue drops the
// task; the sender never blocks.
func (h *AudioHook) EnqueueFeedback(t FeedbackTask) {
	select {
	case h.feedback <- t:
	default:
	}
}

// AddProcessor registers an instance's real-time processor. The add is
// drained at one per audio cycle.
func (h *AudioHook) AddProcessor(p *RealTimeProcessor) {
	h.procOps <- procOp{add: p}
}

// RemoveProcessor unregisters a processor. It still gets one final cycle
// so it can turn lights off.
func (h *AudioHook) RemoveProcessor(p *RealTimeProcessor) {
	h.procOps <- procOp{remove: p}
}

// StartLearning suspends ordinary matching and feeds captured source
// guesses into the channel.
func (h *AudioHook) StartLearning(capture chan<- *source.Midi) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.learning = true
	h.capture = capture
	h.scanner = learnScanner{}
}

// StopLearning returns to normal matching.
func (h *AudioHook) StopLearning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.learning = false
	h.capture = nil
}

// Poll is the per-audio-buffer entry point. Fixed phase order: flush
// queued feedback, drive the processors (or the learn scanner), then
// apply at most one add/remove so a processor being removed still saw
// this cycle.
func (h *AudioHook) Poll(inputs []DeviceEvents, now time.Time) {
	h.flushFeedback()
	h.mu.Lock()
	learning := h.learning
	capture := h.capture
	processors := h.processors
	h.mu.Unlock()

	if learning {
		h.scanInputs(inputs, capture, now)
	} else {
		h.driveProcessors(processors, inputs, now)
	}
	h.applyProcOps()
}

func (h *AudioHook) flushFeedback() {
	h.mu.Lock()
	outputs := h.outputs
	h.mu.Unlock()
	for i := 0; i < feedbackBulkSize; i++ {
		select {
		case t := <-h.feedback:
			if out, ok := outputs[t.Device]; ok {
				out.SendMidi(t.Msg)
			}
		default:
			return
		}
	}
}

func (h *AudioHook) scanInputs(inputs []DeviceEvents, capture chan<- *source.Midi, now time.Time) {
	if capture == nil {
		return
	}
	emit := func(guess *source.Midi) {
		select {
		case capture <- guess:
		default:
		}
	}
	for _, dev := range inputs {
		for _, msg := range dev.Messages {
			if guess, ok := h.scanner.Feed(msg, now); ok {
				emit(guess)
			}
		}
	}
	if guess, ok := h.scanner.Poll(now); ok {
		emit(guess)
	}
}

func (h *AudioHook) driveProcessors(processors []*RealTimeProcessor, inputs []DeviceEvents, now time.Time) {
	for _, dev := range inputs {
		for _, raw := range dev.Messages {
			msg := source.NewMidiMessage(raw)
			for _, p := range processors {
				if h.offerEvent(p, dev.Device, msg, now) {
					// Claimed: later processors never see the event.
					break
				}
			}
		}
	}
	for _, p := range processors {
		h.advanceProcessor(p, now)
	}
}

// offerEvent isolates one instance's panic from the shared audio thread.
func (h *AudioHook) offerEvent(p *RealTimeProcessor, device string, msg source.Message, now time.Time) (claimed bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("real-time processor panicked", "instance", p.instanceID, "panic", r)
		}
	}()
	return p.ProcessEvent(device, msg, h.Sender(p.feedbackDevice()), now)
}

func (h *AudioHook) advanceProcessor(p *RealTimeProcessor, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("real-time processor panicked", "instance", p.instanceID, "panic", r)
		}
	}()
	p.Advance(h.Sender(p.feedbackDevice()), now)
}

func (h *AudioHook) applyProcOps() {
	for i := 0; i < procTaskBulkSize; i++ {
		select {
		case op := <-h.procOps:
			h.mu.Lock()
			if op.add != nil {
				h.processors = append(h.processors, op.add)
			}
			if op.remove != nil {
				for j, p := range h.processors {
					if p == op.remove {
						h.processors = append(h.processors[:j], h.processors[j+1:]...)
						break
					}
				}
			}
			h.mu.Unlock()
		default:
			return
		}
	}
}
