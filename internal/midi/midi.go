// Package midi manages physical MIDI ports for the standalone host: it
// opens named input and output ports via rtmidi, buffers incoming
// messages per device and hands them to the audio hook once per clock
// cycle.
package midi

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
)

// inputBufferSize bounds how many messages one device can accumulate
// between two cycles. Overflow drops the newest message.
const inputBufferSize = 1024

// Manager owns the open ports. Close stops all listeners and releases the
// driver.
type Manager struct {
	mu      sync.RWMutex
	stops   []func()
	senders map[string]func(midi.Message) error
	inputs  map[string]*inputBuffer
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		senders: make(map[string]func(midi.Message) error),
		inputs:  make(map[string]*inputBuffer),
	}
}

// InPortNames lists the available input port names.
func (m *Manager) InPortNames() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// OutPortNames lists the available output port names.
func (m *Manager) OutPortNames() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

func findInPort(name string) drivers.In {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in
		}
	}
	return nil
}

func findOutPort(name string) drivers.Out {
	for _, out := range midi.GetOutPorts() {
		if out.String() == name {
			return out
		}
	}
	return nil
}

// inputBuffer collects messages from one listener callback until the next
// Drain.
type inputBuffer struct {
	mu   sync.Mutex
	msgs []midi.Message
}

func (b *inputBuffer) add(msg midi.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) >= inputBufferSize {
		return
	}
	b.msgs = append(b.msgs, msg)
}

func (b *inputBuffer) drain() []midi.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		return nil
	}
	out := b.msgs
	b.msgs = nil
	return out
}

// OpenInput starts listening on the named input port. Messages accumulate
// until the next Drain call.
func (m *Manager) OpenInput(name string) error {
	if name == "" {
		return nil
	}
	in := findInPort(name)
	if in == nil {
		return fmt.Errorf("input port not found: %s", name)
	}
	buf := &inputBuffer{}
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		buf.add(msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start listening: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs[name] = buf
	m.stops = append(m.stops, stop)
	return nil
}

// OpenOutput prepares a sender for the named output port.
func (m *Manager) OpenOutput(name string) error {
	if name == "" {
		return nil
	}
	out := findOutPort(name)
	if out == nil {
		return fmt.Errorf("output port not found: %s", name)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders[name] = send
	return nil
}

// Sender returns a send function for an opened output, nil if unknown.
func (m *Manager) Sender(name string) func(midi.Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.senders[name]
}

// DrainedInput is one cycle's worth of messages from one device.
type DrainedInput struct {
	Device   string
	Messages []midi.Message
}

// Drain empties all input buffers. Called once per clock cycle.
func (m *Manager) Drain() []DrainedInput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DrainedInput
	for name, buf := range m.inputs {
		if msgs := buf.drain(); len(msgs) > 0 {
			out = append(out, DrainedInput{Device: name, Messages: msgs})
		}
	}
	return out
}

// Close stops all listeners and closes the driver.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stop := range m.stops {
		stop()
	}
	m.stops = nil
	m.senders = make(map[string]func(midi.Message) error)
	m.inputs = make(map[string]*inputBuffer)
	midi.CloseDriver()
}
