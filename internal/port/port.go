// Package port implements the Port abstraction of spec.md §4.1: the
// typed I/O buffer attached to a plugin's client, either a raw audio float
// buffer or an ordered event queue.
//
// Grounded on shaban/macaudio's avaudio/unit wrapper shape (opaque native
// handle, Create/Release/Get* accessors) generalized from a single
// AudioUnit port to the three polymorphic variants (Null, Audio, Event)
// spec.md names, and on engine/analyze for the RMS/peak helper reused by
// AudioPort.Peak.
package port

import (
	"math"

	"github.com/carla-audio/carla-go/internal/event"
)

// Mode is the engine process mode a port was created under, spec.md §4.1
// "process-mode reference". Ports behave differently depending on whether
// their buffer is the driver's own memory (patchbay, multi-client) or an
// internally owned scratch buffer (rack mode).
type Mode uint8

const (
	// ModeRack: fixed 2 audio + 1 event port per direction, internally owned.
	ModeRack Mode = iota
	// ModePatchbay: free-form per-plugin port width, driver-owned buffers.
	ModePatchbay
)

// Kind distinguishes the three polymorphic Port variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindAudio
	KindEvent
)

// BufferSource supplies the raw memory a port binds to on initBuffer. In
// rack/patchbay-internal mode the port owns its buffer; when bound to a
// driver-supplied buffer (multi-client mode, spec.md §4.3) the engine
// passes the driver's slice directly.
type BufferSource interface {
	// AudioBuffer returns the driver-owned buffer for the named port, or
	// nil if the port is not driver-bound (the port then owns its buffer).
	AudioBuffer(name string, isInput bool) []float32
}

// Port is the common immutable-shape contract every variant satisfies.
// isInput and the process mode are fixed at construction, per spec.md
// §4.1 "both immutable after construction".
type Port struct {
	kind    Kind
	name    string
	isInput bool
	mode    Mode
}

func (p *Port) Kind() Kind      { return p.kind }
func (p *Port) Name() string    { return p.name }
func (p *Port) IsInput() bool   { return p.isInput }
func (p *Port) Mode() Mode      { return p.mode }

// NullPort is the degenerate variant used for a plugin port slot that has
// no backing connection (e.g. an unconnected optional audio port).
type NullPort struct {
	Port
}

// NewNull creates a Null port.
func NewNull(name string, isInput bool, mode Mode) *NullPort {
	return &NullPort{Port{kind: KindNull, name: name, isInput: isInput, mode: mode}}
}

// InitBuffer is a no-op for NullPort: there is nothing to (re)bind.
func (p *NullPort) InitBuffer(_ BufferSource) {}

// AudioPort is a single-channel float buffer, spec.md §4.1.
type AudioPort struct {
	Port
	buffer []float32
	owned  []float32 // internally-owned scratch buffer, rack mode
}

// NewAudio creates an Audio port with an internally-owned zero buffer sized
// for frames samples; InitBuffer rebinds it every process call.
func NewAudio(name string, isInput bool, mode Mode, frames uint32) *AudioPort {
	return &AudioPort{
		Port:  Port{kind: KindAudio, name: name, isInput: isInput, mode: mode},
		owned: make([]float32, frames),
	}
}

// InitBuffer (re)binds the port's buffer before routing, spec.md §4.1:
// "called on every process call before routing, to (re)bind the port to
// the driver's buffer or clear an internally owned one".
func (p *AudioPort) InitBuffer(src BufferSource) {
	if src != nil {
		if b := src.AudioBuffer(p.name, p.isInput); b != nil {
			p.buffer = b
			return
		}
	}
	for i := range p.owned {
		p.owned[i] = 0
	}
	p.buffer = p.owned
}

// GetBuffer returns the float buffer for this process call. Valid only
// within the same process call (spec.md §4.1).
func (p *AudioPort) GetBuffer() []float32 { return p.buffer }

// Resize reallocates the internally-owned scratch buffer when the engine's
// buffer size changes.
func (p *AudioPort) Resize(frames uint32) {
	if uint32(cap(p.owned)) < frames {
		p.owned = make([]float32, frames)
	} else {
		p.owned = p.owned[:frames]
	}
}

// Peak computes the absolute peak sample value of the port's current
// buffer, used by the engine idle thread to publish per-plugin peak meters
// (spec.md §4.8).
func (p *AudioPort) Peak() float32 {
	var peak float32
	for _, s := range p.buffer {
		a := float32(math.Abs(float64(s)))
		if a > peak {
			peak = a
		}
	}
	return peak
}

// EventPort carries the ordered Control/MIDI event union, spec.md §4.1.
type EventPort struct {
	Port
	buf    *event.Buffer
	frames uint32
}

// NewEvent creates an Event port with its own buffer, capacity events deep.
func NewEvent(name string, isInput bool, mode Mode, capacity int, frames uint32) *EventPort {
	return &EventPort{
		Port:   Port{kind: KindEvent, name: name, isInput: isInput, mode: mode},
		buf:    event.NewBuffer(capacity, frames),
		frames: frames,
	}
}

// InitBuffer clears the port's buffer for the new process call. Event
// ports are always internally owned: the driver has no native concept of
// Carla's event buffer shape.
func (p *EventPort) InitBuffer(_ BufferSource) {
	p.buf.Reset(p.frames)
}

// Rebind updates the frame count the port validates event offsets against,
// called when the engine's buffer size changes.
func (p *EventPort) Rebind(frames uint32) {
	p.frames = frames
}

// EventCount returns the number of queued events, valid on input ports
// after routing has populated the buffer (spec.md §4.1).
func (p *EventPort) EventCount() int { return p.buf.Count() }

// GetEvent returns the i-th queued event in ascending time order.
func (p *EventPort) GetEvent(i int) event.Event { return p.buf.At(i) }

// Sort orders the buffer ascending by time; called by the engine once all
// producers have finished routing into an input port (spec.md §4.2).
func (p *EventPort) Sort() { p.buf.Sort() }

// WriteControlEvent appends a control-change event to an output port,
// dropping it silently if capacity is exceeded (spec.md §4.1, §7
// "Overflow of an event buffer — event dropped silently").
func (p *EventPort) WriteControlEvent(time uint32, channel uint8, kind event.ControlKind, parameter int32, value float32) {
	p.buf.Append(event.Event{
		Kind: event.KindControl,
		Time: time,
		Control: event.Control{
			Kind:      kind,
			Parameter: parameter,
			Value:     value,
		},
	})
}

// WriteMidiEvent appends a raw MIDI event to an output port, dropping it
// silently on overflow.
func (p *EventPort) WriteMidiEvent(time uint32, channel uint8, data [3]byte, size uint8) {
	p.buf.Append(event.Event{
		Kind: event.KindMIDI,
		Time: time,
		MIDI: event.MIDI{
			Data:    data,
			Size:    size,
			Channel: channel,
		},
	})
}

// Dropped returns the number of events dropped due to overflow or a bad
// time stamp since the last InitBuffer.
func (p *EventPort) Dropped() uint64 { return p.buf.Dropped() }

// Buffer exposes the backing event.Buffer, used by the engine to merge
// multiple producers (system MIDI input plus UI-injected notes) into one
// input port before the plugin drains it (spec.md §4.2).
func (p *EventPort) Buffer() *event.Buffer { return p.buf }
