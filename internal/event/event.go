// Package event implements the engine's per-process-call event buffer:
// the ordered, time-stamped sequence of control/MIDI events shared between
// the engine and a plugin (spec.md §3 "Event buffer", §4.2).
package event

import "sort"

// Kind tags the union held by an Event.
type Kind uint8

const (
	KindNull Kind = iota
	KindControl
	KindMIDI
)

// ControlKind enumerates the control-event sub-types of spec.md §3.
type ControlKind uint8

const (
	ParameterChange ControlKind = iota
	MidiBankChange
	MidiProgramChange
	AllSoundOff
	AllNotesOff
)

// Control carries the payload of a Control event. Parameter doubles as the
// bank/program id for the MidiBankChange/MidiProgramChange kinds, matching
// spec.md's "{parameter or bank/program id, normalised value}" shape.
type Control struct {
	Kind      ControlKind
	Parameter int32
	Value     float32 // normalised to [0.0, 1.0]
}

// MIDI carries a raw (up to 3-byte) MIDI message plus the channel extracted
// from its status nibble.
type MIDI struct {
	Data    [3]byte
	Size    uint8
	Channel uint8
}

// Event is the tagged union stored in a Buffer.
type Event struct {
	Kind    Kind
	Time    uint32 // frame offset within the current process call; Time < frames
	Control Control
	MIDI    MIDI
}

// Buffer is an ordered sequence of Events for one process call. It is not
// safe for concurrent use: exactly one producer (the port owner routing
// events in) and one consumer (the plugin draining them) touch a given
// Buffer within a single process call.
type Buffer struct {
	events   []Event
	capacity int
	frames   uint32
	dropped  uint64
}

// NewBuffer creates a Buffer bounded at capacity entries for a process call
// of the given length in frames.
func NewBuffer(capacity int, frames uint32) *Buffer {
	return &Buffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		frames:   frames,
	}
}

// Reset clears the buffer for reuse in the next process call, rebinding the
// frame count (buffer size can change between calls per spec.md §4).
func (b *Buffer) Reset(frames uint32) {
	b.events = b.events[:0]
	b.frames = frames
	b.dropped = 0
}

// Append adds an event at the end of arrival order. If the event's Time is
// out of range for the current call it is dropped silently — spec.md §7
// "Overflow of an event buffer — event dropped silently (the RT thread
// cannot report)" applies identically to malformed offsets.
func (b *Buffer) Append(e Event) bool {
	if e.Time >= b.frames {
		b.dropped++
		return false
	}
	if len(b.events) >= b.capacity {
		b.dropped++
		return false
	}
	b.events = append(b.events, e)
	return true
}

// Count returns the number of events currently queued.
func (b *Buffer) Count() int { return len(b.events) }

// Dropped returns the number of events silently dropped since the last
// Reset due to capacity or a bad time stamp.
func (b *Buffer) Dropped() uint64 { return b.dropped }

// At returns the event at position i. The caller must have called Sort (or
// relied on ordered insertion via MergeStable) beforehand for the ascending
// guarantee spec.md §4.2 requires.
func (b *Buffer) At(i int) Event { return b.events[i] }

// Events exposes the backing slice for read-only iteration.
func (b *Buffer) Events() []Event { return b.events }

// Sort orders events ascending by Time, preserving insertion order for
// events that share a time stamp (spec.md §4.2: "consumption order equals
// insertion order").
func (b *Buffer) Sort() {
	sort.SliceStable(b.events, func(i, j int) bool {
		return b.events[i].Time < b.events[j].Time
	})
}

// MergeStable merges events from multiple sources (e.g. system MIDI input
// and the UI-injected note queue feeding the same rack-mode event input,
// spec.md §4.2) into dst in ascending time order, preserving each source's
// internal relative order and breaking ties source-by-source in the order
// given.
func MergeStable(dst *Buffer, sources ...[]Event) {
	type tagged struct {
		Event
		seq int
	}
	all := make([]tagged, 0, len(dst.events))
	seq := 0
	for _, src := range sources {
		for _, e := range src {
			all = append(all, tagged{Event: e, seq: seq})
			seq++
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Time != all[j].Time {
			return all[i].Time < all[j].Time
		}
		return all[i].seq < all[j].seq
	})
	dst.events = dst.events[:0]
	for _, t := range all {
		dst.Append(t.Event)
	}
}

// ChannelOf extracts the MIDI channel (0..15) from a status byte, matching
// the nibble split spec.md §3 describes for the MIDI union member.
func ChannelOf(status byte) uint8 {
	return status & 0x0F
}
