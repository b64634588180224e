// Package midievent translates raw MIDI bytes to and from the engine's
// internal event.MIDI representation, shared by every format adapter's
// process() step 4 (spec.md §4.4). It leans on gitlab.com/gomidi/midi/v2
// for status-byte typing instead of hand-rolling a second MIDI parser —
// the same library the teacher's go.mod already names as a MIDI dependency.
package midievent

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/carla-audio/carla-go/internal/event"
)

// Status nibbles relevant to spec.md §4.4 step 4.
const (
	statusNoteOff         = 0x80
	statusNoteOn          = 0x90
	statusPolyAftertouch  = 0xA0
	statusControlChange   = 0xB0
	statusProgramChange   = 0xC0
	statusChannelAfter    = 0xD0
	statusPitchBend       = 0xE0
)

// Decoded is the normalized view of one incoming MIDI message, produced by
// Decode for consumption by a format adapter's native-event translator.
type Decoded struct {
	Status    byte
	Channel   uint8
	Data1     byte
	Data2     byte
	IsNoteOn  bool
	IsNoteOff bool
}

// Decode parses a raw (1-3 byte) MIDI message, rewriting a "note-on with
// velocity 0" into a note-off per spec.md boundary scenario 4. size must be
// 1..3.
func Decode(data [3]byte, size uint8) Decoded {
	if size == 0 {
		return Decoded{}
	}
	status := data[0] & 0xF0
	channel := data[0] & 0x0F
	d := Decoded{Status: status, Channel: channel}
	if size > 1 {
		d.Data1 = data[1]
	}
	if size > 2 {
		d.Data2 = data[2]
	}

	switch status {
	case statusNoteOn:
		if d.Data2 == 0 {
			d.IsNoteOff = true
			d.Status = statusNoteOff
		} else {
			d.IsNoteOn = true
		}
	case statusNoteOff:
		d.IsNoteOff = true
	}
	return d
}

// EncodeNoteOn builds a NoteOn MIDI message using gomidi/midi/v2's channel
// message constructor, matching the wire shape the rest of the pack's MIDI
// tooling (fjammes/midi2osc, husafan-audio) already produces.
func EncodeNoteOn(channel, key, velocity uint8) event.MIDI {
	msg := midi.NoteOn(channel, key, velocity)
	return toEventMIDI(msg, channel)
}

// EncodeNoteOff builds a NoteOff MIDI message with velocity 0; the
// velocity argument is ignored.
func EncodeNoteOff(channel, key, velocity uint8) event.MIDI {
	msg := midi.NoteOff(channel, key)
	_ = velocity // midi.NoteOff always encodes velocity 0
	return toEventMIDI(msg, channel)
}

// EncodeControlChange builds a Control Change message (used for the
// host-mixer breath/volume/balance intercepts of spec.md §4.4 step 2).
func EncodeControlChange(channel, controller, value uint8) event.MIDI {
	msg := midi.ControlChange(channel, controller, value)
	return toEventMIDI(msg, channel)
}

// EncodeAllNotesOff builds the CC#123 All Notes Off message.
func EncodeAllNotesOff(channel uint8) event.MIDI {
	return EncodeControlChange(channel, 123, 0)
}

// EncodeAllSoundOff builds the CC#120 All Sound Off message.
func EncodeAllSoundOff(channel uint8) event.MIDI {
	return EncodeControlChange(channel, 120, 0)
}

func toEventMIDI(msg midi.Message, channel uint8) event.MIDI {
	raw := []byte(msg)
	var out event.MIDI
	out.Channel = channel
	out.Size = uint8(len(raw))
	if out.Size > 3 {
		out.Size = 3
	}
	copy(out.Data[:out.Size], raw[:out.Size])
	return out
}

// IsChannelVoice reports whether status (top nibble) is one of the channel
// voice messages the process contract translates in step 4: note on/off,
// polyphonic aftertouch, channel aftertouch, pitch wheel.
func IsChannelVoice(status byte) bool {
	switch status & 0xF0 {
	case statusNoteOn, statusNoteOff, statusPolyAftertouch, statusChannelAfter, statusPitchBend:
		return true
	default:
		return false
	}
}
