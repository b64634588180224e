package plugin

import (
	"testing"

	"github.com/carla-audio/carla-go/internal/event"
	"github.com/carla-audio/carla-go/param"
)

// TestHandleControlParameterBreathControllerSetsDryWet exercises the
// Breath-Controller host-mixer intercept (spec.md §4.4 step 2) end to end:
// a real ParameterChange control event goes through handleControlParameter
// and the resulting dry/wet value is read back off the plugin, the way
// TestHandleRawMidiVelocityZeroIsNoteOff exercises handleRawMidi.
func TestHandleControlParameterBreathControllerSetsDryWet(t *testing.T) {
	b := NewPluginBase(0, KindNative, nil, ProcessModeSingleClient, 48000, 256)

	e := event.Event{
		Kind: event.KindControl,
		Control: event.Control{
			Kind:      event.ParameterChange,
			Parameter: ccBreathController,
			Value:     float32(64) / float32(127),
		},
	}

	b.handleControlParameter(e, b.snapshot())

	want := float64(64) / float64(127)
	if got := b.dryWet; got <= want-0.001 || got >= want+0.001 {
		t.Errorf("dryWet = %v, want ~%v", got, want)
	}
}

// TestHandleControlParameterMidiCCBindingSetsParameterValue exercises the
// fallback path once a CC doesn't match a host-mixer intercept: a parameter
// bound via SetParameterMidiCC takes the event's value.
func TestHandleControlParameterMidiCCBindingSetsParameterValue(t *testing.T) {
	b := NewPluginBase(0, KindNative, nil, ProcessModeSingleClient, 48000, 256)
	idx := b.params.Add(param.Data{Type: param.TypeInput, RIndex: 0, MidiCC: -1}, param.Ranges{Def: 0, Min: 0, Max: 1}, 0)
	b.SetParameterMidiCC(idx, 10, 0)

	e := event.Event{
		Kind: event.KindControl,
		Control: event.Control{
			Kind:      event.ParameterChange,
			Parameter: 10,
			Value:     0.42,
		},
	}

	b.handleControlParameter(e, b.snapshot())

	if got := b.params.Value(idx); got <= 0.419 || got >= 0.421 {
		t.Errorf("parameter value = %v, want ~0.42", got)
	}
}
