package osc

import (
	"testing"

	"github.com/carla-audio/carla-go/internal/port"
	"github.com/carla-audio/carla-go/param"
	"github.com/carla-audio/carla-go/plugin"
	"github.com/carla-audio/carla-go/postevent"
)

// fakePlugin is a minimal plugin.Plugin test double recording the calls
// methodTable's handlers make, without pulling in a real format adapter's
// port/client plumbing.
type fakePlugin struct {
	active            bool
	dryWet            float64
	volume            float64
	balanceLeft       float64
	balanceRight      float64
	paramIndex        int32
	paramValue        float64
	paramCC           int8
	paramCCChannel    uint8
	program           int32
	midiProgram       int32
	customType        string
	customKey         string
	customValue       string
	guiShown          bool
	notes             []injectedNote
}

type injectedNote struct {
	channel  int8
	note     uint8
	velocity uint8
	on       bool
}

func (f *fakePlugin) ID() uint32       { return 0 }
func (f *fakePlugin) Kind() plugin.Kind { return 0 }
func (f *fakePlugin) Name() string     { return "fake" }
func (f *fakePlugin) Label() string    { return "fake" }
func (f *fakePlugin) Filename() string { return "" }

func (f *fakePlugin) Init(filename, name, label string, extra map[string]string) error { return nil }
func (f *fakePlugin) Reload() error                                                    { return nil }
func (f *fakePlugin) Unload()                                                          {}

func (f *fakePlugin) Activate()        {}
func (f *fakePlugin) Deactivate()      {}
func (f *fakePlugin) IsActive() bool   { return f.active }

func (f *fakePlugin) Process(inputs, outputs [][]float32, eventIn, eventOut *port.EventPort, frames uint32, offset uint32) {
}

func (f *fakePlugin) BufferSizeChanged(frames uint32) {}
func (f *fakePlugin) SampleRateChanged(rate float64)  {}

func (f *fakePlugin) Enabled() bool     { return true }
func (f *fakePlugin) SetEnabled(v bool) {}

func (f *fakePlugin) SaveChunk() ([]byte, bool)     { return nil, false }
func (f *fakePlugin) RestoreChunk(data []byte) bool { return false }

func (f *fakePlugin) SetProgram(index int32, sendOsc, sendCallback bool) error {
	f.program = index
	return nil
}
func (f *fakePlugin) SetMidiProgram(index int32, sendOsc, sendCallback bool) error {
	f.midiProgram = index
	return nil
}
func (f *fakePlugin) SetCustomData(typeURI, key, value string) error {
	f.customType, f.customKey, f.customValue = typeURI, key, value
	return nil
}

func (f *fakePlugin) ShowGUI(show bool) error {
	f.guiShown = show
	return nil
}
func (f *fakePlugin) IdleGUI() {}

func (f *fakePlugin) InjectNote(channel int8, note, velocity uint8, on bool) {
	f.notes = append(f.notes, injectedNote{channel, note, velocity, on})
}

func (f *fakePlugin) SetActive(active, sendOsc, sendCallback bool) { f.active = active }
func (f *fakePlugin) SetDryWet(value float64, sendOsc, sendCallback bool) { f.dryWet = value }
func (f *fakePlugin) SetVolume(value float64, sendOsc, sendCallback bool) { f.volume = value }
func (f *fakePlugin) SetBalanceLeft(value float64, sendOsc, sendCallback bool) {
	f.balanceLeft = value
}
func (f *fakePlugin) SetBalanceRight(value float64, sendOsc, sendCallback bool) {
	f.balanceRight = value
}

func (f *fakePlugin) SetParameterValue(index int32, value float64, sendOsc, sendCallback bool) float64 {
	f.paramIndex, f.paramValue = index, value
	return value
}
func (f *fakePlugin) SetParameterMidiCC(index int32, cc int8, channel uint8) {
	f.paramIndex, f.paramCC, f.paramCCChannel = index, cc, channel
}

func (f *fakePlugin) Parameters() *param.Table                   { return nil }
func (f *fakePlugin) Programs() *param.ProgramTable              { return nil }
func (f *fakePlugin) MidiPrograms() *param.MidiProgramTable      { return nil }
func (f *fakePlugin) CustomData() *param.CustomDataStore         { return nil }

func (f *fakePlugin) PostEvents() *postevent.Queue { return nil }
func (f *fakePlugin) Latency() uint32              { return 0 }

func (f *fakePlugin) Hints() plugin.Hints { return 0 }

var _ plugin.Plugin = (*fakePlugin)(nil)

func TestSignatureMatches(t *testing.T) {
	tests := []struct {
		name string
		sig  signature
		args []interface{}
		want bool
	}{
		{"exact int", signature{argInt}, []interface{}{int32(1)}, true},
		{"wrong arity", signature{argInt, argFloat}, []interface{}{int32(1)}, false},
		{"float32 accepted where float expected", signature{argFloat}, []interface{}{float32(0.5)}, true},
		{"float64 accepted where float expected", signature{argFloat}, []interface{}{float64(0.5)}, true},
		{"wrong type", signature{argInt}, []interface{}{"not an int"}, false},
		{"bool", signature{argBool}, []interface{}{true}, true},
		{"midi blob", signature{argMidi}, []interface{}{[]byte{0x90, 60, 100}}, true},
		{"midi blob wrong type", signature{argMidi}, []interface{}{"not bytes"}, false},
		{"empty signature, empty args", signature{}, []interface{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sig.matches(tt.args); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMethodTableEntriesMatchTheirOwnSignature(t *testing.T) {
	// Sanity check that every registered method's signature validates a
	// representative args slice of the right shape, since a method whose
	// own sig never matches anything would be permanently unreachable.
	samples := map[string][]interface{}{
		"set_active":            {true},
		"set_dry_wet":            {0.5},
		"set_volume":             {0.8},
		"set_balance_left":       {-0.5},
		"set_balance_right":      {0.5},
		"set_parameter_value":    {int32(0), 0.5},
		"set_parameter_midi_cc":  {int32(0), int32(1), int32(2)},
		"set_program":            {int32(0)},
		"set_midi_program":       {int32(0)},
		"set_custom_data":        {"type", "key", "value"},
		"note_on":                {int32(0), int32(60), int32(100)},
		"note_off":               {int32(0), int32(60)},
		"show_gui":               {true},
		"midi":                   {[]byte{0x90, 60, 100}},
	}
	if len(samples) != len(methodTable) {
		t.Fatalf("sample set covers %d methods, methodTable has %d", len(samples), len(methodTable))
	}
	for name, m := range methodTable {
		args, ok := samples[name]
		if !ok {
			t.Errorf("no sample args registered for method %q", name)
			continue
		}
		if !m.sig.matches(args) {
			t.Errorf("method %q's own signature does not match its sample args %v", name, args)
		}
	}
}

func TestMethodTableHandlersDispatchToPlugin(t *testing.T) {
	f := &fakePlugin{}

	if err := methodTable["set_active"].fn(f, []interface{}{true}); err != nil {
		t.Fatalf("set_active: %v", err)
	}
	if !f.active {
		t.Error("set_active(true) did not set active")
	}

	if err := methodTable["set_dry_wet"].fn(f, []interface{}{0.25}); err != nil {
		t.Fatalf("set_dry_wet: %v", err)
	}
	if f.dryWet != 0.25 {
		t.Errorf("dryWet = %v, want 0.25", f.dryWet)
	}

	if err := methodTable["set_parameter_value"].fn(f, []interface{}{int32(3), 0.75}); err != nil {
		t.Fatalf("set_parameter_value: %v", err)
	}
	if f.paramIndex != 3 || f.paramValue != 0.75 {
		t.Errorf("paramIndex/paramValue = %d/%v, want 3/0.75", f.paramIndex, f.paramValue)
	}

	if err := methodTable["note_on"].fn(f, []interface{}{int32(0), int32(60), int32(100)}); err != nil {
		t.Fatalf("note_on: %v", err)
	}
	if len(f.notes) != 1 || f.notes[0] != (injectedNote{0, 60, 100, true}) {
		t.Errorf("notes = %v, want one on-note", f.notes)
	}

	if err := methodTable["note_off"].fn(f, []interface{}{int32(0), int32(60)}); err != nil {
		t.Fatalf("note_off: %v", err)
	}
	if len(f.notes) != 2 || f.notes[1] != (injectedNote{0, 60, 0, false}) {
		t.Errorf("notes = %v, want a trailing off-note", f.notes)
	}

	if err := methodTable["set_custom_data"].fn(f, []interface{}{"t", "k", "v"}); err != nil {
		t.Fatalf("set_custom_data: %v", err)
	}
	if f.customType != "t" || f.customKey != "k" || f.customValue != "v" {
		t.Errorf("custom data = %q/%q/%q, want t/k/v", f.customType, f.customKey, f.customValue)
	}
}

func TestHandleRawMidiNoteOn(t *testing.T) {
	f := &fakePlugin{}
	if err := handleRawMidi(f, []byte{0x91, 60, 100}); err != nil {
		t.Fatalf("handleRawMidi: %v", err)
	}
	if len(f.notes) != 1 {
		t.Fatalf("notes = %v, want one entry", f.notes)
	}
	got := f.notes[0]
	want := injectedNote{channel: 1, note: 60, velocity: 100, on: true}
	if got != want {
		t.Errorf("notes[0] = %+v, want %+v", got, want)
	}
}

func TestHandleRawMidiVelocityZeroIsNoteOff(t *testing.T) {
	f := &fakePlugin{}
	if err := handleRawMidi(f, []byte{0x90, 60, 0}); err != nil {
		t.Fatalf("handleRawMidi: %v", err)
	}
	if len(f.notes) != 1 {
		t.Fatalf("notes = %v, want one entry", f.notes)
	}
	if f.notes[0].on {
		t.Errorf("note-on with velocity 0 should decode as note-off, got %+v", f.notes[0])
	}
}

func TestHandleRawMidiNoteOff(t *testing.T) {
	f := &fakePlugin{}
	if err := handleRawMidi(f, []byte{0x82, 60, 100}); err != nil {
		t.Fatalf("handleRawMidi: %v", err)
	}
	if len(f.notes) != 1 || f.notes[0].on {
		t.Errorf("notes = %v, want one off-note", f.notes)
	}
	if f.notes[0].channel != 2 {
		t.Errorf("channel = %d, want 2", f.notes[0].channel)
	}
}

func TestHandleRawMidiShortBlob(t *testing.T) {
	f := &fakePlugin{}
	if err := handleRawMidi(f, []byte{0x90, 60}); err == nil {
		t.Error("expected an error for a short midi blob")
	}
}

func TestHandleRawMidiUnsupportedStatus(t *testing.T) {
	f := &fakePlugin{}
	if err := handleRawMidi(f, []byte{0xb0, 64, 127}); err == nil {
		t.Error("expected an error for an unsupported status byte (control change)")
	}
}

// The breath-controller CC-to-dry/wet mapping itself is exercised in
// plugin.TestHandleControlParameterBreathControllerSetsDryWet, against the
// real handleControlParameter/RunProcess path rather than OSC's method
// table, since that's where the mapping actually happens.
