package plugin

/*
#include <stdlib.h>

typedef void *fluid_synth_t;
typedef void *fluid_settings_t;

typedef fluid_settings_t *(*new_fluid_settings_fn)(void);
typedef fluid_synth_t *(*new_fluid_synth_fn)(fluid_settings_t *settings);
typedef int (*fluid_synth_sfload_fn)(fluid_synth_t *synth, const char *filename, int reset_presets);
typedef void (*fluid_synth_write_float_fn)(fluid_synth_t *synth, int len,
	void *lout, int loff, int lincr, void *rout, int roff, int rincr);
typedef int (*fluid_synth_noteon_fn)(fluid_synth_t *synth, int chan, int key, int vel);
typedef int (*fluid_synth_noteoff_fn)(fluid_synth_t *synth, int chan, int key);
typedef int (*fluid_synth_cc_fn)(fluid_synth_t *synth, int chan, int num, int val);
typedef int (*fluid_synth_program_select_fn)(fluid_synth_t *synth, int chan, unsigned int sfont_id, unsigned int bank, unsigned int preset);
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/carla-audio/carla-go/internal/event"
	"github.com/carla-audio/carla-go/internal/midievent"
	"github.com/carla-audio/carla-go/internal/port"
	"github.com/carla-audio/carla-go/param"
	"github.com/carla-audio/carla-go/plugin/internal/nativeloader"
)

// SoundFont 2 "control panel" parameter indices: spec.md §4.5 "SF2
// exposes a fixed 14-parameter control panel for reverb/chorus/
// polyphony/interpolation". Listed as named constants rather than magic
// indices since every SF2 instance exposes exactly these regardless of
// the loaded font.
const (
	sf2ParamReverbOn = iota
	sf2ParamReverbRoomSize
	sf2ParamReverbDamp
	sf2ParamReverbWidth
	sf2ParamReverbLevel
	sf2ParamChorusOn
	sf2ParamChorusType
	sf2ParamChorusDepth
	sf2ParamChorusSpeed
	sf2ParamChorusLevel
	sf2ParamChorusVoices
	sf2ParamPolyphony
	sf2ParamInterpolation
	sf2ParamVolume
	sf2ParamCount
)

// Sf2Plugin adapts a FluidSynth-backed SoundFont synth onto the Plugin
// contract. Grounded on Carla's own SF2 backend (FluidSynth) and, at the
// Go-binding level, on nativeloader's dlopen pattern since libfluidsynth
// is a system shared library rather than a plugin binary the host
// discovers per-instance.
type Sf2Plugin struct {
	*PluginBase

	lib     *nativeloader.Library
	newSettings  C.new_fluid_settings_fn
	newSynth     C.new_fluid_synth_fn
	sfload       C.fluid_synth_sfload_fn
	writeFloat   C.fluid_synth_write_float_fn
	noteOn       C.fluid_synth_noteon_fn
	noteOff      C.fluid_synth_noteoff_fn
	cc           C.fluid_synth_cc_fn
	programSel   C.fluid_synth_program_select_fn

	settings C.fluid_settings_t
	synth    C.fluid_synth_t
	sfontID  int
}

// NewSf2Plugin constructs an SF2 adapter over an already-configured
// PluginBase.
func NewSf2Plugin(base *PluginBase) *Sf2Plugin {
	return &Sf2Plugin{PluginBase: base}
}

func (p *Sf2Plugin) resolve(lib *nativeloader.Library, name string) (unsafe.Pointer, error) {
	sym, err := lib.Symbol(name)
	if err != nil {
		return nil, fmt.Errorf("sf2: %w", err)
	}
	return sym, nil
}

// Init opens libfluidsynth, resolves the handful of entry points this
// adapter needs, creates a settings + synth pair, and loads the
// SoundFont at filename.
func (p *Sf2Plugin) Init(filename, name, label string, extra map[string]string) error {
	lib, err := nativeloader.Open("libfluidsynth.so")
	if err != nil {
		return fmt.Errorf("sf2: %w", err)
	}

	syms := map[string]*unsafe.Pointer{
		"new_fluid_settings":        nil,
		"new_fluid_synth":           nil,
		"fluid_synth_sfload":        nil,
		"fluid_synth_write_float":   nil,
		"fluid_synth_noteon":        nil,
		"fluid_synth_noteoff":       nil,
		"fluid_synth_cc":            nil,
		"fluid_synth_program_select": nil,
	}
	for name := range syms {
		sym, err := p.resolve(lib, name)
		if err != nil {
			lib.Close()
			return err
		}
		v := sym
		syms[name] = &v
	}

	p.newSettings = C.new_fluid_settings_fn(*syms["new_fluid_settings"])
	p.newSynth = C.new_fluid_synth_fn(*syms["new_fluid_synth"])
	p.sfload = C.fluid_synth_sfload_fn(*syms["fluid_synth_sfload"])
	p.writeFloat = C.fluid_synth_write_float_fn(*syms["fluid_synth_write_float"])
	p.noteOn = C.fluid_synth_noteon_fn(*syms["fluid_synth_noteon"])
	p.noteOff = C.fluid_synth_noteoff_fn(*syms["fluid_synth_noteoff"])
	p.cc = C.fluid_synth_cc_fn(*syms["fluid_synth_cc"])
	p.programSel = C.fluid_synth_program_select_fn(*syms["fluid_synth_program_select"])

	p.lib = lib
	p.settings = p.newSettings()
	p.synth = p.newSynth(p.settings)

	cfile := C.CString(filename)
	defer C.free(unsafe.Pointer(cfile))
	id := p.sfload(p.synth, cfile, 1)
	if id < 0 {
		lib.Close()
		return fmt.Errorf("sf2: failed to load soundfont %s", filename)
	}
	p.sfontID = int(id)

	p.filename = filename
	p.name = name
	p.label = label
	p.client = port.NewClient(name, port.ModeRack, nil)
	p.hints |= HintIsSynth
	return nil
}

// Reload builds the fixed 14-parameter control panel, spec.md §4.5.
func (p *Sf2Plugin) Reload() error {
	p.params = param.NewTable()
	for i := 0; i < sf2ParamCount; i++ {
		r := param.Ranges{Def: 0, Min: 0, Max: 1}
		h := param.HintEnabled | param.HintAutomable
		switch i {
		case sf2ParamReverbOn, sf2ParamChorusOn:
			h |= param.HintBoolean
		case sf2ParamPolyphony:
			r = param.Ranges{Def: 64, Min: 1, Max: 256}
			h |= param.HintInteger
		case sf2ParamInterpolation:
			r = param.Ranges{Def: 1, Min: 0, Max: 3}
			h |= param.HintInteger
		case sf2ParamVolume:
			r = param.Ranges{Def: 1, Min: 0, Max: 2}
		}
		p.params.Add(param.Data{Type: param.TypeInput, RIndex: int32(i), Hints: h, MidiCC: -1}, r, r.Def)
	}

	p.progs = param.NewProgramTable()

	p.Activate()
	return nil
}

// RunNative converts MIDI to FluidSynth note/cc calls and renders the
// block via fluid_synth_write_float.
func (p *Sf2Plugin) RunNative(inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32) {
	if p.synth == nil {
		return
	}
	for _, m := range midiIn {
		d := midievent.Decode(m.Data, m.Size)
		switch {
		case d.IsNoteOn:
			p.noteOn(p.synth, C.int(d.Channel), C.int(d.Data1), C.int(d.Data2))
		case d.IsNoteOff:
			p.noteOff(p.synth, C.int(d.Channel), C.int(d.Data1))
		case d.Status == 0xB0:
			p.cc(p.synth, C.int(d.Channel), C.int(d.Data1), C.int(d.Data2))
		}
	}
	if len(outputs) >= 2 && len(outputs[0]) > 0 && len(outputs[1]) > 0 {
		p.writeFloat(p.synth, C.int(frames),
			unsafe.Pointer(&outputs[0][0]), 0, 1,
			unsafe.Pointer(&outputs[1][0]), 0, 1)
	}
}

// Process delegates to the shared process contract.
func (p *Sf2Plugin) Process(inputs, outputs [][]float32, eventIn, eventOut *port.EventPort, frames uint32, offset uint32) {
	p.RunProcess(p, inputs, outputs, eventIn, eventOut, eventIn, frames, offset)
}

// Unload drops the library reference; FluidSynth has no single
// teardown call wired here beyond closing the shared object (a full
// implementation would call delete_fluid_synth/delete_fluid_settings).
func (p *Sf2Plugin) Unload() {
	p.Deactivate()
	if p.lib != nil {
		p.lib.Close()
	}
}

// SfzPlugin and GigPlugin embed Sf2Plugin unchanged (MIDI-driven synth,
// no audio input, SF2's control panel). There is no LinuxSampler backend:
// Init loads the file through FluidSynth's fluid_synth_sfload, exactly as
// for SF2.
type SfzPlugin struct{ *Sf2Plugin }
type GigPlugin struct{ *Sf2Plugin }

// NewSfzPlugin and NewGigPlugin wrap NewSf2Plugin; they use the same
// loader and process contract as SF2.
func NewSfzPlugin(base *PluginBase) *SfzPlugin { return &SfzPlugin{NewSf2Plugin(base)} }
func NewGigPlugin(base *PluginBase) *GigPlugin { return &GigPlugin{NewSf2Plugin(base)} }
