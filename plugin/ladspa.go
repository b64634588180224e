package plugin

/*
#include <stdlib.h>

typedef void *LADSPA_Handle;

typedef struct {
	unsigned long PortCount;
	const char * const *PortNames;
	const int *PortDescriptors;
	const float *PortRangeHintLower;
	const float *PortRangeHintUpper;
	const int *PortRangeHintDescriptors;
	const char *Name;
	const char *Label;

	LADSPA_Handle (*instantiate)(unsigned long sampleRate);
	void (*connect_port)(LADSPA_Handle instance, unsigned long port, float *dataLocation);
	void (*activate)(LADSPA_Handle instance);
	void (*run)(LADSPA_Handle instance, unsigned long sampleCount);
	void (*deactivate)(LADSPA_Handle instance);
	void (*cleanup)(LADSPA_Handle instance);
} LADSPA_Descriptor;

typedef const LADSPA_Descriptor *(*ladspa_descriptor_fn)(unsigned long index);
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/carla-audio/carla-go/internal/event"
	"github.com/carla-audio/carla-go/internal/port"
	"github.com/carla-audio/carla-go/param"
	"github.com/carla-audio/carla-go/plugin/internal/nativeloader"
)

func unsafePointerOf(p interface{}) unsafe.Pointer {
	switch v := p.(type) {
	case *C.int:
		return unsafe.Pointer(v)
	case *C.float:
		return unsafe.Pointer(v)
	case **C.char:
		return unsafe.Pointer(v)
	default:
		return nil
	}
}

// LADSPA port descriptor bits, matching the public-domain LADSPA SDK's
// ladspa.h (PortDescriptors / PortRangeHintDescriptors).
const (
	ladspaPortInput      = 1 << 0
	ladspaPortOutput     = 1 << 1
	ladspaPortControl    = 1 << 2
	ladspaPortAudio      = 1 << 3
	ladspaHintLogarithmic = 1 << 1
	ladspaHintInteger     = 1 << 2
	ladspaHintToggled     = 1 << 6
	ladspaHintSampleRate  = 1 << 9
)

// LadspaPlugin adapts the LADSPA C ABI onto the Plugin contract, spec.md
// §4.5: "Each adapter maps its native API onto the Plugin contract."
//
// Grounded on Carla's own LADSPA handling (original_source's plugin
// directory uses dlopen + a well-known "ladspa_descriptor" export) and on
// avaudio/unit/unit.go's opaque-handle wrapper shape, generalized from one
// AudioUnit wrapper to an arbitrary number of plugin-reported ports.
type LadspaPlugin struct {
	*PluginBase

	lib        *nativeloader.Library
	descriptor *C.LADSPA_Descriptor
	handle     C.LADSPA_Handle
	handle2    C.LADSPA_Handle // forced-stereo second instance, nil otherwise

	audioInRIndex  []int
	audioOutRIndex []int

	forceStereo bool
}

// NewLadspaPlugin constructs an adapter bound to engine id, using base as
// the already-configured shared composition.
func NewLadspaPlugin(base *PluginBase, forceStereo bool) *LadspaPlugin {
	return &LadspaPlugin{PluginBase: base, forceStereo: forceStereo}
}

// Init opens the shared library, resolves "ladspa_descriptor", and
// instantiates the first descriptor whose Label matches label (spec.md
// §4.4 "init(filename, name, label, extra) opens the library, resolves the
// descriptor, instantiates the native handle, registers a client, and
// sets filename/name.").
func (p *LadspaPlugin) Init(filename, name, label string, extra map[string]string) error {
	lib, err := nativeloader.Open(filename)
	if err != nil {
		return fmt.Errorf("ladspa: %w", err)
	}
	sym, err := lib.Symbol("ladspa_descriptor")
	if err != nil {
		lib.Close()
		return fmt.Errorf("ladspa: %w", err)
	}
	fn := (C.ladspa_descriptor_fn)(sym)

	var desc *C.LADSPA_Descriptor
	for i := C.ulong(0); ; i++ {
		d := fn(i)
		if d == nil {
			break
		}
		if C.GoString(d.Label) == label {
			desc = d
			break
		}
	}
	if desc == nil {
		lib.Close()
		return fmt.Errorf("ladspa: label %q not found in %s", label, filename)
	}

	p.lib = lib
	p.descriptor = desc
	p.filename = filename
	p.name = name
	p.label = label
	p.client = port.NewClient(name, port.ModeRack, nil)
	return nil
}

// Reload tears down ports/tables and rebuilds them from the descriptor's
// current port layout, instantiating forced-stereo's second handle when
// applicable (spec.md §4.4, §4.5).
func (p *LadspaPlugin) Reload() error {
	p.audioInRIndex = p.audioInRIndex[:0]
	p.audioOutRIndex = p.audioOutRIndex[:0]
	p.params = param.NewTable()

	count := int(p.descriptor.PortCount)
	descs := unsafeIntSlice(p.descriptor.PortDescriptors, count)
	names := unsafeStringSlice(p.descriptor.PortNames, count)
	lower := unsafeFloatSlice(p.descriptor.PortRangeHintLower, count)
	upper := unsafeFloatSlice(p.descriptor.PortRangeHintUpper, count)
	hints := unsafeIntSlice(p.descriptor.PortRangeHintDescriptors, count)

	var audioIns, audioOuts int
	for i := 0; i < count; i++ {
		d := descs[i]
		switch {
		case d&ladspaPortAudio != 0 && d&ladspaPortInput != 0:
			p.audioInRIndex = append(p.audioInRIndex, i)
			audioIns++
		case d&ladspaPortAudio != 0 && d&ladspaPortOutput != 0:
			p.audioOutRIndex = append(p.audioOutRIndex, i)
			audioOuts++
		case d&ladspaPortControl != 0:
			r := param.Ranges{Min: float64(lower[i]), Max: float64(upper[i])}
			r.Def = r.Min
			var h param.Hints
			if hints[i]&ladspaHintToggled != 0 {
				h |= param.HintBoolean
			}
			if hints[i]&ladspaHintInteger != 0 {
				h |= param.HintInteger
			}
			if hints[i]&ladspaHintLogarithmic != 0 {
				h |= param.HintLogarithmic
			}
			if hints[i]&ladspaHintSampleRate != 0 {
				h |= param.HintUsesSampleRate
			}
			ptype := param.TypeInput
			if d&ladspaPortOutput != 0 {
				ptype = param.TypeOutput
				h |= param.HintAutomable
			} else {
				h |= param.HintEnabled | param.HintAutomable
			}
			p.params.Add(param.Data{Type: ptype, RIndex: int32(i), Hints: h, MidiCC: -1}, r, r.Def)
		}
		_ = names
	}

	p.forceStereo = p.forceStereo && audioIns <= 1 && audioOuts <= 1

	h := p.descriptor.instantiate(C.ulong(uint64(p.instantiateSampleRate())))
	if h == nil {
		return fmt.Errorf("ladspa: instantiate failed")
	}
	p.handle = h
	if p.forceStereo {
		h2 := p.descriptor.instantiate(C.ulong(uint64(p.instantiateSampleRate())))
		if h2 != nil {
			p.handle2 = h2
		}
	}

	p.Activate()
	return nil
}

func (p *LadspaPlugin) instantiateSampleRate() uint32 {
	return uint32(p.sampleRate)
}

// RunNative connects ports and calls run(), implementing LADSPA's
// connect-then-run cycle. When forced stereo, the second handle processes
// the right channel independently. Only audio ports are connected; no
// control port is connected on either handle, so neither handle sees the
// parameter table's values.
func (p *LadspaPlugin) RunNative(inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32) {
	connectAudio := func(h C.LADSPA_Handle, channel int, buffers [][]float32, rindexes []int) {
		if channel >= len(rindexes) || channel >= len(buffers) {
			return
		}
		buf := buffers[channel]
		if len(buf) == 0 {
			return
		}
		p.descriptor.connect_port(h, C.ulong(rindexes[channel]), (*C.float)(unsafe.Pointer(&buf[0])))
	}

	if p.handle != nil {
		connectAudio(p.handle, 0, inputs, p.audioInRIndex)
		connectAudio(p.handle, 0, outputs, p.audioOutRIndex)
		p.descriptor.run(p.handle, C.ulong(frames))
	}
	if p.handle2 != nil {
		connectAudio(p.handle2, 1, inputs, p.audioInRIndex)
		connectAudio(p.handle2, 1, outputs, p.audioOutRIndex)
		p.descriptor.run(p.handle2, C.ulong(frames))
	}
}

// Process implements the Plugin.Process method by delegating to the
// shared RunProcess body, spec.md §4.4. eventIn serves as both the
// control-input and MIDI-input drain (event.Event tags its own Kind).
func (p *LadspaPlugin) Process(inputs, outputs [][]float32, eventIn, eventOut *port.EventPort, frames uint32, offset uint32) {
	p.RunProcess(p, inputs, outputs, eventIn, eventOut, eventIn, frames, offset)
}

// Unload deactivates, cleans up the native handle(s), and closes the
// library (spec.md §4.4 "Destruction deactivates, cleans the native
// state, frees the library.").
func (p *LadspaPlugin) Unload() {
	p.Deactivate()
	if p.handle != nil && p.descriptor != nil {
		p.descriptor.cleanup(p.handle)
		p.handle = nil
	}
	if p.handle2 != nil && p.descriptor != nil {
		p.descriptor.cleanup(p.handle2)
		p.handle2 = nil
	}
	if p.lib != nil {
		p.lib.Close()
	}
}

func unsafeIntSlice(p *C.int, n int) []int {
	out := make([]int, n)
	if p == nil {
		return out
	}
	arr := (*[1 << 20]C.int)(unsafePointerOf(p))[:n:n]
	for i, v := range arr {
		out[i] = int(v)
	}
	return out
}

func unsafeFloatSlice(p *C.float, n int) []float32 {
	out := make([]float32, n)
	if p == nil {
		return out
	}
	arr := (*[1 << 20]C.float)(unsafePointerOf(p))[:n:n]
	for i, v := range arr {
		out[i] = float32(v)
	}
	return out
}

func unsafeStringSlice(p **C.char, n int) []string {
	out := make([]string, n)
	if p == nil {
		return out
	}
	arr := (*[1 << 20]*C.char)(unsafePointerOf(p))[:n:n]
	for i, v := range arr {
		out[i] = C.GoString(v)
	}
	return out
}
