package plugin

import (
	"fmt"

	"github.com/carla-audio/carla-go/internal/event"
	"github.com/carla-audio/carla-go/internal/port"
	"github.com/carla-audio/carla-go/param"
)

// NativeProcessor is the interface a built-in (in-process, no dlopen)
// plugin implements: pure Go DSP registered by label, spec.md §4.5's
// "Native" variant of the tagged Plugin union.
type NativeProcessor interface {
	// Label uniquely identifies this built-in within the native registry.
	Label() string
	// Describe returns the built-in's static parameter layout.
	Describe() []NativeParameter
	// Process runs one block of audio in place; midiIn carries translated
	// native-shape events for synths.
	Process(params []float64, inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32)
}

// NativeParameter describes one built-in parameter.
type NativeParameter struct {
	Name  string
	Data  param.Data
	Range param.Ranges
}

var nativeRegistry = map[string]func() NativeProcessor{}

// RegisterNative adds a built-in processor factory to the registry, used
// by NativePlugin.Init to resolve filename-less "native" plugins by
// label alone.
func RegisterNative(label string, factory func() NativeProcessor) {
	nativeRegistry[label] = factory
}

// NativePlugin adapts an in-process NativeProcessor onto the Plugin
// contract. There is no library to open and no forced-stereo/latency
// detection dance: it exists so the engine can host test fixtures and
// simple built-in utilities (gain, passthrough) the same way it hosts
// third-party formats.
//
// Grounded on shaban/macaudio's BaseChannel/Channel split, generalized
// the same way as plugin.go's PluginBase but without any native handle.
type NativePlugin struct {
	*PluginBase

	proc NativeProcessor
}

// NewNativePlugin constructs a Native adapter over an already-configured
// PluginBase.
func NewNativePlugin(base *PluginBase) *NativePlugin {
	return &NativePlugin{PluginBase: base}
}

// Init resolves label against the built-in registry; filename and extra
// are unused (no library to dlopen).
func (p *NativePlugin) Init(filename, name, label string, extra map[string]string) error {
	factory, ok := nativeRegistry[label]
	if !ok {
		return fmt.Errorf("native: no built-in registered for label %q", label)
	}
	p.proc = factory()
	p.filename = filename
	p.name = name
	p.label = label
	p.client = port.NewClient(name, port.ModeRack, nil)
	return nil
}

// Reload rebuilds the parameter table from the built-in's static
// description.
func (p *NativePlugin) Reload() error {
	p.params = param.NewTable()
	for _, np := range p.proc.Describe() {
		p.params.Add(np.Data, np.Range, np.Range.Def)
	}
	p.Activate()
	return nil
}

// RunNative gathers current parameter values and delegates to the
// registered NativeProcessor.
func (p *NativePlugin) RunNative(inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32) {
	values := make([]float64, p.params.Count())
	for i := range values {
		values[i] = p.params.Value(int32(i))
	}
	p.proc.Process(values, inputs, outputs, midiIn, frames)
}

// Process delegates to the shared process contract. eventIn serves as both
// the control-input and MIDI-input drain since event.Event is a tagged
// union over Kind and the two drain loops already filter by it.
func (p *NativePlugin) Process(inputs, outputs [][]float32, eventIn, eventOut *port.EventPort, frames uint32, offset uint32) {
	p.RunProcess(p, inputs, outputs, eventIn, eventOut, eventIn, frames, offset)
}

// Unload is a no-op: there is no library handle to free.
func (p *NativePlugin) Unload() {
	p.Deactivate()
}

func init() {
	RegisterNative("carla-gain", newGainProcessor)
	RegisterNative("carla-passthrough", newPassthroughProcessor)
}

type gainProcessor struct{}

func newGainProcessor() NativeProcessor { return &gainProcessor{} }

func (gainProcessor) Label() string { return "carla-gain" }

func (gainProcessor) Describe() []NativeParameter {
	return []NativeParameter{{
		Name:  "Gain",
		Data:  param.Data{Type: param.TypeInput, Hints: param.HintEnabled | param.HintAutomable, MidiCC: -1},
		Range: param.Ranges{Def: 1, Min: 0, Max: 2},
	}}
}

func (gainProcessor) Process(params []float64, inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32) {
	gain := float32(1)
	if len(params) > 0 {
		gain = float32(params[0])
	}
	for ch := range outputs {
		if ch >= len(inputs) {
			continue
		}
		in := inputs[ch]
		out := outputs[ch]
		n := len(in)
		if len(out) < n {
			n = len(out)
		}
		for i := 0; i < n; i++ {
			out[i] = in[i] * gain
		}
	}
}

type passthroughProcessor struct{}

func newPassthroughProcessor() NativeProcessor { return &passthroughProcessor{} }

func (passthroughProcessor) Label() string              { return "carla-passthrough" }
func (passthroughProcessor) Describe() []NativeParameter { return nil }

func (passthroughProcessor) Process(params []float64, inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32) {
	for ch := range outputs {
		if ch >= len(inputs) {
			continue
		}
		copy(outputs[ch], inputs[ch])
	}
}
