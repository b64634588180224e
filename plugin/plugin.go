// Package plugin implements the Plugin abstract contract of spec.md §4.4:
// a capability-trait interface over a tagged variant {Ladspa, Dssi, Lv2,
// Vst2, Sf2, Sfz, Gig, Bridge, Native}, sharing one composition struct
// (client, port tables, parameter/program tables, post-event queue,
// host-mixer controls) embedded by every concrete format adapter.
//
// Grounded on shaban/macaudio's BaseChannel/Channel split
// (channel_impl.go, channels.go): a common struct carrying identity,
// volume/pan/mute and a plugin chain, embedded by concrete channel kinds
// and exposed through one interface. Here the common struct is PluginBase
// and the interface is Plugin, reshaped per spec §9 from "many virtual
// methods on a base class" into "small interface, shared composition,
// capability sub-interfaces for optional features".
package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/carla-audio/carla-go/internal/port"
	"github.com/carla-audio/carla-go/param"
	"github.com/carla-audio/carla-go/postevent"
)

// Kind tags the concrete plugin variant, spec.md §9.
type Kind uint8

const (
	KindLadspa Kind = iota
	KindDssi
	KindLv2
	KindVst2
	KindSf2
	KindSfz
	KindGig
	KindBridge
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindLadspa:
		return "LADSPA"
	case KindDssi:
		return "DSSI"
	case KindLv2:
		return "LV2"
	case KindVst2:
		return "VST2"
	case KindSf2:
		return "SF2"
	case KindSfz:
		return "SFZ"
	case KindGig:
		return "GIG"
	case KindBridge:
		return "Bridge"
	case KindNative:
		return "Native"
	default:
		return "Unknown"
	}
}

// Hints is the plugin-level hints bitset of spec.md §6 (distinct from
// param.Hints, which is per-parameter).
type Hints uint32

const (
	HintHasGUI           Hints = 0x001
	HintCanDryWet        Hints = 0x002
	HintCanVolume        Hints = 0x004
	HintCanBalance       Hints = 0x008
	HintIsSynth          Hints = 0x010
	HintSingleThreadGUI  Hints = 0x020
	HintSingleThreadDSP  Hints = 0x040
	HintUsesChunks       Hints = 0x080
	HintIsRtSafe         Hints = 0x100
	HintFixedBuffers     Hints = 0x200
)

// ProcessMode mirrors engine.ProcessMode without importing the engine
// package (which imports plugin), spec.md §3.
type ProcessMode uint8

const (
	ProcessModeSingleClient ProcessMode = iota
	ProcessModeMultipleClients
	ProcessModeContinuousRack
	ProcessModePatchbay
	ProcessModeBridge
)

// Callback is the host notification surface a PluginBase calls into for
// post-event broadcast and OSC mirroring, implemented by the engine.
type Callback interface {
	PluginCallback(pluginID uint32, action string, value1, value2 int32, value3 float32, str string)
	OSCNotify(pluginID uint32, path string, args ...interface{})
}

// Plugin is the capability contract every concrete format adapter
// satisfies (spec.md §4.4): "A plugin is polymorphic over the capability
// set {reload, activate/deactivate, process, bufferSizeChanged,
// sampleRateChanged, chunk save/restore, program set, custom data set,
// GUI show/hide/idle, UI note inject, dry/wet + volume + balance,
// MIDI-CC parameter binding}. Every concrete variant implements the
// subset it needs and inherits no-op defaults for the rest."
type Plugin interface {
	ID() uint32
	Kind() Kind
	Name() string
	Label() string
	Filename() string

	Init(filename, name, label string, extra map[string]string) error
	Reload() error
	Unload()

	Activate()
	Deactivate()
	IsActive() bool

	// eventIn/eventOut are the engine's shared rack-mode event ports
	// (spec.md §4.7: "one shared event input and one shared event
	// output"): every plugin in the chain reads the same merged input
	// and writes into the same output. Patchbay mode gives each plugin
	// its own independent pair instead. Either may be nil for a format
	// with no event-port concept (e.g. a bridged plugin forwarding
	// events over its own channel).
	Process(inputs, outputs [][]float32, eventIn, eventOut *port.EventPort, frames uint32, offset uint32)

	BufferSizeChanged(frames uint32)
	SampleRateChanged(rate float64)

	Enabled() bool
	SetEnabled(bool)

	SaveChunk() ([]byte, bool)
	RestoreChunk(data []byte) bool

	SetProgram(index int32, sendOsc, sendCallback bool) error
	SetMidiProgram(index int32, sendOsc, sendCallback bool) error
	SetCustomData(typeURI, key, value string) error

	ShowGUI(show bool) error
	IdleGUI()

	InjectNote(channel int8, note, velocity uint8, on bool)

	SetActive(active, sendOsc, sendCallback bool)
	SetDryWet(value float64, sendOsc, sendCallback bool)
	SetVolume(value float64, sendOsc, sendCallback bool)
	SetBalanceLeft(value float64, sendOsc, sendCallback bool)
	SetBalanceRight(value float64, sendOsc, sendCallback bool)

	SetParameterValue(index int32, value float64, sendOsc, sendCallback bool) float64
	SetParameterMidiCC(index int32, cc int8, channel uint8)

	Parameters() *param.Table
	Programs() *param.ProgramTable
	MidiPrograms() *param.MidiProgramTable
	CustomData() *param.CustomDataStore

	PostEvents() *postevent.Queue
	Latency() uint32

	Hints() Hints
}

// PluginBase is the shared composition every concrete adapter embeds:
// client, port tables, parameter/program tables, post-event queue, and
// host-mixer controls (spec.md §9).
type PluginBase struct {
	mu sync.RWMutex

	id       uint32
	kind     Kind
	callback Callback

	processMode ProcessMode
	sampleRate  float64
	bufferSize  uint32

	filename string
	name     string
	label    string

	client *port.Client

	ctrlInChannel int8 // -1 disables host-level MIDI control
	pendingBank   uint32

	params  *param.Table
	progs   *param.ProgramTable
	mprogs  *param.MidiProgramTable
	custom  *param.CustomDataStore

	posts     *postevent.Queue
	injected  *postevent.MidiQueue

	enabled atomic.Bool
	active  atomic.Bool

	dryWet       float64
	volume       float64
	balanceLeft  float64
	balanceRight float64

	latency      uint32
	latencyRings [][]float32

	hints Hints

	inPeaks  [2]float32
	outPeaks [2]float32
}

// NewPluginBase constructs the shared state every adapter embeds. id is
// this plugin's slot index in the engine's plugin table.
func NewPluginBase(id uint32, kind Kind, callback Callback, mode ProcessMode, sampleRate float64, bufferSize uint32) *PluginBase {
	b := &PluginBase{
		id:            id,
		kind:          kind,
		callback:      callback,
		processMode:   mode,
		sampleRate:    sampleRate,
		bufferSize:    bufferSize,
		ctrlInChannel: 0,
		params:        param.NewTable(),
		progs:         param.NewProgramTable(),
		mprogs:        param.NewMidiProgramTable(),
		custom:        param.NewCustomDataStore(),
		posts:         postevent.NewQueue(),
		injected:      postevent.NewMidiQueue(),
		dryWet:        1.0,
		volume:        1.0,
		balanceLeft:   -1.0,
		balanceRight:  1.0,
	}
	b.enabled.Store(true)
	return b
}

func (b *PluginBase) ID() uint32       { return b.id }
func (b *PluginBase) Kind() Kind       { return b.kind }
func (b *PluginBase) Name() string     { return b.name }
func (b *PluginBase) Label() string    { return b.label }
func (b *PluginBase) Filename() string { return b.filename }

// Enabled reports whether the RT thread should process this plugin
// (spec.md §3 "enabled flag (RT reads this to skip processing without
// tearing down)").
func (b *PluginBase) Enabled() bool   { return b.enabled.Load() }
func (b *PluginBase) SetEnabled(v bool) { b.enabled.Store(v) }

func (b *PluginBase) IsActive() bool { return b.active.Load() }

// Activate/Deactivate implement the Client state machine of spec.md §4.3,
// delegated to the embedded port.Client when one exists (driver-backed
// clients in single/multi-client mode); rack/patchbay clients are
// synthetic and the flag alone suffices.
func (b *PluginBase) Activate() {
	b.active.Store(true)
	if b.client != nil {
		b.client.Activate()
	}
}

func (b *PluginBase) Deactivate() {
	b.active.Store(false)
	if b.client != nil {
		b.client.Deactivate()
	}
}

func (b *PluginBase) BufferSizeChanged(frames uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bufferSize = frames
	for i := range b.latencyRings {
		if uint32(len(b.latencyRings[i])) < b.latency {
			ring := make([]float32, b.latency)
			copy(ring, b.latencyRings[i])
			b.latencyRings[i] = ring
		}
	}
}

func (b *PluginBase) SampleRateChanged(rate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sampleRate = rate
}

func (b *PluginBase) Parameters() *param.Table             { return b.params }
func (b *PluginBase) Programs() *param.ProgramTable         { return b.progs }
func (b *PluginBase) MidiPrograms() *param.MidiProgramTable { return b.mprogs }
func (b *PluginBase) CustomData() *param.CustomDataStore    { return b.custom }
func (b *PluginBase) PostEvents() *postevent.Queue          { return b.posts }
func (b *PluginBase) Latency() uint32                       { return b.latency }
func (b *PluginBase) Hints() Hints                          { return b.hints }

// SetCustomData stores an entry in the generic custom-data table
// (spec.md §3). Format-specific adapters (e.g. DSSI) may shadow this to
// decline non-string values before delegating here.
func (b *PluginBase) SetCustomData(typeURI, key, value string) error {
	b.custom.Set(typeURI, key, value)
	return nil
}

// SaveChunk/RestoreChunk default to "not supported"; only the VST2 and
// bridge adapters, whose native state is opaque, override these.
func (b *PluginBase) SaveChunk() ([]byte, bool)        { return nil, false }
func (b *PluginBase) RestoreChunk(data []byte) bool    { return false }

// ShowGUI/IdleGUI default to no-ops; only adapters whose format carries a
// GUI (HintHasGUI) override these.
func (b *PluginBase) ShowGUI(show bool) error { return fmt.Errorf("plugin has no GUI") }
func (b *PluginBase) IdleGUI()                {}

// InjectNote pushes a UI-originated note into the external MIDI injection
// ring, drained during process() step 3 (spec.md §4.4).
func (b *PluginBase) InjectNote(channel int8, note, velocity uint8, on bool) {
	b.injected.Push(postevent.MidiNote{Channel: channel, Note: note, Velocity: velocity, On: on})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetActive is the host-mixer setter of spec.md §4.4: "setActive,
// setDryWet, setVolume, setBalanceLeft, setBalanceRight each accept two
// flags -- sendOsc ... and sendCallback ... and clamp values into the
// documented ranges."
func (b *PluginBase) SetActive(active, sendOsc, sendCallback bool) {
	b.active.Store(active)
	b.notify(sendOsc, sendCallback, "ACTIVE", boolToInt32(active), 0, 0)
}

func (b *PluginBase) SetDryWet(value float64, sendOsc, sendCallback bool) {
	value = clamp(value, 0, 1)
	b.mu.Lock()
	b.dryWet = value
	b.mu.Unlock()
	b.notify(sendOsc, sendCallback, "DRYWET", 0, 0, float32(value))
}

func (b *PluginBase) SetVolume(value float64, sendOsc, sendCallback bool) {
	value = clamp(value, 0, 1.27)
	b.mu.Lock()
	b.volume = value
	b.mu.Unlock()
	b.notify(sendOsc, sendCallback, "VOLUME", 0, 0, float32(value))
}

func (b *PluginBase) SetBalanceLeft(value float64, sendOsc, sendCallback bool) {
	value = clamp(value, -1, 1)
	b.mu.Lock()
	b.balanceLeft = value
	b.mu.Unlock()
	b.notify(sendOsc, sendCallback, "BALANCE_LEFT", 0, 0, float32(value))
}

func (b *PluginBase) SetBalanceRight(value float64, sendOsc, sendCallback bool) {
	value = clamp(value, -1, 1)
	b.mu.Lock()
	b.balanceRight = value
	b.mu.Unlock()
	b.notify(sendOsc, sendCallback, "BALANCE_RIGHT", 0, 0, float32(value))
}

// SetParameterValue clamps and applies hints per param.Table.SetValue and
// returns the stored value, notifying OSC/callback peers.
func (b *PluginBase) SetParameterValue(index int32, value float64, sendOsc, sendCallback bool) float64 {
	stored := b.params.SetValue(index, value)
	b.notify(sendOsc, sendCallback, "PARAMETER_VALUE_CHANGED", index, 0, float32(stored))
	return stored
}

// SetParameterMidiCC rebinds a parameter's MIDI-CC control binding.
func (b *PluginBase) SetParameterMidiCC(index int32, cc int8, channel uint8) {
	b.params.SetMidiCC(index, cc, channel)
}

// SetProgram selects a program by index and, when changed, resets the
// host-mixer dry/wet implicitly is NOT done here (that is spec'd only for
// reload); selecting simply validates and stores the index.
func (b *PluginBase) SetProgram(index int32, sendOsc, sendCallback bool) error {
	if err := b.progs.Select(index); err != nil {
		return err
	}
	b.notify(sendOsc, sendCallback, "PROGRAM_CHANGED", index, 0, 0)
	return nil
}

func (b *PluginBase) SetMidiProgram(index int32, sendOsc, sendCallback bool) error {
	if err := b.mprogs.Select(index); err != nil {
		return err
	}
	b.notify(sendOsc, sendCallback, "MIDI_PROGRAM_CHANGED", index, 0, 0)
	return nil
}

func (b *PluginBase) notify(sendOsc, sendCallback bool, action string, v1, v2 int32, v3 float32) {
	if b.callback == nil {
		return
	}
	if sendCallback {
		b.callback.PluginCallback(b.id, action, v1, v2, v3, "")
	}
	if sendOsc {
		b.callback.OSCNotify(b.id, "/"+action, v1, v2, v3)
	}
}

func boolToInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

// mixerSnapshot is the read-only view of host-mixer state Process needs;
// returned under RLock to avoid holding the lock during the RT-safe mix.
type mixerSnapshot struct {
	dryWet       float64
	volume       float64
	balanceLeft  float64
	balanceRight float64
	ctrlChannel  int8
	pendingBank  uint32
}

func (b *PluginBase) snapshot() mixerSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return mixerSnapshot{
		dryWet:       b.dryWet,
		volume:       b.volume,
		balanceLeft:  b.balanceLeft,
		balanceRight: b.balanceRight,
		ctrlChannel:  b.ctrlInChannel,
		pendingBank:  b.pendingBank,
	}
}

func (b *PluginBase) setPendingBank(bank uint32) {
	b.mu.Lock()
	b.pendingBank = bank
	b.mu.Unlock()
}
