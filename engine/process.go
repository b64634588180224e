package engine

import (
	"github.com/carla-audio/carla-go/internal/event"
	"github.com/carla-audio/carla-go/internal/port"
)

// bufferSource is satisfied by a Driver that exposes real hardware
// buffers (multi-client/patchbay backends); it has the same method as
// port.BufferSource. Rack-mode drivers that don't implement it get silence
// on input, matching a synthetic/test driver.
type bufferSource interface {
	AudioBuffer(name string, isInput bool) []float32
}

// midiSource is satisfied by a Driver that can supply raw system MIDI
// input for the current block (already time-stamped within [0, frames)),
// mirroring bufferSource's optional-capability pattern. A Driver that
// doesn't implement it contributes no system MIDI: processRack's shared
// event input then carries nothing until a plugin itself writes to the
// shared output, matching bufferSource's silence fallback.
type midiSource interface {
	MidiIn(frames uint32) []event.Event
}

// process is installed as the driver's process callback, spec.md §4.7
// "processRack/processPatchbay". It brackets the call with the processing
// flag WaitForProcessEnd spins on, and skips entirely once the engine has
// been flagged about to close (spec.md §5's cancellation pattern).
func (e *Engine) process(frames uint32) {
	if e.aboutToClose.Load() {
		return
	}
	// Try-style process lock, spec.md §5: never blocks the RT thread. A
	// ScopedDisabler or the offline-mutation path holding this lock means
	// the table is mid-mutation; skip this callback entirely rather than
	// risk reading a half-updated plugin.
	if !e.processMu.TryLock() {
		return
	}
	defer e.processMu.Unlock()

	e.processing.Store(true)
	defer e.processing.Store(false)

	if e.options.ProcessMode == ProcessModePatchbay {
		e.processPatchbay(frames)
		return
	}
	e.processRack(frames)
}

// processRack implements spec.md §4.7's rack-mode process: "Fixed 2-in /
// 2-out audio plus one shared event input and one shared event output.
// The engine walks the plugin table in id order; for each enabled plugin
// it presents forced-stereo input (duplicating mono if necessary),
// processes, and feeds the output as input to the next plugin." Event
// routing is shared across the whole chain: the engine resets its one
// rack-mode event-in/event-out pair, merges any driver-supplied system
// MIDI into the input by time, and hands the same pair to every plugin in
// the chain, each of which both reads the merged input and appends to the
// same output.
//
// Grounded on shaban/macaudio's engine.go Prepare/process buffer
// plumbing, generalized from a fixed AVAudioEngine node chain into a
// dynamic plugin-table walk.
func (e *Engine) processRack(frames uint32) {
	chain := e.rackInput(frames)

	e.eventIn.Rebind(frames)
	e.eventOut.Rebind(frames)
	e.eventIn.InitBuffer(nil)
	e.eventOut.InitBuffer(nil)
	var systemMidi []event.Event
	if src, ok := e.driver.(midiSource); ok {
		systemMidi = src.MidiIn(frames)
	}
	event.MergeStable(e.eventIn.Buffer(), systemMidi)

	e.tableMu.RLock()
	defer e.tableMu.RUnlock()

	for _, p := range e.plugins {
		if p == nil || !p.Enabled() {
			continue
		}
		stereoIn := forceStereo(chain, frames)
		stereoOut := [][]float32{make([]float32, frames), make([]float32, frames)}
		p.Process(stereoIn, stereoOut, e.eventIn, e.eventOut, frames, 0)
		chain = stereoOut
	}
	e.eventOut.Sort()

	e.publishRackOutput(chain, frames)
}

// processPatchbay implements spec.md §4.7's "Variable-width I/O per
// plugin, routed explicitly; engine does not force stereo. (Graph
// representation is out of scope here.)" Each enabled plugin is processed
// independently against its own silence-seeded stereo scratch buffer, with
// its own independent event-in/event-out pair: §4.7 names shared event
// routing only for rack mode, and patchbay has no single chain to route a
// common buffer through (wiring an actual patch graph between plugins is
// the explicitly-named out-of-scope piece, so no chaining happens here
// either).
func (e *Engine) processPatchbay(frames uint32) {
	e.tableMu.RLock()
	defer e.tableMu.RUnlock()

	for _, p := range e.plugins {
		if p == nil || !p.Enabled() {
			continue
		}
		in := [][]float32{make([]float32, frames), make([]float32, frames)}
		out := [][]float32{make([]float32, frames), make([]float32, frames)}
		eventIn := port.NewEvent("event-in", true, port.ModePatchbay, 1024, frames)
		eventOut := port.NewEvent("event-out", false, port.ModePatchbay, 1024, frames)
		p.Process(in, out, eventIn, eventOut, frames, 0)
	}
}

// rackInput returns the hardware input buffers when the driver exposes
// them, or freshly-zeroed silence otherwise.
func (e *Engine) rackInput(frames uint32) [][]float32 {
	if bs, ok := e.driver.(bufferSource); ok {
		l := bs.AudioBuffer("audio-in1", true)
		r := bs.AudioBuffer("audio-in2", true)
		if l != nil && r != nil {
			return [][]float32{l, r}
		}
	}
	return [][]float32{make([]float32, frames), make([]float32, frames)}
}

// publishRackOutput writes the chain's final stereo pair to the driver's
// hardware output buffers when available; otherwise the result is
// discarded (no hardware backend wired).
func (e *Engine) publishRackOutput(chain [][]float32, frames uint32) {
	bs, ok := e.driver.(bufferSource)
	if !ok {
		return
	}
	if l := bs.AudioBuffer("audio-out1", false); l != nil {
		copy(l, chain[0])
	}
	if r := bs.AudioBuffer("audio-out2", false); r != nil && len(chain) > 1 {
		copy(r, chain[1])
	}
}

// forceStereo duplicates a mono buffer pair into true stereo, spec.md
// §4.7 "presents forced-stereo input (duplicating mono if necessary)".
func forceStereo(in [][]float32, frames uint32) [][]float32 {
	switch len(in) {
	case 0:
		return [][]float32{make([]float32, frames), make([]float32, frames)}
	case 1:
		dup := make([]float32, len(in[0]))
		copy(dup, in[0])
		return [][]float32{in[0], dup}
	default:
		return in[:2]
	}
}
