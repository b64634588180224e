package plugin

import (
	"math"

	"github.com/carla-audio/carla-go/internal/event"
	"github.com/carla-audio/carla-go/internal/midievent"
	"github.com/carla-audio/carla-go/postevent"
)

// MIDI CC numbers the control-input drain intercepts as host-mixer
// controls (spec.md §4.4 step 2).
const (
	ccBreathController = 2
	ccChannelVolume    = 7
	ccBalance          = 8
	ccAllSoundOff      = 120
	ccAllNotesOff      = 123
)

// NativeRunner is the per-format hook Process calls for step 5 ("Run the
// native process function (per-format)."). Each adapter supplies its own
// implementation; control/MIDI events have already been translated into
// the plugin's native shape by the time this is called.
type NativeRunner interface {
	RunNative(inputs, outputs [][]float32, midiIn []event.MIDI, frames uint32)
}

// RunProcess implements the format-agnostic body of spec.md §4.4's
// process(inputs, outputs, frames, offset) contract. Concrete adapters
// call this from their own Process method, passing themselves as the
// NativeRunner for step 5.
//
// ctrlIn/ctrlOut/midiIn are nil for adapters with no such port (e.g. a
// pure effect with no MIDI input).
func (b *PluginBase) RunProcess(runner NativeRunner, inputs, outputs [][]float32, ctrlIn, ctrlOut eventPortLike, midiIn eventPortLike, frames uint32, offset uint32) {
	if !b.Enabled() {
		b.posts.Push(postevent.Event{Kind: postevent.KindDebug, Message: "disabled"})
		return
	}

	// Step 1: input peaks (skipped in ContinuousRack mode; the engine
	// computes no rack-level input peaks either).
	if b.processMode != ProcessModeContinuousRack {
		b.computePeaks(inputs, &b.inPeaks)
	}

	snap := b.snapshot()

	// Step 2: drain control-input port.
	var midiNotesOff bool
	if ctrlIn != nil {
		for i := 0; i < ctrlIn.EventCount(); i++ {
			e := ctrlIn.GetEvent(i)
			if e.Kind != event.KindControl {
				continue
			}
			if e.Control.Kind == event.ParameterChange {
				b.handleControlParameter(e, snap)
			} else {
				if b.handleControlSpecial(e, &snap, midiIn != nil) {
					midiNotesOff = true
				}
			}
		}
	}

	// Step 3: drain external MIDI injection queue.
	injected := b.injected.Drain()
	nativeMidi := make([]event.MIDI, 0, len(injected))
	for _, n := range injected {
		if n.Channel < 0 {
			continue
		}
		if n.On {
			nativeMidi = append(nativeMidi, midievent.EncodeNoteOn(uint8(n.Channel), n.Note, n.Velocity))
		} else {
			nativeMidi = append(nativeMidi, midievent.EncodeNoteOff(uint8(n.Channel), n.Note, n.Velocity))
		}
	}

	// Step 4: drain the MIDI input port.
	if midiIn != nil {
		for i := 0; i < midiIn.EventCount(); i++ {
			e := midiIn.GetEvent(i)
			if e.Kind != event.KindMIDI {
				continue
			}
			d := midievent.Decode(e.MIDI.Data, e.MIDI.Size)
			if d.IsNoteOn {
				b.posts.Push(postevent.Event{Kind: postevent.KindNoteOn, Channel: d.Channel, Note: d.Data1, Velocity: d.Data2})
			} else if d.IsNoteOff {
				b.posts.Push(postevent.Event{Kind: postevent.KindNoteOff, Channel: d.Channel, Note: d.Data1})
			}
			nativeMidi = append(nativeMidi, e.MIDI)
		}
	}

	if midiNotesOff {
		nativeMidi = append(nativeMidi, midievent.EncodeAllNotesOff(uint8(snap.ctrlChannel)))
	}

	// Step 5: run the native process function.
	runner.RunNative(inputs, outputs, nativeMidi, frames)

	// Step 6: post-process dry/wet, balance, volume.
	b.postProcess(inputs, outputs, snap, frames)

	// Step 7: update per-input latency rings.
	b.updateLatencyRings(inputs)

	// Step 8: emit control-output parameter events.
	if ctrlOut != nil {
		b.emitControlOutputs(ctrlOut, frames)
	}

	// Step 9: store peaks.
	b.computePeaks(outputs, &b.outPeaks)
}

// handleControlParameter applies a ParameterChange control event: the
// three host-mixer intercepts (Breath-Controller, Channel-Volume,
// Balance) or, failing those, a MIDI-CC parameter binding lookup
// (spec.md §4.4 step 2).
func (b *PluginBase) handleControlParameter(e event.Event, snap mixerSnapshot) {
	cc := e.Control.Parameter
	value := float64(e.Control.Value)

	switch cc {
	case ccBreathController:
		b.SetDryWet(value, true, true)
		return
	case ccChannelVolume:
		b.SetVolume(value*127.0/100.0, true, true)
		return
	case ccBalance:
		left := clamp(2*value-1, -1, 1)
		right := clamp(2*value-1, -1, 1)
		b.SetBalanceLeft(-left, true, true)
		b.SetBalanceRight(right, true, true)
		return
	}

	idx := b.params.FindByMidiCC(uint8(snap.ctrlChannel), int8(cc))
	if idx >= 0 {
		b.SetParameterValue(idx, value, true, true)
	}
}

// handleControlSpecial applies MidiBankChange, MidiProgramChange,
// AllSoundOff, and AllNotesOff control events. Returns true when a
// note-off cascade must be appended to the outgoing native MIDI stream
// (spec.md §4.4 step 2: "AllSoundOff emits a soft-silence sequence (send
// all-notes-off if MIDI input exists, deactivate/reactivate)...
// AllNotesOff sends only the note-off cascade.").
func (b *PluginBase) handleControlSpecial(e event.Event, snap *mixerSnapshot, hasMidiInput bool) bool {
	switch e.Control.Kind {
	case event.MidiBankChange:
		bank := uint32(e.Control.Parameter)
		b.setPendingBank(bank)
		snap.pendingBank = bank
	case event.MidiProgramChange:
		idx := b.mprogs.FindByBankProgram(snap.pendingBank, uint32(e.Control.Parameter))
		if idx >= 0 {
			b.SetMidiProgram(idx, true, true)
		}
	case event.AllSoundOff:
		b.posts.Push(postevent.Event{Kind: postevent.KindDebug, Message: "active-flap"})
		b.Deactivate()
		b.Activate()
		return hasMidiInput
	case event.AllNotesOff:
		return true
	}
	return false
}

// computePeaks writes the absolute peak of each of up to 2 channels into
// dst.
func (b *PluginBase) computePeaks(buffers [][]float32, dst *[2]float32) {
	for ch := 0; ch < 2 && ch < len(buffers); ch++ {
		var peak float32
		for _, s := range buffers[ch] {
			a := float32(math.Abs(float64(s)))
			if a > peak {
				peak = a
			}
		}
		dst[ch] = peak
	}
}

// postProcess implements step 6: dry/wet mixing against the latency-
// delayed input, balance cross-mixing, and volume scaling.
//
// "Dry/wet is applied only when the hint allows and dryWet != 1.0;
// balance only when left != -1 or right != 1; volume only when != 1."
func (b *PluginBase) postProcess(inputs, outputs [][]float32, snap mixerSnapshot, frames uint32) {
	canDryWet := b.hints&HintCanDryWet != 0
	canBalance := b.hints&HintCanBalance != 0
	canVolume := b.hints&HintCanVolume != 0

	if canDryWet && snap.dryWet != 1.0 {
		for ch := 0; ch < len(outputs); ch++ {
			dry := b.latencyDelayedInput(ch, inputs, frames)
			for i := range outputs[ch] {
				if i < len(dry) {
					outputs[ch][i] = float32(snap.dryWet)*outputs[ch][i] + float32(1-snap.dryWet)*dry[i]
				}
			}
		}
	}

	if canBalance && (snap.balanceLeft != -1 || snap.balanceRight != 1) {
		applyBalance(outputs, snap.balanceLeft, snap.balanceRight)
	}

	if canVolume && snap.volume != 1.0 {
		v := float32(snap.volume)
		for ch := range outputs {
			for i := range outputs[ch] {
				outputs[ch][i] *= v
			}
		}
	}
}

// applyBalance implements Carla's even/odd-channel-pair cross-mix: each
// stereo pair is recombined from the original left/right using the
// balance-left/balance-right coefficients already clamped into [-1, 1] by
// SetBalanceLeft/SetBalanceRight.
func applyBalance(outputs [][]float32, balanceLeft, balanceRight float64) {
	for ch := 0; ch+1 < len(outputs); ch += 2 {
		left := outputs[ch]
		right := outputs[ch+1]
		n := len(left)
		if len(right) < n {
			n = len(right)
		}
		for i := 0; i < n; i++ {
			origL, origR := left[i], right[i]
			leftGain := float32((1 - balanceLeft) / 2)
			rightGain := float32((1 + balanceRight) / 2)
			left[i] = origL*leftGain + origR*(1-rightGain)
			right[i] = origR*rightGain + origL*(1-leftGain)
		}
	}
}

// latencyDelayedInput returns the input channel delayed by b.latency
// frames, drawn from the ring maintained by updateLatencyRings, used by
// dry/wet mixing.
func (b *PluginBase) latencyDelayedInput(ch int, inputs [][]float32, frames uint32) []float32 {
	if b.latency == 0 || ch >= len(inputs) {
		if ch < len(inputs) {
			return inputs[ch]
		}
		return nil
	}
	b.mu.RLock()
	var ring []float32
	if ch < len(b.latencyRings) {
		ring = append([]float32(nil), b.latencyRings[ch]...)
	}
	b.mu.RUnlock()
	if ring == nil {
		return inputs[ch]
	}
	out := make([]float32, frames)
	copy(out, ring)
	if uint32(len(ring)) < frames {
		copy(out[len(ring):], inputs[ch])
	}
	return out
}

// updateLatencyRings implements step 7: "copy the last latency frames of
// inputs for the next call."
func (b *PluginBase) updateLatencyRings(inputs [][]float32) {
	if b.latency == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latencyRings == nil {
		b.latencyRings = make([][]float32, len(inputs))
	}
	for ch, in := range inputs {
		if ch >= len(b.latencyRings) {
			break
		}
		n := int(b.latency)
		if n > len(in) {
			n = len(in)
		}
		ring := make([]float32, b.latency)
		copy(ring, in[len(in)-n:])
		b.latencyRings[ch] = ring
	}
}

// emitControlOutputs implements step 8: "for every Output-typed parameter
// with a MIDI-CC binding, write a normalised (value - min) / (max - min)
// onto the control-output port."
func (b *PluginBase) emitControlOutputs(ctrlOut eventPortLike, frames uint32) {
	for _, idx := range b.params.Outputs() {
		d := b.params.Data(idx)
		if d.MidiCC < 0 {
			continue
		}
		r := b.params.Ranges(idx)
		v := b.params.Value(idx)
		normalized := float32(r.Normalize(v))
		ctrlOut.WriteControlEvent(0, d.MidiChannel, event.ParameterChange, idx, normalized)
	}
}

// SetLatency records the plugin's reported latency and resizes its
// per-input latency rings, used by the adapter-level forced-stereo/
// latency-detection step of spec.md §4.5.
func (b *PluginBase) SetLatency(frames uint32) {
	b.mu.Lock()
	b.latency = frames
	b.mu.Unlock()
	if b.client != nil {
		b.client.SetLatency(frames)
	}
}

// InPeaks/OutPeaks expose the last computed stereo peak pair, consumed by
// the engine idle thread (spec.md §4.8 "publish peak values").
func (b *PluginBase) InPeaks() (float32, float32)  { return b.inPeaks[0], b.inPeaks[1] }
func (b *PluginBase) OutPeaks() (float32, float32) { return b.outPeaks[0], b.outPeaks[1] }

// eventPortLike is the minimal event-port surface process.go needs,
// satisfied by *port.EventPort; declared locally to avoid every adapter
// importing internal/port just to pass ports through.
type eventPortLike = interface {
	EventCount() int
	GetEvent(i int) event.Event
	WriteControlEvent(time uint32, channel uint8, kind event.ControlKind, parameter int32, value float32)
}
