package engine

import (
	"context"
	"sync"
	"time"

	"github.com/carla-audio/carla-go/plugin"
	"github.com/carla-audio/carla-go/postevent"
)

// Idle-thread cadence, spec.md §4.8: "sleeping 40ms when an OSC peer is
// registered, 50ms otherwise."
const (
	idleIntervalWithOSC    = 40 * time.Millisecond
	idleIntervalWithoutOSC = 50 * time.Millisecond
)

// oscPoller is satisfied by the OSC dispatcher; kept as a narrow local
// interface so engine doesn't import package osc (which imports engine to
// resolve "/<engineName>/..." paths back to a live *Engine).
type oscPoller interface {
	// Poll reports whether at least one control peer is currently
	// registered (selects the faster 40ms cadence when true). It reads no
	// datagrams itself; the dispatcher's listeners decode them in the
	// background.
	Poll() (hasPeer bool)
}

// peakPublisher exposes the last-computed stereo peak pair a plugin
// adapter tracked during process(), spec.md §4.8 "publish peak values".
// Kept narrow rather than widening plugin.Plugin, since only PluginBase-
// derived adapters carry peak state.
type peakPublisher interface {
	InPeaks() (float32, float32)
	OutPeaks() (float32, float32)
}

// idleThread is the engine's non-RT cooperative loop, spec.md §4.8.
//
// Grounded on shaban/macaudio's engine.go Start goroutine shape (a single
// background loop ticking on a timer until Stop), generalized into the
// two-speed OSC-aware cadence and per-plugin drain spec.md describes.
type idleThread struct {
	e      *Engine
	osc    oscPoller
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newIdleThread(e *Engine) *idleThread {
	return &idleThread{e: e, stopCh: make(chan struct{})}
}

// attachOSC lets the OSC dispatcher register itself once constructed;
// Init builds the idle thread before the dispatcher exists, so this is a
// separate step rather than a constructor argument.
func (it *idleThread) attachOSC(p oscPoller) { it.osc = p }

func (it *idleThread) start(ctx context.Context) {
	it.wg.Add(1)
	go it.loop(ctx)
}

func (it *idleThread) stop() {
	close(it.stopCh)
	it.wg.Wait()
}

func (it *idleThread) loop(ctx context.Context) {
	defer it.wg.Done()
	hasPeer := false
	for {
		interval := idleIntervalWithoutOSC
		if hasPeer {
			interval = idleIntervalWithOSC
		}

		select {
		case <-ctx.Done():
			return
		case <-it.stopCh:
			return
		case <-time.After(interval):
		}

		// spec.md §5: "setAboutToClose() sets a flag the idle thread
		// checks between passes; the idle thread exits its loop after
		// the current pass." Checked here, before starting a new pass.
		if it.e.aboutToClose.Load() {
			return
		}
		hasPeer = it.pass()
	}
}

// pass runs one idle-thread iteration, spec.md §4.8: poll OSC, then for
// every enabled plugin drain its post-event queue (unless single-thread-
// flagged), broadcast Output parameter values, and publish peaks. Holds a
// single read lock over the plugin table for the whole pass so
// RemovePlugin cannot race the iteration.
func (it *idleThread) pass() bool {
	var hasPeer bool
	if it.osc != nil {
		hasPeer = it.osc.Poll()
	}

	it.e.tableMu.RLock()
	defer it.e.tableMu.RUnlock()

	for i, p := range it.e.plugins {
		if p == nil || !p.Enabled() {
			continue
		}
		id := uint32(i)

		if p.Hints()&plugin.HintSingleThreadDSP == 0 {
			it.drainPostEvents(id, p)
		}
		it.broadcastOutputParameters(id, p)
		it.publishPeaks(id, p)
	}
	return hasPeer
}

func (it *idleThread) drainPostEvents(id uint32, p plugin.Plugin) {
	for _, ev := range p.PostEvents().Drain() {
		switch ev.Kind {
		case postevent.KindParameterChange:
			it.e.callback.PluginCallback(id, "PARAMETER_VALUE_CHANGED", ev.Index, 0, float32(ev.Value), "")
		case postevent.KindProgramChange:
			it.e.callback.PluginCallback(id, "PROGRAM_CHANGED", ev.Index, 0, 0, "")
		case postevent.KindMidiProgramChange:
			it.e.callback.PluginCallback(id, "MIDI_PROGRAM_CHANGED", ev.Index, 0, 0, "")
		case postevent.KindNoteOn:
			it.e.callback.PluginCallback(id, "NOTE_ON", int32(ev.Channel), int32(ev.Note), float32(ev.Velocity), "")
		case postevent.KindNoteOff:
			it.e.callback.PluginCallback(id, "NOTE_OFF", int32(ev.Channel), int32(ev.Note), 0, "")
		case postevent.KindCustom:
			it.e.callback.PluginCallback(id, "CUSTOM_DATA_CHANGED", 0, 0, 0, ev.Message)
		default:
			it.e.callback.PluginCallback(id, "DEBUG", 0, 0, 0, ev.Message)
		}
	}
}

// broadcastOutputParameters mirrors every Output-typed parameter's
// current value to the callback/OSC surface, spec.md §4.8 "broadcast
// every Output parameter's current value".
func (it *idleThread) broadcastOutputParameters(id uint32, p plugin.Plugin) {
	table := p.Parameters()
	for _, idx := range table.Outputs() {
		value := table.Value(idx)
		it.e.callback.PluginCallback(id, "PARAMETER_VALUE_CHANGED", idx, 0, float32(value), "")
		it.e.callback.OSCNotify(id, "/parameter", idx, value)
	}
}

func (it *idleThread) publishPeaks(id uint32, p plugin.Plugin) {
	pp, ok := p.(peakPublisher)
	if !ok {
		return
	}
	inL, inR := pp.InPeaks()
	outL, outR := pp.OutPeaks()
	it.e.callback.OSCNotify(id, "/peaks", inL, inR, outL, outR)
}
