// Package jackdriver implements engine.Driver against a real JACK
// client, spec.md's Design Notes leaving the audio backend itself "out
// of scope... beyond the callback contract they must satisfy" — this is
// one concrete implementation of that contract, not a new contract.
//
// Grounded on other_examples' fjammes-midi2osc (jack.ClientOpen with
// jack.NoStartServer, PortRegister, SetProcessCallback, Activate,
// jack.StrError) for xthexder/go-jack's calling convention, and on
// rayboyd-audio-engine's processing callback shape (LockOSThread,
// pre-allocated buffers, no allocation in the hot path) adapted from
// PortAudio's int32 callback to JACK's float32 one.
package jackdriver

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	jack "github.com/xthexder/go-jack"

	"github.com/carla-audio/carla-go/engine"
)

// Driver is a 2-in/2-out JACK client satisfying engine.Driver, feeding
// engine.processRack's optional bufferSource capability with real
// hardware-connected ports instead of silence.
type Driver struct {
	name string

	client *jack.Client

	// Keyed by the logical name engine.rackInput/publishRackOutput look
	// up through bufferSource, rather than re-deriving it from the port
	// (go-jack's Port exposes no guaranteed name accessor to round-trip
	// through).
	ports map[string]*jack.Port

	mu        sync.Mutex
	processFn engine.ProcessFunc
	bufSizeFn func(frames uint32)
	sampleFn  func(rate float64)
}

// New opens a JACK client named name but does not yet register ports or
// activate; call Start to do both, matching engine.Driver's lifecycle
// (constructed, wired with callbacks, then started).
func New(name string) (*Driver, error) {
	client, status := jack.ClientOpen(name, jack.NoStartServer)
	if client == nil {
		return nil, fmt.Errorf("jackdriver: open %q: %s", name, jack.StrError(status))
	}
	return &Driver{name: name, client: client}, nil
}

func (d *Driver) Name() string { return d.name }

func (d *Driver) BufferSize() uint32  { return d.client.GetBufferSize() }
func (d *Driver) SampleRate() float64 { return float64(d.client.GetSampleRate()) }

func (d *Driver) SetProcessCallback(fn engine.ProcessFunc) {
	d.mu.Lock()
	d.processFn = fn
	d.mu.Unlock()
}

func (d *Driver) SetBufferSizeCallback(fn func(frames uint32)) {
	d.mu.Lock()
	d.bufSizeFn = fn
	d.mu.Unlock()
}

func (d *Driver) SetSampleRateCallback(fn func(rate float64)) {
	d.mu.Lock()
	d.sampleFn = fn
	d.mu.Unlock()
}

// RegisterClient/SetLatency satisfy port.Driver. No concrete plugin
// currently constructs its port.Client with a non-nil driver (every
// format adapter passes nil, registering ports against the engine's one
// JACK client instead of one JACK client per plugin), so these are
// trivial; JACK's own jack_recompute_total_latencies handles the
// server-side latency graph without a per-client push from here.
func (d *Driver) RegisterClient(name string) bool             { return true }
func (d *Driver) SetLatency(clientName string, samples uint32) {}

// Start registers the fixed stereo in/out ports, wires JACK's
// buffer-size/sample-rate/process callbacks to the ones SetXCallback
// recorded, and activates the client.
func (d *Driver) Start() error {
	// Port names match the "audio-in1"/"audio-in2"/"audio-out1"/
	// "audio-out2" keys engine.processRack's rackInput/publishRackOutput
	// look up via the bufferSource capability.
	in1, err := d.registerPort("audio-in1", jack.PortIsInput)
	if err != nil {
		return err
	}
	in2, err := d.registerPort("audio-in2", jack.PortIsInput)
	if err != nil {
		return err
	}
	out1, err := d.registerPort("audio-out1", jack.PortIsOutput)
	if err != nil {
		return err
	}
	out2, err := d.registerPort("audio-out2", jack.PortIsOutput)
	if err != nil {
		return err
	}
	d.ports = map[string]*jack.Port{
		"audio-in1":  in1,
		"audio-in2":  in2,
		"audio-out1": out1,
		"audio-out2": out2,
	}

	d.client.SetBufferSizeCallback(func(frames uint32) int {
		d.mu.Lock()
		fn := d.bufSizeFn
		d.mu.Unlock()
		if fn != nil {
			fn(frames)
		}
		return 0
	})
	d.client.SetSampleRateCallback(func(rate uint32) int {
		d.mu.Lock()
		fn := d.sampleFn
		d.mu.Unlock()
		if fn != nil {
			fn(float64(rate))
		}
		return 0
	})
	d.client.SetProcessCallback(d.process)

	if code := d.client.Activate(); code != 0 {
		return fmt.Errorf("jackdriver: activate: %s", jack.StrError(code))
	}
	return nil
}

func (d *Driver) registerPort(name string, flags jack.PortFlags) (*jack.Port, error) {
	p := d.client.PortRegister(name, jack.DEFAULT_AUDIO_TYPE, flags, 0)
	if p == nil {
		return nil, fmt.Errorf("jackdriver: register port %q", name)
	}
	return p, nil
}

// process is JACK's real-time callback; it locks the OS thread for the
// duration of the call (rayboyd-audio-engine's convention for its own
// PortAudio callback) and defers into the engine's process(frames),
// which itself never blocks (engine's try-style process lock).
func (d *Driver) process(frames uint32) int {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d.mu.Lock()
	fn := d.processFn
	d.mu.Unlock()
	if fn != nil {
		fn(frames)
	}
	return 0
}

// AudioBuffer satisfies the engine package's optional bufferSource
// capability (engine.processRack falls back to silence without it),
// returning the live JACK port buffer for the given logical channel
// name ("audio-in1", "audio-in2", "audio-out1", "audio-out2"). The
// returned slice aliases JACK's own buffer memory (jack.AudioSample is a
// same-size, same-layout float32) rather than a copy, so
// publishRackOutput's copy() into an output buffer is actually heard;
// copying here instead would silently discard every processed block.
func (d *Driver) AudioBuffer(name string, isInput bool) []float32 {
	p, ok := d.ports[name]
	if !ok || p == nil {
		return nil
	}
	raw := p.GetBuffer(d.BufferSize())
	if len(raw) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), len(raw))
}

// Stop deactivates and closes the client.
func (d *Driver) Stop() error {
	if code := d.client.Deactivate(); code != 0 {
		return fmt.Errorf("jackdriver: deactivate: %s", jack.StrError(code))
	}
	if code := d.client.Close(); code != 0 {
		return fmt.Errorf("jackdriver: close: %s", jack.StrError(code))
	}
	return nil
}
