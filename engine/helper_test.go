package engine

import (
	"sync"
	"testing"

	"github.com/carla-audio/carla-go/plugin"
)

// stubDriver is a minimal engine.Driver for tests: no real audio
// backend, optionally exposing fixed buffers through bufferSource when
// buffers is non-nil (exercising processRack's hardware-buffer path
// instead of its silence fallback).
type stubDriver struct {
	bufferSize uint32
	sampleRate float64
	buffers    map[string][]float32

	mu        sync.Mutex
	processFn ProcessFunc
}

func newStubDriver(bufferSize uint32, sampleRate float64) *stubDriver {
	return &stubDriver{bufferSize: bufferSize, sampleRate: sampleRate}
}

func (d *stubDriver) Name() string         { return "stub" }
func (d *stubDriver) BufferSize() uint32   { return d.bufferSize }
func (d *stubDriver) SampleRate() float64  { return d.sampleRate }

func (d *stubDriver) SetProcessCallback(fn ProcessFunc) {
	d.mu.Lock()
	d.processFn = fn
	d.mu.Unlock()
}
func (d *stubDriver) SetBufferSizeCallback(fn func(frames uint32)) {}
func (d *stubDriver) SetSampleRateCallback(fn func(rate float64)) {}

func (d *stubDriver) RegisterClient(name string) bool               { return true }
func (d *stubDriver) SetLatency(clientName string, samples uint32) {}

func (d *stubDriver) Start() error { return nil }
func (d *stubDriver) Stop() error  { return nil }

func (d *stubDriver) AudioBuffer(name string, isInput bool) []float32 {
	if d.buffers == nil {
		return nil
	}
	return d.buffers[name]
}

// newTestEngine builds a registered Engine under a name unique to the
// running test (so parallel/sequential tests never collide in the
// process-wide registry) and arranges for it to be unregistered at
// cleanup.
func newTestEngine(t *testing.T, driver Driver, opts Options) *Engine {
	t.Helper()
	e, err := New(t.Name(), driver, PanicCallback{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { unregisterEngine(e.name) })
	return e
}

// newGainPlugin builds and reloads a native gain plugin ready to add to
// an engine's table, with gain fixed at the given multiplier.
func newGainPlugin(t *testing.T, id uint32, gain float64) plugin.Plugin {
	t.Helper()
	return newNamedGainPlugin(t, id, "gain", gain)
}

// newNamedGainPlugin is newGainPlugin with a caller-chosen display name,
// for exercising GetNewUniquePluginName's collision handling.
func newNamedGainPlugin(t *testing.T, id uint32, name string, gain float64) plugin.Plugin {
	t.Helper()
	base := plugin.NewPluginBase(id, plugin.KindNative, PanicCallback{}, ProcessModeContinuousRack, 44100, 512)
	p := plugin.NewNativePlugin(base)
	if err := p.Init("", name, "carla-gain", nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	p.SetParameterValue(0, gain, false, false)
	return p
}
