package osc

import (
	"testing"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/carla-audio/carla-go/engine"
)

// fakeDriver is a minimal engine.Driver for wiring a real *engine.Engine
// into a dispatcher test without a real audio backend.
type fakeDriver struct{}

func (fakeDriver) Name() string                              { return "fake" }
func (fakeDriver) BufferSize() uint32                         { return 512 }
func (fakeDriver) SampleRate() float64                        { return 44100 }
func (fakeDriver) SetProcessCallback(fn engine.ProcessFunc)   {}
func (fakeDriver) SetBufferSizeCallback(fn func(uint32))      {}
func (fakeDriver) SetSampleRateCallback(fn func(float64))     {}
func (fakeDriver) RegisterClient(name string) bool            { return true }
func (fakeDriver) SetLatency(clientName string, samples uint32) {}
func (fakeDriver) Start() error                               { return nil }
func (fakeDriver) Stop() error                                { return nil }

func newTestDispatcherEngine(t *testing.T) (*engine.Engine, *Dispatcher, *fakePlugin) {
	t.Helper()
	e, err := engine.New(t.Name(), fakeDriver{}, engine.PanicCallback{}, engine.DefaultOptions())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	p := &fakePlugin{}
	if _, err := e.AddPlugin(p); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	return e, New(t.Name()), p
}

func msgWithArgs(addr string, args ...interface{}) *goosc.Message {
	msg := goosc.NewMessage(addr)
	for _, a := range args {
		msg.Append(a)
	}
	return msg
}

func TestDispatcherRoutesValidPluginPath(t *testing.T) {
	_, d, p := newTestDispatcherEngine(t)

	d.handle(msgWithArgs("/"+t.Name()+"/0/set_active", true))

	if !p.active {
		t.Error("set_active over the dispatcher did not reach the plugin")
	}
}

func TestDispatcherIgnoresPathForAnotherEngine(t *testing.T) {
	_, d, p := newTestDispatcherEngine(t)

	d.handle(msgWithArgs("/some-other-engine/0/set_active", true))

	if p.active {
		t.Error("a path addressed to a different engine should not reach this plugin")
	}
}

func TestDispatcherIgnoresUnknownPluginID(t *testing.T) {
	_, d, p := newTestDispatcherEngine(t)

	d.handle(msgWithArgs("/"+t.Name()+"/99/set_active", true))

	if p.active {
		t.Error("an out-of-range plugin id should not reach any plugin")
	}
}

func TestDispatcherIgnoresArgumentMismatch(t *testing.T) {
	_, d, p := newTestDispatcherEngine(t)

	// set_active wants a single bool; sending a float instead should be
	// rejected by the signature check before the handler ever runs.
	d.handle(msgWithArgs("/"+t.Name()+"/0/set_active", 0.5))

	if p.active {
		t.Error("a type-mismatched call should not reach the plugin")
	}
}

func TestDispatcherIgnoresMalformedPath(t *testing.T) {
	_, d, p := newTestDispatcherEngine(t)

	d.handle(msgWithArgs("/too/many/path/segments/here", true))

	if p.active {
		t.Error("a malformed path should not reach any plugin")
	}
}

func TestDispatcherRegisterUnregisterTogglesPoll(t *testing.T) {
	_, d, _ := newTestDispatcherEngine(t)

	if d.Poll() {
		t.Fatal("a freshly constructed dispatcher should report no peer")
	}

	d.handle(msgWithArgs("/register"))
	if !d.Poll() {
		t.Error("Poll() should report true after /register")
	}

	d.handle(msgWithArgs("/unregister"))
	if d.Poll() {
		t.Error("Poll() should report false after /unregister")
	}
}

func TestDispatcherBridgeForwardOnNonBridgePluginIsIgnored(t *testing.T) {
	_, d, _ := newTestDispatcherEngine(t)

	// fakePlugin does not implement bridgeForwarder; this must not panic.
	d.handle(msgWithArgs("/"+t.Name()+"/0/bridge_configure", "key", "value"))
}
