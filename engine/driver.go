package engine

import "github.com/carla-audio/carla-go/internal/port"

// ProcessFunc is the callback a Driver invokes once per audio block; the
// engine supplies processRack/processPatchbay bound to itself.
type ProcessFunc func(frames uint32)

// Driver is the audio backend boundary spec.md's Design Notes describe
// as "out of scope... beyond the callback contract they must satisfy":
// JACK, RtAudio, or a standalone ALSA/CoreAudio backend all implement
// this the same way. Embeds port.Driver so port.Client's
// RegisterClient/SetLatency needs are satisfied by the same value.
//
// Grounded on shaban/macaudio's engine.go lifecycle
// (Start/Stop/Prepare/Reset/Destroy) generalized from a single hardcoded
// CoreAudio backend into an interface any backend can satisfy.
type Driver interface {
	port.Driver

	Name() string
	BufferSize() uint32
	SampleRate() float64

	// SetProcessCallback installs the function the driver calls once per
	// block on its own real-time thread.
	SetProcessCallback(fn ProcessFunc)

	Start() error
	Stop() error

	// SetBufferSizeCallback/SetSampleRateCallback let the driver notify
	// the engine of host-driven buffer/sample-rate changes; the engine
	// forwards these to every plugin's BufferSizeChanged/SampleRateChanged.
	SetBufferSizeCallback(fn func(frames uint32))
	SetSampleRateCallback(fn func(rate float64))
}

// TimeInfo is the transport/time record process() implementations read,
// spec.md §3 "time-info (frame, playing, bbt fields)". Carla's own time
// info additionally carries bar/beat/tick fields for host sync; this
// module does not synthesise a MIDI clock or transport (explicit
// Non-goal) but still threads a real, settable TimeInfo through so a
// host-provided transport can be reflected to plugins that read it.
type TimeInfo struct {
	Frame   uint64
	Playing bool

	BBT struct {
		Bar  int32
		Beat int32
		Tick int32
		BPM  float64
	}
}
