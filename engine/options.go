package engine

import (
	"github.com/spf13/pflag"

	"github.com/carla-audio/carla-go/plugin"
)

// ProcessMode is plugin.ProcessMode re-exported so engine callers don't
// need a second import for the same concept; plugin.go documents the
// split ("ProcessMode mirrors engine.ProcessMode without importing the
// engine package") the other direction, since plugin cannot import
// engine without a cycle.
type ProcessMode = plugin.ProcessMode

const (
	ProcessModeSingleClient    = plugin.ProcessModeSingleClient
	ProcessModeMultipleClients = plugin.ProcessModeMultipleClients
	ProcessModeContinuousRack  = plugin.ProcessModeContinuousRack
	ProcessModePatchbay        = plugin.ProcessModePatchbay
	ProcessModeBridge          = plugin.ProcessModeBridge
)

// BridgeBinaryPaths holds the per-format bridge executable paths spec.md
// §4.7 lists among the engine options.
type BridgeBinaryPaths struct {
	Posix32, Posix64 string
	Win32, Win64     string
	LV2, VST2, Sf2   string
}

// Options is the engine-wide configuration record of spec.md §4.7,
// following the teacher's validate-then-build NewEngine(config) pattern
// (engine.go's NewEngine validates outputDevice/sampleRateIndex/
// bufferSize before touching the native side).
type Options struct {
	ProcessMode ProcessMode

	ForceStereo        bool
	PreferPluginBridges bool
	PreferUIBridges     bool
	UseDSSIVSTChunks    bool

	MaxParameters    int
	OSCUITimeoutMS   int
	PreferredBuffer  uint32
	PreferredSampleRate float64

	Bridges BridgeBinaryPaths
}

// DefaultOptions returns spec.md §4.7's documented defaults: max
// parameters 200, OSC-UI timeout 4000ms, preferred buffer size 512,
// preferred sample rate 44100.
func DefaultOptions() Options {
	return Options{
		ProcessMode:         ProcessModeContinuousRack,
		MaxParameters:       200,
		OSCUITimeoutMS:      4000,
		PreferredBuffer:     512,
		PreferredSampleRate: 44100,
	}
}

// FlagSet builds a pflag.FlagSet bound to o's fields, matching the flag
// style doismellburning/samoyed uses for its own daemon
// (spf13/pflag-based config), for cmd/carla-headless's entry point.
func (o *Options) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("carla-headless", pflag.ContinueOnError)
	fs.BoolVar(&o.ForceStereo, "force-stereo", o.ForceStereo, "instantiate mono plugins in forced-stereo mode")
	fs.BoolVar(&o.PreferPluginBridges, "prefer-plugin-bridges", o.PreferPluginBridges, "prefer out-of-process bridges for plugins")
	fs.BoolVar(&o.PreferUIBridges, "prefer-ui-bridges", o.PreferUIBridges, "prefer out-of-process bridges for plugin UIs")
	fs.BoolVar(&o.UseDSSIVSTChunks, "use-dssi-vst-chunks", o.UseDSSIVSTChunks, "use chunk save/restore for DSSI and VST2 when available")
	fs.IntVar(&o.MaxParameters, "max-parameters", o.MaxParameters, "maximum parameters exposed per plugin")
	fs.IntVar(&o.OSCUITimeoutMS, "osc-ui-timeout-ms", o.OSCUITimeoutMS, "OSC GUI-show timeout in milliseconds")
	fs.Uint32Var(&o.PreferredBuffer, "buffer-size", o.PreferredBuffer, "preferred buffer size in frames")
	fs.Float64Var(&o.PreferredSampleRate, "sample-rate", o.PreferredSampleRate, "preferred sample rate in Hz")
	fs.StringVar(&o.Bridges.Posix32, "bridge-posix32", o.Bridges.Posix32, "path to the POSIX 32-bit bridge binary")
	fs.StringVar(&o.Bridges.Posix64, "bridge-posix64", o.Bridges.Posix64, "path to the POSIX 64-bit bridge binary")
	fs.StringVar(&o.Bridges.Win32, "bridge-win32", o.Bridges.Win32, "path to the Windows 32-bit bridge binary")
	fs.StringVar(&o.Bridges.Win64, "bridge-win64", o.Bridges.Win64, "path to the Windows 64-bit bridge binary")
	fs.StringVar(&o.Bridges.LV2, "bridge-lv2", o.Bridges.LV2, "path to the LV2 UI bridge binary")
	fs.StringVar(&o.Bridges.VST2, "bridge-vst2", o.Bridges.VST2, "path to the VST2 UI bridge binary")
	fs.StringVar(&o.Bridges.Sf2, "bridge-sf2", o.Bridges.Sf2, "path to the SF2 UI bridge binary")
	return fs
}
