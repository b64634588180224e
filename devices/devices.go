// Package devices adapts the teacher's CoreAudio device-capability model
// into a platform-independent negotiation stub a Driver implementation
// can use to pick a buffer size and sample rate, per SPEC_FULL.md's
// module layout ("devices/ (kept from teacher) adapted into Driver-facing
// buffer/sample-rate negotiation stub").
//
// Grounded on shaban/macaudio's devices/devices.go AudioDevice/
// AudioDevices shape (Device embedding, CanInput/CanOutput,
// CommonSampleRates/CommonBitDepths, Inputs/Outputs filters); the cgo
// AVFoundation/CoreAudio enumeration itself (native/devices.m,
// getAudioDevices/getMIDIDevices) is dropped since it cannot enumerate
// anything relevant to a LADSPA/DSSI/LV2/VST2/bridge host — only the
// capability-struct and set-intersection helpers are kept, generalized
// from a macOS-only enumeration result to whatever a Driver reports about
// its own hardware.
package devices

// Device is the common identity every capability record carries,
// mirroring the teacher's base Device struct without the JSON/UID fields
// that only made sense against CoreAudio's AudioObjectID/UID model.
type Device struct {
	Name     string
	IsOnline bool
}

// AudioDevice describes one audio endpoint's negotiable capabilities: the
// buffer sizes and sample rates it will accept, used by engine.Options'
// PreferredBuffer/PreferredSampleRate to pick a value the hardware (or a
// synthetic test driver reporting its own constraints) actually supports.
type AudioDevice struct {
	Device

	InputChannelCount  int
	OutputChannelCount int

	SupportedBufferSizes []uint32
	SupportedSampleRates []float64
}

func (a AudioDevice) CanInput() bool  { return a.InputChannelCount > 0 }
func (a AudioDevice) CanOutput() bool { return a.OutputChannelCount > 0 }

func (a AudioDevice) IsInputOutput() bool { return a.CanInput() && a.CanOutput() }
func (a AudioDevice) IsInputOnly() bool   { return a.CanInput() && !a.CanOutput() }
func (a AudioDevice) IsOutputOnly() bool  { return a.CanOutput() && !a.CanInput() }

// CommonSampleRates returns the sample rates both a and other support,
// preserving a's ordering.
func (a AudioDevice) CommonSampleRates(other AudioDevice) []float64 {
	if len(a.SupportedSampleRates) == 0 || len(other.SupportedSampleRates) == 0 {
		return nil
	}
	otherRates := make(map[float64]bool, len(other.SupportedSampleRates))
	for _, r := range other.SupportedSampleRates {
		otherRates[r] = true
	}
	var common []float64
	for _, r := range a.SupportedSampleRates {
		if otherRates[r] {
			common = append(common, r)
		}
	}
	return common
}

// CommonBufferSizes returns the buffer sizes both a and other support,
// preserving a's ordering.
func (a AudioDevice) CommonBufferSizes(other AudioDevice) []uint32 {
	if len(a.SupportedBufferSizes) == 0 || len(other.SupportedBufferSizes) == 0 {
		return nil
	}
	otherSizes := make(map[uint32]bool, len(other.SupportedBufferSizes))
	for _, s := range other.SupportedBufferSizes {
		otherSizes[s] = true
	}
	var common []uint32
	for _, s := range a.SupportedBufferSizes {
		if otherSizes[s] {
			common = append(common, s)
		}
	}
	return common
}

// AudioDevices is a capability set with the teacher's filter helpers.
type AudioDevices []AudioDevice

func (devices AudioDevices) Inputs() AudioDevices {
	var out AudioDevices
	for _, d := range devices {
		if d.CanInput() {
			out = append(out, d)
		}
	}
	return out
}

func (devices AudioDevices) Outputs() AudioDevices {
	var out AudioDevices
	for _, d := range devices {
		if d.CanOutput() {
			out = append(out, d)
		}
	}
	return out
}

func (devices AudioDevices) InputOutput() AudioDevices {
	var out AudioDevices
	for _, d := range devices {
		if d.IsInputOutput() {
			out = append(out, d)
		}
	}
	return out
}

// NegotiateBufferSize picks preferred if dev supports it, else the
// largest supported size not exceeding preferred, else the smallest
// supported size. Used by a Driver's Start to settle on a buffer size
// before reporting BufferSize() to the engine.
func NegotiateBufferSize(dev AudioDevice, preferred uint32) uint32 {
	if len(dev.SupportedBufferSizes) == 0 {
		return preferred
	}
	smallest := dev.SupportedBufferSizes[0]
	var best uint32
	found := false
	for _, s := range dev.SupportedBufferSizes {
		if s == preferred {
			return s
		}
		if s < smallest {
			smallest = s
		}
		if s <= preferred && (!found || s > best) {
			best, found = s, true
		}
	}
	if found {
		return best
	}
	return smallest
}

// NegotiateSampleRate picks preferred if dev supports it, else the
// closest supported rate.
func NegotiateSampleRate(dev AudioDevice, preferred float64) float64 {
	if len(dev.SupportedSampleRates) == 0 {
		return preferred
	}
	best := dev.SupportedSampleRates[0]
	bestDiff := abs(best - preferred)
	for _, r := range dev.SupportedSampleRates {
		if d := abs(r - preferred); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
