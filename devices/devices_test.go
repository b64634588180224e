package devices

import (
	"reflect"
	"testing"
)

func TestCommonSampleRates(t *testing.T) {
	tests := []struct {
		name string
		a, b AudioDevice
		want []float64
	}{
		{
			name: "overlap preserves a's order",
			a:    AudioDevice{SupportedSampleRates: []float64{48000, 44100, 96000}},
			b:    AudioDevice{SupportedSampleRates: []float64{44100, 96000}},
			want: []float64{44100, 96000},
		},
		{
			name: "no overlap",
			a:    AudioDevice{SupportedSampleRates: []float64{48000}},
			b:    AudioDevice{SupportedSampleRates: []float64{44100}},
			want: nil,
		},
		{
			name: "empty side yields nil",
			a:    AudioDevice{SupportedSampleRates: []float64{48000}},
			b:    AudioDevice{},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.CommonSampleRates(tt.b)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CommonSampleRates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommonBufferSizes(t *testing.T) {
	a := AudioDevice{SupportedBufferSizes: []uint32{64, 128, 256, 512}}
	b := AudioDevice{SupportedBufferSizes: []uint32{128, 512, 1024}}
	got := a.CommonBufferSizes(b)
	want := []uint32{128, 512}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CommonBufferSizes() = %v, want %v", got, want)
	}
}

func TestNegotiateBufferSize(t *testing.T) {
	tests := []struct {
		name      string
		dev       AudioDevice
		preferred uint32
		want      uint32
	}{
		{
			name:      "exact match",
			dev:       AudioDevice{SupportedBufferSizes: []uint32{64, 128, 256}},
			preferred: 128,
			want:      128,
		},
		{
			name:      "no exact match picks largest not exceeding preferred",
			dev:       AudioDevice{SupportedBufferSizes: []uint32{64, 128, 512}},
			preferred: 256,
			want:      128,
		},
		{
			name:      "preferred below every supported size falls back to smallest",
			dev:       AudioDevice{SupportedBufferSizes: []uint32{256, 512, 1024}},
			preferred: 32,
			want:      256,
		},
		{
			name:      "no supported sizes returns preferred unchanged",
			dev:       AudioDevice{},
			preferred: 256,
			want:      256,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NegotiateBufferSize(tt.dev, tt.preferred); got != tt.want {
				t.Errorf("NegotiateBufferSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNegotiateSampleRate(t *testing.T) {
	tests := []struct {
		name      string
		dev       AudioDevice
		preferred float64
		want      float64
	}{
		{
			name:      "exact match",
			dev:       AudioDevice{SupportedSampleRates: []float64{44100, 48000, 96000}},
			preferred: 48000,
			want:      48000,
		},
		{
			name:      "closest rate wins",
			dev:       AudioDevice{SupportedSampleRates: []float64{44100, 96000}},
			preferred: 50000,
			want:      44100,
		},
		{
			name:      "no supported rates returns preferred unchanged",
			dev:       AudioDevice{},
			preferred: 48000,
			want:      48000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NegotiateSampleRate(tt.dev, tt.preferred); got != tt.want {
				t.Errorf("NegotiateSampleRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudioDeviceClassification(t *testing.T) {
	inOut := AudioDevice{InputChannelCount: 2, OutputChannelCount: 2}
	inOnly := AudioDevice{InputChannelCount: 2}
	outOnly := AudioDevice{OutputChannelCount: 2}
	none := AudioDevice{}

	if !inOut.IsInputOutput() || inOut.IsInputOnly() || inOut.IsOutputOnly() {
		t.Errorf("in/out device misclassified: %+v", inOut)
	}
	if !inOnly.IsInputOnly() || inOnly.IsInputOutput() {
		t.Errorf("input-only device misclassified: %+v", inOnly)
	}
	if !outOnly.IsOutputOnly() || outOnly.IsInputOutput() {
		t.Errorf("output-only device misclassified: %+v", outOnly)
	}
	if none.CanInput() || none.CanOutput() {
		t.Errorf("silent device misclassified: %+v", none)
	}
}

func TestAudioDevicesFilters(t *testing.T) {
	set := AudioDevices{
		{Device: Device{Name: "in"}, InputChannelCount: 2},
		{Device: Device{Name: "out"}, OutputChannelCount: 2},
		{Device: Device{Name: "both"}, InputChannelCount: 2, OutputChannelCount: 2},
	}

	if got := set.Inputs(); len(got) != 2 {
		t.Errorf("Inputs() = %d devices, want 2", len(got))
	}
	if got := set.Outputs(); len(got) != 2 {
		t.Errorf("Outputs() = %d devices, want 2", len(got))
	}
	if got := set.InputOutput(); len(got) != 1 || got[0].Name != "both" {
		t.Errorf("InputOutput() = %v, want just %q", got, "both")
	}
}
