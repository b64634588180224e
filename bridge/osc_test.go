package bridge

import (
	"testing"

	"github.com/hypebeast/go-osc/osc"
)

func TestParsePluginPath(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantEngine string
		wantID     int
		wantMethod string
		wantErr    bool
	}{
		{
			name:       "well-formed path",
			path:       "/carla-headless/3/set_volume",
			wantEngine: "carla-headless",
			wantID:     3,
			wantMethod: "set_volume",
		},
		{
			name:       "plugin id zero",
			path:       "/carla-headless/0/set_active",
			wantEngine: "carla-headless",
			wantID:     0,
			wantMethod: "set_active",
		},
		{
			name:    "too few segments",
			path:    "/carla-headless/3",
			wantErr: true,
		},
		{
			name:    "too many segments",
			path:    "/carla-headless/3/set_volume/extra",
			wantErr: true,
		},
		{
			name:    "non-numeric plugin id",
			path:    "/carla-headless/abc/set_volume",
			wantErr: true,
		},
		{
			name:    "negative plugin id",
			path:    "/carla-headless/-1/set_volume",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engineName, id, method, err := ParsePluginPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePluginPath(%q) = nil error, want an error", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePluginPath(%q): %v", tt.path, err)
			}
			if engineName != tt.wantEngine || id != tt.wantID || method != tt.wantMethod {
				t.Errorf("ParsePluginPath(%q) = %q, %d, %q; want %q, %d, %q",
					tt.path, engineName, id, method, tt.wantEngine, tt.wantID, tt.wantMethod)
			}
		})
	}
}

func TestDecodeMessageBucketsArgumentsByType(t *testing.T) {
	msg := osc.NewMessage("/bridge_parameter_data")
	msg.Append(int32(2))
	msg.Append(float32(0.5))
	msg.Append("a string")
	msg.Append(true)
	msg.Append(false)
	msg.Append(float64(1.25))

	got := decodeMessage(InfoParameterData, msg)

	if got.Type != InfoParameterData {
		t.Errorf("Type = %v, want InfoParameterData", got.Type)
	}
	wantInts := []int32{2, 1, 0}
	if len(got.Ints) != len(wantInts) {
		t.Fatalf("Ints = %v, want %v", got.Ints, wantInts)
	}
	for i, v := range wantInts {
		if got.Ints[i] != v {
			t.Errorf("Ints[%d] = %d, want %d", i, got.Ints[i], v)
		}
	}
	wantFloats := []float64{0.5, 1.25}
	if len(got.Floats) != len(wantFloats) {
		t.Fatalf("Floats = %v, want %v", got.Floats, wantFloats)
	}
	for i, v := range wantFloats {
		if got.Floats[i] != v {
			t.Errorf("Floats[%d] = %v, want %v", i, got.Floats[i], v)
		}
	}
	if len(got.Strings) != 1 || got.Strings[0] != "a string" {
		t.Errorf("Strings = %v, want [%q]", got.Strings, "a string")
	}
}
