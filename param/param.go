// Package param implements the per-plugin state surfaces of spec.md §3:
// the Parameter, Program, MidiProgram, and CustomData tables.
//
// Grounded on shaban/macaudio's plugins.Parameter struct (DisplayName,
// Identifier, Min/Max/Default/Current, Unit, IsWritable, CanRamp) —
// generalized into the spec's ParameterData/ParameterRanges split plus the
// hints bitset spec.md §6 defines.
package param

import "fmt"

// Hints is the stable parameter hints bitset (spec.md §6).
type Hints uint32

const (
	HintBoolean         Hints = 0x01
	HintInteger         Hints = 0x02
	HintLogarithmic     Hints = 0x04
	HintEnabled         Hints = 0x08
	HintAutomable       Hints = 0x10
	HintUsesSampleRate  Hints = 0x20
	HintUsesScalePoints Hints = 0x40
	HintUsesCustomText  Hints = 0x80
)

// Type distinguishes Parameter roles, spec.md §3.
type Type uint8

const (
	TypeInput Type = iota
	TypeOutput
	TypeLatency
	TypeSampleRate
	TypeFreewheel
	TypeTime
)

// Internal parameter ids, spec.md §6 — negative, never exposed in a
// plugin's own parameter table.
const (
	IDActive       int32 = -2
	IDDryWet       int32 = -3
	IDVolume       int32 = -4
	IDBalanceLeft  int32 = -5
	IDBalanceRight int32 = -6
	IDPanning      int32 = -7
)

// Data is the per-parameter control-plane record (spec.md §3 ParameterData).
type Data struct {
	Type       Type
	Index      int32
	RIndex     int32 // native port index
	Hints      Hints
	MidiChannel uint8 // 0..15
	MidiCC      int8  // -1..95
}

// Ranges is the per-parameter value range record (spec.md §3 ParameterRanges).
type Ranges struct {
	Def        float64
	Min        float64
	Max        float64
	Step       float64
	StepSmall  float64
	StepLarge  float64
}

// FixRange repairs a broken range where Max-Min==0 by bumping Max by 0.1,
// then clamps Def into [Min, Max]. This preserves the source behavior
// flagged in spec.md §9 Open Questions rather than rejecting the plugin.
func (r *Ranges) FixRange() {
	if r.Max-r.Min == 0 {
		r.Max += 0.1
	}
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	if r.Def < r.Min {
		r.Def = r.Min
	}
	if r.Def > r.Max {
		r.Def = r.Max
	}
}

// Clamp restricts v to [Min, Max].
func (r Ranges) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Normalize maps v in [Min, Max] to [0, 1]. Used for control-output events
// (spec.md §4.4 step 8).
func (r Ranges) Normalize(v float64) float64 {
	span := r.Max - r.Min
	if span == 0 {
		return 0
	}
	return (v - r.Min) / span
}

// Denormalize maps a normalised [0, 1] value back into [Min, Max].
func (r Ranges) Denormalize(v float64) float64 {
	return r.Min + v*(r.Max-r.Min)
}

// ApplyHints snaps v according to Boolean/Integer hints (spec.md §4.4
// step 2: "Boolean -> snap to min/max at 0.5; Integer -> round").
func ApplyHints(v float64, r Ranges, h Hints) float64 {
	switch {
	case h&HintBoolean != 0:
		mid := (r.Min + r.Max) / 2
		if v >= mid {
			return r.Max
		}
		return r.Min
	case h&HintInteger != 0:
		if v < 0 {
			return -float64(int64(-v + 0.5))
		}
		return float64(int64(v + 0.5))
	default:
		return v
	}
}

// Table is the parameter table of spec.md §3: parallel Data/Ranges arrays
// plus the current value per parameter.
type Table struct {
	data    []Data
	ranges  []Ranges
	values  []float64
	scalePoints [][]ScalePoint
}

// ScalePoint is a named discrete value a parameter may display (GLOSSARY).
type ScalePoint struct {
	Label string
	Value float64
}

// NewTable creates an empty parameter table.
func NewTable() *Table {
	return &Table{}
}

// Add appends a parameter, repairing its range and clamping its initial
// value. Returns the new parameter's index.
func (t *Table) Add(d Data, r Ranges, initial float64) int32 {
	r.FixRange()
	d.Index = int32(len(t.data))
	t.data = append(t.data, d)
	t.ranges = append(t.ranges, r)
	t.values = append(t.values, r.Clamp(initial))
	t.scalePoints = append(t.scalePoints, nil)
	return d.Index
}

// Count returns the number of parameters.
func (t *Table) Count() int { return len(t.data) }

// Data returns the ParameterData at index i.
func (t *Table) Data(i int32) Data { return t.data[i] }

// Ranges returns the ParameterRanges at index i.
func (t *Table) Ranges(i int32) Ranges { return t.ranges[i] }

// Value returns the current value at index i.
func (t *Table) Value(i int32) float64 { return t.values[i] }

// SetValue clamps v into the parameter's range and stores it. Returns the
// clamped value actually stored (spec.md §8 round-trip law: "Setting
// parameter p to v then reading getParameterValue(p) returns
// clamp(v, min, max) after range fixing").
func (t *Table) SetValue(i int32, v float64) float64 {
	r := t.ranges[i]
	v = ApplyHints(v, r, t.data[i].Hints)
	v = r.Clamp(v)
	t.values[i] = v
	return v
}

// SetMidiCC rebinds a parameter's MIDI-CC control binding in place.
// Data is returned by value from Data(i), so this mutator (mirroring
// SetValue's direct t.ranges[i]/t.values[i] indexing) is the only way to
// make a rebind stick.
func (t *Table) SetMidiCC(i int32, cc int8, channel uint8) {
	t.data[i].MidiCC = cc
	t.data[i].MidiChannel = channel
}

// SetScalePoints attaches named display values to a parameter and sets the
// UsesScalePoints hint.
func (t *Table) SetScalePoints(i int32, points []ScalePoint) {
	t.scalePoints[i] = points
	t.data[i].Hints |= HintUsesScalePoints
}

// ScalePoints returns the scale points attached to a parameter, if any.
func (t *Table) ScalePoints(i int32) []ScalePoint { return t.scalePoints[i] }

// FindByMidiCC returns the index of the first Input parameter bound to the
// given channel+CC pair, or -1 if none match (spec.md §4.4 step 2 CC
// binding lookup).
func (t *Table) FindByMidiCC(channel uint8, cc int8) int32 {
	for i := range t.data {
		d := &t.data[i]
		if d.Type == TypeInput && d.MidiChannel == channel && d.MidiCC == cc {
			return int32(i)
		}
	}
	return -1
}

// Outputs returns the indices of all Output-typed parameters, used by the
// control-output broadcast of spec.md §4.4 step 8 and the idle-thread
// broadcast of §4.8.
func (t *Table) Outputs() []int32 {
	var out []int32
	for i := range t.data {
		if t.data[i].Type == TypeOutput {
			out = append(out, int32(i))
		}
	}
	return out
}

// Validate checks the invariant min <= def <= max and min < max for every
// parameter (spec.md §8 quantified invariant), returning the first
// violation found.
func (t *Table) Validate() error {
	for i, r := range t.ranges {
		if r.Min >= r.Max {
			return fmt.Errorf("parameter %d: min %.6f >= max %.6f", i, r.Min, r.Max)
		}
		if r.Def < r.Min || r.Def > r.Max {
			return fmt.Errorf("parameter %d: default %.6f out of range [%.6f, %.6f]", i, r.Def, r.Min, r.Max)
		}
	}
	return nil
}
