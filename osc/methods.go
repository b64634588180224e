package osc

import (
	"fmt"

	"github.com/carla-audio/carla-go/plugin"
)

// argKind tags one expected OSC argument type for signature validation,
// spec.md §4.9's "routes through a static per-method table validating
// OSC type signature (e.g. 'if' for set-parameter-value, 'iii' for
// note-on, 'm' for raw MIDI blob)."
type argKind uint8

const (
	argInt argKind = iota
	argFloat
	argString
	argBool
	argMidi
)

func (k argKind) String() string {
	switch k {
	case argInt:
		return "i"
	case argFloat:
		return "f"
	case argString:
		return "s"
	case argBool:
		return "T/F"
	case argMidi:
		return "m"
	default:
		return "?"
	}
}

// signature is the ordered list of argument kinds a method expects.
type signature []argKind

func (sig signature) matches(args []interface{}) bool {
	if len(args) != len(sig) {
		return false
	}
	for i, want := range sig {
		switch want {
		case argInt:
			if _, ok := args[i].(int32); !ok {
				return false
			}
		case argFloat:
			switch args[i].(type) {
			case float32, float64:
			default:
				return false
			}
		case argString:
			if _, ok := args[i].(string); !ok {
				return false
			}
		case argBool:
			if _, ok := args[i].(bool); !ok {
				return false
			}
		case argMidi:
			if _, ok := args[i].([]byte); !ok {
				return false
			}
		}
	}
	return true
}

func argI(args []interface{}, i int) int32 { return args[i].(int32) }
func argF(args []interface{}, i int) float64 {
	switch v := args[i].(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}
func argS(args []interface{}, i int) string { return args[i].(string) }
func argB(args []interface{}, i int) bool   { return args[i].(bool) }

// method is one entry of the static dispatch table: the argument
// signature it validates before fn ever touches plugin state.
type method struct {
	sig signature
	fn  func(p plugin.Plugin, args []interface{}) error
}

// methodTable covers the plugin-level Carla OSC method set spec.md §4.9
// names, mapped onto plugin.Plugin's setter surface. Every setter fires
// with sendOsc=false (the change already arrived over OSC, so the peer
// that sent it doesn't need an echo) and sendCallback=true (the UI/host
// callback still needs to learn about it).
var methodTable = map[string]method{
	"set_active": {
		sig: signature{argBool},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetActive(argB(args, 0), false, true)
			return nil
		},
	},
	"set_dry_wet": {
		sig: signature{argFloat},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetDryWet(argF(args, 0), false, true)
			return nil
		},
	},
	"set_volume": {
		sig: signature{argFloat},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetVolume(argF(args, 0), false, true)
			return nil
		},
	},
	"set_balance_left": {
		sig: signature{argFloat},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetBalanceLeft(argF(args, 0), false, true)
			return nil
		},
	},
	"set_balance_right": {
		sig: signature{argFloat},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetBalanceRight(argF(args, 0), false, true)
			return nil
		},
	},
	"set_parameter_value": {
		sig: signature{argInt, argFloat},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetParameterValue(argI(args, 0), argF(args, 1), false, true)
			return nil
		},
	},
	"set_parameter_midi_cc": {
		sig: signature{argInt, argInt, argInt},
		fn: func(p plugin.Plugin, args []interface{}) error {
			p.SetParameterMidiCC(argI(args, 0), int8(argI(args, 1)), uint8(argI(args, 2)))
			return nil
		},
	},
	"set_program": {
		sig: signature{argInt},
		fn: func(p plugin.Plugin, args []interface{}) error {
			return p.SetProgram(argI(args, 0), false, true)
		},
	},
	"set_midi_program": {
		sig: signature{argInt},
		fn: func(p plugin.Plugin, args []interface{}) error {
			return p.SetMidiProgram(argI(args, 0), false, true)
		},
	},
	"set_custom_data": {
		sig: signature{argString, argString, argString},
		fn: func(p plugin.Plugin, args []interface{}) error {
			return p.SetCustomData(argS(args, 0), argS(args, 1), argS(args, 2))
		},
	},
	"note_on": {
		sig: signature{argInt, argInt, argInt},
		fn: func(p plugin.Plugin, args []interface{}) error {
			ch, note, vel := argI(args, 0), argI(args, 1), argI(args, 2)
			p.InjectNote(int8(ch), uint8(note), uint8(vel), true)
			return nil
		},
	},
	"note_off": {
		sig: signature{argInt, argInt},
		fn: func(p plugin.Plugin, args []interface{}) error {
			ch, note := argI(args, 0), argI(args, 1)
			p.InjectNote(int8(ch), uint8(note), 0, false)
			return nil
		},
	},
	"show_gui": {
		sig: signature{argBool},
		fn: func(p plugin.Plugin, args []interface{}) error {
			return p.ShowGUI(argB(args, 0))
		},
	},
	"midi": {
		sig: signature{argMidi},
		fn: func(p plugin.Plugin, args []interface{}) error {
			return handleRawMidi(p, args[0].([]byte))
		},
	},
}

// handleRawMidi decodes a 3-byte note-on/note-off status+data1+data2
// message out of the "m" (raw MIDI blob) argument go-osc hands back,
// spec.md §4.9's "'m' for raw MIDI blob" convention for the combined
// note event some OSC UIs send instead of separate note_on/note_off.
func handleRawMidi(p plugin.Plugin, blob []byte) error {
	if len(blob) < 3 {
		return fmt.Errorf("osc: short midi blob (%d bytes)", len(blob))
	}
	status, data1, data2 := blob[0], blob[1], blob[2]
	channel := int8(status & 0x0f)
	switch status & 0xf0 {
	case 0x90: // note on; velocity 0 is a note-off per MIDI convention
		p.InjectNote(channel, data1, data2, data2 != 0)
	case 0x80:
		p.InjectNote(channel, data1, 0, false)
	default:
		return fmt.Errorf("osc: unsupported raw midi status 0x%02x", status)
	}
	return nil
}
