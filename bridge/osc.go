package bridge

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// Server listens for the bridge child's OSC messages on the URL handed to
// it at spawn time and decodes them into Messages pushed onto a Process.
//
// Grounded on hypebeast/go-osc's osc.Server (already the pack's OSC
// dependency, used the same way the planned engine-side dispatcher uses
// it) with a dispatch table keyed by the trailing path segment, mirroring
// the "/<engineName>/<pluginId>/<method>" shape spec.md §6 describes for
// the host-facing OSC surface; the bridge's own messages use a flatter
// "/bridge_<method>" convention since there is exactly one plugin per
// bridge connection.
type Server struct {
	addr   string
	server *osc.Server
	conn   net.PacketConn
	proc   *Process
}

// NewServer binds a UDP listener on addr. Attach must be called with the
// Process the listener should feed before Serve starts decoding, since
// the Process a bridge connection pushes into is only known once
// Spawn has returned the spawned child's handle.
func NewServer(addr string) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen %s: %w", addr, err)
	}

	d := osc.NewStandardDispatcher()
	s := &Server{addr: conn.LocalAddr().String(), conn: conn}

	for method, infoType := range bridgeMethods {
		it := infoType
		_ = d.AddMsgHandler("/bridge_"+method, func(msg *osc.Message) {
			if s.proc != nil {
				s.proc.Push(decodeMessage(it, msg))
			}
		})
	}

	s.server = &osc.Server{Dispatcher: d}
	return s, nil
}

// Attach wires proc as the sink every decoded message is pushed onto.
func (s *Server) Attach(proc *Process) { s.proc = proc }

// URL returns the host OSC address the spawned child should be told to
// report back to, the "oscUrl" of spec.md §4.6's spawn arguments.
func (s *Server) URL() string { return "osc.udp://" + s.addr + "/" }

// Serve blocks, decoding incoming datagrams until the connection closes.
func (s *Server) Serve() error {
	return s.server.Serve(s.conn)
}

// Close stops the listener.
func (s *Server) Close() error {
	return s.conn.Close()
}

// bridgeMethods maps the OSC method name a bridge child sends to the
// decoded InfoType, covering every message spec.md §6 lists.
var bridgeMethods = map[string]InfoType{
	"audio_count":         InfoAudioCount,
	"midi_count":          InfoMidiCount,
	"parameter_count":     InfoParameterCount,
	"program_count":       InfoProgramCount,
	"midi_program_count":  InfoMidiProgramCount,
	"plugin_info":         InfoPluginInfo,
	"parameter_info":      InfoParameterInfo,
	"parameter_data":      InfoParameterData,
	"parameter_ranges":    InfoParameterRanges,
	"program_info":        InfoProgramInfo,
	"midi_program_info":   InfoMidiProgramInfo,
	"configure":           InfoConfigure,
	"set_parameter_value": InfoSetParameterValue,
	"set_default_value":   InfoSetDefaultValue,
	"set_program":         InfoSetProgram,
	"set_midi_program":    InfoSetMidiProgram,
	"set_custom_data":     InfoSetCustomData,
	"set_chunk_data":      InfoSetChunkData,
	"update":              InfoUpdateNow,
	"error":               InfoError,
}

// decodeMessage splits an OSC message's typed arguments into the
// Ints/Strings/Floats buckets of Message, preserving argument order
// within each bucket.
func decodeMessage(t InfoType, msg *osc.Message) Message {
	out := Message{Type: t}
	for _, arg := range msg.Arguments {
		switch v := arg.(type) {
		case int32:
			out.Ints = append(out.Ints, v)
		case float32:
			out.Floats = append(out.Floats, float64(v))
		case float64:
			out.Floats = append(out.Floats, v)
		case string:
			out.Strings = append(out.Strings, v)
		case bool:
			if v {
				out.Ints = append(out.Ints, 1)
			} else {
				out.Ints = append(out.Ints, 0)
			}
		}
	}
	return out
}

// ParsePluginPath splits the host-facing "/<engineName>/<pluginId>/<method>"
// path shape spec.md §6 names, returning an error for a malformed path or
// a non-numeric or negative pluginId. The upper bound is checked by the
// caller against the engine's actual slot count.
func ParsePluginPath(path string) (engineName string, pluginID int, method string, err error) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 3 {
		return "", 0, "", fmt.Errorf("bridge: malformed OSC path %q", path)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", fmt.Errorf("bridge: non-numeric plugin id in %q: %w", path, err)
	}
	if id < 0 {
		return "", 0, "", fmt.Errorf("bridge: negative plugin id in %q", path)
	}
	return parts[0], id, parts[2], nil
}
