package plugin

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	br "github.com/carla-audio/carla-go/bridge"
	"github.com/carla-audio/carla-go/internal/port"
	"github.com/carla-audio/carla-go/param"
)

// BridgePlugin adapts an out-of-process child onto the Plugin contract,
// spec.md §4.6 and §9's "Dynamic dispatch across process boundary": "the
// host side treats the bridge as a plugin object whose setters marshal
// into IPC and whose process call is implemented over the audio
// shared-memory ring. Format parity: bridge variants exist for every
// native format; the host does not need to know which format the child
// is running."
//
// Grounded the same way bridge.Process itself is (other_examples'
// rshade-finfocus ProcessLauncher for the spawn/timeout shape) with the
// state-shadow idea mirrored from shaban/macaudio's BaseChannel: here the
// "shadow" is PluginBase's own parameter/program/custom-data tables, kept
// in sync by messages decoded off bridge.Process.Messages().
type BridgePlugin struct {
	*PluginBase

	binaryType br.BinaryType
	execPath   string

	mu     sync.Mutex
	proc   *br.Process
	server *br.Server
	ring   *br.AudioRing
	ctrl   *br.ControlRing
	shmDir string
	cancel context.CancelFunc
	pumpWG sync.WaitGroup
}

// NewBridgePlugin constructs a Bridge adapter over an already-configured
// PluginBase. execPath is the bridge executable (a per-format helper
// binary); binaryType selects which ABI flavor it was built for.
func NewBridgePlugin(base *PluginBase, execPath string, binaryType br.BinaryType) *BridgePlugin {
	base.hints |= HintIsRtSafe
	return &BridgePlugin{PluginBase: base, execPath: execPath, binaryType: binaryType}
}

// Init spawns the child, binds the host-side OSC listener, and blocks for
// the ~10 second announce handshake spec.md §4.6 describes: "spawns the
// child with arguments {oscUrl, binaryType, filename, name, label}, then
// polls for up to ~10 seconds for either an update announcing success or
// an error announcing failure. Timeout is fatal."
func (p *BridgePlugin) Init(filename, name, label string, extra map[string]string) error {
	p.shmDir = extra["shmDir"]
	if p.shmDir == "" {
		p.shmDir = os.TempDir()
	}

	server, err := br.NewServer("127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	ring, err := br.NewAudioRing(p.shmDir, p.bufferSize, 2)
	if err != nil {
		server.Close()
		return fmt.Errorf("bridge: %w", err)
	}
	ctrl, err := br.NewControlRing(p.shmDir, 256)
	if err != nil {
		ring.Close()
		server.Close()
		return fmt.Errorf("bridge: %w", err)
	}

	path := filename
	if br.IsWindowsBinaryType(p.binaryType) {
		path = br.RewriteWinePath(br.DefaultWineDrive, filename)
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := br.Spawn(ctx, p.execPath, p.binaryType, server.URL(), path, name, label, ring.Path(), ctrl.Path())
	if err != nil {
		cancel()
		ctrl.Close()
		ring.Close()
		server.Close()
		return err
	}
	server.Attach(proc)
	proc.AttachControlRing(ctrl)

	p.mu.Lock()
	p.proc = proc
	p.server = server
	p.ring = ring
	p.ctrl = ctrl
	p.cancel = cancel
	p.mu.Unlock()

	p.pumpWG.Add(1)
	go func() {
		defer p.pumpWG.Done()
		_ = server.Serve()
	}()

	announceCtx, announceCancel := context.WithTimeout(ctx, 10*time.Second)
	defer announceCancel()
	if err := proc.WaitAnnounce(announceCtx); err != nil {
		p.Unload()
		return err
	}

	p.filename = filename
	p.name = name
	p.label = label

	p.pumpWG.Add(1)
	go p.pump()

	return nil
}

// pump drains decoded bridge messages and folds them into the shadow
// state (parameter/program/custom-data tables) for as long as the child
// is alive.
func (p *BridgePlugin) pump() {
	defer p.pumpWG.Done()
	p.mu.Lock()
	proc := p.proc
	p.mu.Unlock()
	if proc == nil {
		return
	}
	for {
		select {
		case msg := <-proc.Messages():
			p.applyMessage(msg)
		case <-proc.Done():
			return
		}
	}
}

func (p *BridgePlugin) applyMessage(msg br.Message) {
	switch msg.Type {
	case br.InfoParameterCount:
		if len(msg.Ints) > 0 {
			p.params = param.NewTable()
		}
	case br.InfoParameterData:
		if len(msg.Ints) >= 1 && len(msg.Floats) >= 1 {
			idx := msg.Ints[0]
			p.params.SetValue(idx, msg.Floats[0])
		}
	case br.InfoProgramInfo:
		if len(msg.Ints) >= 1 {
			_ = p.progs.Select(msg.Ints[0])
		}
	case br.InfoSetCustomData:
		if len(msg.Strings) >= 3 {
			p.custom.Set(msg.Strings[0], msg.Strings[1], msg.Strings[2])
		}
	case br.InfoUpdateNow, br.InfoError:
		// Handled synchronously by WaitAnnounce/SaveNow; nothing further
		// to fold into shadow state here.
	}
}

// Reload is a no-op: the child's own reload happens across the process
// boundary during Init's handshake, and the parameter table is populated
// incrementally by applyMessage as ParameterData/ParameterInfo messages
// arrive.
func (p *BridgePlugin) Reload() error { return nil }

// Process writes the block to the host->child audio ring and reads the
// rendered block back, spec.md §4.6 "whose process call is implemented
// over the audio shared-memory ring." The shared rack event ports are
// unused here: host commands reach the child over the control ring
// (send), and the child's replies come back through applyMessage, not
// through the engine's event ports.
func (p *BridgePlugin) Process(inputs, outputs [][]float32, eventIn, eventOut *port.EventPort, frames uint32, offset uint32) {
	p.mu.Lock()
	ring := p.ring
	p.mu.Unlock()
	if ring == nil || !p.Enabled() {
		return
	}
	for i := uint32(0); i < frames; i++ {
		block := make([]float32, len(inputs))
		for ch, buf := range inputs {
			if int(offset+i) < len(buf) {
				block[ch] = buf[offset+i]
			}
		}
		if !ring.WriteBlock(block) {
			break
		}
		out := make([]float32, len(outputs))
		if ring.ReadBlock(out) {
			for ch, buf := range outputs {
				if int(offset+i) < len(buf) && ch < len(out) {
					buf[offset+i] = out[ch]
				}
			}
		}
	}
}

// send forwards msg to the child over the control ring, logging nothing
// itself; callers decide whether a send failure is fatal to the calling
// operation.
func (p *BridgePlugin) send(msg br.Message) error {
	p.mu.Lock()
	proc := p.proc
	p.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("bridge: not connected")
	}
	return proc.Send(msg)
}

// SetCustomData marshals into the bridge's set_custom_data message
// instead of writing the shadow table directly; the shadow updates when
// the child echoes it back (applyMessage), keeping host and child in
// sync the way spec.md §9 asks of the state-shadow model.
func (p *BridgePlugin) SetCustomData(typeURI, key, value string) error {
	return p.send(br.Message{Type: br.InfoSetCustomData, Strings: []string{typeURI, key, value}})
}

// SetParameterValue updates the shadow table optimistically (so OSC/
// callback notification and the return value are immediate) and forwards
// the same value to the child; a later echoed InfoParameterData message
// (applyMessage) reconciles the shadow if the child clamped differently.
func (p *BridgePlugin) SetParameterValue(index int32, value float64, sendOsc, sendCallback bool) float64 {
	stored := p.PluginBase.SetParameterValue(index, value, sendOsc, sendCallback)
	_ = p.send(br.Message{Type: br.InfoSetParameterValue, Ints: []int32{index}, Floats: []float64{stored}})
	return stored
}

// SetProgram mirrors SetParameterValue's optimistic-shadow-plus-forward
// shape for program changes.
func (p *BridgePlugin) SetProgram(index int32, sendOsc, sendCallback bool) error {
	if err := p.PluginBase.SetProgram(index, sendOsc, sendCallback); err != nil {
		return err
	}
	return p.send(br.Message{Type: br.InfoSetProgram, Ints: []int32{index}})
}

// SetMidiProgram mirrors SetProgram for MIDI-program changes.
func (p *BridgePlugin) SetMidiProgram(index int32, sendOsc, sendCallback bool) error {
	if err := p.PluginBase.SetMidiProgram(index, sendOsc, sendCallback); err != nil {
		return err
	}
	return p.send(br.Message{Type: br.InfoSetMidiProgram, Ints: []int32{index}})
}

// SaveChunk asks the child to save and spills the result to a temp file
// path it reports back, per spec.md §4.6's save protocol and the
// custom-data chunk spill-to-tempfile convention.
func (p *BridgePlugin) SaveChunk() ([]byte, bool) {
	p.mu.Lock()
	proc := p.proc
	p.mu.Unlock()
	if proc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	path, err := proc.SaveNow(ctx, func() error {
		return proc.Send(br.Message{Type: br.InfoConfigure, Strings: []string{"save-now"}})
	})
	if err != nil {
		return nil, false
	}
	data, err := br.ReadCustomDataChunk(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (p *BridgePlugin) RestoreChunk(data []byte) bool {
	p.mu.Lock()
	proc := p.proc
	dir := p.shmDir
	p.mu.Unlock()
	if proc == nil {
		return false
	}
	path, err := br.SpillCustomDataChunk(dir, data)
	if err != nil {
		return false
	}
	return proc.Send(br.Message{Type: br.InfoSetChunkData, Strings: []string{path}}) == nil
}

// ForwardBridgeOSC relays a raw "bridge_<method>" OSC message the engine's
// dispatcher received on a "/<engineName>/<pluginId>/bridge_..." path
// straight to the child over the control ring, spec.md §4.9 "bridge_-
// prefixed methods forward to the bridge adapter." args are whatever the
// OSC message carried, split the same way bridge.decodeMessage buckets
// them, letting callers reuse that decoding without importing osc types
// here.
func (p *BridgePlugin) ForwardBridgeOSC(method string, ints []int32, floats []float64, strings []string) error {
	return p.send(br.Message{Type: br.InfoConfigure, Ints: ints, Floats: floats, Strings: append([]string{method}, strings...)})
}

// Unload kills the child and tears down the OSC listener, audio ring, and
// control ring.
func (p *BridgePlugin) Unload() {
	p.Deactivate()
	p.mu.Lock()
	proc := p.proc
	server := p.server
	ring := p.ring
	ctrl := p.ctrl
	cancel := p.cancel
	p.mu.Unlock()

	if proc != nil {
		proc.Kill()
	}
	if cancel != nil {
		cancel()
	}
	if server != nil {
		server.Close()
	}
	if ring != nil {
		ring.Close()
	}
	if ctrl != nil {
		ctrl.Close()
	}
	p.pumpWG.Wait()
}
