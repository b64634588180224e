// Package bridge implements the out-of-process "bridge" adapter of
// spec.md §4.6: a plugin hosted in a child process the engine spawns,
// talking back over OSC for non-RT messages and shared-memory rings for
// per-callback audio/MIDI/parameter data.
//
// Grounded on other_examples' rshade-finfocus ProcessLauncher
// (StartWithRetry, bind-timeout constants, process kill on timeout)
// adapted from its gRPC handshake to the OSC announce/update/error
// handshake spec.md §4.6 describes, and on golang.org/x/sys/unix.Mmap
// (already a pack dependency via doismellburning/samoyed) for the
// shared-memory audio ring.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/carla-audio/carla-go/internal/logging"
)

// BinaryType selects which child binary flavor to spawn, spec.md §4.6
// "selected by binary type (POSIX 32/64, Windows 32/64)".
type BinaryType uint8

const (
	BinaryPosix32 BinaryType = iota
	BinaryPosix64
	BinaryWin32
	BinaryWin64
)

// defaultTimeout is the bridge announce/save timeout, spec.md §5
// "Bridge announce, bridge save, OSC-GUI show: configurable (default
// 4000 ms)" -- this package uses a fixed 10 s instead, the ~10s window
// spec.md §4.6 separately names for announce/save polling.
const defaultTimeout = 10 * time.Second

// InfoType tags one bridge message, spec.md §6 "Bridge IPC messages.
// Compact set tagged by PluginBridgeInfoType." The same tags serve the
// host->child commands Send encodes.
type InfoType uint8

const (
	InfoAudioCount InfoType = iota
	InfoMidiCount
	InfoParameterCount
	InfoProgramCount
	InfoMidiProgramCount
	InfoPluginInfo
	InfoParameterInfo
	InfoParameterData
	InfoParameterRanges
	InfoProgramInfo
	InfoMidiProgramInfo
	InfoConfigure
	InfoSetParameterValue
	InfoSetDefaultValue
	InfoSetProgram
	InfoSetMidiProgram
	InfoSetCustomData
	InfoSetChunkData
	InfoUpdateNow
	InfoError
)

// Message is a bridge IPC message. Messages decoded from the child's OSC
// traffic travel child->host; Send reuses the same struct for host->child
// commands over the control ring.
type Message struct {
	Type InfoType

	// Populated depending on Type; unused fields are zero.
	Ints    []int32
	Strings []string
	Floats  []float64
}

// Process manages one spawned bridge child: its OS process, the queue of
// messages decoded from it (fed through Push), and the host->child
// control ring once AttachControlRing has wired it.
type Process struct {
	mu sync.Mutex

	binaryType BinaryType
	execPath   string
	oscURL     string

	cmd  *exec.Cmd
	ctrl *ControlRing

	messages chan Message
	done     chan struct{}
	killOnce sync.Once

	announced bool
	failed    error

	log *log.Logger
}

// Spawn launches the bridge executable with the protocol arguments
// spec.md §4.6 names: "{oscUrl, binaryType, filename, name, label}", plus
// the shared-memory ring paths SPEC_FULL.md's bridge adapter adds:
// audioRingPath and controlRingPath are created by the host beforehand
// (NewAudioRing/NewControlRing) and handed to the child by path/argument
// rather than announced afterwards, avoiding a chicken-and-egg where the
// child would need a way to tell the host about memory it just mapped
// before the host has any channel to receive that announcement on.
// hostOSCURL is the address the child should report back to.
func Spawn(ctx context.Context, execPath string, binaryType BinaryType, hostOSCURL, filename, name, label, audioRingPath, controlRingPath string) (*Process, error) {
	p := &Process{
		binaryType: binaryType,
		execPath:   execPath,
		oscURL:     hostOSCURL,
		messages:   make(chan Message, 256),
		done:       make(chan struct{}),
		log:        logging.For(logging.ComponentBridge, name),
	}

	cmd := exec.CommandContext(ctx, execPath,
		hostOSCURL,
		binaryTypeArg(binaryType),
		filename,
		name,
		label,
		audioRingPath,
		controlRingPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("bridge: spawn %s: %w", execPath, err)
	}
	p.cmd = cmd
	return p, nil
}

func binaryTypeArg(t BinaryType) string {
	switch t {
	case BinaryPosix32:
		return "posix32"
	case BinaryPosix64:
		return "posix64"
	case BinaryWin32:
		return "win32"
	case BinaryWin64:
		return "win64"
	default:
		return "posix64"
	}
}

// WaitAnnounce polls for up to ~10 seconds for either an update message
// (success) or an error message (failure), spec.md §4.6: "polls for up
// to ~10 seconds for either an update announcing success or an error
// announcing failure. Timeout is fatal."
func (p *Process) WaitAnnounce(ctx context.Context) error {
	deadline := time.NewTimer(defaultTimeout)
	defer deadline.Stop()

	for {
		select {
		case msg := <-p.messages:
			switch msg.Type {
			case InfoUpdateNow:
				p.mu.Lock()
				p.announced = true
				p.mu.Unlock()
				return nil
			case InfoError:
				err := fmt.Errorf("bridge: child reported error: %v", msg.Strings)
				p.mu.Lock()
				p.failed = err
				p.mu.Unlock()
				p.Kill()
				return err
			}
		case <-deadline.C:
			p.Kill()
			return fmt.Errorf("bridge: announce timeout after %s", defaultTimeout)
		case <-ctx.Done():
			p.Kill()
			return ctx.Err()
		}
	}
}

// SaveNow sends "save-now" and polls up to ~10 seconds for a "saved"
// configure message carrying the chunk's spilled temp-file path, spec.md
// §4.6 "Save protocol: the host sends save-now, then polls up to ~10
// seconds for a saved configure message."
func (p *Process) SaveNow(ctx context.Context, send func() error) (string, error) {
	if err := send(); err != nil {
		return "", fmt.Errorf("bridge: save-now send failed: %w", err)
	}
	deadline := time.NewTimer(defaultTimeout)
	defer deadline.Stop()
	for {
		select {
		case msg := <-p.messages:
			if msg.Type == InfoConfigure && len(msg.Strings) >= 2 && msg.Strings[0] == "saved" {
				return msg.Strings[1], nil
			}
		case <-deadline.C:
			return "", fmt.Errorf("bridge: save timeout after %s", defaultTimeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// AttachControlRing wires the host->child command ring Init created,
// enabling Send.
func (p *Process) AttachControlRing(r *ControlRing) {
	p.mu.Lock()
	p.ctrl = r
	p.mu.Unlock()
}

// Send encodes and enqueues a host->child command (set-parameter-value,
// set-program, set-custom-data, save-now, ...) onto the control ring,
// spec.md §4.6's "shared-memory rings" direction opposite Messages()/Push
// (which carry the child->host OSC traffic only).
func (p *Process) Send(msg Message) error {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()
	if ctrl == nil {
		return fmt.Errorf("bridge: no control ring attached")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: encode control message: %w", err)
	}
	if !ctrl.WriteMessage(payload) {
		return fmt.Errorf("bridge: control ring full or message too large")
	}
	return nil
}

// Push enqueues a decoded message for the announce/save waiters and any
// other consumer draining Messages().
func (p *Process) Push(msg Message) {
	select {
	case p.messages <- msg:
	default:
		p.log.Warn("bridge message queue full, dropping", "type", msg.Type)
	}
}

// Messages exposes the decoded-message channel for the engine's bridge
// plugin adapter to drain continuously after the announce handshake.
func (p *Process) Messages() <-chan Message { return p.messages }

// Done closes when the process has been killed, letting a message-pump
// goroutine reading Messages() stop without requiring the channel itself
// to be closed (OSC delivery can race a Kill, and sending on a closed
// channel would panic).
func (p *Process) Done() <-chan struct{} { return p.done }

// Kill terminates the child process (SIGKILL-equivalent), spec.md §5
// "the subprocess is terminated (SIGKILL-equivalent) if still alive."
func (p *Process) Kill() {
	p.killOnce.Do(func() { close(p.done) })
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Wait blocks until the child process exits.
func (p *Process) Wait() error {
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Wait()
}
