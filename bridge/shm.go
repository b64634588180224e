package bridge

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// AudioRing is a shared-memory, single-producer/single-consumer ring
// carrying interleaved float32 audio between host and bridge child,
// spec.md §4.6 "shared-memory rings for audio/MIDI/parameter deltas."
// Backed by golang.org/x/sys/unix.Mmap over a temp file the child
// inherits by path, the same mmap-over-tmpfile approach
// doismellburning/samoyed uses for its daemon's persisted state.
type AudioRing struct {
	file   *os.File
	data   []byte
	frames uint32
	chans  uint32

	// head/tail live in the mapped region itself (first 8 bytes) so both
	// processes observe the same counters; wrapped here as atomic views
	// over that memory for the host side's bookkeeping.
	headPtr *uint32
	tailPtr *uint32
}

const audioRingHeaderBytes = 16

// NewAudioRing creates and maps a ring of capacityFrames slots, each one
// frame of chans float32 samples, writing its backing file under dir so the
// path can be handed to the spawned child.
func NewAudioRing(dir string, capacityFrames, chans uint32) (*AudioRing, error) {
	size := int64(audioRingHeaderBytes) + int64(capacityFrames)*int64(chans)*4
	f, err := os.CreateTemp(dir, "carla-bridge-audio-*.shm")
	if err != nil {
		return nil, fmt.Errorf("bridge: shm tempfile: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("bridge: shm truncate: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("bridge: mmap: %w", err)
	}

	r := &AudioRing{file: f, data: data, frames: capacityFrames, chans: chans}
	r.headPtr = (*uint32)(unsafe.Pointer(&data[0]))
	r.tailPtr = (*uint32)(unsafe.Pointer(&data[4]))
	return r, nil
}

// Path returns the backing file path to pass to the spawned bridge child.
func (r *AudioRing) Path() string { return r.file.Name() }

// WriteBlock copies one frame (the first chans values of block; any
// further values are ignored) into the slot at the current head,
// advancing it. Returns false if the ring is full
// (consumer hasn't caught up), mirroring an SPSC ring's caller-drops-on-
// overflow contract elsewhere in this module (postevent.Queue, internal
// MIDI injection queue).
func (r *AudioRing) WriteBlock(block []float32) bool {
	head := atomic.LoadUint32((*uint32)(r.headPtr))
	tail := atomic.LoadUint32((*uint32)(r.tailPtr))
	if head-tail >= r.frames {
		return false
	}
	slot := head % r.frames
	offset := audioRingHeaderBytes + int(slot)*int(r.chans)*4
	for i, v := range block {
		if i >= int(r.chans) {
			break
		}
		binary.LittleEndian.PutUint32(r.data[offset+i*4:], math.Float32bits(v))
	}
	atomic.AddUint32((*uint32)(r.headPtr), 1)
	return true
}

// ReadBlock copies one frame (at most chans values) from the slot at the
// current tail into dst, advancing it. Returns false if the ring is empty.
func (r *AudioRing) ReadBlock(dst []float32) bool {
	head := atomic.LoadUint32((*uint32)(r.headPtr))
	tail := atomic.LoadUint32((*uint32)(r.tailPtr))
	if tail == head {
		return false
	}
	slot := tail % r.frames
	offset := audioRingHeaderBytes + int(slot)*int(r.chans)*4
	for i := range dst {
		if i >= int(r.chans) {
			break
		}
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.data[offset+i*4:]))
	}
	atomic.AddUint32((*uint32)(r.tailPtr), 1)
	return true
}

// Close unmaps and removes the backing file.
func (r *AudioRing) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return err
	}
	name := r.file.Name()
	if err := r.file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

const (
	controlRingHeaderBytes = 16
	controlRingSlotBytes   = 1024
)

// ControlRing is the host->child counterpart to AudioRing: a shared-
// memory byte ring carrying encoded non-RT commands (set-parameter-value,
// set-program, set-custom-data, save-now, ...), spec.md §4.6's "shared-
// memory rings for audio/MIDI/parameter deltas." The bridge's own OSC
// channel is child->host only (spec.md §6), so every host->child setter
// goes through this ring instead of bridge.Process.Push (which feeds the
// child->host message queue and would otherwise loop a command back to
// the host's own shadow state without the child ever seeing it).
type ControlRing struct {
	file *os.File
	data []byte
	slots uint32

	headPtr *uint32
	tailPtr *uint32
}

// NewControlRing creates and maps a fixed-slot byte ring sized for up to
// capacity pending commands, each at most controlRingSlotBytes long.
func NewControlRing(dir string, capacity uint32) (*ControlRing, error) {
	size := int64(controlRingHeaderBytes) + int64(capacity)*int64(controlRingSlotBytes)
	f, err := os.CreateTemp(dir, "carla-bridge-control-*.shm")
	if err != nil {
		return nil, fmt.Errorf("bridge: control shm tempfile: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("bridge: control shm truncate: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("bridge: control mmap: %w", err)
	}

	r := &ControlRing{file: f, data: data, slots: capacity}
	r.headPtr = (*uint32)(unsafe.Pointer(&data[0]))
	r.tailPtr = (*uint32)(unsafe.Pointer(&data[4]))
	return r, nil
}

// Path returns the backing file path to pass to the spawned bridge child.
func (r *ControlRing) Path() string { return r.file.Name() }

// WriteMessage encodes and enqueues one command, returning false if the
// ring is full or msg exceeds one slot's capacity.
func (r *ControlRing) WriteMessage(payload []byte) bool {
	if len(payload) > controlRingSlotBytes-4 {
		return false
	}
	head := atomic.LoadUint32(r.headPtr)
	tail := atomic.LoadUint32(r.tailPtr)
	if head-tail >= r.slots {
		return false
	}
	slot := head % r.slots
	offset := controlRingHeaderBytes + int(slot)*controlRingSlotBytes
	binary.LittleEndian.PutUint32(r.data[offset:], uint32(len(payload)))
	copy(r.data[offset+4:offset+4+len(payload)], payload)
	atomic.AddUint32(r.headPtr, 1)
	return true
}

// ReadMessage dequeues and decodes the next pending command, returning
// false if the ring is empty. Provided for symmetry/testing on the host
// side; the bridge child binary performs the real read loop.
func (r *ControlRing) ReadMessage() ([]byte, bool) {
	head := atomic.LoadUint32(r.headPtr)
	tail := atomic.LoadUint32(r.tailPtr)
	if tail == head {
		return nil, false
	}
	slot := tail % r.slots
	offset := controlRingHeaderBytes + int(slot)*controlRingSlotBytes
	n := binary.LittleEndian.Uint32(r.data[offset:])
	payload := make([]byte, n)
	copy(payload, r.data[offset+4:offset+4+int(n)])
	atomic.AddUint32(r.tailPtr, 1)
	return payload, true
}

// Close unmaps and removes the backing file.
func (r *ControlRing) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return err
	}
	name := r.file.Name()
	if err := r.file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
