package port

import "sync"

// ClientState is the activation state machine of spec.md §4.1: "Inactive
// -> Active via activate(); Active -> Inactive via deactivate()."
type ClientState uint8

const (
	StateInactive ClientState = iota
	StateActive
)

// Driver is the minimal subset of the engine's audio driver a Client needs:
// registering itself and reporting latency. The full driver contract lives
// in the engine package; this is the narrow slice ports/clients depend on
// to avoid an import cycle.
type Driver interface {
	RegisterClient(name string) bool
	SetLatency(clientName string, samples uint32)
}

// Client is a per-plugin audio-graph node: it owns its ports, activation
// state, and latency (spec.md's Client type, §2 glossary row).
type Client struct {
	mu      sync.Mutex
	name    string
	mode    Mode
	driver  Driver
	state   ClientState
	ok      bool
	latency uint32
	ports   []interface{ Kind() Kind }
}

// NewClient constructs a Client for the given engine process mode. In rack
// and patchbay modes isOk() is unconditionally true since the client is
// synthetic (spec.md §4.1); a driver-backed client's ok flag instead
// reflects whether the driver accepted registration.
func NewClient(name string, mode Mode, driver Driver) *Client {
	c := &Client{name: name, mode: mode, driver: driver}
	if driver != nil {
		c.ok = driver.RegisterClient(name)
	}
	if driver == nil || mode == ModeRack || mode == ModePatchbay {
		c.ok = true
	}
	return c
}

// IsOk reports whether the underlying driver accepted the client.
func (c *Client) IsOk() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ok
}

// Activate transitions Inactive -> Active.
func (c *Client) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateActive
}

// Deactivate transitions Active -> Inactive.
func (c *Client) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateInactive
}

// IsActive reports the current activation state.
func (c *Client) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateActive
}

// SetLatency reports latency to the driver when supported (spec.md §4.1
// "setLatency(samples) reports to the driver when supported").
func (c *Client) SetLatency(samples uint32) {
	c.mu.Lock()
	c.latency = samples
	c.mu.Unlock()
	if c.driver != nil {
		c.driver.SetLatency(c.name, samples)
	}
}

// Latency returns the last reported latency in samples.
func (c *Client) Latency() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// AddPort is patchbay mode's port factory: a non-owning reference to a
// freshly created port of the requested kind (spec.md §4.1 "addPort(type,
// name, isInput) returns a non-owning reference").
func (c *Client) AddPort(kind Kind, name string, isInput bool, frames uint32, eventCapacity int) interface{ Kind() Kind } {
	var p interface{ Kind() Kind }
	switch kind {
	case KindAudio:
		p = NewAudio(name, isInput, c.mode, frames)
	case KindEvent:
		p = NewEvent(name, isInput, c.mode, eventCapacity, frames)
	default:
		p = NewNull(name, isInput, c.mode)
	}
	c.mu.Lock()
	c.ports = append(c.ports, p)
	c.mu.Unlock()
	return p
}
