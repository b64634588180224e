package engine

import "errors"

// Sentinel errors returned across the engine's public API, wrapped with
// %w at the call site the way the teacher's engine.go/dispatcher.go do
// throughout (e.g. NewEngine's "failed to create native engine: %s").
var (
	ErrSlotFull        = errors.New("engine: no available plugin slot")
	ErrPluginNotFound  = errors.New("engine: plugin not found")
	ErrInvalidSlot     = errors.New("engine: invalid plugin slot index")
	ErrNotRunning      = errors.New("engine: not running")
	ErrAlreadyRunning  = errors.New("engine: already running")
	ErrDriverRequired  = errors.New("engine: driver is required")
	ErrNameTaken       = errors.New("engine: engine name already registered")
	ErrBridgeTimeout   = errors.New("engine: bridge handshake timed out")
)
