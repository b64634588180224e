package engine

import "github.com/carla-audio/carla-go/plugin"

// ScopedDisabler guards a non-RT mutation (reload, format swap, bridge
// reconnect) against the RT thread: it clears the plugin's Enabled flag so
// a concurrent processRack/processPatchbay pass skips it, and holds the
// engine's process lock so the RT thread cannot even begin a new callback
// until the mutation finishes, spec.md §5 "Process lock ... acquired by
// ScopedDisabler (which also clears enabled) and by the offline-mutation
// path."
//
// Grounded on shaban/macaudio's Pause-around-mutation pattern in
// engine.go (Stop the engine, mutate channels, Start again), reshaped
// into an RAII-style helper scoped to one plugin instead of pausing the
// whole engine.
type ScopedDisabler struct {
	e          *Engine
	p          plugin.Plugin
	wasEnabled bool
}

// NewScopedDisabler acquires the engine's process lock and disables p.
// Callers must call Restore (typically via defer) to release both.
func NewScopedDisabler(e *Engine, p plugin.Plugin) *ScopedDisabler {
	e.processMu.Lock()
	d := &ScopedDisabler{e: e, p: p, wasEnabled: p.Enabled()}
	p.SetEnabled(false)
	return d
}

// Restore re-enables p to its prior state and releases the process lock.
func (d *ScopedDisabler) Restore() {
	d.p.SetEnabled(d.wasEnabled)
	d.e.processMu.Unlock()
}
