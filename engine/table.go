package engine

import (
	"fmt"
	"strings"

	"github.com/carla-audio/carla-go/plugin"
)

// AddPlugin allocates the lowest free slot id, stores the already-
// constructed adapter (its Init/Reload must already have succeeded), and
// registers it, spec.md §4.7 "addPlugin(btype, ptype, …) allocates the
// lowest free id, instantiates the adapter, and registers it."
//
// Grounded on shaban/macaudio's engine.go findAvailableChannelslot +
// CreateInputChannel/CreatePlaybackChannel shape (find a free slot, fail
// with a descriptive error if none), generalized from a fixed 8-slot
// array to a growable slice bounded only by the caller's own capacity
// policy.
func (e *Engine) AddPlugin(p plugin.Plugin) (uint32, error) {
	e.tableMu.Lock()
	defer e.tableMu.Unlock()

	for i, slot := range e.plugins {
		if slot == nil {
			e.plugins[i] = p
			return uint32(i), nil
		}
	}

	e.plugins = append(e.plugins, p)
	return uint32(len(e.plugins) - 1), nil
}

// RemovePlugin deactivates and destroys the plugin at id and leaves its
// slot empty (nil). The table is not compacted, so the other plugins keep
// their ids until RemoveAllPlugins; a later AddPlugin may fill the empty
// slot again, since it takes the lowest free id. Returns false for an
// already-removed or out-of-range id without mutating the table (spec.md
// §8 boundary case).
func (e *Engine) RemovePlugin(id uint32) bool {
	e.tableMu.Lock()
	defer e.tableMu.Unlock()
	return e.removePluginLocked(id)
}

func (e *Engine) removePluginLocked(id uint32) bool {
	if int(id) >= len(e.plugins) || e.plugins[id] == nil {
		return false
	}
	e.plugins[id].Deactivate()
	e.plugins[id].Unload()
	e.plugins[id] = nil
	return true
}

// RemoveAllPlugins tears down every plugin and compacts the table to
// empty, spec.md §4.7's removeAllPlugins().
func (e *Engine) RemoveAllPlugins() {
	e.tableMu.Lock()
	defer e.tableMu.Unlock()
	e.removeAllPluginsLocked()
}

func (e *Engine) removeAllPluginsLocked() {
	for i := range e.plugins {
		if e.plugins[i] != nil {
			e.plugins[i].Deactivate()
			e.plugins[i].Unload()
		}
	}
	e.plugins = nil
}

// Plugin resolves the plugin at id, returning false if id is out of
// range or the slot has been removed, spec.md §4.9 step 3's "rejects if
// id >= currentPluginCount or if the plugin has been removed".
func (e *Engine) Plugin(id uint32) (plugin.Plugin, bool) {
	e.tableMu.RLock()
	defer e.tableMu.RUnlock()
	if int(id) >= len(e.plugins) || e.plugins[id] == nil {
		return nil, false
	}
	return e.plugins[id], true
}

// ReloadPlugin reinstantiates a plugin's ports/state in place, guarding
// the RT thread with a ScopedDisabler for the duration so processRack/
// processPatchbay never observes a half-reloaded adapter, spec.md §5.
func (e *Engine) ReloadPlugin(id uint32) error {
	p, ok := e.Plugin(id)
	if !ok {
		return ErrPluginNotFound
	}
	d := NewScopedDisabler(e, p)
	defer d.Restore()
	return p.Reload()
}

// PluginCount returns the current table length (including the empty
// slots RemovePlugin leaves behind).
func (e *Engine) PluginCount() int {
	e.tableMu.RLock()
	defer e.tableMu.RUnlock()
	return len(e.plugins)
}

// forEachPlugin runs fn for every occupied slot under a read lock.
func (e *Engine) forEachPlugin(fn func(id uint32, p plugin.Plugin)) {
	e.tableMu.RLock()
	defer e.tableMu.RUnlock()
	for i, p := range e.plugins {
		if p != nil {
			fn(uint32(i), p)
		}
	}
}

// GetNewUniquePluginName appends " (n)" with the smallest n that avoids
// collisions against every currently-registered plugin's display name,
// spec.md §4.7 "getNewUniquePluginName(desired) appends ' (n)' with the
// smallest n that avoids collisions."
func (e *Engine) GetNewUniquePluginName(desired string) string {
	e.tableMu.RLock()
	defer e.tableMu.RUnlock()

	taken := make(map[string]bool, len(e.plugins))
	for _, p := range e.plugins {
		if p != nil {
			taken[p.Name()] = true
		}
	}
	if !taken[desired] {
		return desired
	}
	base := strings.TrimRight(desired, " ")
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}
