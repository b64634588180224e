package engine

import (
	"github.com/charmbracelet/log"

	"github.com/carla-audio/carla-go/internal/logging"
)

// Callback is the host notification surface spec.md §6 names:
// "callback(user, action, pluginId, value1, value2, value3, str)". Kept
// as an interface, per plugin.Callback's split, so an engine can plug in
// whatever UI/front-end wants these events without the core depending on
// one.
type Callback interface {
	PluginCallback(pluginID uint32, action string, value1, value2 int32, value3 float32, str string)
	OSCNotify(pluginID uint32, path string, args ...interface{})
}

// DefaultCallback logs every callback through internal/logging instead of
// the teacher's bare fmt.Printf, resolving errors.go's own
// "TODO: Replace with proper logging framework".
//
// Grounded on shaban/macaudio's errors.go ErrorHandler/DefaultErrorHandler
// split, generalized from a single HandleError(error) method to the
// richer plugin-callback/OSC-notify pair the engine's callback contract
// needs.
type DefaultCallback struct {
	log *log.Logger
}

// NewDefaultCallback builds a callback sink scoped to engineName.
func NewDefaultCallback(engineName string) *DefaultCallback {
	return &DefaultCallback{log: logging.For(logging.ComponentEngine, engineName)}
}

func (c *DefaultCallback) PluginCallback(pluginID uint32, action string, value1, value2 int32, value3 float32, str string) {
	c.log.Debug("plugin callback", "plugin", pluginID, "action", action, "v1", value1, "v2", value2, "v3", value3, "str", str)
}

func (c *DefaultCallback) OSCNotify(pluginID uint32, path string, args ...interface{}) {
	c.log.Debug("osc notify", "plugin", pluginID, "path", path, "args", args)
}

// PanicCallback panics on every callback, mirroring errors.go's
// PanicErrorHandler: "useful for development" / test harnesses that want
// to fail fast on an unexpected engine event instead of silently logging
// it.
type PanicCallback struct{}

func (PanicCallback) PluginCallback(pluginID uint32, action string, value1, value2 int32, value3 float32, str string) {
	panic("engine: unexpected plugin callback: " + action)
}

func (PanicCallback) OSCNotify(pluginID uint32, path string, args ...interface{}) {
	panic("engine: unexpected OSC notify: " + path)
}
