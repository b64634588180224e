// Package logging provides the engine-wide structured logger.
//
// The teacher (shaban/macaudio) leaves this as a bare fmt.Printf behind a
// "TODO: Replace with proper logging framework" in its errors.go. This
// package resolves that TODO with charmbracelet/log, the same library
// doismellburning/samoyed uses for its daemon logging.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Component identifies which part of the engine a logger belongs to. Every
// log line carries it so a multiplexed engine process (several Engine
// instances, per Design Notes "Global state") can be told apart in output.
type Component string

const (
	ComponentEngine  Component = "engine"
	ComponentIdle    Component = "idle"
	ComponentOSC     Component = "osc"
	ComponentBridge  Component = "bridge"
	ComponentPlugin  Component = "plugin"
	ComponentDriver  Component = "driver"
	ComponentPostEvt Component = "postevent"
)

var base = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05.000",
})

// For returns a logger scoped to component, tagged with engineName.
func For(component Component, engineName string) *log.Logger {
	return base.With("component", string(component), "engine", engineName)
}

// SetLevel adjusts verbosity process-wide. Carla's standalone frontend
// exposes a similar global verbosity toggle (g_verboseLogging in the
// teacher's plugins package); we keep the same "one knob" shape.
func SetLevel(level log.Level) {
	base.SetLevel(level)
}
