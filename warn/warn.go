// Package warn carries recoverable-condition signals from the drivers to
// their callers.
//
// Several operations in this repository succeed while still doing something
// the caller did not literally ask for: clamping an out-of-range voltage,
// disabling a servo loop so a direct voltage can be applied, or recovering
// from an amplifier overload.  Those adjustments are never silent; the
// driver emits a Warning through its configured Handler and then carries on.
// A Warning is not a failure and never aborts the operation that raised it.
package warn

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Warning describes one advisory condition.
type Warning struct {
	// Device identifies the emitting driver, e.g. "anc350" or "sr830".
	Device string

	// Op is the operation that raised the warning, e.g. "SetDirectVoltage".
	Op string

	// Detail is a human-readable description of what was adjusted.
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s.%s: %s", w.Device, w.Op, w.Detail)
}

// Handler consumes warnings.  Handlers must not block; they are called with
// the driver's lock held.
type Handler func(Warning)

// Log is the default handler, emitting through logrus at warning level.
func Log(w Warning) {
	log.WithFields(log.Fields{
		"device": w.Device,
		"op":     w.Op,
	}).Warn(w.Detail)
}

// Discard drops warnings.  Useful in tests and embedded use.
func Discard(Warning) {}

// Collector returns a handler that appends into dst, for tests.
func Collector(dst *[]Warning) Handler {
	return func(w Warning) {
		*dst = append(*dst, w)
	}
}
