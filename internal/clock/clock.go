// SPDX-License-Identifier: GPL-3.0-or-later

// Package clock provides the injectable local-time source and environment
// reader that every timestamp-producing and env-var-reading component in
// the monitoring core depends on, instead of calling time.Now/os.Getenv
// directly. This mirrors the teacher's TimeNow func() time.Time pattern
// (see transport.Config), generalized with an Environment abstraction for
// the same testability reason.
package clock

import "time"

// Clock abstracts the local-time source. All timestamps persisted by the
// monitoring core (state file, sidecar log) come from here.
type Clock interface {
	// Now returns the current local time with an explicit UTC offset.
	Now() time.Time
}

// System is the production Clock, backed by time.Now.
type System struct{}

var _ Clock = System{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().Local()
}

// Func adapts a function to the Clock interface, for tests that need a
// fixed or stepping time source.
type Func func() time.Time

var _ Clock = Func(nil)

// Now implements Clock.
func (f Func) Now() time.Time {
	return f()
}

// rfc3339NanoNumericOffset is [time.RFC3339Nano] with its "Z07:00" offset
// directive replaced by "-07:00", so a UTC instant renders as "+00:00"
// instead of "Z". The state store and sidecar logger both require the
// numeric-offset form: ^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?[+-]\d{2}:\d{2}$.
const rfc3339NanoNumericOffset = "2006-01-02T15:04:05.999999999-07:00"

// FormatLocal formats t using the RFC3339-with-offset layout the state
// store and sidecar logger persist, matching the pattern
// ^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?[+-]\d{2}:\d{2}$. Unlike
// [time.RFC3339Nano], this never collapses a zero offset to "Z": a host
// whose local zone is UTC still serializes "+00:00".
func FormatLocal(t time.Time) string {
	return t.Local().Format(rfc3339NanoNumericOffset)
}
