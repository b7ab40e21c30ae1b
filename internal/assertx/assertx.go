// SPDX-License-Identifier: GPL-3.0-or-later

// Package assertx provides tiny invariant-checking helpers used across the
// monitoring core, adapted from the teacher's github.com/bassosimone/runtimex
// leaf dependency. The package boundary was small enough that reproducing it
// in-module was simpler than carrying the external module forward.
package assertx

// Assert panics with msg if cond is false.
//
// Use this only for programming-error invariants (a nil pointer that must
// have been set by a constructor, a mode value outside its known set) —
// never for data-shaped failures such as a non-2xx HTTP response, which
// are outcomes, not bugs.
func Assert(cond bool, msg string) {
	if !cond {
		panic("assertx: " + msg)
	}
}

// PanicOnError1 returns v if err is nil, and panics otherwise.
//
// Use this only for operations that can fail solely under extraordinary
// circumstances, such as reading from the system random number generator.
func PanicOnError1[T any](v T, err error) T {
	if err != nil {
		panic("assertx: unexpected error: " + err.Error())
	}
	return v
}
