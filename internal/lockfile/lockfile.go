// SPDX-License-Identifier: GPL-3.0-or-later

// Package lockfile provides a best-effort, cross-process advisory lock
// built on O_CREATE|O_EXCL, shared by internal/statestore (guarding the
// state file's read-modify-write cycle) and internal/sidecar (serializing
// log rotation). It is advisory only: a stale lock from a killed process
// is never cleaned up automatically, matching spec.md §5's "best-effort"
// framing rather than a correctness guarantee.
package lockfile

import (
	"os"
	"time"
)

// defaultAttempts and defaultDelay bound how long Acquire retries before
// giving up, per spec.md §5 ("the process either waits briefly or skips
// rotation/writing and continues").
const (
	defaultAttempts = 20
	defaultDelay    = 5 * time.Millisecond
)

// Unlock releases a lock acquired by Acquire.
type Unlock func()

// Acquire attempts to create path exclusively, retrying briefly on
// contention. It returns ok=false if the lock could not be acquired
// within the retry budget; callers should proceed without the lock rather
// than block indefinitely, since this is advisory, not a hard guarantee.
func Acquire(path string) (Unlock, bool) {
	for i := 0; i < defaultAttempts; i++ {
		if unlock, ok := AcquireOnce(path); ok {
			return unlock, true
		}
		time.Sleep(defaultDelay)
	}
	return func() {}, false
}

// AcquireOnce attempts to create path exclusively exactly once, with no
// retry. Used for markers that should simply not be set again while held
// (e.g. the orchestrator's COLD-probe-in-flight marker) rather than block
// a concurrent invocation waiting for it to clear.
func AcquireOnce(path string) (Unlock, bool) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return func() {}, false
	}
	f.Close()
	return func() { os.Remove(path) }, true
}
