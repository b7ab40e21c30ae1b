// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
)

const (
	greenMinTimeout     = 2500 * time.Millisecond
	greenMaxTimeout     = 4000 * time.Millisecond
	greenDefaultTimeout = 3500 * time.Millisecond
	redTimeout          = 2000 * time.Millisecond
	envTimeoutCeiling   = 6000 * time.Millisecond
	minRollingSamples   = 4
)

// Timeout computes the per-call deadline for mode, following spec.md
// §4.4's table: GREEN clamps p95+500ms into [2500,4000]ms, falling back to
// 3500ms with fewer than four rolling samples; RED is a fixed 2000ms; COLD
// follows the GREEN policy. CCSTATUS_TIMEOUT_MS (also accepted lowercase)
// overrides all modes, capped at 6000ms.
func Timeout(env clock.Environment, mode Mode, p95 time.Duration, sampleCount int) time.Duration {
	if _, ok := clock.FirstNonEmpty(env, "CCSTATUS_TIMEOUT_MS", "ccstatus_TIMEOUT_MS"); ok {
		if n := clock.IntOr(env, 0, "CCSTATUS_TIMEOUT_MS", "ccstatus_TIMEOUT_MS"); n > 0 {
			d := time.Duration(n) * time.Millisecond
			if d > envTimeoutCeiling {
				d = envTimeoutCeiling
			}
			return d
		}
	}

	switch mode {
	case Red:
		return redTimeout
	default: // Green, Cold
		if sampleCount < minRollingSamples {
			return greenDefaultTimeout
		}
		d := p95 + 500*time.Millisecond
		if d < greenMinTimeout {
			return greenMinTimeout
		}
		if d > greenMaxTimeout {
			return greenMaxTimeout
		}
		return d
	}
}
