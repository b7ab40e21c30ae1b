// SPDX-License-Identifier: GPL-3.0-or-later

// Package render is the statusline formatter: a pure function from
// statestore.State to exactly one display line, per spec.md §4.7. It never
// probes, never writes state, and never blames the user's environment.
package render

import (
	"strconv"
	"strings"

	"github.com/ccstatus-go/ccstatus-network/internal/statestore"
)

// DisplayBudget is the maximum number of runes the host will show on one
// statusline segment; anything longer is truncated with an ellipsis
// instead of wrapped, per spec.md §4.7.
const DisplayBudget = 80

const ellipsis = "…"

const (
	glyphHealthy  = "🟢"
	glyphDegraded = "🟡"
	glyphError    = "🔴"
	glyphUnknown  = "⚪"
	glyphShield   = "🛡️"
)

// Render formats st into one statusline-safe line.
func Render(st statestore.State) string {
	var line string
	switch {
	case st.BotChallenge:
		line = glyphShield + " " + totalOnly(st)
	case st.Status == statestore.StatusHealthy:
		line = renderHealthy(st)
	case st.Status == statestore.StatusDegraded:
		line = renderDegraded(st)
	case st.Status == statestore.StatusError:
		line = glyphError + " " + st.Network.Breakdown
	default:
		line = glyphUnknown + " Unknown"
	}
	return truncate(line, DisplayBudget)
}

func renderHealthy(st statestore.State) string {
	if st.Network.P95LatencyMs <= 0 || len(st.Network.RollingTotals) == 0 {
		return glyphHealthy
	}
	return glyphHealthy + " P95:" + strconv.Itoa(st.Network.P95LatencyMs) + "ms"
}

func renderDegraded(st statestore.State) string {
	line := glyphDegraded + " " + st.Network.Breakdown
	if st.Network.P95LatencyMs > 0 && len(st.Network.RollingTotals) > 0 {
		line = glyphDegraded + " P95:" + strconv.Itoa(st.Network.P95LatencyMs) + "ms " + st.Network.Breakdown
	}
	return line
}

// totalOnly extracts just the "Total:<v>" segment of a breakdown string,
// per spec.md §4.4's bot-challenge handling ("renderer displays ... Total
// latency only").
func totalOnly(st statestore.State) string {
	for _, part := range strings.Split(st.Network.Breakdown, "|") {
		if strings.HasPrefix(part, "Total:") {
			return part
		}
	}
	return strconv.Itoa(st.Network.LatencyMs) + "ms"
}

// truncate trims s to at most n runes, replacing the final rune with an
// ellipsis when it would otherwise be cut mid-thought. It operates on
// runes rather than bytes so a multi-byte code point at the boundary is
// never split.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return ellipsis
	}
	return string(runes[:n-1]) + ellipsis
}
