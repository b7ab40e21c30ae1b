// SPDX-License-Identifier: GPL-3.0-or-later

// Package probe executes exactly one HTTP probe against the upstream
// messages endpoint and reports a five-phase latency breakdown. Two
// Executor implementations exist behind one interface, mirroring the
// teacher transport package's TLSEngine/TLSEngineStdlib split: a heuristic
// executor built on net/http.Client plus httptrace (always available), and
// a phase-accurate executor built on internal/transport's own composed
// pipeline (opt-in, falls back transparently on any error).
package probe

import (
	"context"
	"strconv"
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/classify"
	"github.com/ccstatus-go/ccstatus-network/internal/credentials"
)

// Mode is the gating priority that selected this probe.
type Mode string

const (
	Green Mode = "green"
	Red   Mode = "red"
	Cold  Mode = "cold"
)

// Request describes the single probe call to make.
type Request struct {
	BaseURL   string
	AuthToken string
	Source    credentials.Source
}

// APIConfig identifies which endpoint was probed and where its credentials
// came from, carried through to persisted state unchanged.
type APIConfig struct {
	Endpoint string
	Source   credentials.Source
}

// Outcome is the result of exactly one probe call. It never represents a
// non-2xx response or a transport failure as a Go error: those are data,
// classified into ErrorType, per spec.md's "classify, never crash" design.
type Outcome struct {
	LatencyMs      int
	Breakdown      string
	LastHTTPStatus int
	ErrorType      classify.Label
	APIConfig      APIConfig
	BotChallenge   bool
	HTTPVersion    string
}

// Executor performs exactly one probe call within the given deadline.
type Executor interface {
	Execute(ctx context.Context, req Request) Outcome
}

// ExecutorFunc adapts a function to the Executor interface, matching the
// teacher transport package's FuncAdapter pattern.
type ExecutorFunc func(ctx context.Context, req Request) Outcome

var _ Executor = ExecutorFunc(nil)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// phase values rendered in Breakdown, per spec.md §4.4/§9: "<n>ms", "reuse",
// "-", or "timeout".
const (
	phaseReuse   = "reuse"
	phaseUnknown = "-"
	phaseTimeout = "timeout"
)

func formatMs(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.Itoa(int(d.Milliseconds())) + "ms"
}

// breakdown assembles the fixed five-phase string from already-formatted
// phase values, per spec.md: "DNS:<v>|TCP:<v>|TLS:<v>|TTFB:<v>|Total:<v>".
func breakdown(dns, tcp, tlsPhase, ttfb, total string) string {
	return "DNS:" + dns + "|TCP:" + tcp + "|TLS:" + tlsPhase + "|TTFB:" + ttfb + "|Total:" + total
}
