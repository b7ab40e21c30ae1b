// SPDX-License-Identifier: GPL-3.0-or-later

// Package engine is the orchestrator: the head of the event flow described
// in spec.md §4.6. It parses one stdin event, decides at most one gate
// (COLD > RED > GREEN), runs the probe if a gate fires, persists the
// result, and renders the line the host prints. Confining asynchrony to
// the Probe Executor and exposing one synchronous Run(...) entrypoint
// follows spec.md §9's "Coroutine / async control flow" note.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
	"github.com/ccstatus-go/ccstatus-network/internal/credentials"
	"github.com/ccstatus-go/ccstatus-network/internal/lockfile"
	"github.com/ccstatus-go/ccstatus-network/internal/probe"
	"github.com/ccstatus-go/ccstatus-network/internal/render"
	"github.com/ccstatus-go/ccstatus-network/internal/statestore"
	"github.com/ccstatus-go/ccstatus-network/internal/transcript"
)

// defaultColdWindowMs is used when CCSTATUS_COLD_WINDOW_MS is unset.
const defaultColdWindowMs = 5000

const (
	greenWindowMs    = 300_000
	greenHitMs       = 3_000
	redWindowMs      = 10_000
	redHitMs         = 1_000
)

// Logger receives per-event diagnostics. Implemented by sidecar.Logger; a
// nil Engine.Logger is replaced with NoopLogger each time it is used.
type Logger interface {
	credentials.Logger
	transcript.Warner
	// Event records one orchestration-level observation (probe start/end,
	// gate decision, persistence failure) under the event's correlation id.
	Event(correlationID, event string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) CredentialResolved(credentials.Source, int) {}
func (noopLogger) CredentialAbsent()                          {}
func (noopLogger) TranscriptWarning(string, string)           {}
func (noopLogger) Event(string, string, map[string]any)       {}

// NoopLogger discards every event.
var NoopLogger Logger = noopLogger{}

// CorrelationIDFunc returns a fresh correlation id for one event. Injected
// so tests can supply deterministic ids; production wiring uses
// github.com/google/uuid.
type CorrelationIDFunc func() string

// Engine wires the Credential Resolver, Transcript Tail Scanner, Probe
// Executor, and State Store together per spec.md §4.6.
type Engine struct {
	Credentials   *credentials.Resolver
	Store         *statestore.Store
	Executor      probe.Executor
	Env           clock.Environment
	Logger        Logger
	CorrelationID CorrelationIDFunc

	// ColdMarkerPath, when set, guards against two concurrent invocations
	// both deciding COLD for the same cold-start window (spec.md §4.6 step
	// 4's "no in-flight marker"). Left empty disables the guard.
	ColdMarkerPath string
}

// stdinEvent models only the fields the orchestrator consumes from the
// host's JSON envelope, per spec.md §6 ("unknown fields ignored").
type stdinEvent struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cost           struct {
		TotalDurationMs int64 `json:"total_duration_ms"`
	} `json:"cost"`
}

func (e *Engine) logger() Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return NoopLogger
}

func (e *Engine) correlationID() string {
	if e.CorrelationID != nil {
		return e.CorrelationID()
	}
	return ""
}

func (e *Engine) env() clock.Environment {
	if e.Env != nil {
		return e.Env
	}
	return clock.System{}
}

// Run executes one event: parse, gate, at most one probe, persist, render.
// It always returns a renderable line and never panics on malformed input,
// per spec.md §7's "hard failures ... emit ⚪ Unknown and exit".
func (e *Engine) Run(stdin []byte) string {
	cid := e.correlationID()

	var ev stdinEvent
	if err := json.Unmarshal(stdin, &ev); err != nil {
		e.logger().Event(cid, "stdinParseFailed", map[string]any{"error": err.Error()})
		_ = e.Store.WriteUnknown()
		return e.render()
	}

	creds, ok := e.Credentials.Resolve()
	if !ok {
		_ = e.Store.WriteUnknown()
		return e.render()
	}

	total := ev.Cost.TotalDurationMs
	gates := computeGates(e.coldWindowMs(), total)

	prior, priorOK := e.Store.Load()

	if e.decideCold(gates, prior, priorOK, ev.SessionID) {
		unlock, marked := e.acquireColdMarker()
		if marked {
			defer unlock()
			e.fire(probe.Cold, creds, ev.SessionID, gates, nil, cid)
			return e.render()
		}
	}

	errorDetected, lastError := e.scanTranscript(ev.TranscriptPath, cid)

	if e.decideRed(gates, prior, errorDetected) {
		e.fire(probe.Red, creds, ev.SessionID, gates, &lastError, cid)
		return e.render()
	}

	if e.decideGreen(gates, prior) {
		e.fire(probe.Green, creds, ev.SessionID, gates, nil, cid)
		return e.render()
	}

	return e.render()
}

func (e *Engine) render() string {
	st, _ := e.Store.Load()
	return render.Render(st)
}

func (e *Engine) coldWindowMs() int64 {
	return int64(clock.IntOr(e.env(), defaultColdWindowMs, "CCSTATUS_COLD_WINDOW_MS", "ccstatus_COLD_WINDOW_MS"))
}

func (e *Engine) acquireColdMarker() (func(), bool) {
	if e.ColdMarkerPath == "" {
		return func() {}, true
	}
	unlock, ok := lockfile.AcquireOnce(e.ColdMarkerPath)
	return func() { unlock() }, ok
}

func (e *Engine) scanTranscript(path string, cid string) (bool, transcript.ErrorEvent) {
	if path == "" {
		return false, transcript.ErrorEvent{}
	}
	tailKB := clock.IntOr(e.env(), transcript.DefaultTailKB, "CCSTATUS_JSONL_TAIL_KB", "ccstatus_JSONL_TAIL_KB")
	return transcript.Scan(path, tailKB, e.logger())
}

func (e *Engine) decideCold(g gates, prior statestore.State, priorOK bool, sessionID string) bool {
	if !g.coldCandidate {
		return false
	}
	stateIsUnknownOrAbsent := !priorOK || prior.Status == statestore.StatusUnknown
	if !stateIsUnknownOrAbsent {
		return false
	}
	return prior.MonitoringState.LastColdSessionID != sessionID
}

func (e *Engine) decideRed(g gates, prior statestore.State, errorDetected bool) bool {
	return errorDetected && g.redWindowHit && g.redWindowID != prior.MonitoringState.LastRedWindowID
}

func (e *Engine) decideGreen(g gates, prior statestore.State) bool {
	return g.greenWindowHit && g.greenWindowID != prior.MonitoringState.LastGreenWindowID
}

func (e *Engine) fire(mode probe.Mode, creds credentials.Credentials, sessionID string, g gates, lastError *transcript.ErrorEvent, cid string) {
	prior, _ := e.Store.Load()
	timeout := probe.Timeout(e.env(), mode, time.Duration(prior.Network.P95LatencyMs)*time.Millisecond, len(prior.Network.RollingTotals))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	e.logger().Event(cid, "probeStart", map[string]any{"mode": string(mode)})
	outcome := e.Executor.Execute(ctx, probe.Request{BaseURL: creds.BaseURL, AuthToken: creds.AuthToken, Source: creds.Source})
	e.logger().Event(cid, "probeEnd", map[string]any{"mode": string(mode), "status": outcome.LastHTTPStatus, "errorType": string(outcome.ErrorType)})

	in := statestore.UpdateProbeInput{
		Mode:          mode,
		Outcome:       outcome,
		SessionID:     sessionID,
		GreenWindowID: g.greenWindowID,
		RedWindowID:   g.redWindowID,
	}
	if lastError != nil {
		in.LastError = &statestore.ErrorEvent{
			Timestamp: clock.FormatLocal(lastError.Timestamp),
			Code:      lastError.Code,
			Message:   lastError.Message,
		}
	}
	if err := e.Store.UpdateProbe(in); err != nil {
		e.logger().Event(cid, "stateWriteFailed", map[string]any{"error": err.Error()})
	}
}

// gates holds the window-gating arithmetic from spec.md §4.6 step 3.
type gates struct {
	greenWindowID  int64
	greenWindowHit bool
	redWindowID    int64
	redWindowHit   bool
	coldCandidate  bool
}

func computeGates(coldWindowMs, totalDurationMs int64) gates {
	return gates{
		greenWindowID:  totalDurationMs / greenWindowMs,
		greenWindowHit: totalDurationMs%greenWindowMs < greenHitMs,
		redWindowID:    totalDurationMs / redWindowMs,
		redWindowHit:   totalDurationMs%redWindowMs < redHitMs,
		coldCandidate:  totalDurationMs < coldWindowMs,
	}
}
