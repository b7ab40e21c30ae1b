// SPDX-License-Identifier: GPL-3.0-or-later

// Package statestore is the sole writer of the monitoring state file,
// ~/.claude/ccstatus/ccstatus-monitoring.json. It mirrors the teacher
// transport package's preference for small, explicit state transitions
// (transport.Config's plain-struct shape) over a generic document store:
// State is a fixed struct, not a map[string]any, and every write goes
// through write-temp-then-rename via github.com/google/renameio/v2.
package statestore

import "github.com/ccstatus-go/ccstatus-network/internal/credentials"

// Status is the top-level health verdict persisted and rendered.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
	StatusUnknown  Status = "unknown"
)

// MaxRollingTotals bounds rolling_totals; older samples are evicted FIFO.
const MaxRollingTotals = 12

// APIConfig identifies the probed endpoint and the credential source that
// produced it, carried unchanged from probe.Outcome into persisted state.
type APIConfig struct {
	Endpoint string             `json:"endpoint"`
	Source   credentials.Source `json:"source"`
}

// Network holds the instantaneous and rolling latency fields.
type Network struct {
	LatencyMs      int    `json:"latency_ms"`
	Breakdown      string `json:"breakdown"`
	LastHTTPStatus int    `json:"last_http_status"`
	ErrorType      string `json:"error_type,omitempty"`
	RollingTotals  []int  `json:"rolling_totals"`
	P95LatencyMs   int    `json:"p95_latency_ms"`
}

// MonitoringState holds the per-window and per-session dedup markers the
// orchestrator consults before deciding whether a gate fires.
type MonitoringState struct {
	LastGreenWindowID int64  `json:"last_green_window_id"`
	LastRedWindowID   int64  `json:"last_red_window_id"`
	LastColdSessionID string `json:"last_cold_session_id,omitempty"`
	LastColdProbeAt   string `json:"last_cold_probe_at,omitempty"`
}

// ErrorEvent is the most recent transcript API-error observed during a RED
// gate, persisted with a local-time timestamp.
type ErrorEvent struct {
	Timestamp string `json:"timestamp"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// State is the entire contents of the monitoring state file.
type State struct {
	Status            Status           `json:"status"`
	MonitoringEnabled bool             `json:"monitoring_enabled"`
	APIConfig         *APIConfig       `json:"api_config"`
	Network           Network          `json:"network"`
	MonitoringState   MonitoringState  `json:"monitoring_state"`
	LastJSONLErrorEvent *ErrorEvent    `json:"last_jsonl_error_event"`
	Timestamp         string           `json:"timestamp"`
	BotChallenge      bool             `json:"bot_challenge,omitempty"`
}
