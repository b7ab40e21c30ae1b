// SPDX-License-Identifier: GPL-3.0-or-later

package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
	"github.com/ccstatus-go/ccstatus-network/internal/lockfile"
	"github.com/ccstatus-go/ccstatus-network/internal/probe"
	"github.com/google/renameio/v2"
)

// DefaultPath is the monitoring state file's default location, per
// spec.md §6.
func DefaultPath(home string) string {
	return filepath.Join(home, ".claude", "ccstatus", "ccstatus-monitoring.json")
}

// Store is the sole writer of the monitoring state file. All mutating
// methods read-modify-write under a best-effort sibling lock file, matching
// spec.md §4.5's "rotation/lock file may be used to prevent concurrent
// rename races across processes".
type Store struct {
	Path  string
	Clock clock.Clock
}

// New returns a Store writing to path, using clk for timestamps.
func New(path string, clk clock.Clock) *Store {
	return &Store{Path: path, Clock: clk}
}

func (s *Store) lockPath() string {
	return s.Path + ".lock"
}

func (s *Store) now() string {
	c := s.Clock
	if c == nil {
		c = clock.System{}
	}
	return clock.FormatLocal(c.Now())
}

// Load returns a read-only snapshot of the persisted state. A missing or
// unparseable file is reported as ok=false rather than an error: per
// spec.md §7, "the previous state remains valid and is rendered" is the
// caller's fallback, and an absent file is simply the pre-first-write case.
func (s *Store) Load() (State, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return State{}, false
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false
	}
	return st, true
}

// WriteUnknown forces status=unknown, monitoring_enabled=false,
// api_config=null, leaving unrelated fields (rolling totals, window
// dedup markers) intact, per spec.md §4.5.
func (s *Store) WriteUnknown() error {
	unlock, _ := lockfile.Acquire(s.lockPath())
	defer unlock()

	st, _ := s.Load()
	st.Status = StatusUnknown
	st.MonitoringEnabled = false
	st.APIConfig = nil
	st.Timestamp = s.now()
	return s.write(st)
}

// UpdateProbeInput carries the inputs to the §4.5 mode rules. LastError is
// only consulted for Mode == probe.Red.
type UpdateProbeInput struct {
	Mode          probe.Mode
	Outcome       probe.Outcome
	SessionID     string
	GreenWindowID int64
	RedWindowID   int64
	LastError     *ErrorEvent
}

// UpdateProbe merges outcome into the persisted state according to the
// mode rules of spec.md §4.5 and the status-threshold rules of §4.6, then
// writes the result.
func (s *Store) UpdateProbe(in UpdateProbeInput) error {
	unlock, _ := lockfile.Acquire(s.lockPath())
	defer unlock()

	st, _ := s.Load()
	st.MonitoringEnabled = true
	st.Timestamp = s.now()

	success := in.Outcome.ErrorType == ""
	apiConfig := &APIConfig{Endpoint: in.Outcome.APIConfig.Endpoint, Source: in.Outcome.APIConfig.Source}
	st.APIConfig = apiConfig
	st.BotChallenge = in.Outcome.BotChallenge

	st.Network.LatencyMs = in.Outcome.LatencyMs
	st.Network.Breakdown = in.Outcome.Breakdown
	st.Network.LastHTTPStatus = in.Outcome.LastHTTPStatus
	st.Network.ErrorType = string(in.Outcome.ErrorType)

	// A bot-challenge response always carries a 403/429/503 status, so it
	// is already excluded from the success branch below; rolling_totals
	// only ever grows from a genuine 2xx.
	switch in.Mode {
	case probe.Cold:
		if success {
			s.applyGreenLikeSuccess(&st, in.Outcome)
		} else {
			st.Status = degradedOrError(in.Outcome)
		}
		st.MonitoringState.LastColdSessionID = in.SessionID
		st.MonitoringState.LastColdProbeAt = s.now()

	case probe.Green:
		st.MonitoringState.LastGreenWindowID = in.GreenWindowID
		if success {
			s.applyGreenLikeSuccess(&st, in.Outcome)
		} else {
			st.Status = degradedOrError(in.Outcome)
		}

	case probe.Red:
		st.MonitoringState.LastRedWindowID = in.RedWindowID
		st.Status = StatusError
		st.LastJSONLErrorEvent = in.LastError
	}

	return s.write(st)
}

// applyGreenLikeSuccess implements the shared "append + recompute + derive
// status from P80/P95" behavior common to GREEN and COLD successes.
func (s *Store) applyGreenLikeSuccess(st *State, outcome probe.Outcome) {
	st.Network.RollingTotals = appendRollingTotal(st.Network.RollingTotals, outcome.LatencyMs)
	st.Network.P95LatencyMs = percentile(st.Network.RollingTotals, 95)
	p80 := percentile(st.Network.RollingTotals, 80)

	switch {
	case outcome.LatencyMs <= p80:
		st.Status = StatusHealthy
	case outcome.LatencyMs <= st.Network.P95LatencyMs:
		st.Status = StatusDegraded
	default:
		st.Status = StatusError
	}
}

// degradedOrError implements the non-2xx/transport-failure branch shared by
// GREEN and COLD: 429 degrades, everything else errors.
func degradedOrError(outcome probe.Outcome) Status {
	if outcome.LastHTTPStatus == 429 {
		return StatusDegraded
	}
	return StatusError
}

// write serializes st to a sibling temp file and atomically renames it over
// s.Path, via renameio so a crash mid-write never exposes a partial file.
func (s *Store) write(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.Path, data, 0o600)
}
