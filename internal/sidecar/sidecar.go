// SPDX-License-Identifier: GPL-3.0-or-later

// Package sidecar is the optional debug log described in spec.md §4.8: a
// rotating, append-only JSON Lines file that never affects control flow.
// It implements the credentials.Logger and transcript.Warner interfaces
// directly so the same value can be wired into every diagnostic call site
// without an adapter.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
	"github.com/ccstatus-go/ccstatus-network/internal/credentials"
	"github.com/ccstatus-go/ccstatus-network/internal/lockfile"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 8
	maxBackups = 5
)

// DefaultPath returns the sidecar log location under the host CLI's state
// directory, mirroring statestore.DefaultPath.
func DefaultPath(home string) string {
	return filepath.Join(home, ".claude", "ccstatus", "ccstatus-debug.log")
}

// Enabled reports whether CCSTATUS_DEBUG is set to a truthy value, per
// spec.md §4.8's "gated by a flexible-boolean env".
func Enabled(env clock.Environment) bool {
	return clock.Bool(env, "CCSTATUS_DEBUG")
}

// record is the stable JSON Lines shape every entry is written as.
type record struct {
	TS            string         `json:"ts"`
	Level         string         `json:"level"`
	Component     string         `json:"component"`
	Event         string         `json:"event"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Logger writes newline-delimited records to a lumberjack-rotated file.
// It implements credentials.Logger, transcript.Warner, and engine.Logger
// without needing an adapter type in any of those packages.
type Logger struct {
	component string
	clock     clock.Clock
	lockPath  string

	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger opens (lazily, on first write) a rotating log at path for
// component. clk is nil-safe and defaults to the wall clock.
func NewLogger(path, component string, clk clock.Clock) *Logger {
	return &Logger{
		component: component,
		clock:     clk,
		lockPath:  path + ".lock",
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		},
	}
}

func (l *Logger) now() time.Time {
	if l.clock != nil {
		return l.clock.Now()
	}
	return time.Now()
}

// emit serializes and appends rec. Every error is swallowed: per spec.md
// §7, diagnostics must never influence the orchestrator's control flow.
func (l *Logger) emit(level, event, correlationID string, fields map[string]any) {
	data, err := json.Marshal(record{
		TS:            clock.FormatLocal(l.now()),
		Level:         level,
		Component:     l.component,
		Event:         event,
		CorrelationID: correlationID,
		Fields:        fields,
	})
	if err != nil {
		return
	}
	data = append(data, '\n')

	unlock, _ := lockfile.Acquire(l.lockPath)
	defer unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = l.out.Write(data)
	// A rotation may have just produced a new backup under lumberjack's own
	// timestamp suffix convention; translate any such file to the spec's
	// *.YYYYMMDD_HHMMSS.gz form. Already-renamed backups no longer match
	// the pattern, so this is a cheap no-op on the common non-rotating call.
	renameBackups(l.out.Filename)
}

// CredentialResolved implements credentials.Logger. Only the derived
// source and token length are ever recorded, never the token itself.
func (l *Logger) CredentialResolved(source credentials.Source, tokenLen int) {
	l.emit("INFO", "credentialResolved", "", map[string]any{"source": string(source), "tokenLen": tokenLen})
}

// CredentialAbsent implements credentials.Logger.
func (l *Logger) CredentialAbsent() {
	l.emit("INFO", "credentialAbsent", "", nil)
}

// TranscriptWarning implements transcript.Warner.
func (l *Logger) TranscriptWarning(event, detail string) {
	l.emit("WARN", event, "", map[string]any{"detail": detail})
}

// Event implements engine.Logger, recording one orchestration-level
// observation under the event's correlation id.
func (l *Logger) Event(correlationID, event string, fields map[string]any) {
	l.emit("INFO", event, correlationID, fields)
}

// lumberjackBackupPattern matches lumberjack's default backup naming,
// "<prefix>-2006-01-02T15-04-05.000<ext>[.gz]".
var lumberjackBackupPattern = regexp.MustCompile(`^(.+)-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.\d{3})(\.[^.]+)?(\.gz)?$`)

// renameBackups rewrites any freshly-rotated backups of filename from
// lumberjack's own naming convention to the spec's *.YYYYMMDD_HHMMSS.gz
// pattern. Best-effort: a rename failure just leaves lumberjack's name in
// place.
func renameBackups(filename string) {
	dir := filepath.Dir(filename)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	prefix := base[:len(base)-len(ext)]

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Base(name) == base {
			continue
		}
		matches := lumberjackBackupPattern.FindStringSubmatch(name)
		if matches == nil || matches[1] != prefix {
			continue
		}
		ts, err := time.Parse("2006-01-02T15-04-05.000", matches[2])
		if err != nil {
			continue
		}
		newName := fmt.Sprintf("%s.%s.gz", prefix, ts.Format("20060102_150405"))
		_ = os.Rename(filepath.Join(dir, name), filepath.Join(dir, newName))
	}
}
