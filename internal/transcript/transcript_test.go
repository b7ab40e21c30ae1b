// SPDX-License-Identifier: GPL-3.0-or-later

package transcript_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccstatus-go/ccstatus-network/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestScanFindsFlaggedAPIError(t *testing.T) {
	path := writeLog(t,
		`{"timestamp":"2026-08-01T10:00:00Z","isApiErrorMessage":true,"message":{"content":[{"type":"text","text":"529 Overloaded"}]}}`,
		`{"timestamp":"2026-08-01T10:00:01Z","message":{"content":[{"type":"text","text":"normal message"}]}}`,
	)
	found, event := transcript.Scan(path, 64, nil)
	require.True(t, found)
	assert.Equal(t, 529, event.Code)
	assert.Equal(t, "529 Overloaded", event.Message)
}

func TestScanFindsAPIErrorPrefixWithoutCode(t *testing.T) {
	path := writeLog(t, `{"content":[{"type":"text","text":"API error"}]}`)
	found, event := transcript.Scan(path, 64, nil)
	require.True(t, found)
	assert.Equal(t, 0, event.Code)
	assert.Equal(t, "API Error", event.Message)
}

func TestScanCaseInsensitiveAndWhitespaceTolerant(t *testing.T) {
	path := writeLog(t, `{"content":[{"type":"text","text":"  api ERROR 500: boom"}]}`)
	found, event := transcript.Scan(path, 64, nil)
	require.True(t, found)
	assert.Equal(t, 500, event.Code)
}

func TestScanReturnsLastMatch(t *testing.T) {
	path := writeLog(t,
		`{"content":[{"type":"text","text":"API error 401"}]}`,
		`{"content":[{"type":"text","text":"normal"}]}`,
		`{"content":[{"type":"text","text":"API error 500"}]}`,
	)
	found, event := transcript.Scan(path, 64, nil)
	require.True(t, found)
	assert.Equal(t, 500, event.Code)
}

func TestScanUsesFirstCodeWithinARecord(t *testing.T) {
	path := writeLog(t,
		`{"content":[{"type":"text","text":"API error 401"},{"type":"text","text":"retried as 500"}]}`,
	)
	found, event := transcript.Scan(path, 64, nil)
	require.True(t, found)
	assert.Equal(t, 401, event.Code)
}

func TestScanMissingFileReturnsNotFound(t *testing.T) {
	found, _ := transcript.Scan(filepath.Join(t.TempDir(), "missing.jsonl"), 64, nil)
	assert.False(t, found)
}

func TestScanMalformedLinesSkippedSilently(t *testing.T) {
	path := writeLog(t, `not json at all`, `{"content":[{"type":"text","text":"API error 400"}]}`)
	found, event := transcript.Scan(path, 64, nil)
	require.True(t, found)
	assert.Equal(t, 400, event.Code)
}

func TestScanNoMatches(t *testing.T) {
	path := writeLog(t, `{"content":[{"type":"text","text":"all good"}]}`)
	found, _ := transcript.Scan(path, 64, nil)
	assert.False(t, found)
}

type recordingWarner struct{ events []string }

func (w *recordingWarner) TranscriptWarning(event, detail string) { w.events = append(w.events, event) }

func TestScanOversizedLineWarns(t *testing.T) {
	huge := strings.Repeat("a", 2<<20)
	path := writeLog(t, `{"content":[{"type":"text","text":"`+huge+`"}]}`)
	warner := &recordingWarner{}
	found, _ := transcript.Scan(path, 4096, warner)
	assert.False(t, found)
	assert.Contains(t, warner.events, "transcriptLineTooLong")
}
