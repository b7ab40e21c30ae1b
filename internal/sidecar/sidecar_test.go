// SPDX-License-Identifier: GPL-3.0-or-later

package sidecar_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
	"github.com/ccstatus-go/ccstatus-network/internal/credentials"
	"github.com/ccstatus-go/ccstatus-network/internal/sidecar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestEnabledReadsFlexibleBoolean(t *testing.T) {
	assert.False(t, sidecar.Enabled(clock.Map{}))
	assert.True(t, sidecar.Enabled(clock.Map{"CCSTATUS_DEBUG": "1"}))
	assert.True(t, sidecar.Enabled(clock.Map{"CCSTATUS_DEBUG": "true"}))
}

func TestCredentialResolvedNeverLogsRawToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccstatus-debug.log")
	logger := sidecar.NewLogger(path, "credentials", nil)

	logger.CredentialResolved(credentials.SourceEnvironment, 42)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "credentialResolved", lines[0]["event"])
	assert.Equal(t, "credentials", lines[0]["component"])
	fields, ok := lines[0]["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "environment", fields["source"])
	assert.Equal(t, float64(42), fields["tokenLen"])
	assert.NotContains(t, fields, "token")
	assert.NotContains(t, fields, "authToken")
}

func TestCredentialAbsentAndTranscriptWarningAndEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccstatus-debug.log")
	logger := sidecar.NewLogger(path, "engine", nil)

	logger.CredentialAbsent()
	logger.TranscriptWarning("transcriptOpenFailed", "permission denied")
	logger.Event("cid-1", "probeStart", map[string]any{"mode": "green"})

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	assert.Equal(t, "credentialAbsent", lines[0]["event"])
	assert.Equal(t, "INFO", lines[0]["level"])

	assert.Equal(t, "transcriptOpenFailed", lines[1]["event"])
	assert.Equal(t, "WARN", lines[1]["level"])
	fields := lines[1]["fields"].(map[string]any)
	assert.Equal(t, "permission denied", fields["detail"])

	assert.Equal(t, "probeStart", lines[2]["event"])
	assert.Equal(t, "cid-1", lines[2]["correlation_id"])
}

func TestEmitIsSafeForConcurrentUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccstatus-debug.log")
	logger := sidecar.NewLogger(path, "engine", nil)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			logger.Event("cid", "probeStart", map[string]any{"n": n})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	lines := readLines(t, path)
	assert.Len(t, lines, 8)
}
