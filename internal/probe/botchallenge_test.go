// SPDX-License-Identifier: GPL-3.0-or-later

package probe_test

import (
	"net/http"
	"testing"

	"github.com/ccstatus-go/ccstatus-network/internal/probe"
	"github.com/stretchr/testify/assert"
)

func TestIsBotChallengeCloudflareHeader(t *testing.T) {
	h := http.Header{}
	h.Set("cf-mitigated", "challenge")
	assert.True(t, probe.IsBotChallenge(403, h))
}

func TestIsBotChallengeCloudflareServer503(t *testing.T) {
	h := http.Header{}
	h.Set("server", "cloudflare")
	assert.True(t, probe.IsBotChallenge(503, h))
}

func TestIsBotChallengeAkamai(t *testing.T) {
	h := http.Header{}
	h.Set("x-akamai-transformed", "1")
	assert.True(t, probe.IsBotChallenge(429, h))
}

func TestIsBotChallengeWrongStatus(t *testing.T) {
	h := http.Header{}
	h.Set("cf-mitigated", "challenge")
	assert.False(t, probe.IsBotChallenge(500, h))
}

func TestIsBotChallengeNoHeaders(t *testing.T) {
	assert.False(t, probe.IsBotChallenge(503, http.Header{}))
}
