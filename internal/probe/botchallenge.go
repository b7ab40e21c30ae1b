// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"net/http"
	"strings"
)

// botChallengeStatuses are the HTTP statuses that, combined with a
// challenge header, mark a response as an anti-bot CDN middleware
// challenge rather than a genuine upstream answer, per spec.md §9's Open
// Question (resolved: centralized table in internal/probe).
var botChallengeStatuses = map[int]bool{
	403: true,
	429: true,
	503: true,
}

// botChallengeHeaders are header names whose mere presence (any value)
// marks a challenge response.
var botChallengeHeaders = []string{
	"cf-mitigated",
	"cf-chl-bypass",
	"x-akamai-transformed",
	"x-sucuri-id",
}

// IsBotChallenge reports whether status/headers look like anti-bot CDN
// middleware rather than the upstream API itself.
func IsBotChallenge(status int, headers http.Header) bool {
	if !botChallengeStatuses[status] {
		return false
	}
	for _, name := range botChallengeHeaders {
		if headers.Get(name) != "" {
			return true
		}
	}
	if status == 503 && strings.EqualFold(headers.Get("server"), "cloudflare") {
		return true
	}
	return false
}
