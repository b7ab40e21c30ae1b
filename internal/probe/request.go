// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// messagesPath is appended to the credential's base URL to form the
// endpoint probed, per spec.md §4.4's "endpoint = base_url + /v1/messages".
const messagesPath = "/v1/messages"

// probeBody is the minimal request body: one short user message and
// max_tokens=1, enough to exercise the full request/response path without
// consuming a meaningful amount of upstream quota.
type probeBody struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + messagesPath
}

func newProbeRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := probeBody{
		Model:     "claude-haiku-4-5",
		MaxTokens: 1,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{{Role: "user", Content: "ping"}},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(req.BaseURL), bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", req.AuthToken)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	return httpReq, nil
}
