// SPDX-License-Identifier: GPL-3.0-or-later

package probe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/classify"
	"github.com/ccstatus-go/ccstatus-network/internal/credentials"
	"github.com/ccstatus-go/ccstatus-network/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicExecutorSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	exec := probe.NewHeuristicExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := exec.Execute(ctx, probe.Request{BaseURL: srv.URL, AuthToken: "secret", Source: credentials.SourceEnvironment})

	assert.Equal(t, http.StatusOK, out.LastHTTPStatus)
	assert.Equal(t, classify.Label(""), out.ErrorType)
	assert.Contains(t, out.Breakdown, "Total:")
	assert.Contains(t, out.Breakdown, "DNS:")
	assert.Equal(t, srv.URL+"/v1/messages", out.APIConfig.Endpoint)
	assert.False(t, out.BotChallenge)
}

func TestHeuristicExecutorClassifiesNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	exec := probe.NewHeuristicExecutor()
	out := exec.Execute(context.Background(), probe.Request{BaseURL: srv.URL, AuthToken: "t"})

	assert.Equal(t, http.StatusTooManyRequests, out.LastHTTPStatus)
	assert.Equal(t, classify.RateLimitError, out.ErrorType)
}

func TestHeuristicExecutorDetectsBotChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-mitigated", "challenge")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	exec := probe.NewHeuristicExecutor()
	out := exec.Execute(context.Background(), probe.Request{BaseURL: srv.URL, AuthToken: "t"})

	assert.True(t, out.BotChallenge)
}

func TestHeuristicExecutorConnectionError(t *testing.T) {
	exec := probe.NewHeuristicExecutor()
	out := exec.Execute(context.Background(), probe.Request{BaseURL: "http://127.0.0.1:1", AuthToken: "t"})

	require.Equal(t, classify.ConnectionError, out.ErrorType)
	assert.Equal(t, 0, out.LastHTTPStatus)
}

func TestHeuristicExecutorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := probe.NewHeuristicExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	out := exec.Execute(ctx, probe.Request{BaseURL: srv.URL, AuthToken: "t"})
	assert.Contains(t, out.Breakdown, "Total:timeout")
	assert.Equal(t, classify.ConnectionError, out.ErrorType)
}
