// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/classify"
)

// HeuristicExecutor is the default Executor: a net/http.Client driven by
// httptrace.ClientTrace hooks. Phases whose hooks never fire (a reused
// connection) render "reuse"; phases that cannot be attributed at all
// render "-", per spec.md §4.4.
type HeuristicExecutor struct {
	// Transport overrides the http.RoundTripper used, primarily for tests
	// that need to point at an httptest.Server without touching the real
	// network. Defaults to a fresh *http.Transport per call.
	Transport http.RoundTripper
}

var _ Executor = &HeuristicExecutor{}

// NewHeuristicExecutor returns a HeuristicExecutor using the real network.
func NewHeuristicExecutor() *HeuristicExecutor {
	return &HeuristicExecutor{}
}

func (e *HeuristicExecutor) Execute(ctx context.Context, req Request) Outcome {
	var mu sync.Mutex
	var dnsStart, dnsDone, connStart, connDone, tlsStart, tlsDone, firstByte time.Time
	var reused bool

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			mu.Lock()
			dnsStart = time.Now()
			mu.Unlock()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			mu.Lock()
			dnsDone = time.Now()
			mu.Unlock()
		},
		ConnectStart: func(string, string) {
			mu.Lock()
			connStart = time.Now()
			mu.Unlock()
		},
		ConnectDone: func(string, string, error) {
			mu.Lock()
			connDone = time.Now()
			mu.Unlock()
		},
		TLSHandshakeStart: func() {
			mu.Lock()
			tlsStart = time.Now()
			mu.Unlock()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			mu.Lock()
			tlsDone = time.Now()
			mu.Unlock()
		},
		GotConn: func(info httptrace.GotConnInfo) {
			mu.Lock()
			reused = info.Reused
			mu.Unlock()
		},
		GotFirstResponseByte: func() {
			mu.Lock()
			firstByte = time.Now()
			mu.Unlock()
		},
	}

	t0 := time.Now()
	httpReq, err := newProbeRequest(httptrace.WithClientTrace(ctx, trace), req)
	if err != nil {
		return Outcome{
			ErrorType: classify.ConnectionError,
			APIConfig: APIConfig{Endpoint: endpoint(req.BaseURL), Source: req.Source},
			Breakdown: breakdown(phaseUnknown, phaseUnknown, phaseUnknown, phaseUnknown, phaseUnknown),
		}
	}

	txp := e.Transport
	var h1txp *http.Transport
	if txp == nil {
		h1txp = &http.Transport{DisableKeepAlives: true}
		txp = h1txp
	}
	client := &http.Client{Transport: txp}

	resp, doErr := client.Do(httpReq)
	total := time.Since(t0)
	if h1txp != nil {
		h1txp.CloseIdleConnections()
	}

	mu.Lock()
	defer mu.Unlock()

	out := Outcome{
		APIConfig: APIConfig{Endpoint: endpoint(req.BaseURL), Source: req.Source},
	}

	if resp != nil {
		defer resp.Body.Close()
		out.LastHTTPStatus = resp.StatusCode
		out.HTTPVersion = resp.Proto
		out.BotChallenge = IsBotChallenge(resp.StatusCode, resp.Header)
	}

	label := classify.Classify(out.LastHTTPStatus, doErr)
	if label != classify.Success {
		out.ErrorType = label
	}

	totalPhase := formatMs(total)
	if errors.Is(doErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		totalPhase = phaseTimeout
	}

	out.LatencyMs = int(total.Milliseconds())
	out.Breakdown = breakdown(
		phaseValue(dnsStart, dnsDone, reused),
		phaseValue(connStart, connDone, reused),
		phaseValue(tlsStart, tlsDone, reused),
		ttfbValue(t0, firstByte),
		totalPhase,
	)
	return out
}

// phaseValue renders a DNS/TCP/TLS phase from its start/done timestamps:
// "reuse" when the underlying connection was reused (the hook never
// fired), "-" when the hook simply never fired for another reason, or the
// measured duration.
func phaseValue(start, done time.Time, reused bool) string {
	if start.IsZero() || done.IsZero() {
		if reused {
			return phaseReuse
		}
		return phaseUnknown
	}
	return formatMs(done.Sub(start))
}

func ttfbValue(t0, firstByte time.Time) string {
	if firstByte.IsZero() {
		return phaseUnknown
	}
	return formatMs(firstByte.Sub(t0))
}
