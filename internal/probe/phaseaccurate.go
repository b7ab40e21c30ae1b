// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bassosimone/errclass"

	"github.com/ccstatus-go/ccstatus-network/internal/classify"
	"github.com/ccstatus-go/ccstatus-network/internal/transport"
)

// dnsTimeoutCeiling bounds the DNS phase's own sub-deadline so a slow
// resolver cannot silently consume the entire probe budget before a
// single byte of the actual request is attempted.
const dnsTimeoutCeiling = time.Second

// Resolver abstracts hostname resolution, matching *net.Resolver's
// LookupIP signature so tests can inject a fake without touching DNS.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// PhaseAccurateExecutor drives internal/transport's own composed pipeline
// (resolve -> ConnectFunc -> CancelWatchFunc -> ObserveConnFunc -> optional
// TLSHandshakeFunc -> HTTPConnFunc -> RoundTrip) and derives DNS/TCP/TLS/
// TTFB/Total from the real span boundaries the pipeline's logger observes,
// rather than httptrace heuristics. On any construction or call-time error
// it transparently falls back to Fallback (a HeuristicExecutor by default).
type PhaseAccurateExecutor struct {
	Config   *transport.Config
	Logger   transport.SLogger
	Resolver Resolver
	Fallback Executor

	// TLSConfig, when set, is cloned and used as the base TLS configuration
	// instead of the default {ServerName: host}. Primarily for tests that
	// need to talk to a server presenting a self-signed certificate.
	TLSConfig *tls.Config
}

var _ Executor = &PhaseAccurateExecutor{}

// NewPhaseAccurateExecutor returns a PhaseAccurateExecutor using the real
// network and falling back to a plain HeuristicExecutor.
func NewPhaseAccurateExecutor() *PhaseAccurateExecutor {
	return &PhaseAccurateExecutor{}
}

func (e *PhaseAccurateExecutor) Execute(ctx context.Context, req Request) Outcome {
	out, err := e.execute(ctx, req)
	if err != nil {
		return e.fallback().Execute(ctx, req)
	}
	return out
}

func (e *PhaseAccurateExecutor) fallback() Executor {
	if e.Fallback != nil {
		return e.Fallback
	}
	return NewHeuristicExecutor()
}

func (e *PhaseAccurateExecutor) resolver() Resolver {
	if e.Resolver != nil {
		return e.Resolver
	}
	return net.DefaultResolver
}

func (e *PhaseAccurateExecutor) tlsConfig(host string) *tls.Config {
	if e.TLSConfig == nil {
		return &tls.Config{ServerName: host}
	}
	cfg := e.TLSConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

func (e *PhaseAccurateExecutor) config() *transport.Config {
	if e.Config != nil {
		return e.Config
	}
	cfg := transport.NewConfig()
	// errclass.New classifies the per-stage errno (ETIMEDOUT, ECONNREFUSED,
	// ...) for the errClass field on each Start/Done log pair. This is a
	// logging concern only: the outcome's ErrorType still goes through
	// classify.Classify below, which folds every transport failure into
	// connection_error regardless of errno per spec.md.
	cfg.ErrClassifier = transport.ErrClassifierFunc(errclass.New)
	return cfg
}

// phaseRecorder is a transport.SLogger that records the wall-clock instant
// of each lifecycle event the transport pipeline already emits natively,
// forwarding every record unchanged to an optional underlying logger.
type phaseRecorder struct {
	underlying transport.SLogger

	mu                        sync.Mutex
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
	httpStart, httpDone       time.Time
}

func (p *phaseRecorder) Debug(msg string, args ...any) {
	if p.underlying != nil {
		p.underlying.Debug(msg, args...)
	}
}

func (p *phaseRecorder) Info(msg string, args ...any) {
	now := time.Now()
	p.mu.Lock()
	switch msg {
	case "connectStart":
		p.connectStart = now
	case "connectDone":
		p.connectDone = now
	case "tlsHandshakeStart":
		p.tlsStart = now
	case "tlsHandshakeDone":
		p.tlsDone = now
	case "httpRoundTripStart":
		p.httpStart = now
	case "httpRoundTripDone":
		p.httpDone = now
	}
	p.mu.Unlock()
	if p.underlying != nil {
		p.underlying.Info(msg, args...)
	}
}

func (e *PhaseAccurateExecutor) execute(ctx context.Context, req Request) (Outcome, error) {
	u, err := url.Parse(req.BaseURL)
	if err != nil {
		return Outcome{}, err
	}
	useTLS := u.Scheme != "http"
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return Outcome{}, err
	}

	dnsCtx, dnsCancel := withDNSBudget(ctx)
	defer dnsCancel()
	dnsStart := time.Now()
	ips, err := e.resolver().LookupIP(dnsCtx, "ip", host)
	dnsDone := time.Now()
	if err != nil {
		return Outcome{}, err
	}
	addr, ok := firstAddr(ips)
	if !ok {
		return Outcome{}, &net.DNSError{Err: "no addresses found", Name: host}
	}
	addrPort := netip.AddrPortFrom(addr, uint16(portNum))

	cfg := e.config()
	rec := &phaseRecorder{underlying: e.Logger}

	endpointFn := transport.NewEndpointFunc(addrPort)
	connectFn := transport.NewConnectFunc(cfg, "tcp", rec)
	cancelWatchFn := transport.NewCancelWatchFunc()
	observeFn := transport.NewObserveConnFunc(cfg, rec)

	var hc *transport.HTTPConn
	if useTLS {
		tlsConfig := e.tlsConfig(host)
		tlsFn := transport.NewTLSHandshakeFunc(cfg, tlsConfig, rec)
		httpConnFn := transport.NewHTTPConnFuncTLS(cfg, rec)
		pipeline := transport.Compose6[transport.Unit, netip.AddrPort, net.Conn, net.Conn, net.Conn, transport.TLSConn, *transport.HTTPConn](
			endpointFn, connectFn, cancelWatchFn, observeFn, tlsFn, httpConnFn)
		hc, err = pipeline.Call(ctx, transport.Unit{})
	} else {
		httpConnFn := transport.NewHTTPConnFuncPlain(cfg, rec)
		pipeline := transport.Compose5[transport.Unit, netip.AddrPort, net.Conn, net.Conn, net.Conn, *transport.HTTPConn](
			endpointFn, connectFn, cancelWatchFn, observeFn, httpConnFn)
		hc, err = pipeline.Call(ctx, transport.Unit{})
	}
	if err != nil {
		return Outcome{}, err
	}
	defer hc.Close()

	httpReq, err := newProbeRequest(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := hc.RoundTrip(httpReq)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	total := time.Since(dnsStart)

	out := Outcome{
		LatencyMs:      int(total.Milliseconds()),
		LastHTTPStatus: resp.StatusCode,
		HTTPVersion:    resp.Proto,
		BotChallenge:   IsBotChallenge(resp.StatusCode, resp.Header),
		APIConfig:      APIConfig{Endpoint: endpoint(req.BaseURL), Source: req.Source},
	}
	if label := classify.Classify(resp.StatusCode, nil); label != classify.Success {
		out.ErrorType = label
	}

	rec.mu.Lock()
	tlsPhase := phaseUnknown
	if useTLS {
		tlsPhase = formatMs(rec.tlsDone.Sub(rec.tlsStart))
	}
	out.Breakdown = breakdown(
		formatMs(dnsDone.Sub(dnsStart)),
		formatMs(rec.connectDone.Sub(rec.connectStart)),
		tlsPhase,
		formatMs(rec.httpDone.Sub(rec.httpStart)),
		formatMs(total),
	)
	rec.mu.Unlock()

	return out, nil
}

// withDNSBudget derives a DNS-phase sub-deadline from ctx's own deadline,
// capped at dnsTimeoutCeiling, so a slow resolver cannot consume the whole
// probe budget before a single byte of the actual request is attempted.
func withDNSBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return ctx, func() {}
	}
	budget := time.Until(deadline) / 4
	if budget <= 0 {
		return ctx, func() {}
	}
	if budget > dnsTimeoutCeiling {
		budget = dnsTimeoutCeiling
	}
	return context.WithTimeout(ctx, budget)
}

func firstAddr(ips []net.IP) (netip.Addr, bool) {
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}
