// SPDX-License-Identifier: GPL-3.0-or-later

// Package credentials resolves the upstream API base URL and auth token
// from a fixed priority chain: process environment, shell configuration
// files, then the host CLI's JSON settings file. It never returns a
// partial result and never fails the calling event — any I/O or parse
// error on one source simply falls through to the next, matching the
// teacher transport package's "classify, never crash" philosophy applied
// to configuration discovery instead of network errors.
package credentials

import (
	"os"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
)

// Source identifies which layer produced a set of Credentials. The string
// values are a stable, lowercase enumeration — spec.md §9 calls out that
// historical implementations leaked debug-format strings here, so this is
// the one place that enumeration is allowed to be constructed.
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceShell       Source = "shell"
	SourceConfig      Source = "config"
)

// Credentials is produced fresh per event and never cached or persisted.
type Credentials struct {
	BaseURL   string
	AuthToken string
	Source    Source
}

// TokenLen returns the length of AuthToken, the only token-derived value
// that is safe to log.
func (c Credentials) TokenLen() int {
	return len(c.AuthToken)
}

// Logger receives source/length-only observations; it never sees token
// material. Implemented by sidecar.Logger.
type Logger interface {
	CredentialResolved(source Source, tokenLen int)
	CredentialAbsent()
}

type noopLogger struct{}

func (noopLogger) CredentialResolved(Source, int) {}
func (noopLogger) CredentialAbsent()              {}

// NoopLogger is a Logger that discards all events.
var NoopLogger Logger = noopLogger{}

// Resolver resolves credentials from the environment, then shell config
// files, then the CLI JSON config, stopping at first success.
type Resolver struct {
	Env    clock.Environment
	Home   func() (string, error)
	Logger Logger
}

// NewResolver returns a Resolver wired to the real OS environment and the
// real user home directory.
func NewResolver() *Resolver {
	return &Resolver{
		Env:    clock.System{},
		Home:   os.UserHomeDir,
		Logger: NoopLogger,
	}
}

// Resolve walks the priority chain and returns the first successful
// Credentials, or ok=false if no source yields both values.
func (r *Resolver) Resolve() (creds Credentials, ok bool) {
	logger := r.Logger
	if logger == nil {
		logger = NoopLogger
	}
	if creds, ok = r.fromEnvironment(); ok {
		logger.CredentialResolved(creds.Source, creds.TokenLen())
		return creds, true
	}
	if creds, ok = r.fromShell(); ok {
		logger.CredentialResolved(creds.Source, creds.TokenLen())
		return creds, true
	}
	if creds, ok = r.fromConfig(); ok {
		logger.CredentialResolved(creds.Source, creds.TokenLen())
		return creds, true
	}
	logger.CredentialAbsent()
	return Credentials{}, false
}

func (r *Resolver) fromEnvironment() (Credentials, bool) {
	baseURL, hasBase := r.Env.Lookup("ANTHROPIC_BASE_URL")
	token, hasToken := r.Env.Lookup("ANTHROPIC_AUTH_TOKEN")
	if !hasBase || !hasToken || baseURL == "" || token == "" {
		return Credentials{}, false
	}
	return Credentials{BaseURL: baseURL, AuthToken: token, Source: SourceEnvironment}, true
}

func (r *Resolver) homeDir() (string, bool) {
	if r.Home == nil {
		return "", false
	}
	home, err := r.Home()
	if err != nil || home == "" {
		return "", false
	}
	return home, true
}
