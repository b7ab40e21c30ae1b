// SPDX-License-Identifier: GPL-3.0-or-later

// Command ccstatus-network is the statusline network-health segment: it
// reads one host event from stdin, runs at most one upstream probe, and
// writes one rendered line to stdout. It never exits non-zero; per
// spec.md §6, exit codes are reserved for the outer CLI.
package main

import (
	"io"
	"os"

	"github.com/ccstatus-go/ccstatus-network/internal/clock"
	"github.com/ccstatus-go/ccstatus-network/internal/credentials"
	"github.com/ccstatus-go/ccstatus-network/internal/engine"
	"github.com/ccstatus-go/ccstatus-network/internal/probe"
	"github.com/ccstatus-go/ccstatus-network/internal/sidecar"
	"github.com/ccstatus-go/ccstatus-network/internal/statestore"
	"github.com/ccstatus-go/ccstatus-network/internal/transport"
)

func main() {
	stdin, err := io.ReadAll(os.Stdin)
	if err != nil {
		// Genuinely unreadable stdin is the one hard failure spec.md §7
		// reserves for stderr; there is nothing an event-shaped state
		// transition could mean here.
		os.Stderr.WriteString("ccstatus-network: reading stdin: " + err.Error() + "\n")
		return
	}

	home, _ := os.UserHomeDir()
	env := clock.System{}

	var logger engine.Logger = engine.NoopLogger
	if sidecar.Enabled(env) {
		logger = sidecar.NewLogger(sidecar.DefaultPath(home), "engine", clock.System{})
	}

	resolver := &credentials.Resolver{
		Env:    env,
		Home:   os.UserHomeDir,
		Logger: logger,
	}

	e := &engine.Engine{
		Credentials:    resolver,
		Store:          statestore.New(statestore.DefaultPath(home), clock.System{}),
		Executor:       newExecutor(env),
		Env:            env,
		Logger:         logger,
		CorrelationID:  transport.NewSpanID,
		ColdMarkerPath: statestore.DefaultPath(home) + ".cold-lock",
	}

	line := e.Run(stdin)
	os.Stdout.WriteString(line + "\n")
}

func newExecutor(env clock.Environment) probe.Executor {
	if clock.Bool(env, "CCSTATUS_PHASE_ACCURATE") {
		return probe.NewPhaseAccurateExecutor()
	}
	return probe.NewHeuristicExecutor()
}
