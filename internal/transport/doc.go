// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport provides composable primitives for the phase-accurate
// probe pipeline used by the ccstatus network-monitoring core.
//
// # Core Abstraction
//
// The package is built around a single interface:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// Each Func represents an atomic network operation with exactly one success
// mode and one failure mode. This design enables type-safe composition via
// [Compose5] and [Compose6], where the compiler verifies that outputs match
// inputs across pipeline stages. The probe's pipeline is always exactly
// five stages (plain HTTP) or six (TLS), so those are the only two arities
// this package exposes; nothing upstream needs a general N-ary composer.
//
// # Available Primitives
//
// Connection establishment:
//   - [ConnectFunc]: dials TCP endpoints
//   - [TLSHandshakeFunc]: performs TLS handshake over an existing connection
//   - [ObserveConnFunc]: observes connections for logging I/O operations
//   - [CancelWatchFunc]: closes connection on context cancellation
//
// HTTP:
//   - [HTTPConn]: wraps a connection with an HTTP transport, performs round trips
//     with structured logging and transparent body observation (created via [NewHTTPConnFunc])
//
// Composition utilities:
//   - [Compose5], [Compose6]: chain the probe's fixed five- or six-stage
//     pipeline into a single Func
//   - [FuncAdapter]: wrap a function as a Func for ad-hoc custom behavior
//   - [ConstFunc]: lift a pure value into a Func
//   - [NewEndpointFunc]: convenience wrapper for ConstFunc with endpoints
//
// # Connection Lifecycle
//
// This package uses two ownership patterns for connection management:
//
// Dial operations ([ConnectFunc], [TLSHandshakeFunc]) create connections and
// transfer ownership to the next stage on success. On error, they close the connection.
//
// Wrapper types ([HTTPConn]) OWN their underlying connection. The caller
// must call Close() when done, which closes the underlying connection.
// These can be composed into pipelines via their corresponding Func types.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with [log/slog]).
//
// By default, logging is disabled. Set the Logger field to a custom [*slog.Logger]
// to enable logging. Error classification is configurable via [ErrClassifier]; by
// default, a no-op classifier is used.
//
// Primitives emit span events (*Start/*Done pairs) recording operation
// lifecycle including timing and success/failure. The probe package's
// phase-accurate executor consumes these events directly to derive the
// DNS/TCP/TLS/TTFB/Total breakdown instead of relying on heuristics.
//
// All events share a common set of fields: remoteAddr, protocol, and t
// (timestamp); every event except connectStart, which precedes the local
// socket, also carries localAddr. Completion events (*Done) additionally include t0 (start
// time), err, and errClass. I/O-level events (read, write, deadline changes)
// are emitted at [slog.LevelDebug]; all other events use [slog.LevelInfo].
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7) for each
// operation, then attach it to the logger with [*slog.Logger.With]. All log entries
// from that operation will share the same spanID, enabling correlation across
// pipeline stages and simplifying log analysis. The orchestrator reuses this
// to generate one correlation ID per stdin event.
//
// # Timeout and Context Philosophy
//
// This package is context-transparent: operations never modify the context they receive.
// The caller controls timeouts externally via [context.WithTimeout] or [context.WithDeadline].
// When the context is done (timeout or cancel), operations fail and the pipeline
// is interrupted.
//
// Connection lifecycle requires [CancelWatchFunc] to bind the context lifecycle to
// the connection: when the context is done, the connection is closed immediately,
// causing any in-progress I/O to fail.
//
// IMPORTANT: Without [CancelWatchFunc] in a pipeline, I/O operations may block
// indefinitely even after the context is done.
//
// # Design Boundaries
//
// This package intentionally provides only primitives. Gating, retries,
// probe-mode selection, and outcome classification are the responsibility
// of the probe and engine packages built on top of it.
package transport
