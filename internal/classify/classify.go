// SPDX-License-Identifier: GPL-3.0-or-later

// Package classify maps a probe outcome (HTTP status plus transport error
// text) to the stable error-kind label the rest of the monitoring core
// persists and renders. It is a pure function, grounded on the teacher's
// ErrClassifier interface shape (transport.ErrClassifier) but specialized
// to the fixed status-code table the spec requires instead of the
// teacher's open-ended syscall-errno labels. Errno-level detection itself
// is delegated to github.com/bassosimone/errclass, the same library the
// teacher depends on for this concern.
package classify

import (
	"strconv"
	"strings"

	"github.com/bassosimone/errclass"
)

// Label is a classified outcome kind.
type Label string

const (
	Success               Label = "success"
	ConnectionError       Label = "connection_error"
	InvalidRequestError   Label = "invalid_request_error"
	AuthenticationError   Label = "authentication_error"
	PermissionError       Label = "permission_error"
	NotFoundError         Label = "not_found_error"
	RequestTooLarge       Label = "request_too_large"
	RateLimitError        Label = "rate_limit_error"
	APIError              Label = "api_error"
	ServerError           Label = "server_error"
	SocketHangUp          Label = "socket_hang_up"
	OverloadedError       Label = "overloaded_error"
	ClientError           Label = "client_error"
	UnknownError          Label = "unknown_error"
)

// statusTable holds the exact, non-overlapping status-code mappings from
// spec.md §4.3, checked before the generic 4xx/5xx fallback.
var statusTable = map[int]Label{
	400: InvalidRequestError,
	401: AuthenticationError,
	403: PermissionError,
	404: NotFoundError,
	413: RequestTooLarge,
	429: RateLimitError,
	500: APIError,
	502: ServerError,
	504: SocketHangUp,
	529: OverloadedError,
}

// transportErrorSubstrings are case-insensitive substrings of a transport
// error's text that indicate a connection-level failure regardless of the
// underlying platform errno, per spec.md §4.3.
var transportErrorSubstrings = []string{
	"tls",
	"ssl",
	"certificate",
	"x509",
	"dns",
	"no such host",
	"socket hang up",
	"request timed out",
	"timeout",
	"usage policy",
	"connection refused",
	"connection reset",
	"network is unreachable",
	"no route to host",
	"broken pipe",
}

// Classify maps an HTTP status and/or a transport error into a stable
// Label, following the exhaustive, ordered table from spec.md §4.3.
//
// httpStatus is 0 when there is no HTTP response at all (transport
// failure). transportErr is non-nil only for transport-level failures
// (DNS, TCP, TLS, timeouts); it is never a non-2xx HTTP response, which is
// data (httpStatus), not a Go error.
func Classify(httpStatus int, transportErr error) Label {
	if transportErr != nil || httpStatus == 0 {
		return ConnectionError
	}
	if httpStatus >= 200 && httpStatus < 300 {
		return Success
	}
	if label, ok := statusTable[httpStatus]; ok {
		return label
	}
	switch {
	case httpStatus >= 400 && httpStatus < 500:
		return ClientError
	case httpStatus >= 500 && httpStatus < 600:
		return ServerError
	default:
		return UnknownError
	}
}

// IsTransportFailure reports whether err should be treated as a
// connection-level failure (DNS/TCP/TLS/timeout/socket-hang-up), checking
// both platform errno values (via errclass, which classifies the
// underlying syscall errno across unix and windows) and the text
// substrings from spec.md §4.3. errclass.EGENERIC is its catch-all for
// errors it cannot place, so it does not by itself count as a match.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if class := errclass.New(err); class != "" && class != errclass.EGENERIC {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, substr := range transportErrorSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// ExtractStatusCode finds the first standalone three-digit run in s,
// returning 0 if none is found. Used by the transcript scanner to pull an
// HTTP-like status code out of a free-text "API error" message.
func ExtractStatusCode(s string) int {
	runes := []rune(s)
	for i := 0; i+3 <= len(runes); i++ {
		if (i == 0 || !isDigit(runes[i-1])) && isDigit(runes[i]) && isDigit(runes[i+1]) && isDigit(runes[i+2]) {
			if i+3 == len(runes) || !isDigit(runes[i+3]) {
				if n, err := strconv.Atoi(string(runes[i : i+3])); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
