// SPDX-License-Identifier: GPL-3.0-or-later

// Package transcript implements the read-only tail scanner that looks for
// the most recent API-error event in a conversation log. It never writes
// anywhere and is bounded in both memory and CPU regardless of file size,
// matching the teacher transport package's preference for small, pure,
// single-purpose primitives (transport.ConnectFunc, transport.TLSHandshakeFunc)
// over do-everything helpers.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ccstatus-go/ccstatus-network/internal/classify"
)

const (
	// DefaultTailKB is the default read window when CCSTATUS_JSONL_TAIL_KB
	// is unset.
	DefaultTailKB = 64
	// MaxTailKB is the hard ceiling regardless of env override.
	MaxTailKB = 10_000
	// maxLineBytes guards against a single oversized line consuming
	// unbounded memory.
	maxLineBytes = 1 << 20 // 1 MiB
)

// ErrorEvent is the most recent API-error record found in the tail.
type ErrorEvent struct {
	Timestamp time.Time
	Code      int
	Message   string
}

// Warner receives non-fatal scan diagnostics (malformed lines, oversized
// lines); implemented by sidecar.Logger. A nil Warner is valid and simply
// discards warnings.
type Warner interface {
	TranscriptWarning(event string, detail string)
}

// record models only the fields the scanner consumes from a transcript
// line; everything else is ignored, per spec.md §9's guidance to model
// untyped JSON as a small fixed schema.
type record struct {
	IsAPIErrorMessage bool   `json:"isApiErrorMessage"`
	Timestamp         string `json:"timestamp"`
	Message           struct {
		Content []contentItem `json:"content"`
	} `json:"message"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (r record) textItems() []contentItem {
	if len(r.Message.Content) > 0 {
		return r.Message.Content
	}
	return r.Content
}

// Scan reads up to tailKB kilobytes from the end of path and returns the
// last API-error event found, if any. It never returns a Go error for
// malformed content — per spec.md §7, transcript-read failures degrade the
// RED gate to "no error detected", not a propagated error. An open or read
// failure also returns found=false; it is told apart from "no error in
// transcript" only by the transcriptOpenFailed/transcriptReadFailed warning
// sent to warn.
func Scan(path string, tailKB int, warn Warner) (found bool, last ErrorEvent) {
	if warn == nil {
		warn = noopWarner{}
	}
	if tailKB <= 0 {
		tailKB = DefaultTailKB
	}
	if tailKB > MaxTailKB {
		tailKB = MaxTailKB
	}

	f, err := os.Open(path)
	if err != nil {
		warn.TranscriptWarning("transcriptOpenFailed", err.Error())
		return false, ErrorEvent{}
	}
	defer f.Close()

	tail, err := readTail(f, int64(tailKB)*1024)
	if err != nil {
		warn.TranscriptWarning("transcriptReadFailed", err.Error())
		return false, ErrorEvent{}
	}

	return scanLines(tail, warn)
}

// readTail seeks to the end of f and reads up to n bytes. When the read
// starts past offset 0 it drops the possibly-partial first line itself.
func readTail(f *os.File, n int64) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	start := int64(0)
	if size > n {
		start = size - n
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if start > 0 {
		// Discard the possibly-partial first line.
		if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
			buf = buf[idx+1:]
		} else {
			buf = nil
		}
	}
	return buf, nil
}

// scanLines walks tail line by line using bufio.Reader rather than
// bufio.Scanner: a Scanner aborts the entire scan on one oversized token,
// whereas spec.md §4.2 requires skipping just the offending line and
// continuing.
func scanLines(tail []byte, warn Warner) (found bool, last ErrorEvent) {
	reader := bufio.NewReaderSize(bytes.NewReader(tail), 64*1024)
	for {
		line, tooLong, eof := readLine(reader)
		switch {
		case tooLong:
			warn.TranscriptWarning("transcriptLineTooLong", "")
		case len(line) > 0:
			var rec record
			if err := json.Unmarshal(line, &rec); err == nil {
				if event, ok := matchError(rec); ok {
					found = true
					last = event
				}
			}
		}
		if eof {
			break
		}
	}
	return found, last
}

// readLine reads one newline-delimited line from r, bounded by
// maxLineBytes. It reports tooLong=true (and discards the remainder of
// that line) instead of returning it, so the caller can skip one bad line
// and keep scanning. eof is true once the underlying reader is exhausted.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, eof bool) {
	var buf bytes.Buffer
	for {
		chunk, err := r.ReadBytes('\n')
		buf.Write(chunk)
		if buf.Len() > maxLineBytes {
			tooLong = true
		}
		if err != nil {
			return trimNewline(buf.Bytes()), tooLong, true
		}
		if len(chunk) > 0 && chunk[len(chunk)-1] == '\n' {
			if tooLong {
				return nil, true, false
			}
			return trimNewline(buf.Bytes()), false, false
		}
	}
}

func trimNewline(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	return b
}

func matchError(rec record) (ErrorEvent, bool) {
	if rec.IsAPIErrorMessage {
		return extractEvent(rec), true
	}
	for _, item := range rec.textItems() {
		if beginsWithAPIError(item.Text) {
			return extractEvent(rec), true
		}
	}
	return ErrorEvent{}, false
}

func beginsWithAPIError(s string) bool {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	return len(trimmed) >= len("api error") && strings.EqualFold(trimmed[:len("api error")], "api error")
}

// extractEvent walks every content text item looking for the first
// parsable three-digit status code, per spec.md §4.2 ("extracting the
// first parsable three-digit code"). If none of the items carry a code,
// the event is stored with code 0 and the fixed message "API Error"
// (spec.md §8's boundary case for a bare "API error" line), rather than
// whatever raw casing the transcript line happened to use.
func extractEvent(rec record) ErrorEvent {
	code := 0
	for _, item := range rec.textItems() {
		if code != 0 {
			break
		}
		if c := classify.ExtractStatusCode(item.Text); c != 0 {
			code = c
		}
	}
	message := "API Error"
	if code != 0 {
		for _, item := range rec.textItems() {
			if item.Text != "" {
				message = item.Text
			}
		}
	}
	return ErrorEvent{Timestamp: parseRecordTimestamp(rec.Timestamp), Code: code, Message: message}
}

// parseRecordTimestamp tries the layouts transcript producers are known to
// emit (UTC or offset-qualified RFC3339). Per spec.md §3's invariant,
// transcript timestamps originally in UTC are converted to local time
// before persistence — that conversion happens downstream, in the engine
// (clock.FormatLocal when building the statestore.ErrorEvent), not here;
// this function only parses what the log actually wrote.
func parseRecordTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type noopWarner struct{}

func (noopWarner) TranscriptWarning(string, string) {}
