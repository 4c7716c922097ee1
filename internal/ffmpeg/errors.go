package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

const maxStderrTail = 2048

// Pre-compiled regexes for classifying ffmpeg stderr output. The timestamp
// pattern drives the retry; the others only select a hint.
var (
	reTimestampIssue = regexp.MustCompile(
		`(?i)Non-monotonous DTS|non monotonically increasing dts|` +
			`DTS .*out of order|PTS .*out of order|` +
			`pts has no value|missing PTS|Timestamps are unset`)

	reMissingInput = regexp.MustCompile(
		`(?i)Impossible to open|No such file or directory`)

	reInvalidData = regexp.MustCompile(
		`(?i)Invalid data found when processing input|moov atom not found`)

	reUnsupportedCodec = regexp.MustCompile(
		`(?i)Could not find tag for codec|Tag .* incompatible with output codec|` +
			`codec not currently supported in container`)

	reStreamMismatch = regexp.MustCompile(
		`(?i)codec frame size is not set|Error initializing output stream`)

	rePermission = regexp.MustCompile(`(?i)Permission denied|Read-only file system`)

	reDiskFull = regexp.MustCompile(`(?i)No space left on device`)
)

// MatchTimestampIssue reports whether stderr contains a timestamp discontinuity.
func MatchTimestampIssue(stderr string) bool {
	return reTimestampIssue.MatchString(stderr)
}

// Hint returns a short operator-facing explanation for a known failure
// pattern in stderr, or "" when nothing is recognized.
func Hint(stderr string) string {
	switch {
	case reMissingInput.MatchString(stderr):
		return "an input file disappeared or is unreadable"
	case reInvalidData.MatchString(stderr):
		return "an input file is truncated or not a valid container"
	case reUnsupportedCodec.MatchString(stderr):
		return "the mp4 container cannot hold one of the streams"
	case reStreamMismatch.MatchString(stderr):
		return "stream layout differs between inputs; stream copy cannot join them"
	case reTimestampIssue.MatchString(stderr):
		return "timestamps are discontinuous across inputs"
	case rePermission.MatchString(stderr):
		return "output directory is not writable"
	case reDiskFull.MatchString(stderr):
		return "output filesystem is full"
	}
	return ""
}

// ToolError describes a failed ffmpeg invocation. ExitCode is -1 when the
// process did not start or was killed.
type ToolError struct {
	ExitCode int
	TimedOut bool
	Stderr   string
	Hint     string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		b.WriteString("ffmpeg timed out")
	case e.ExitCode >= 0:
		fmt.Fprintf(&b, "ffmpeg exited with code %d", e.ExitCode)
	default:
		fmt.Fprintf(&b, "ffmpeg failed: %v", e.Err)
	}
	if lines := stderrLines(e.Stderr); lines != "" {
		b.WriteString(": ")
		b.WriteString(lines)
	}
	if e.Hint != "" {
		b.WriteString(" (")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

// tail keeps the last maxStderrTail bytes of s.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderrTail {
		return s
	}
	return "..." + s[len(s)-maxStderrTail:]
}

// stderrLines joins the non-empty lines of s with " | " so the cause,
// usually printed first, survives into a one-line message.
func stderrLines(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, " | ")
}
