package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/logging"
)

const (
	defaultTimeout = 5 * time.Minute
	waitDelay      = 5 * time.Second
)

// ExecResult holds the outcome of a single ffmpeg invocation.
type ExecResult struct {
	Stderr   string
	Err      error
	TimedOut bool
}

// Concatenator joins files with ffmpeg's concat demuxer in stream-copy
// mode. The zero value runs "ffmpeg" from PATH with a five minute timeout
// and no timestamp retry. Timeout bounds the whole Concat call, retry
// included.
type Concatenator struct {
	Binary      string
	Timeout     time.Duration
	Verbose     bool
	GenPTSRetry bool
	Logger      zerolog.Logger
}

// Concat writes a manifest next to output, runs ffmpeg until it succeeds
// or no retry applies, and removes the manifest on every path. output is
// overwritten; callers pass a private partial path. A failure is a
// *ToolError or a manifest error.
func (c *Concatenator) Concat(ctx context.Context, inputs []string, output string) error {
	manifest, err := WriteManifest(filepath.Dir(output), inputs)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(manifest) }()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rs := NewRetryState(c.GenPTSRetry)
	for {
		args := BuildConcat(c.Binary, manifest, output, rs, c.Verbose)
		c.Logger.Debug().
			Str(logging.FieldOp, "concat").
			Str(logging.FieldOutput, output).
			Int(logging.FieldFiles, len(inputs)).
			Strs("args", args[1:]).
			Msg("running ffmpeg")

		start := time.Now()
		res := c.execute(ctx, args)
		if res.Err == nil {
			c.Logger.Debug().
				Str(logging.FieldOutput, output).
				Dur(logging.FieldElapsed, time.Since(start)).
				Msg("ffmpeg finished")
			return nil
		}
		if res.TimedOut || ctx.Err() != nil {
			return newToolError(res)
		}

		action := rs.Advance(res.Stderr)
		if action == RetryNone {
			return newToolError(res)
		}
		c.Logger.Warn().
			Str(logging.FieldOutput, output).
			Str("fix", action.String()).
			Int("attempt", rs.Attempt+1).
			Msg("ffmpeg failed; retrying with fix")
	}
}

// execute runs one ffmpeg attempt under ctx, whose deadline is shared by
// every attempt of a Concat call. In verbose mode stderr is tee'd to
// os.Stderr in real time; otherwise it is captured silently for
// classification.
func (c *Concatenator) execute(ctx context.Context, args []string) ExecResult {
	// #nosec G204 -- binary comes from operator config; all paths are single arguments
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay

	var stderrBuf bytes.Buffer
	if c.Verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	return ExecResult{
		Stderr:   stderrBuf.String(),
		Err:      err,
		TimedOut: err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
}

// Version returns the first line of "<binary> -version". ffprobe answers
// the same arguments.
func Version(ctx context.Context, binary string) (string, error) {
	args := VersionArgs(binary)
	// #nosec G204 -- binary comes from operator config
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

func newToolError(res ExecResult) *ToolError {
	te := &ToolError{
		ExitCode: -1,
		TimedOut: res.TimedOut,
		Stderr:   tail(res.Stderr),
		Hint:     Hint(res.Stderr),
		Err:      res.Err,
	}
	var exitErr *exec.ExitError
	if errors.As(res.Err, &exitErr) && !res.TimedOut {
		te.ExitCode = exitErr.ExitCode()
	}
	return te
}
