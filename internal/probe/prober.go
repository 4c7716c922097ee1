package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxStderrBytes = 4096
)

// Sentinel errors. Every probe failure wraps one of these so callers can
// tell "could not measure" apart from a measured zero.
var (
	ErrProbeFailed = errors.New("ffprobe failed")
	ErrNoDuration  = errors.New("duration unavailable")
	ErrNoStreams   = errors.New("no audio or video stream metadata")
)

// FFprobe runs the ffprobe binary. The zero value uses "ffprobe" from PATH
// with a 10 second per-call timeout.
type FFprobe struct {
	Binary  string
	Timeout time.Duration
}

// New returns an FFprobe for binary (empty means "ffprobe") with the given
// per-call timeout (zero means the default).
func New(binary string, timeout time.Duration) *FFprobe {
	return &FFprobe{Binary: binary, Timeout: timeout}
}

// Probe runs a single ffprobe JSON call against path and returns the parsed
// result. The call is bounded by the prober's timeout.
func (p *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- binary comes from operator config; path is passed as a single argument
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q: timed out after %s", ErrProbeFailed, path, timeout)
		}
		return nil, fmt.Errorf("%w: %q: %v (stderr: %s)", ErrProbeFailed, path, err, truncate(stderr.String()))
	}

	pr, err := ParseJSON(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrProbeFailed, path, err)
	}
	return pr, nil
}

// Duration returns the container duration of path in seconds.
func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	pr, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if !pr.Format.DurationOK {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, path)
	}
	return pr.Format.Duration, nil
}

// Profile returns the concat-relevant stream parameters of path. A file
// without any audio or video parameters is reported as a failure.
func (p *FFprobe) Profile(ctx context.Context, path string) (StreamProfile, error) {
	pr, err := p.Probe(ctx, path)
	if err != nil {
		return StreamProfile{}, err
	}
	sp := pr.Profile()
	if sp.IsEmpty() {
		return StreamProfile{}, fmt.Errorf("%w: %q", ErrNoStreams, path)
	}
	return sp, nil
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	PixFmt       string         `json:"pix_fmt"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	RFrameRate   string         `json:"r_frame_rate"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	Channels     int            `json:"channels"`
	SampleRate   string         `json:"sample_rate"`
	Disposition  map[string]int `json:"disposition"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: convertFormat(&raw.Format),
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			vs := convertVideo(s)
			if !vs.IsAttachedPic && pr.PrimaryVideo == nil {
				pr.PrimaryVideo = &vs
			}
		case "audio":
			pr.AudioStreams = append(pr.AudioStreams, convertAudio(s))
		}
	}
	return pr
}

func convertFormat(f *ffprobeFormat) FormatInfo {
	d, ok := parseFloat(f.Duration)
	size, _ := parseInt64(f.Size)
	br, _ := parseInt64(f.BitRate)
	return FormatInfo{
		Filename:   f.Filename,
		FormatName: f.FormatName,
		Duration:   d,
		DurationOK: ok && d >= 0,
		Size:       size,
		BitRate:    br,
	}
}

func convertVideo(s *ffprobeStream) VideoStream {
	return VideoStream{
		Index:         s.Index,
		Codec:         s.CodecName,
		PixFmt:        s.PixFmt,
		Width:         s.Width,
		Height:        s.Height,
		FrameRate:     s.RFrameRate,
		AvgFrameRate:  s.AvgFrameRate,
		IsAttachedPic: s.Disposition["attached_pic"] == 1,
	}
}

func convertAudio(s *ffprobeStream) AudioStream {
	sr, _ := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	return AudioStream{
		Index:      s.Index,
		Codec:      s.CodecName,
		Channels:   s.Channels,
		SampleRate: sr,
	}
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes] + "..."
	}
	return s
}
