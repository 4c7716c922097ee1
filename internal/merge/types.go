package merge

import (
	"context"
	"time"

	"github.com/backmassage/dramamerge/internal/probe"
)

// MediaFile is a discovered input with its measured duration (seconds) and
// size (bytes). Either is zero when it could not be measured.
type MediaFile struct {
	Path     string
	Duration float64
	Size     int64
}

// Group is a contiguous run of files merged into one episode, with running
// totals.
type Group struct {
	Files    []MediaFile
	Duration float64
	Size     int64
}

// Paths returns the group's file paths in order.
func (g Group) Paths() []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}
	return paths
}

// Options are the fixed merge thresholds and filters. Zero thresholds are
// unbounded.
type Options struct {
	MaxDuration    float64 // seconds
	MaxSize        int64   // bytes
	Extensions     []string
	RequiredFields []string
}

// Job describes one directory merge.
type Job struct {
	SourceDir    string `json:"source_dir"`
	OutputDir    string `json:"output_dir"`
	ShowName     string `json:"show_name"`
	Season       string `json:"season"`
	StartEpisode int    `json:"start_episode"`
}

// Result is the outcome of one merge step. Err is nil on success, in which
// case Output is the output file name (not the full path).
type Result struct {
	Episode string
	Files   []string
	Output  string
	Err     error
}

// OK reports whether the merge succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Message is the human-readable outcome: the output name on success or the
// failure reason.
func (r Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Output
}

// Prober measures files. Errors mean "could not measure" and are distinct
// from a measured zero.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
	Profile(ctx context.Context, path string) (probe.StreamProfile, error)
}

// Concatenator joins inputs, in order, into output by stream copy.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// Observer is notified after each sealed group has been merged or failed.
type Observer interface {
	GroupDone(g Group, r Result, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) GroupDone(Group, Result, time.Duration) {}
