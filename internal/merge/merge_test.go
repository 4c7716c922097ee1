package merge

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/dramamerge/internal/ffmpeg"
	"github.com/backmassage/dramamerge/internal/probe"
)

var hd = probe.StreamProfile{Width: 1920, Height: 1080, FrameRate: "25/1", VideoCodec: "h264", AudioCodec: "aac"}

// fakeProber answers from maps keyed by file base name.
type fakeProber struct {
	durations   map[string]float64
	profiles    map[string]probe.StreamProfile
	durationErr map[string]bool
	profileErr  map[string]bool
}

func (p *fakeProber) Duration(_ context.Context, path string) (float64, error) {
	if p.durationErr[filepath.Base(path)] {
		return 0, errors.New("probe failed")
	}
	return p.durations[filepath.Base(path)], nil
}

func (p *fakeProber) Profile(_ context.Context, path string) (probe.StreamProfile, error) {
	name := filepath.Base(path)
	if p.profileErr[name] {
		return probe.StreamProfile{}, errors.New("probe failed")
	}
	if sp, ok := p.profiles[name]; ok {
		return sp, nil
	}
	return hd, nil
}

// fakeConcat writes a marker file and records every call.
type fakeConcat struct {
	mu    sync.Mutex
	calls [][]string
	fail  error
}

func (c *fakeConcat) Concat(_ context.Context, inputs []string, output string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, inputs)
	if c.fail != nil {
		return c.fail
	}
	return os.WriteFile(output, []byte("merged"), 0o644)
}

type recordingObserver struct {
	groups []Group
}

func (o *recordingObserver) GroupDone(g Group, _ Result, _ time.Duration) {
	o.groups = append(o.groups, g)
}

// makeSource creates files with the given sizes in a fresh directory.
func makeSource(t *testing.T, sizes map[string]int) string {
	t.Helper()
	dir := t.TempDir()
	for name, n := range sizes {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, n), 0o644))
	}
	return dir
}

func bases(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func partials(t *testing.T, dir string) []string {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, ".*.part.mp4"))
	require.NoError(t, err)
	return m
}

func newTestMerger(opts Options, p Prober, c Concatenator, obs Observer) *Merger {
	return New(opts, p, c, zerolog.Nop(), obs)
}

func TestRun_DurationScenario(t *testing.T) {
	src := makeSource(t, map[string]int{"f1.mp4": 100, "f2.mp4": 100, "f3.mp4": 100})
	out := filepath.Join(t.TempDir(), "out")
	p := &fakeProber{durations: map[string]float64{"f1.mp4": 600, "f2.mp4": 400, "f3.mp4": 500}}
	c := &fakeConcat{}

	m := newTestMerger(Options{MaxDuration: 1200}, p, c, nil)
	results, err := m.Run(context.Background(), Job{SourceDir: src, OutputDir: out, ShowName: "Show", Season: "01", StartEpisode: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "01", results[0].Episode)
	assert.Equal(t, []string{"f1.mp4", "f2.mp4"}, bases(results[0].Files))
	assert.Equal(t, "Show_S01E01.mp4", results[0].Output)
	assert.Equal(t, "02", results[1].Episode)
	assert.Equal(t, []string{"f3.mp4"}, bases(results[1].Files))
	assert.Equal(t, "Show_S01E02.mp4", results[1].Output)

	assert.FileExists(t, filepath.Join(out, "Show_S01E01.mp4"))
	assert.FileExists(t, filepath.Join(out, "Show_S01E02.mp4"))
	assert.Empty(t, partials(t, out))
}

func TestRun_EmptyDirectory(t *testing.T) {
	src := makeSource(t, map[string]int{"notes.txt": 10})
	c := &fakeConcat{}
	m := newTestMerger(Options{}, &fakeProber{}, c, nil)

	results, err := m.Run(context.Background(), Job{SourceDir: src, OutputDir: t.TempDir(), ShowName: "S", Season: "01", StartEpisode: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrNoFiles)
	assert.Equal(t, "no files to merge", results[0].Message())
	assert.Empty(t, c.calls)
}

func TestRun_DirectoryFailures(t *testing.T) {
	m := newTestMerger(Options{}, &fakeProber{}, &fakeConcat{}, nil)

	_, err := m.Run(context.Background(), Job{SourceDir: filepath.Join(t.TempDir(), "missing"), OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrDirectory)

	file := filepath.Join(t.TempDir(), "file.mp4")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = m.Run(context.Background(), Job{SourceDir: file, OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrDirectory)

	src := makeSource(t, map[string]int{"a.mp4": 1})
	_, err = m.Run(context.Background(), Job{SourceDir: src, OutputDir: file})
	assert.ErrorIs(t, err, ErrDirectory)
}

func TestRun_EpisodesIncreaseAcrossFailures(t *testing.T) {
	src := makeSource(t, map[string]int{"a.mp4": 10, "b.mp4": 10, "c.mp4": 10, "d.mp4": 10})
	out := t.TempDir()
	p := &fakeProber{
		durations: map[string]float64{"a.mp4": 100, "b.mp4": 100, "c.mp4": 100, "d.mp4": 100},
		// second group: c and d disagree
		profiles: map[string]probe.StreamProfile{"d.mp4": {Width: 1280, Height: 720, FrameRate: "25/1", VideoCodec: "h264", AudioCodec: "aac"}},
	}
	c := &fakeConcat{}
	m := newTestMerger(Options{MaxDuration: 200}, p, c, nil)

	results, err := m.Run(context.Background(), Job{SourceDir: src, OutputDir: out, ShowName: "S", Season: "2", StartEpisode: 7})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "07", results[0].Episode)
	assert.True(t, results[0].OK())
	assert.Equal(t, "S_S02E07.mp4", results[0].Output)

	assert.Equal(t, "08", results[1].Episode)
	assert.ErrorIs(t, results[1].Err, ErrInconsistent)
	assert.Contains(t, results[1].Message(), "parameter check failed: parameters inconsistent: ")
	assert.Contains(t, results[1].Message(), "width: 1920 vs 1280, height: 1080 vs 720")
	assert.Len(t, c.calls, 1, "no tool call for an inconsistent group")
}

func TestRun_SizeThresholdAndLoneOversizedFile(t *testing.T) {
	src := makeSource(t, map[string]int{"1.mp4": 40, "2.mp4": 40, "3.mp4": 500, "4.mp4": 30})
	c := &fakeConcat{}
	obs := &recordingObserver{}
	m := newTestMerger(Options{MaxSize: 100}, &fakeProber{}, c, obs)

	results, err := m.Run(context.Background(), Job{SourceDir: src, OutputDir: t.TempDir(), ShowName: "S", Season: "01", StartEpisode: 1})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"1.mp4", "2.mp4"}, bases(results[0].Files))
	assert.Equal(t, []string{"3.mp4"}, bases(results[1].Files))
	assert.Equal(t, []string{"4.mp4"}, bases(results[2].Files))

	require.Len(t, obs.groups, 3)
	assert.Equal(t, int64(80), obs.groups[0].Size)
	assert.Equal(t, int64(500), obs.groups[1].Size)
}

func TestRun_ProbeFailureCountsAsZero(t *testing.T) {
	src := makeSource(t, map[string]int{"a.mp4": 1, "b.mp4": 1})
	p := &fakeProber{
		durations:   map[string]float64{"a.mp4": 100},
		durationErr: map[string]bool{"b.mp4": true},
	}
	m := newTestMerger(Options{MaxDuration: 100}, p, &fakeConcat{}, nil)

	results, err := m.Run(context.Background(), Job{SourceDir: src, OutputDir: t.TempDir(), ShowName: "S", Season: "01", StartEpisode: 1})
	require.NoError(t, err)
	require.Len(t, results, 1, "unmeasured file adds nothing to the total")
	assert.Len(t, results[0].Files, 2)
}

func TestMergeGroup_NeverOverwrites(t *testing.T) {
	src := makeSource(t, map[string]int{"a.mp4": 1})
	out := t.TempDir()
	existing := filepath.Join(out, "S_S01E01.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("original"), 0o644))
	c := &fakeConcat{}
	m := newTestMerger(Options{}, &fakeProber{}, c, nil)

	r := m.MergeGroup(context.Background(), []string{filepath.Join(src, "a.mp4")}, Job{OutputDir: out, ShowName: "S", Season: "01"}, "01")
	require.ErrorIs(t, r.Err, ErrOutputExists)
	assert.Equal(t, "output already exists: "+existing, r.Message())
	assert.Empty(t, c.calls)

	b, _ := os.ReadFile(existing)
	assert.Equal(t, "original", string(b))
}

func TestMergeGroup_ToolFailureCleansUp(t *testing.T) {
	src := makeSource(t, map[string]int{"a.mp4": 1, "b.mp4": 1})
	out := filepath.Join(t.TempDir(), "nested", "out")
	c := &fakeConcat{fail: errors.New("ffmpeg exited with code 1")}
	m := newTestMerger(Options{}, &fakeProber{}, c, nil)

	files := []string{filepath.Join(src, "a.mp4"), filepath.Join(src, "b.mp4")}
	r := m.MergeGroup(context.Background(), files, Job{OutputDir: out, ShowName: "S", Season: "01"}, "03")
	require.ErrorIs(t, r.Err, ErrTool)
	assert.Contains(t, r.Message(), "ffmpeg exited with code 1")
	assert.DirExists(t, out, "output dir created before the tool runs")
	assert.Empty(t, partials(t, out))
	assert.NoFileExists(t, filepath.Join(out, "S_S01E03.mp4"))
}

func TestMergeGroup_ToolFailureKeepsDiagnostics(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	script := `#!/bin/sh
echo "[mp4 @ 0x55] Could not find tag for codec ass in stream #2, codec not currently supported in container" >&2
echo "Could not write header for output file #0 (incorrect codec parameters ?): Invalid argument" >&2
echo "Conversion failed!" >&2
exit 1
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	var logs bytes.Buffer
	src := makeSource(t, map[string]int{"a.mkv": 1, "b.mkv": 1})
	out := t.TempDir()
	c := &ffmpeg.Concatenator{Binary: bin, Logger: zerolog.Nop()}
	m := New(Options{}, &fakeProber{}, c, zerolog.New(&logs), nil)

	files := []string{filepath.Join(src, "a.mkv"), filepath.Join(src, "b.mkv")}
	r := m.MergeGroup(context.Background(), files, Job{OutputDir: out, ShowName: "S", Season: "01"}, "01")
	require.ErrorIs(t, r.Err, ErrTool)
	assert.Contains(t, r.Message(), "Could not find tag for codec ass")
	assert.Contains(t, r.Message(), "Conversion failed!")
	assert.Contains(t, r.Message(), "container cannot hold")
	assert.Contains(t, logs.String(), `"stderr":"[mp4 @ 0x55] Could not find tag for codec ass`)
	assert.Empty(t, partials(t, out))
}

func TestMergeGroup_BaselineUnreadable(t *testing.T) {
	p := &fakeProber{profileErr: map[string]bool{"a.mp4": true}}
	c := &fakeConcat{}
	m := newTestMerger(Options{}, p, c, nil)

	r := m.MergeGroup(context.Background(), []string{"/src/a.mp4", "/src/b.mp4"}, Job{OutputDir: t.TempDir(), ShowName: "S", Season: "01"}, "01")
	require.ErrorIs(t, r.Err, ErrInconsistent)
	assert.Equal(t, "parameter check failed: cannot read baseline metadata: /src/a.mp4", r.Message())
	assert.Empty(t, c.calls)
}

func TestChecker(t *testing.T) {
	hevc := hd
	hevc.VideoCodec = "hevc"
	narrow := hd
	narrow.Width = 1280
	noAudio := hd
	noAudio.AudioCodec = ""
	mp3 := hd
	mp3.AudioCodec = "mp3"

	tests := []struct {
		name     string
		profiles map[string]probe.StreamProfile
		errs     map[string]bool
		files    []string
		want     CheckResult
	}{
		{
			name:  "empty",
			files: nil,
			want:  CheckResult{Consistent: true, Message: "no files to check"},
		},
		{
			name:  "identical",
			files: []string{"a", "b", "c"},
			want:  CheckResult{Consistent: true, Message: "all parameters consistent"},
		},
		{
			name:     "width differs",
			profiles: map[string]probe.StreamProfile{"b": narrow},
			files:    []string{"a", "b"},
			want: CheckResult{
				Message:    "parameters inconsistent: b: width: 1920 vs 1280",
				File:       "b",
				Mismatches: []Mismatch{{"width", "1920", "1280"}},
			},
		},
		{
			name:     "video codec differs",
			profiles: map[string]probe.StreamProfile{"c": hevc},
			files:    []string{"a", "b", "c"},
			want: CheckResult{
				Message:    "parameters inconsistent: c: video_codec: h264 vs hevc",
				File:       "c",
				Mismatches: []Mismatch{{"video_codec", "h264", "hevc"}},
			},
		},
		{
			name:     "absent field not compared",
			profiles: map[string]probe.StreamProfile{"a": noAudio, "b": mp3},
			files:    []string{"a", "b"},
			want:     CheckResult{Consistent: true, Message: "all parameters consistent"},
		},
		{
			name:     "stops at first inconsistent file",
			profiles: map[string]probe.StreamProfile{"b": narrow, "c": hevc},
			files:    []string{"a", "b", "c"},
			want: CheckResult{
				Message:    "parameters inconsistent: b: width: 1920 vs 1280",
				File:       "b",
				Mismatches: []Mismatch{{"width", "1920", "1280"}},
			},
		},
		{
			name:  "later file unreadable",
			errs:  map[string]bool{"b": true},
			files: []string{"a", "b"},
			want:  CheckResult{Message: "cannot read metadata: b", File: "b"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker(&fakeProber{profiles: tc.profiles, profileErr: tc.errs}, []string{"width"}, zerolog.Nop())
			got := c.Check(context.Background(), tc.files)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Check mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestChecker_LogsMismatch(t *testing.T) {
	narrow := hd
	narrow.Width = 1280
	narrow.Height = 720

	var logs bytes.Buffer
	c := NewChecker(&fakeProber{profiles: map[string]probe.StreamProfile{"b": narrow}}, nil, zerolog.New(&logs))
	got := c.Check(context.Background(), []string{"a", "b"})
	require.False(t, got.Consistent)

	assert.Contains(t, logs.String(), `"baseline_resolution":"1920x1080"`)
	assert.Contains(t, logs.String(), `"resolution":"1280x720"`)
	assert.Contains(t, logs.String(), `"mismatched":["width","height"]`)
}

func TestPartition_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(20)
		files := make([]MediaFile, n)
		for i := range files {
			files[i] = MediaFile{
				Path:     string(rune('a' + i)),
				Duration: float64(rng.Intn(900)),
				Size:     int64(rng.Intn(1000)),
			}
		}
		opts := Options{MaxDuration: float64(rng.Intn(3) * 600), MaxSize: int64(rng.Intn(3) * 800)}
		groups := Partition(files, opts)

		// Concatenation of groups is the input, in order.
		var flat []MediaFile
		for _, g := range groups {
			require.NotEmpty(t, g.Files)
			flat = append(flat, g.Files...)

			// Multi-file groups respect every nonzero threshold.
			if len(g.Files) > 1 {
				if opts.MaxDuration > 0 {
					assert.LessOrEqual(t, g.Duration, opts.MaxDuration)
				}
				if opts.MaxSize > 0 {
					assert.LessOrEqual(t, g.Size, opts.MaxSize)
				}
			}
		}
		if n == 0 {
			assert.Empty(t, groups)
		} else {
			require.Equal(t, files, flat, "groups must concatenate to the input in order")
		}

		// Zero thresholds never seal.
		if opts.MaxDuration == 0 && opts.MaxSize == 0 && n > 0 {
			assert.Len(t, groups, 1)
		}
	}
}

func TestPartition_BoundaryIsInclusive(t *testing.T) {
	files := []MediaFile{{Path: "a", Duration: 600}, {Path: "b", Duration: 600}, {Path: "c", Duration: 1}}
	groups := Partition(files, Options{MaxDuration: 1200})
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a", "b"}, groups[0].Paths())
	assert.Equal(t, []string{"c"}, groups[1].Paths())
}

func TestDiscover(t *testing.T) {
	dir := makeSource(t, map[string]int{
		"b.MP4": 1, "a.mkv": 1, "c.txt": 1, "d.Mov": 1,
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.mp4"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub.mp4", "inner.mp4"), nil, 0o644))

	got, err := Discover(dir, []string{".mp4", ".mkv", ".mov"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mkv", "b.MP4", "d.Mov"}, bases(got))

	_, err = Discover(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeTool, Outcome(errors.Join(ErrTool, errors.New("x"))))
	assert.Equal(t, OutcomeExists, Outcome(ErrOutputExists))
	assert.Equal(t, OutcomeError, Outcome(errors.New("other")))
}
