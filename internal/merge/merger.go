package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/ffmpeg"
	"github.com/backmassage/dramamerge/internal/fsutil"
	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/naming"
)

// Merger runs grouping and merging for one configuration. It is safe to
// reuse across jobs but runs one job at a time per call.
type Merger struct {
	opts     Options
	prober   Prober
	concat   Concatenator
	checker  *Checker
	observer Observer
	log      zerolog.Logger
}

// New builds a Merger. obs may be nil.
func New(opts Options, p Prober, c Concatenator, log zerolog.Logger, obs Observer) *Merger {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Merger{
		opts:     opts,
		prober:   p,
		concat:   c,
		checker:  NewChecker(p, opts.RequiredFields, log),
		observer: obs,
		log:      log,
	}
}

// Run merges every eligible file in job.SourceDir into consecutive
// episodes in job.OutputDir and returns one Result per sealed group, in
// episode order.
//
// The returned error is non-nil only for whole-run directory failures,
// which wrap ErrDirectory and happen before any grouping. An empty source
// directory yields a single Result carrying ErrNoFiles. Per-group failures
// are recorded in their Result and the run continues with the next
// episode number.
func (m *Merger) Run(ctx context.Context, job Job) ([]Result, error) {
	log := m.log.With().Str(logging.FieldDir, job.SourceDir).Logger()

	if err := checkDirs(job); err != nil {
		log.Error().Err(err).Str(logging.FieldOp, "check_dirs").Msg("cannot start merge")
		return nil, err
	}
	files, err := Discover(job.SourceDir, m.opts.Extensions)
	if err != nil {
		err = fmt.Errorf("%w: read source %q: %w", ErrDirectory, job.SourceDir, err)
		log.Error().Err(err).Str(logging.FieldOp, "discover").Msg("cannot list source")
		return nil, err
	}
	if len(files) == 0 {
		log.Warn().Msg("no eligible files")
		return []Result{{Err: ErrNoFiles}}, nil
	}
	log.Info().Int(logging.FieldFiles, len(files)).Msg("discovered files")

	var results []Result
	episode := job.StartEpisode
	seal := func(g Group) {
		label := naming.EpisodeLabel(episode)
		start := time.Now()
		r := m.MergeGroup(ctx, g.Paths(), job, label)
		m.observer.GroupDone(g, r, time.Since(start))
		results = append(results, r)
		episode++
	}

	grp := newGrouper(m.opts)
	for _, path := range files {
		if sealed, ok := grp.Add(m.Measure(ctx, path)); ok {
			seal(sealed)
		}
	}
	if sealed, ok := grp.Flush(); ok {
		seal(sealed)
	}
	return results, nil
}

// Measure stats and probes path. A failed measurement is logged and
// counts as zero.
func (m *Merger) Measure(ctx context.Context, path string) MediaFile {
	f := MediaFile{Path: path}
	if fi, err := os.Stat(path); err != nil {
		m.log.Warn().Err(err).Str(logging.FieldPath, path).Str(logging.FieldOp, "stat").Msg("size unavailable, using 0")
	} else {
		f.Size = fi.Size()
	}
	if d, err := m.prober.Duration(ctx, path); err != nil {
		m.log.Warn().Err(err).Str(logging.FieldPath, path).Str(logging.FieldOp, "duration").Msg("duration unavailable, using 0")
	} else {
		f.Duration = d
	}
	m.log.Debug().
		Str(logging.FieldPath, path).
		Float64(logging.FieldDuration, f.Duration).
		Int64(logging.FieldSize, f.Size).
		Msg("measured")
	return f
}

// MergeGroup checks files for consistent parameters and joins them into
// "{show}_S{season}E{episode}.mp4" inside job.OutputDir. An existing
// output is never replaced. Temporary files are removed on every path.
func (m *Merger) MergeGroup(ctx context.Context, files []string, job Job, episode string) Result {
	res := Result{Episode: episode, Files: files}
	log := m.log.With().Str(logging.FieldEpisode, episode).Logger()
	fail := func(op, path string, err error) Result {
		res.Err = err
		log.Error().Err(err).Str(logging.FieldOp, op).Str(logging.FieldPath, path).Msg("merge failed")
		return res
	}

	if len(files) == 0 {
		return fail("merge", job.SourceDir, ErrNoFiles)
	}

	if cr := m.checker.Check(ctx, files); !cr.Consistent {
		return fail("check", cr.File, fmt.Errorf("%w: %s", ErrInconsistent, cr.Message))
	}

	name := naming.OutputName(job.ShowName, naming.SeasonLabel(job.Season), episode)
	dst := filepath.Join(job.OutputDir, name)
	if exists, err := fsutil.Exists(dst); err != nil {
		return fail("stat_output", dst, fmt.Errorf("%w: %w", ErrDirectory, err))
	} else if exists {
		return fail("stat_output", dst, fmt.Errorf("%w: %s", ErrOutputExists, dst))
	}

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return fail("mkdir", job.OutputDir, fmt.Errorf("%w: create output %q: %w", ErrDirectory, job.OutputDir, err))
	}

	partial, err := fsutil.CreatePartial(job.OutputDir, name)
	if err != nil {
		return fail("create_partial", job.OutputDir, fmt.Errorf("%w: %w", ErrDirectory, err))
	}
	defer func() {
		if err := os.Remove(partial); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str(logging.FieldPath, partial).Msg("cannot remove partial output")
		}
	}()

	log.Info().
		Str(logging.FieldOutput, name).
		Int(logging.FieldFiles, len(files)).
		Msg("merging")
	start := time.Now()
	if err := m.concat.Concat(ctx, files, partial); err != nil {
		var te *ffmpeg.ToolError
		if errors.As(err, &te) && te.Stderr != "" {
			log = log.With().Str(logging.FieldStderr, te.Stderr).Logger()
		}
		return fail("concat", dst, fmt.Errorf("%w: %w", ErrTool, err))
	}

	if err := fsutil.CommitNoReplace(partial, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fail("commit", dst, fmt.Errorf("%w: %s", ErrOutputExists, dst))
		}
		return fail("commit", dst, fmt.Errorf("%w: %w", ErrDirectory, err))
	}

	log.Info().
		Str(logging.FieldOutput, name).
		Dur(logging.FieldElapsed, time.Since(start)).
		Msg("merged")
	res.Output = name
	return res
}

// checkDirs rejects a source that is missing or not a directory and an
// output path that exists as something other than a directory.
func checkDirs(job Job) error {
	fi, err := os.Stat(job.SourceDir)
	if err != nil {
		return fmt.Errorf("%w: source %q: %w", ErrDirectory, job.SourceDir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: source %q is not a directory", ErrDirectory, job.SourceDir)
	}

	fi, err = os.Stat(job.OutputDir)
	switch {
	case err == nil && !fi.IsDir():
		return fmt.Errorf("%w: output %q is not a directory", ErrDirectory, job.OutputDir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: output %q: %w", ErrDirectory, job.OutputDir, err)
	}
	return nil
}
