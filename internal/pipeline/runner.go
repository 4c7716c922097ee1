package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/ffmpeg"
	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/merge"
	"github.com/backmassage/dramamerge/internal/metrics"
	"github.com/backmassage/dramamerge/internal/naming"
	"github.com/backmassage/dramamerge/internal/probe"
	"github.com/backmassage/dramamerge/internal/report"
)

// ErrInvalidRequest marks request problems found before any file is
// touched (missing directories, bad numbers).
var ErrInvalidRequest = errors.New("invalid request")

// Request carries the user-facing merge fields. Empty strings and nil
// thresholds fall back to the config defaults. Thresholds are in minutes
// and megabytes.
type Request struct {
	SourceDir   string   `json:"source_dir"`
	OutputDir   string   `json:"output_dir"`
	ShowName    string   `json:"show_name"`
	Season      string   `json:"season"`
	Episode     string   `json:"episode"`
	MaxDuration *float64 `json:"max_duration,omitempty"`
	MaxSize     *float64 `json:"max_size,omitempty"`
}

// ResultRow is a merge result with the measured size and duration of its
// output (zero for failures or when the output cannot be measured).
type ResultRow struct {
	Index      int          `json:"index"`
	Result     merge.Result `json:"-"`
	Episode    string       `json:"episode"`
	Output     string       `json:"output,omitempty"`
	OK         bool         `json:"ok"`
	Message    string       `json:"message"`
	Size       int64        `json:"size_bytes"`
	Duration   float64      `json:"duration_s"`
	InputBytes int64        `json:"input_bytes"`
}

// JobOutcome is everything known about one directory merge.
type JobOutcome struct {
	Job   merge.Job     `json:"job"`
	Show  *catalog.Show `json:"catalog,omitempty"`
	Rows  []ResultRow   `json:"results"`
	Err   error         `json:"-"`
	Error string        `json:"error,omitempty"`
}

// Results returns the raw merge results in episode order.
func (o *JobOutcome) Results() []merge.Result {
	rs := make([]merge.Result, len(o.Rows))
	for i, r := range o.Rows {
		rs[i] = r.Result
	}
	return rs
}

// Deps are the collaborators of a Runner. Nil Prober and Concat are built
// from the config; nil Finder disables catalog correction; nil Recorder
// disables metrics.
type Deps struct {
	Prober   merge.Prober
	Concat   merge.Concatenator
	Finder   ShowFinder
	Recorder *metrics.Recorder
}

// Runner executes merge requests against one configuration.
type Runner struct {
	cfg   *config.Config
	log   zerolog.Logger
	deps  Deps
	runID string
}

// NewRunner builds a Runner. Each Runner gets a fresh run ID that tags its
// log lines and its report.
func NewRunner(cfg *config.Config, log zerolog.Logger, deps Deps) *Runner {
	runID := uuid.NewString()
	log = log.With().Str(logging.FieldRunID, runID).Logger()
	if deps.Prober == nil {
		deps.Prober = probe.New(cfg.Video.FFprobe, cfg.FFprobeTimeout())
	}
	if deps.Concat == nil {
		deps.Concat = &ffmpeg.Concatenator{
			Binary:      cfg.Video.FFmpeg,
			Timeout:     cfg.FFmpegTimeout(),
			Verbose:     cfg.Verbose,
			GenPTSRetry: cfg.Video.GenPTSRetry,
			Logger:      log.With().Str(logging.FieldComponent, "ffmpeg").Logger(),
		}
	}
	return &Runner{cfg: cfg, log: log, deps: deps, runID: runID}
}

// RunID returns the run identifier.
func (r *Runner) RunID() string { return r.runID }

// prepared is a request with every default applied.
type prepared struct {
	job  merge.Job
	opts merge.Options
	show *catalog.Show
}

func (r *Runner) prepare(ctx context.Context, req Request, requireOutput bool) (*prepared, error) {
	src := firstNonEmpty(config.NormalizeDirArg(req.SourceDir), r.cfg.Defaults.SourceDir)
	if src == "" {
		return nil, fmt.Errorf("%w: source directory is required", ErrInvalidRequest)
	}
	out := firstNonEmpty(config.NormalizeDirArg(req.OutputDir), r.cfg.Defaults.OutputDir)
	if out == "" && requireOutput {
		return nil, fmt.Errorf("%w: output directory is required", ErrInvalidRequest)
	}
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	var outAbs string
	if out != "" {
		if outAbs, err = filepath.Abs(out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		// Discovery is not recursive, so only the same directory is a
		// problem: outputs would become inputs of the next run.
		if outAbs == srcAbs {
			return nil, fmt.Errorf("%w: output directory must differ from source directory", ErrInvalidRequest)
		}
	}

	c := *r.cfg
	if req.MaxDuration != nil {
		c.Defaults.MaxDuration = *req.MaxDuration
	}
	if req.MaxSize != nil {
		c.Defaults.MaxSize = *req.MaxSize
	}
	if c.Defaults.MaxDuration < 0 || c.Defaults.MaxSize < 0 {
		return nil, fmt.Errorf("%w: thresholds must be >= 0", ErrInvalidRequest)
	}
	episode, err := config.ParseEpisode(firstNonEmpty(strings.TrimSpace(req.Episode), r.cfg.Defaults.Episode))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	season := naming.SeasonLabel(firstNonEmpty(strings.TrimSpace(req.Season), r.cfg.Defaults.Season, "01"))

	show, match := ResolveShowName(ctx, r.deps.Finder, r.log, req.ShowName, srcAbs)
	if show == "" {
		return nil, fmt.Errorf("%w: cannot determine a show name for %q", ErrInvalidRequest, srcAbs)
	}

	return &prepared{
		job: merge.Job{
			SourceDir:    srcAbs,
			OutputDir:    outAbs,
			ShowName:     show,
			Season:       season,
			StartEpisode: episode,
		},
		opts: merge.Options{
			MaxDuration:    c.MaxDurationSeconds(),
			MaxSize:        c.MaxSizeBytes(),
			Extensions:     r.cfg.Video.Extensions,
			RequiredFields: r.cfg.Video.RequiredMetadata,
		},
		show: match,
	}, nil
}

// Run merges one source directory. The error is non-nil only for invalid
// requests; merge failures (including whole-run directory failures) are
// in the outcome.
func (r *Runner) Run(ctx context.Context, req Request) (*JobOutcome, error) {
	p, err := r.prepare(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return r.runJob(ctx, p), nil
}

func (r *Runner) runJob(ctx context.Context, p *prepared) *JobOutcome {
	log := r.log.With().Str(logging.FieldShow, p.job.ShowName).Str(logging.FieldSeason, p.job.Season).Logger()
	log.Info().
		Str(logging.FieldDir, p.job.SourceDir).
		Str(logging.FieldOutput, p.job.OutputDir).
		Int(logging.FieldEpisode, p.job.StartEpisode).
		Float64("max_duration_s", p.opts.MaxDuration).
		Int64("max_size_bytes", p.opts.MaxSize).
		Msg("starting merge")

	var obs merge.Observer
	if r.deps.Recorder != nil {
		obs = r.deps.Recorder
	}
	m := merge.New(p.opts, r.deps.Prober, r.deps.Concat, log.With().Str(logging.FieldComponent, "merge").Logger(), obs)

	results, err := m.Run(ctx, p.job)
	out := &JobOutcome{Job: p.job, Show: p.show, Err: err}
	if err != nil {
		out.Error = err.Error()
	}
	out.Rows = r.Describe(ctx, p.job.OutputDir, results)

	if r.deps.Recorder != nil {
		groups := 0
		for _, res := range results {
			if len(res.Files) > 0 {
				groups++
			}
		}
		runErr := err
		if runErr == nil && groups == 0 && len(results) > 0 {
			runErr = results[0].Err
		}
		r.deps.Recorder.RunFinished(runErr, groups)
	}

	ok := 0
	for _, row := range out.Rows {
		if row.OK {
			ok++
		}
	}
	log.Info().Int("groups", len(out.Rows)).Int("succeeded", ok).Msg("merge finished")
	return out
}

// RunBatch merges every immediate subdirectory of parentSrc (in name
// order) into parentOut/<show name>/. Explicit show names in req are
// ignored; each subdirectory resolves its own. The error is non-nil only
// when the parent directories are unusable.
func (r *Runner) RunBatch(ctx context.Context, parentSrc, parentOut string, req Request) ([]*JobOutcome, error) {
	parentSrc = config.NormalizeDirArg(parentSrc)
	parentOut = config.NormalizeDirArg(parentOut)
	for _, d := range []string{parentSrc, parentOut} {
		fi, err := os.Stat(d)
		if err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("%w: %q is not an accessible directory", merge.ErrDirectory, d)
		}
	}
	srcAbs, err := filepath.Abs(parentSrc)
	if err != nil {
		return nil, err
	}
	outAbs, err := filepath.Abs(parentOut)
	if err != nil {
		return nil, err
	}
	if err := r.cfg.ValidatePaths(srcAbs, outAbs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	entries, err := os.ReadDir(srcAbs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", merge.ErrDirectory, err)
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			subdirs = append(subdirs, filepath.Join(srcAbs, e.Name()))
		}
	}
	sort.Strings(subdirs)
	if len(subdirs) == 0 {
		r.log.Warn().Str(logging.FieldDir, srcAbs).Msg("no subdirectories to process")
		return nil, nil
	}

	outcomes := make([]*JobOutcome, 0, len(subdirs))
	for i, sub := range subdirs {
		r.log.Info().Str(logging.FieldDir, sub).Msgf("batch %d/%d", i+1, len(subdirs))
		sreq := req
		sreq.SourceDir = sub
		sreq.ShowName = ""
		sreq.OutputDir = outAbs

		p, err := r.prepare(ctx, sreq, true)
		if err != nil {
			outcomes = append(outcomes, &JobOutcome{Job: merge.Job{SourceDir: sub}, Err: err, Error: err.Error()})
			continue
		}
		p.job.OutputDir = filepath.Join(outAbs, p.job.ShowName)
		outcomes = append(outcomes, r.runJob(ctx, p))
	}
	return outcomes, nil
}

// Describe builds result rows, measuring each successful output. Input
// bytes are summed from the group's files.
func (r *Runner) Describe(ctx context.Context, outputDir string, results []merge.Result) []ResultRow {
	rows := make([]ResultRow, 0, len(results))
	for i, res := range results {
		row := ResultRow{
			Index:   i + 1,
			Result:  res,
			Episode: res.Episode,
			Output:  res.Output,
			OK:      res.OK(),
			Message: res.Message(),
		}
		for _, f := range res.Files {
			if fi, err := os.Stat(f); err == nil {
				row.InputBytes += fi.Size()
			}
		}
		if res.OK() {
			path := filepath.Join(outputDir, res.Output)
			if fi, err := os.Stat(path); err == nil {
				row.Size = fi.Size()
			}
			if d, err := r.deps.Prober.Duration(ctx, path); err == nil {
				row.Duration = d
			} else {
				r.log.Debug().Err(err).Str(logging.FieldPath, path).Msg("cannot measure output")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Record writes the run report and the metrics textfile when configured.
// Both sinks are best effort: failures are logged and returned joined.
func (r *Runner) Record(command string, started time.Time, outcomes []*JobOutcome) error {
	var errs []error
	if path := r.cfg.ReportFile; path != "" {
		rep := &report.Report{RunID: r.runID, Command: command, StartedAt: started}
		for _, o := range outcomes {
			rep.Add(report.NewJob(o.Job, o.Results(), o.Err))
		}
		rep.Finish(time.Now())
		if err := report.Write(path, rep); err != nil {
			r.log.Error().Err(err).Str(logging.FieldPath, path).Msg("cannot write report")
			errs = append(errs, err)
		} else {
			r.log.Info().Str(logging.FieldPath, path).Msg("report written")
		}
	}
	if path := r.cfg.MetricsFile; path != "" && r.deps.Recorder != nil {
		if err := r.deps.Recorder.WriteTextfile(path); err != nil {
			r.log.Error().Err(err).Str(logging.FieldPath, path).Msg("cannot write metrics textfile")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
