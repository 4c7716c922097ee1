package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/merge"
	"github.com/backmassage/dramamerge/internal/naming"
)

// listConcurrency bounds parallel ffprobe calls while listing.
const listConcurrency = 4

// FileInfo is one eligible file in a listing.
type FileInfo struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Size       int64   `json:"size_bytes"`
	Duration   float64 `json:"duration_s"`
	DurationOK bool    `json:"duration_ok"`
}

// Listing is the eligible content of a source directory, in merge order.
type Listing struct {
	Dir           string     `json:"dir"`
	Files         []FileInfo `json:"files"`
	TotalSize     int64      `json:"total_size_bytes"`
	TotalDuration float64    `json:"total_duration_s"`
}

// List measures every eligible file in dir. Durations are probed
// concurrently; a failed probe leaves DurationOK false.
func (r *Runner) List(ctx context.Context, dir string) (*Listing, error) {
	dir = firstNonEmpty(config.NormalizeDirArg(dir), r.cfg.Defaults.SourceDir)
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrInvalidRequest)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %q is not an accessible directory", merge.ErrDirectory, abs)
	}
	paths, err := merge.Discover(abs, r.cfg.Video.Extensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", merge.ErrDirectory, err)
	}

	files := make([]FileInfo, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, p := range paths {
		files[i] = FileInfo{Name: filepath.Base(p), Path: p}
		if fi, err := os.Stat(p); err == nil {
			files[i].Size = fi.Size()
		}
		g.Go(func() error {
			d, err := r.deps.Prober.Duration(gctx, p)
			if err != nil {
				r.log.Debug().Err(err).Str(logging.FieldPath, p).Msg("duration unavailable")
				return nil
			}
			files[i].Duration = d
			files[i].DurationOK = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l := &Listing{Dir: abs, Files: files}
	for _, f := range files {
		l.TotalSize += f.Size
		l.TotalDuration += f.Duration
	}
	return l, nil
}

// PreviewInfo is what a merge of a directory would be named.
type PreviewInfo struct {
	SourceDir   string        `json:"source_dir"`
	OutputDir   string        `json:"output_dir,omitempty"`
	ShowName    string        `json:"show_name"`
	Season      string        `json:"season"`
	FirstOutput string        `json:"first_output"`
	Catalog     *catalog.Show `json:"catalog,omitempty"`
}

// Preview resolves the show name and the first output file name without
// merging anything. The output directory, when given, is created.
func (r *Runner) Preview(ctx context.Context, req Request) (*PreviewInfo, error) {
	p, err := r.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}
	if p.job.OutputDir != "" {
		if err := os.MkdirAll(p.job.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create output %q: %v", merge.ErrDirectory, p.job.OutputDir, err)
		}
	}
	info := &PreviewInfo{
		SourceDir:   p.job.SourceDir,
		OutputDir:   p.job.OutputDir,
		ShowName:    p.job.ShowName,
		Season:      p.job.Season,
		FirstOutput: naming.OutputName(p.job.ShowName, p.job.Season, naming.EpisodeLabel(p.job.StartEpisode)),
		Catalog:     p.show,
	}
	return info, nil
}
