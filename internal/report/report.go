// Package report writes a machine-readable JSON summary of a merge run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/backmassage/dramamerge/internal/merge"
)

// Report is the top-level JSON document.
type Report struct {
	RunID           string      `json:"run_id"`
	Command         string      `json:"command"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
	DurationSeconds float64     `json:"duration_seconds"`
	Succeeded       int         `json:"succeeded"`
	Failed          int         `json:"failed"`
	Jobs            []JobReport `json:"jobs"`
}

// JobReport describes one directory merge. Error is set for whole-run
// failures, in which case Groups is empty.
type JobReport struct {
	SourceDir    string        `json:"source_dir"`
	OutputDir    string        `json:"output_dir"`
	ShowName     string        `json:"show_name"`
	Season       string        `json:"season"`
	StartEpisode int           `json:"start_episode"`
	Error        string        `json:"error,omitempty"`
	Groups       []GroupReport `json:"groups"`
}

// GroupReport is one merge step.
type GroupReport struct {
	Episode string   `json:"episode"`
	Files   []string `json:"files"`
	Output  string   `json:"output,omitempty"`
	OK      bool     `json:"ok"`
	Outcome string   `json:"outcome"`
	Message string   `json:"message"`
}

// NewJob converts a job and its results into a JobReport.
func NewJob(job merge.Job, results []merge.Result, runErr error) JobReport {
	jr := JobReport{
		SourceDir:    job.SourceDir,
		OutputDir:    job.OutputDir,
		ShowName:     job.ShowName,
		Season:       job.Season,
		StartEpisode: job.StartEpisode,
		Groups:       make([]GroupReport, 0, len(results)),
	}
	if runErr != nil {
		jr.Error = runErr.Error()
	}
	for _, r := range results {
		jr.Groups = append(jr.Groups, GroupReport{
			Episode: r.Episode,
			Files:   r.Files,
			Output:  r.Output,
			OK:      r.OK(),
			Outcome: merge.Outcome(r.Err),
			Message: r.Message(),
		})
	}
	return jr
}

// Add appends a job and updates the success/failure tallies.
func (r *Report) Add(jr JobReport) {
	r.Jobs = append(r.Jobs, jr)
	if jr.Error != "" {
		r.Failed++
	}
	for _, g := range jr.Groups {
		if g.OK {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
}

// Finish stamps the end time and duration.
func (r *Report) Finish(now time.Time) {
	r.FinishedAt = now
	r.DurationSeconds = now.Sub(r.StartedAt).Seconds()
}

// Write encodes r as indented JSON and replaces path atomically (temp
// file, fsync, rename).
func Write(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
