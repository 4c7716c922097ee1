package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// RenderListing writes the eligible files of a directory with their size
// (MB) and duration (mm:ss).
func RenderListing(w io.Writer, l *pipeline.Listing) {
	if len(l.Files) == 0 {
		fmt.Fprintln(w, errStyle.Render("No video files found in "+l.Dir))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d video files, %s MB total", len(l.Files), FormatMB(l.TotalSize, 1))))
	fmt.Fprintln(w, mutedStyle.Render("Source: "+l.Dir))

	t := newTable("#", "File", "Size (MB)", "Duration")
	for i, f := range l.Files {
		dur := "-"
		if f.DurationOK {
			dur = FormatDuration(f.Duration)
		}
		t.Row(strconv.Itoa(i+1), f.Name, FormatMB(f.Size, 1), dur)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render("Total duration "+FormatDuration(l.TotalDuration)))
}

// RenderResults writes one row per merge result: the output name with its
// size and duration on success, or the failure reason.
func RenderResults(w io.Writer, o *pipeline.JobOutcome) {
	if o.Err != nil {
		fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%s: %v", o.Job.SourceDir, o.Err)))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s  S%s", o.Job.ShowName, o.Job.Season)))
	if o.Job.OutputDir != "" {
		fmt.Fprintln(w, mutedStyle.Render("Output: "+o.Job.OutputDir))
	}

	t := newTable("#", "Output", "Size (MB)", "Duration", "Result")
	for _, r := range o.Rows {
		if !r.OK {
			t.Row(strconv.Itoa(r.Index), "-", "-", "-", errStyle.Render("failed: "+r.Message))
			continue
		}
		t.Row(strconv.Itoa(r.Index), r.Output, FormatMB(r.Size, 2), FormatDuration(r.Duration), okStyle.Render("ok"))
	}
	fmt.Fprintln(w, t.Render())
}

// RenderStats writes the aggregate line printed after a run.
func RenderStats(w io.Writer, s pipeline.RunStats) {
	style := okStyle
	if !s.OK() {
		style = errStyle
	}
	line := fmt.Sprintf("%d merged, %d failed from %d files (%s in, %s out)",
		s.Succeeded, s.Failed+s.JobFailures, s.InputFiles, FormatBytes(s.InputBytes), FormatBytes(s.OutputBytes))
	fmt.Fprintln(w, style.Render(line))
}

// RenderPreview writes the resolved naming for a directory.
func RenderPreview(w io.Writer, p *pipeline.PreviewInfo) {
	fmt.Fprintln(w, titleStyle.Render("Show: "+p.ShowName))
	fmt.Fprintf(w, "Season:       %s\n", p.Season)
	fmt.Fprintf(w, "First output: %s\n", p.FirstOutput)
	if p.OutputDir != "" {
		fmt.Fprintf(w, "Output dir:   %s\n", p.OutputDir)
	}
	if p.Catalog != nil {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Catalog match: %s (%s)", p.Catalog.Name, catalog.ShowURL(p.Catalog.ID))))
	}
}

// RenderShow writes a catalog summary: poster and link, then one row per
// season with its top-billed cast.
func RenderShow(w io.Writer, s *catalog.Summary) {
	fmt.Fprintln(w, titleStyle.Render(s.Name))
	fmt.Fprintf(w, "%d seasons, %d episodes\n", s.NumberOfSeasons, s.NumberOfEpisodes)
	fmt.Fprintln(w, mutedStyle.Render(s.Link))
	if s.PosterURL != "" {
		fmt.Fprintln(w, mutedStyle.Render("Poster: "+s.PosterURL))
	}
	if len(s.Seasons) == 0 {
		return
	}

	t := newTable("Season", "Name", "Episodes", "Air date", "Cast")
	for _, season := range s.Seasons {
		t.Row(season.Label, season.Name, strconv.Itoa(season.Episodes), season.AirDate, strings.Join(season.Cast, ", "))
	}
	fmt.Fprintln(w, t.Render())
	for _, season := range s.Seasons {
		if season.Overview != "" {
			fmt.Fprintf(w, "%s  %s\n", titleStyle.Render(season.Label), season.Overview)
		}
	}
}
