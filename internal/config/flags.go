package config

// This file binds CLI flags. Flag values are captured in Flags and applied
// after the config file is loaded, and only when the user actually passed
// the flag, so file values and defaults hold otherwise.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Flags holds raw values of the persistent (global) CLI flags.
type Flags struct {
	ConfigFile  string
	LogFile     string
	LogLevel    string
	Color       ColorMode
	ForceColor  bool
	NoColor     bool
	Verbose     bool
	TMDBKey     string
	TMDBProxy   string
	ReportFile  string
	MetricsFile string
}

// MergeFlags holds raw values of the per-merge flags shared by merge, batch,
// and preview.
type MergeFlags struct {
	Show        string
	Season      string
	Episode     string
	MaxDuration float64
	MaxSize     float64
}

// BindFlags registers the persistent flags on fs.
func BindFlags(fs *pflag.FlagSet, f *Flags) {
	f.Color = ColorAuto
	fs.StringVar(&f.ConfigFile, "config", "", "YAML config file (default: "+DefaultConfigFile+" if present)")
	fs.StringVarP(&f.LogFile, "log", "l", "", "Append JSON logs to file")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug | info | warn | error")
	fs.Var(&colorModeValue{&f.Color}, "color-mode", "Color output: auto | always | never")
	fs.BoolVar(&f.ForceColor, "color", false, "Force colored logs")
	fs.BoolVar(&f.NoColor, "no-color", false, "Disable colored logs")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output (debug logs, ffmpeg stderr)")
	fs.StringVar(&f.TMDBKey, "tmdb-key", "", "TMDB API key (enables catalog lookups)")
	fs.StringVar(&f.TMDBProxy, "tmdb-proxy", "", "HTTP(S) proxy URL for TMDB requests")
	fs.StringVar(&f.ReportFile, "report", "", "Write a JSON run report to this path")
	fs.StringVar(&f.MetricsFile, "metrics-file", "", "Write Prometheus metrics (textfile format) to this path")
}

// BindMergeFlags registers the merge request flags on fs.
func BindMergeFlags(fs *pflag.FlagSet, f *MergeFlags) {
	fs.StringVarP(&f.Show, "show", "n", "", "Show name (default: derived from the source directory)")
	fs.StringVarP(&f.Season, "season", "s", "", "Season token used in output names (default: 01)")
	fs.StringVarP(&f.Episode, "episode", "e", "", "First episode number (default: 01)")
	fs.Float64Var(&f.MaxDuration, "max-duration", 0, "Maximum minutes per output file (0 = unbounded)")
	fs.Float64Var(&f.MaxSize, "max-size", 0, "Maximum MB per output file (0 = unbounded)")
}

// Apply copies the flags the user set into cfg.
func (f *Flags) Apply(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("log") {
		cfg.Logging.File = f.LogFile
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}
	if fs.Changed("color-mode") {
		cfg.ColorMode = f.Color
	}
	if f.NoColor {
		cfg.ColorMode = ColorNever
	} else if f.ForceColor {
		cfg.ColorMode = ColorAlways
	}
	if f.Verbose {
		cfg.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if fs.Changed("tmdb-key") {
		cfg.Defaults.TMDBAPIKey = f.TMDBKey
	}
	if fs.Changed("tmdb-proxy") {
		cfg.Defaults.TMDBProxyURL = f.TMDBProxy
	}
	if fs.Changed("report") {
		cfg.ReportFile = f.ReportFile
	}
	if fs.Changed("metrics-file") {
		cfg.MetricsFile = f.MetricsFile
	}
}

// Apply copies the merge flags the user set into cfg.Defaults.
func (f *MergeFlags) Apply(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("season") {
		cfg.Defaults.Season = f.Season
	}
	if fs.Changed("episode") {
		cfg.Defaults.Episode = f.Episode
	}
	if fs.Changed("max-duration") {
		cfg.Defaults.MaxDuration = f.MaxDuration
	}
	if fs.Changed("max-size") {
		cfg.Defaults.MaxSize = f.MaxSize
	}
}

// pflag.Value adapter so ColorMode can be used with fs.Var.

type colorModeValue struct{ p *ColorMode }

func (c *colorModeValue) String() string { return string(*c.p) }
func (c *colorModeValue) Type() string   { return "mode" }
func (c *colorModeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "auto":
		*c.p = ColorAuto
	case "always":
		*c.p = ColorAlways
	case "never":
		*c.p = ColorNever
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}
