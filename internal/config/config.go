// Package config holds runtime configuration: defaults, YAML file loading,
// CLI flag binding, and validation. Defaults match the original merge tool's
// data/config.yaml so an empty or missing file behaves the same way.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Metadata field names accepted in Video.RequiredMetadata.
var knownMetadataFields = map[string]bool{
	"width":       true,
	"height":      true,
	"frame_rate":  true,
	"video_codec": true,
	"audio_codec": true,
}

// Logging configures the log sink.
type Logging struct {
	File  string `yaml:"file"`  // Optional JSON log file (appended).
	Level string `yaml:"level"` // debug | info | warn | error. Default: "info".
}

// Defaults are the values used when a merge request leaves a field empty.
type Defaults struct {
	SourceDir    string  `yaml:"source_dir"`
	OutputDir    string  `yaml:"output_dir"`
	Season       string  `yaml:"season"`       // Default: "01".
	Episode      string  `yaml:"episode"`      // First episode number. Default: "01".
	MaxDuration  float64 `yaml:"max_duration"` // Minutes per output, 0 = unbounded.
	MaxSize      float64 `yaml:"max_size"`     // MB per output, 0 = unbounded.
	TMDBAPIKey   string  `yaml:"tmdb_api_key"`
	TMDBProxyURL string  `yaml:"tmdb_proxy_url"`
}

// Video configures discovery and the ffmpeg/ffprobe collaborators.
type Video struct {
	Extensions       []string `yaml:"extensions"`        // Allow-list, lowercase with leading dot.
	FFprobeTimeout   int      `yaml:"ffprobe_timeout"`   // Seconds. Default: 10.
	FFmpegTimeout    int      `yaml:"ffmpeg_timeout"`    // Seconds. Default: 300.
	RequiredMetadata []string `yaml:"required_metadata"` // Warn when a file lacks these fields.
	FFmpeg           string   `yaml:"ffmpeg"`            // Binary name or path. Default: "ffmpeg".
	FFprobe          string   `yaml:"ffprobe"`           // Binary name or path. Default: "ffprobe".
	GenPTSRetry      bool     `yaml:"genpts_retry"`      // Retry concat once with +genpts on timestamp errors.
}

// TMDB configures the metadata catalog client.
type TMDB struct {
	BaseURL           string  `yaml:"base_url"`
	ImageBaseURL      string  `yaml:"image_base_url"`
	Language          string  `yaml:"language"`            // Default: "zh-CN".
	CacheFile         string  `yaml:"cache_file"`          // SQLite cache path; empty disables caching.
	CacheTTL          int     `yaml:"cache_ttl"`           // Hours. Default: 24.
	RequestsPerSecond float64 `yaml:"requests_per_second"` // Client-side rate limit. Default: 4.
}

// Server configures the HTTP API.
type Server struct {
	Addr              string `yaml:"addr"`                // Default: ":8090".
	RequestsPerMinute int    `yaml:"requests_per_minute"` // Per-IP limit. Default: 60.
}

// Config holds all runtime settings. It is populated by [DefaultConfig],
// overlaid by [Load] and then by CLI flags (see [BindFlags]) before being
// passed (by pointer) to packages that need it.
type Config struct {
	Logging  Logging  `yaml:"logging"`
	Defaults Defaults `yaml:"defaults"`
	Video    Video    `yaml:"video"`
	TMDB     TMDB     `yaml:"tmdb"`
	Server   Server   `yaml:"server"`

	// Runtime-only settings (flags).
	ConfigFile  string    `yaml:"-"`
	ColorMode   ColorMode `yaml:"-"` // Default: "auto".
	Verbose     bool      `yaml:"-"`
	ReportFile  string    `yaml:"-"` // Optional JSON run report.
	MetricsFile string    `yaml:"-"` // Optional Prometheus textfile.
}

// DefaultConfig returns a Config with the original tool's defaults.
func DefaultConfig() Config {
	return Config{
		Logging: Logging{
			Level: "info",
		},
		Defaults: Defaults{
			Season:  "01",
			Episode: "01",
		},
		Video: Video{
			Extensions:       []string{".mp4", ".mkv", ".mov", ".avi", ".flv", ".wmv"},
			FFprobeTimeout:   10,
			FFmpegTimeout:    300,
			RequiredMetadata: []string{"width", "height", "video_codec"},
			FFmpeg:           "ffmpeg",
			FFprobe:          "ffprobe",
			GenPTSRetry:      true,
		},
		TMDB: TMDB{
			BaseURL:           "https://api.themoviedb.org/3",
			ImageBaseURL:      "https://image.tmdb.org/t/p/original",
			Language:          "zh-CN",
			CacheFile:         "data/tmdb_cache.db",
			CacheTTL:          24,
			RequestsPerSecond: 4,
		},
		Server: Server{
			Addr:              ":8090",
			RequestsPerMinute: 60,
		},
		ColorMode: ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges, and canonicalizes the
// extension allow-list (lowercase, leading dot).
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		c.Logging.Level = strings.ToLower(c.Logging.Level)
	default:
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", c.Logging.Level)
	}

	if c.Defaults.MaxDuration < 0 {
		return errors.New("max_duration must not be negative")
	}
	if c.Defaults.MaxSize < 0 {
		return errors.New("max_size must not be negative")
	}
	if _, err := ParseEpisode(c.Defaults.Episode); err != nil {
		return err
	}
	if strings.TrimSpace(c.Defaults.Season) == "" {
		return errors.New("season must not be empty")
	}

	if c.Video.FFprobeTimeout <= 0 || c.Video.FFmpegTimeout <= 0 {
		return errors.New("ffprobe_timeout and ffmpeg_timeout must be positive")
	}
	exts, err := normalizeExtensions(c.Video.Extensions)
	if err != nil {
		return err
	}
	c.Video.Extensions = exts
	for _, f := range c.Video.RequiredMetadata {
		if !knownMetadataFields[f] {
			return fmt.Errorf("unknown required_metadata field %q", f)
		}
	}

	if c.TMDB.RequestsPerSecond <= 0 {
		return errors.New("tmdb requests_per_second must be positive")
	}
	if c.TMDB.CacheTTL < 0 {
		return errors.New("tmdb cache_ttl must not be negative")
	}
	if c.Server.RequestsPerMinute <= 0 {
		return errors.New("server requests_per_minute must be positive")
	}
	return nil
}

// normalizeExtensions lowercases entries and adds a missing leading dot.
func normalizeExtensions(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("video extensions must not be empty")
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			return nil, fmt.Errorf("invalid video extension %q", e)
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseEpisode parses a starting episode token such as "01" or "7". An
// empty string means the first episode.
func ParseEpisode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("episode must be a non-negative whole number (got %q)", s)
	}
	return n, nil
}

// MaxDurationSeconds converts the minutes-based duration cap to seconds.
func (c *Config) MaxDurationSeconds() float64 {
	return c.Defaults.MaxDuration * 60
}

// MaxSizeBytes converts the MB-based size cap to bytes.
func (c *Config) MaxSizeBytes() int64 {
	return int64(c.Defaults.MaxSize * 1024 * 1024)
}

// FFprobeTimeout returns the per-call ffprobe timeout.
func (c *Config) FFprobeTimeout() time.Duration {
	return time.Duration(c.Video.FFprobeTimeout) * time.Second
}

// FFmpegTimeout returns the concatenation timeout for one group, covering
// the timestamp retry as well as the first attempt.
func (c *Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.Video.FFmpegTimeout) * time.Second
}

// CacheTTL returns how long catalog responses stay cached.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.TMDB.CacheTTL) * time.Hour
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved source directory, so outputs are never picked up as inputs
// by a later run. Both arguments must be absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(sourceAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == sourceAbs || strings.HasPrefix(outputAbs+sep, sourceAbs+sep) {
		return errors.New("output directory must not be inside source directory")
	}
	return nil
}
