// Package logging builds the process logger: a zerolog logger that writes
// human-readable console lines (colored when enabled) and, optionally, JSON
// lines appended to a log file.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/term"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Logger is a zerolog.Logger that owns its optional file sink.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// NewLogger configures colors from cfg, parses the level, and optionally
// opens cfg.Logging.File for appending. Call Close() when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}

	console := splitWriter{
		out: newConsole(os.Stdout),
		err: newConsole(os.Stderr),
	}

	var file *os.File
	var w io.Writer = console
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		w = zerolog.MultiLevelWriter(console, f)
	}

	zerolog.TimeFieldFormat = "2006-01-02T15:04:05Z07:00"
	l := New(w, level)
	l.file = file
	return l, nil
}

// New builds a timestamped logger on w with no file sink.
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{Logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// WithComponent returns a child logger annotated with the given component name.
func (l *Logger) WithComponent(component string) zerolog.Logger {
	return l.With().Str(FieldComponent, component).Logger()
}

func newConsole(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !term.Enabled(),
		TimeFormat: consoleTimeFormat,
	}
}

// splitWriter sends error-and-above events to err and everything else to
// out, so failures show up on stderr like any other CLI.
type splitWriter struct {
	out io.Writer
	err io.Writer
}

func (s splitWriter) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s splitWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= zerolog.ErrorLevel && level != zerolog.NoLevel {
		return s.err.Write(p)
	}
	return s.out.Write(p)
}
