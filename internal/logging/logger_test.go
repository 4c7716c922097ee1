package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/dramamerge/internal/config"
)

func TestNewLogger_NoFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	l, err := NewLogger(&cfg)
	require.NoError(t, err)
	defer l.Close()
	l.Info().Msg("test message")
}

func TestNewLogger_WithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.Logging.File = filepath.Join(dir, "logs", "dramamerge.log")
	l, err := NewLogger(&cfg)
	require.NoError(t, err)

	l.Info().Str(FieldPath, "/media/a.mp4").Msg("to file")
	l.Debug().Msg("filtered out")
	require.NoError(t, l.Close())

	b, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":"info"`)
	assert.Contains(t, string(b), `"path":"/media/a.mp4"`)
	assert.Contains(t, string(b), "to file")
	assert.NotContains(t, string(b), "filtered out")
}

func TestNewLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.Logging.Level = "debug"
	cfg.Logging.File = filepath.Join(dir, "debug.log")
	l, err := NewLogger(&cfg)
	require.NoError(t, err)

	l.Debug().Msg("visible")
	require.NoError(t, l.Close())

	b, _ := os.ReadFile(cfg.Logging.File)
	assert.Contains(t, string(b), "visible")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.InfoLevel)
	c := l.WithComponent("merge")
	c.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"merge"`)
}

func TestSplitWriter_RoutesErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	w := splitWriter{out: &out, err: &errOut}

	_, _ = w.WriteLevel(zerolog.InfoLevel, []byte("info\n"))
	_, _ = w.WriteLevel(zerolog.WarnLevel, []byte("warn\n"))
	_, _ = w.WriteLevel(zerolog.ErrorLevel, []byte("error\n"))

	assert.Equal(t, "info\nwarn\n", out.String())
	assert.Equal(t, "error\n", errOut.String())
}

func TestClose_WithoutFile(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.WarnLevel)
	l.Info().Msg("below level")
	assert.NoError(t, l.Close())
	assert.Empty(t, buf.String())
}
