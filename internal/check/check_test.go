package check

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/dramamerge/internal/config"
)

const formats = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 D  concat          Virtual concatenation script
 DE matroska,webm   Matroska / WebM
  E mp4             MP4 (MPEG-4 Part 14)
`

// fakeTool writes a shell script that answers -version and the format
// listings with the given text.
func fakeTool(t *testing.T, name, listing string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\ncase \"$*\" in\n" +
		"*-version*) echo \"" + name + " version 6.1\" ;;\n" +
		"*) cat <<'EOF'\n" + listing + "EOF\n;;\nesac\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func testConfig(ffmpeg, ffprobe string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Video.FFmpeg = ffmpeg
	cfg.Video.FFprobe = ffprobe
	return &cfg
}

func TestCheckDeps(t *testing.T) {
	ctx := context.Background()
	ffmpeg := fakeTool(t, "ffmpeg", formats)
	ffprobe := fakeTool(t, "ffprobe", "")

	assert.NoError(t, CheckDeps(ctx, testConfig(ffmpeg, ffprobe)))
	assert.ErrorIs(t, CheckDeps(ctx, testConfig("/nonexistent/ffmpeg", ffprobe)), ErrFFmpegNotFound)
	assert.ErrorIs(t, CheckDeps(ctx, testConfig(ffmpeg, "/nonexistent/ffprobe")), ErrFFprobeNotFound)

	bare := fakeTool(t, "ffmpeg", " D  mov,mp4,m4a   QuickTime / MOV\n")
	assert.ErrorIs(t, CheckDeps(ctx, testConfig(bare, ffprobe)), ErrNoConcatDemuxer)
}

func TestRunCheck(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	cfg := testConfig(fakeTool(t, "ffmpeg", formats), fakeTool(t, "ffprobe", ""))

	require.NoError(t, RunCheck(context.Background(), cfg, log))
	assert.Contains(t, buf.String(), "ffmpeg version 6.1")
	assert.Contains(t, buf.String(), "concat demuxer available")

	buf.Reset()
	cfg.Video.FFprobe = "/nonexistent/ffprobe"
	err := RunCheck(context.Background(), cfg, log)
	assert.ErrorIs(t, err, ErrFFprobeNotFound)
	assert.Contains(t, buf.String(), "mp4 muxer available", "keeps going after a failure")
}
