// Package check provides system diagnostics (the check command) and
// pre-merge dependency validation (CheckDeps) for ffmpeg and ffprobe.
package check

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/ffmpeg"
)

// Sentinel errors returned by CheckDeps when a required tool or feature is missing.
var (
	ErrFFmpegNotFound   = errors.New("ffmpeg not found")
	ErrFFprobeNotFound  = errors.New("ffprobe not found")
	ErrNoConcatDemuxer  = errors.New("ffmpeg lacks the concat demuxer")
	ErrNoMP4Muxer       = errors.New("ffmpeg lacks the mp4 muxer")
	ErrToolUnresponsive = errors.New("tool did not answer -version")
)

const probeTimeout = 10 * time.Second

// RunCheck logs the availability of every tool and feature a merge needs.
// It is informational and does not stop at the first problem; the
// returned error is the first failure found, if any.
func RunCheck(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msg("=== System Check ===")

	var first error
	note := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for _, tool := range []struct {
		name, bin string
		missing   error
	}{
		{"ffmpeg", cfg.Video.FFmpeg, ErrFFmpegNotFound},
		{"ffprobe", cfg.Video.FFprobe, ErrFFprobeNotFound},
	} {
		v, err := version(ctx, tool.bin, tool.missing)
		if err != nil {
			log.Error().Err(err).Str("tool", tool.name).Str("binary", tool.bin).Msg("unavailable")
			note(err)
			continue
		}
		log.Info().Str("tool", tool.name).Msg(v)
	}

	if err := hasFeature(ctx, cfg.Video.FFmpeg, "-demuxers", "concat", ErrNoConcatDemuxer); err != nil {
		log.Error().Err(err).Msg("concat demuxer check failed")
		note(err)
	} else {
		log.Info().Msg("concat demuxer available")
	}
	if err := hasFeature(ctx, cfg.Video.FFmpeg, "-muxers", "mp4", ErrNoMP4Muxer); err != nil {
		log.Error().Err(err).Msg("mp4 muxer check failed")
		note(err)
	} else {
		log.Info().Msg("mp4 muxer available")
	}
	return first
}

// CheckDeps is the pre-merge validation: both tools must resolve and
// ffmpeg must offer the concat demuxer. Returns a sentinel error on failure.
func CheckDeps(ctx context.Context, cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.Video.FFmpeg); err != nil {
		return fmt.Errorf("%w: %q", ErrFFmpegNotFound, cfg.Video.FFmpeg)
	}
	if _, err := exec.LookPath(cfg.Video.FFprobe); err != nil {
		return fmt.Errorf("%w: %q", ErrFFprobeNotFound, cfg.Video.FFprobe)
	}
	return hasFeature(ctx, cfg.Video.FFmpeg, "-demuxers", "concat", ErrNoConcatDemuxer)
}

// version returns the first line of "<bin> -version".
func version(ctx context.Context, bin string, missing error) (string, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("%w: %q", missing, bin)
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	line, err := ffmpeg.Version(ctx, bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolUnresponsive, bin, err)
	}
	return line, nil
}

// hasFeature lists ffmpeg's muxers or demuxers and looks for name as a
// whole word in the format column.
func hasFeature(ctx context.Context, bin, listFlag, name string, missing error) error {
	out, err := output(ctx, bin, "-hide_banner", listFlag)
	if err != nil {
		return fmt.Errorf("%w: %v", missing, err)
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			if n == name {
				return nil
			}
		}
	}
	return missing
}

func output(ctx context.Context, bin string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	// #nosec G204 -- binary comes from operator config
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	return string(out), err
}
