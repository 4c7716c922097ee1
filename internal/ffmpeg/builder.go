package ffmpeg

// BuildConcat constructs the complete ffmpeg argument slice (binary first)
// for a stream-copy concatenation of manifest into output.
//
// The retry state decides whether presentation timestamps are regenerated;
// verbose raises the log level and enables periodic stats.
func BuildConcat(binary, manifest, output string, rs *RetryState, verbose bool) []string {
	if binary == "" {
		binary = "ffmpeg"
	}
	args := make([]string, 0, 24)

	// --- Preamble ---
	args = append(args, binary, "-hide_banner", "-nostdin")
	if verbose {
		args = append(args, "-loglevel", "info", "-stats", "-stats_period", "1")
	} else {
		args = append(args, "-loglevel", "error")
	}

	// --- Pre-input flags (timestamp fix) ---
	if rs != nil && rs.GenPTS {
		args = append(args, "-fflags", "+genpts")
	}

	// --- Input: concat demuxer, absolute paths allowed ---
	args = append(args, "-f", "concat", "-safe", "0", "-i", manifest)

	// --- Codec: default stream selection (best video, best audio), copied ---
	args = append(args, "-c", "copy")

	// --- Output ---
	args = append(args, "-y", output)
	return args
}

// VersionArgs returns the arguments, binary first, that query a tool's
// version.
func VersionArgs(binary string) []string {
	if binary == "" {
		binary = "ffmpeg"
	}
	return []string{binary, "-hide_banner", "-version"}
}
