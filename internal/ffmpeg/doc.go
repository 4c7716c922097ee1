// Package ffmpeg builds and executes stream-copy concat commands.
//
// A Concatenator writes a concat demuxer manifest (one quoted absolute path
// per line) next to the output, runs
//
//	ffmpeg -hide_banner -nostdin -loglevel error -f concat -safe 0 -i <manifest> -c copy -y <output>
//
// and classifies stderr on failure. When timestamps are discontinuous and
// the retry is enabled, a single second attempt adds -fflags +genpts.
// Failures are returned as *ToolError carrying the exit code, a stderr tail
// and a short hint.
package ffmpeg
