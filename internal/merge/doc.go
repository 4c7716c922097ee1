// Package merge partitions a directory of episode files into contiguous
// groups under duration and size caps and joins each group into one
// output file.
//
// Files are taken in name order. A group is sealed as soon as adding the
// next file would push its total duration or size past a nonzero cap; a
// single file over a cap still forms its own group. Every sealed group gets
// the next episode number whether or not its merge succeeds, and a failed
// group never stops the run. Before a group is joined, its stream
// parameters are compared against the first file and the merge is skipped
// on any mismatch. Outputs are never overwritten.
//
// Probing and concatenation are behind the Prober and Concatenator
// interfaces; the ffprobe and ffmpeg packages provide the real ones.
package merge
