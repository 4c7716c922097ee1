// Package naming derives show names from directory names and builds the
// fixed output file names of merged episodes:
//
//	{show}_S{season}E{episode}.mp4
//
// Season and episode are zero-padded two-digit tokens. Everything here is
// pure string work; nothing touches the filesystem.
package naming
