//go:build !unix

package fsutil

// linkUnsupported treats every link failure other than "exists" as a
// missing hard-link capability on non-unix platforms.
func linkUnsupported(err error) bool {
	return err != nil
}
