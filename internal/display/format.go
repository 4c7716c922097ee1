package display

import (
	"fmt"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB, PiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatMB returns bytes as megabytes with the given number of decimals,
// without a unit ("700.0").
func FormatMB(bytes int64, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, float64(bytes)/(1024*1024))
}

// FormatDuration renders seconds as mm:ss. Minutes are not wrapped into
// hours; fractions are truncated.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int64(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
