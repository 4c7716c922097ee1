package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// OutputExt is the container of every merged episode.
const OutputExt = ".mp4"

// OutputName returns "{show}_S{season}E{episode}.mp4". season and episode
// are used verbatim; pass them through SeasonLabel and EpisodeLabel first.
func OutputName(show, season, episode string) string {
	return fmt.Sprintf("%s_S%sE%s%s", show, season, episode, OutputExt)
}

// EpisodeLabel formats an episode number as a two-digit token ("01").
// Numbers above 99 keep all their digits.
func EpisodeLabel(n int) string {
	return fmt.Sprintf("%02d", n)
}

// SeasonLabel zero-pads a numeric season to two digits ("1" -> "01") and
// returns any other token trimmed but otherwise unchanged.
func SeasonLabel(s string) string {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return s
	}
	return fmt.Sprintf("%02d", n)
}

var unsafeChars = strings.NewReplacer(
	"/", " ", `\`, " ", ":", " ", "*", " ", "?", " ",
	`"`, " ", "<", " ", ">", " ", "|", " ", "\x00", " ",
)

// SanitizeShowName makes a show name usable as a file name component:
// path separators and characters reserved on common filesystems become
// spaces, and runs of whitespace collapse to one space.
func SanitizeShowName(name string) string {
	name = unsafeChars.Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, ".")
}
