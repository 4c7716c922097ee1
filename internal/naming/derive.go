package naming

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	reTitleMarks = regexp.MustCompile(`《(.*?)》`)
	reDigits     = regexp.MustCompile(`\d+`)

	// Bracketed segments are dropped with their content.
	reBracketed = []*regexp.Regexp{
		regexp.MustCompile(`（.*?）`),
		regexp.MustCompile(`\(.*?\)`),
		regexp.MustCompile(`\[.*?\]`),
		regexp.MustCompile(`【.*?】`),
	}

	strayMarks = strings.NewReplacer("《", " ", "》", " ")
)

// DeriveShowName extracts a show name from a directory name (or path; only
// the last element is used). Content between 《 and 》 wins when present.
// Otherwise digits, separators and bracketed segments become spaces and the
// first remaining token is the name. Returns "" when nothing is left.
func DeriveShowName(dirName string) string {
	name := filepath.Base(filepath.Clean(dirName))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	if m := reTitleMarks.FindStringSubmatch(name); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}

	name = reDigits.ReplaceAllString(foldDigits(name), " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, ".", " ")
	for _, re := range reBracketed {
		name = re.ReplaceAllString(name, " ")
	}
	name = strayMarks.Replace(name)

	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// foldDigits narrows fullwidth digits so \d matches them. Every other rune
// keeps its width.
func foldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		p := width.LookupRune(r)
		if p.Kind() == width.EastAsianFullwidth {
			if n := p.Narrow(); n >= '0' && n <= '9' {
				return n
			}
		}
		return r
	}, s)
}
