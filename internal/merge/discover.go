package merge

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions is the allow-list used when Options.Extensions is empty.
var DefaultExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".flv", ".wmv"}

// Discover lists the regular files directly inside dir whose extension is
// in exts (case-insensitive), sorted by file name. Subdirectories are not
// descended into. Symlinks count when they resolve to a regular file.
func Discover(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	// os.ReadDir returns entries sorted by file name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !allowed[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch {
		case e.Type().IsRegular():
		case e.Type()&os.ModeSymlink != 0:
			fi, err := os.Stat(path)
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
		default:
			continue
		}
		files = append(files, path)
	}
	return files, nil
}
