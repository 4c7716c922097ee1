package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for inputs the concat demuxer cannot express,
// such as paths containing a line break.
var ErrInvalidPath = errors.New("path not representable in concat manifest")

// EscapeConcatPath quotes p for a concat demuxer "file" directive. The
// demuxer tokenizes quoted strings without backslash processing, so a
// single quote is closed, escaped and reopened:
//
//	it's.mp4  ->  'it'\''s.mp4'
func EscapeConcatPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

// ManifestLines returns one "file '<abs>'" line per input, in order.
// Relative inputs are made absolute against the working directory.
func ManifestLines(inputs []string) ([]string, error) {
	lines := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if strings.ContainsAny(in, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, in)
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", in, err)
		}
		lines = append(lines, "file "+EscapeConcatPath(abs))
	}
	return lines, nil
}

// WriteManifest writes the concat manifest for inputs to a new temporary
// file in dir and returns its path. The caller removes it.
func WriteManifest(dir string, inputs []string) (string, error) {
	if len(inputs) == 0 {
		return "", errors.New("no inputs for concat manifest")
	}
	lines, err := ManifestLines(inputs)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, ".concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}
	name := f.Name()
	_, werr := f.WriteString(strings.Join(lines, "\n") + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return name, nil
}
