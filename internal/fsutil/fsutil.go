// Package fsutil holds the file placement helpers used when committing
// merged episodes: hidden partial files next to the destination and a
// no-replace commit that never clobbers an existing file.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Hooks for tests to simulate filesystems without hard-link support.
var (
	linkFunc   = os.Link
	renameFunc = os.Rename
)

// PathTypeConflictError reports a destination whose type is not what the
// caller needs, e.g. a directory where a file should go.
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("path type conflict: %q (want %s, got %s)", e.Path, e.Want, e.Got)
}

// CreatePartial creates an empty hidden file ".<name>.<rand>.part<ext>" in
// dir and returns its path. The file keeps the extension of name so tools
// that infer the container from the suffix still work.
func CreatePartial(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	f, err := os.CreateTemp(dir, "."+base+".*.part"+ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Exists reports whether anything (file, dir or dangling link) is at path.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// CommitNoReplace moves src to dst only if dst does not exist. The check
// and the placement are one hard-link syscall, so a concurrent creator of
// dst makes the commit fail with an error wrapping os.ErrExist and leaves
// both files untouched. src is removed after a successful link.
//
// On filesystems without hard links it falls back to an existence check
// followed by rename, which is not atomic against concurrent creators.
func CommitNoReplace(src, dst string) error {
	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		return fmt.Errorf("commit %q: %w", dst, os.ErrExist)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	err := linkFunc(src, dst)
	switch {
	case err == nil:
		if rerr := os.Remove(src); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return fmt.Errorf("remove partial %q: %w", src, rerr)
		}
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("commit %q: %w", dst, os.ErrExist)
	case linkUnsupported(err):
		if exists, serr := Exists(dst); serr != nil {
			return serr
		} else if exists {
			return fmt.Errorf("commit %q: %w", dst, os.ErrExist)
		}
		if err := renameFunc(src, dst); err != nil {
			return fmt.Errorf("commit %q: %w", dst, err)
		}
	default:
		return fmt.Errorf("commit %q: %w", dst, err)
	}

	_ = syncDirBestEffort(filepath.Dir(dst))
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
