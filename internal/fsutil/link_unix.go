//go:build unix

package fsutil

import (
	"errors"
	"syscall"
)

// linkUnsupported reports link failures that mean "this filesystem cannot
// hard-link" rather than a real problem with src or dst.
func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EXDEV)
}
