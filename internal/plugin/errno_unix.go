//go:build unix

package plugin

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrnoName returns the symbolic name of errno, such as "ENOENT", or "???"
// when it has none.
func ErrnoName(errno int) string {
	if name := unix.ErrnoName(syscall.Errno(errno)); name != "" {
		return name
	}
	return "???"
}
