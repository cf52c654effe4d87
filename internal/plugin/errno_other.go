//go:build !unix

package plugin

// ErrnoName returns "???"; symbolic errno names are only available on unix.
func ErrnoName(errno int) string {
	return "???"
}
