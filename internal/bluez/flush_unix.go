//go:build linux || freebsd

package bluez

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushFile forces record data to disk before the rename. fdatasync is
// enough here; the rename carries the metadata update.
func flushFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
