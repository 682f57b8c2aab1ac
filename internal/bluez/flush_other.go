//go:build !linux && !freebsd

package bluez

import "os"

func flushFile(f *os.File) error {
	return f.Sync()
}
