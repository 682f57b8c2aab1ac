package format

import (
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// Caps on decoded count/length fields. These are not format limits; they
// bound allocations when a hive lies about its own sizes.
const (
	// MaxSubkeyCount caps the subkey count of a single key.
	MaxSubkeyCount = 1 << 20
	// MaxValueCount caps the value count of a single key.
	MaxValueCount = 1 << 20
	// MaxNameLen caps encoded key and value name lengths in bytes.
	// Windows caps names at 255/16383 UTF-16 units; stay well above.
	MaxNameLen = 64 << 10
	// MaxClassLen caps the class name length in bytes.
	MaxClassLen = 64 << 10
	// MaxValueDataLen caps declared value data lengths. Big-data values
	// top out near 1 GiB (65535 blocks of 16344 bytes).
	MaxValueDataLen = 1 << 30
)

// CheckedReadU16 reads a little-endian uint16 at off, erroring instead of
// returning a zero when the buffer is too short.
func CheckedReadU16(b []byte, off int) (uint16, error) {
	s, ok := buf.Slice(b, off, 2)
	if !ok {
		return 0, fmt.Errorf("read u16 at %d: %w", off, ErrTruncated)
	}
	return buf.U16LE(s), nil
}

// CheckedReadU32 reads a little-endian uint32 at off, erroring instead of
// returning a zero when the buffer is too short.
func CheckedReadU32(b []byte, off int) (uint32, error) {
	s, ok := buf.Slice(b, off, 4)
	if !ok {
		return 0, fmt.Errorf("read u32 at %d: %w", off, ErrTruncated)
	}
	return buf.U32LE(s), nil
}
