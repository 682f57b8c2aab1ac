package format

import (
	"bytes"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// HBIN describes one hive bin: a 4 KiB-aligned container of cells.
type HBIN struct {
	FileOffset uint32 // offset relative to the first bin, echoed in the header
	Size       uint32 // total size including the 0x20-byte header
}

// NextHBIN validates the bin header at off within b and returns it along
// with the offset of the following bin.
func NextHBIN(b []byte, off int) (HBIN, int, error) {
	if off < 0 || off+HBINHeaderSize > len(b) {
		return HBIN{}, 0, fmt.Errorf("hbin: %w", ErrTruncated)
	}
	head := b[off : off+HBINHeaderSize]
	if !bytes.Equal(head[:len(HBINSignature)], HBINSignature) {
		return HBIN{}, 0, fmt.Errorf("hbin: %w", ErrSignatureMismatch)
	}
	size := buf.U32LE(head[HBINSizeOffset:])
	if size == 0 || size%HBINAlignment != 0 {
		return HBIN{}, 0, fmt.Errorf("hbin: invalid size %d", size)
	}
	next, ok := buf.AddOverflowSafe(off, int(size))
	if !ok || next > len(b) {
		return HBIN{}, 0, fmt.Errorf("hbin: %w", ErrTruncated)
	}
	return HBIN{
		FileOffset: buf.U32LE(head[HBINFileOffsetField:]),
		Size:       size,
	}, next, nil
}
