package format

import (
	"errors"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// Cell is a single allocation within a hive bin.
//
//	Offset  Size  Field
//	0x00    4     Signed size. Negative => allocated, positive => free.
//	              Absolute value includes the 4-byte header.
//	0x04    ...   Payload. The first two bytes form the record tag.
type Cell struct {
	Size int  // total size including header
	Free bool // cell is on the free list
	Tag  [SignatureSize]byte
	Data []byte // payload, aliasing the underlying buffer
}

// ParseCell decodes the cell starting at b[0]. b must extend at least to the
// end of the cell.
func ParseCell(b []byte) (Cell, error) {
	if len(b) < CellHeaderSize {
		return Cell{}, fmt.Errorf("cell: %w", ErrTruncated)
	}
	raw := buf.I32LE(b)
	if raw == 0 {
		return Cell{}, errors.New("cell: zero length")
	}
	free := raw > 0
	size := int(raw)
	if !free {
		size = -size
	}
	if size < CellHeaderSize || size > len(b) {
		return Cell{}, fmt.Errorf("cell: %w", ErrTruncated)
	}
	payload := b[CellHeaderSize:size]
	var tag [SignatureSize]byte
	if len(payload) >= SignatureSize {
		tag[0], tag[1] = payload[0], payload[1]
	}
	return Cell{
		Size: size,
		Free: free,
		Tag:  tag,
		Data: payload,
	}, nil
}
