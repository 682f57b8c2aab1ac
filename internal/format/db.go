package format

import (
	"bytes"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// DBRecord references the block list of a big-data value. Values above one
// cell's capacity are split into up to 65535 blocks of 16344 bytes; the VK
// data offset points at this record instead of the data itself.
type DBRecord struct {
	BlockCount      uint16
	BlockListOffset uint32
}

// DecodeDB decodes a big-data record payload.
func DecodeDB(b []byte) (DBRecord, error) {
	if len(b) < DBMinSize {
		return DBRecord{}, fmt.Errorf("db: %w (have %d, need %d)", ErrTruncated, len(b), DBMinSize)
	}
	if !bytes.Equal(b[:SignatureSize], DBSignature) {
		return DBRecord{}, fmt.Errorf("db: %w", ErrSignatureMismatch)
	}
	return DBRecord{
		BlockCount:      buf.U16LE(b[DBCountOffset:]),
		BlockListOffset: buf.U32LE(b[DBListOffset:]),
	}, nil
}

// IsDBRecord reports whether the cell payload starts with the "db" tag.
func IsDBRecord(b []byte) bool {
	return len(b) >= SignatureSize && bytes.Equal(b[:SignatureSize], DBSignature)
}
