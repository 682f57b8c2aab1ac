package format

import (
	"bytes"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// Header carries the base block fields needed to traverse a hive.
type Header struct {
	PrimarySequence   uint32
	SecondarySequence uint32
	MajorVersion      uint32
	MinorVersion      uint32
	Type              uint32
	RootCellOffset    uint32
	HiveBinsDataSize  uint32
}

// ParseHeader validates the regf base block against fileSize (the length of
// the whole hive) and extracts the traversal fields. Checks, in order:
// signature, checksum, data-size alignment, reported length vs file size,
// root cell inside the data area, and version 1.3 through 1.6. Mismatched
// sequence numbers (a hive with unreconciled log data) are not an error;
// callers may compare the fields themselves.
func ParseHeader(b []byte, fileSize int) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("regf header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:REGFSignatureSize], REGFSignature) {
		return Header{}, fmt.Errorf("regf header: %w", ErrSignatureMismatch)
	}
	if sum, stored := Checksum(b), buf.U32LE(b[REGFChecksumOffset:]); sum != stored {
		return Header{}, fmt.Errorf("regf header: checksum mismatch: stored=0x%08X computed=0x%08X", stored, sum)
	}

	h := Header{
		PrimarySequence:   buf.U32LE(b[REGFPrimarySeqOffset:]),
		SecondarySequence: buf.U32LE(b[REGFSecondarySeqOffset:]),
		MajorVersion:      buf.U32LE(b[REGFMajorVersionOffset:]),
		MinorVersion:      buf.U32LE(b[REGFMinorVersionOffset:]),
		Type:              buf.U32LE(b[REGFTypeOffset:]),
		RootCellOffset:    buf.U32LE(b[REGFRootCellOffset:]),
		HiveBinsDataSize:  buf.U32LE(b[REGFDataSizeOffset:]),
	}

	if h.HiveBinsDataSize%HBINAlignment != 0 {
		return Header{}, fmt.Errorf("regf header: data size not 4KiB-aligned: 0x%X", h.HiveBinsDataSize)
	}
	if reported := HeaderSize + int(h.HiveBinsDataSize); reported > fileSize {
		return Header{}, fmt.Errorf("regf header: reported hive length (%d) exceeds file size (%d)", reported, fileSize)
	}
	if h.RootCellOffset == 0 || h.RootCellOffset == InvalidOffset {
		return Header{}, fmt.Errorf("regf header: invalid root cell offset 0x%X", h.RootCellOffset)
	}
	if h.RootCellOffset >= h.HiveBinsDataSize {
		return Header{}, fmt.Errorf("regf header: root cell offset (0x%X) beyond data area (size=0x%X)", h.RootCellOffset, h.HiveBinsDataSize)
	}
	if h.MajorVersion != 1 {
		return Header{}, fmt.Errorf("regf header: %w: major version %d", ErrUnsupported, h.MajorVersion)
	}
	if h.MinorVersion < 3 || h.MinorVersion > 6 {
		return Header{}, fmt.Errorf("regf header: %w: minor version %d", ErrUnsupported, h.MinorVersion)
	}
	return h, nil
}

// Checksum computes the base block checksum: XOR of the first 127 dwords,
// with all-ones remapped to 0xFFFFFFFE and zero remapped to 1.
func Checksum(b []byte) uint32 {
	var xor uint32
	for i := 0; i < REGFChecksumDwords; i++ {
		xor ^= buf.U32LE(b[i*4:])
	}
	switch xor {
	case 0xFFFFFFFF:
		return 0xFFFFFFFE
	case 0:
		return 1
	default:
		return xor
	}
}
