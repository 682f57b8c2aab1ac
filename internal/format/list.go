package format

import (
	"bytes"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// DecodeSubkeyList extracts child NK offsets from an LI, LF or LH list.
// LF/LH entries carry a name hash which is skipped; lookups compare decoded
// names. When expected is non-zero it caps the entry count, so a list that
// claims more entries than its key yields only the key's count.
func DecodeSubkeyList(b []byte, expected uint32) ([]uint32, error) {
	if len(b) < ListHeaderSize {
		return nil, fmt.Errorf("subkey list: %w", ErrTruncated)
	}
	sig := b[:SignatureSize]
	count := uint32(buf.U16LE(b[SignatureSize:ListHeaderSize]))
	if expected != 0 && expected < count {
		count = expected
	}
	var entrySize int
	switch {
	case bytes.Equal(sig, LISignature):
		entrySize = LIEntrySize
	case bytes.Equal(sig, LFSignature), bytes.Equal(sig, LHSignature):
		entrySize = LFEntrySize
	default:
		return nil, fmt.Errorf("subkey list %q: %w", sig, ErrUnsupported)
	}
	if _, err := buf.CheckListBounds(len(b), ListHeaderSize, int(count), entrySize); err != nil {
		return nil, fmt.Errorf("subkey list: %w", err)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = buf.U32LE(b[ListHeaderSize+i*entrySize:])
	}
	return out, nil
}

// IsRIList reports whether b holds an indirect (RI) subkey list. Keys with
// very large fan-out reference several LF/LH lists through one RI list.
func IsRIList(b []byte) bool {
	return len(b) >= SignatureSize && bytes.Equal(b[:SignatureSize], RISignature)
}

// DecodeRIList returns the offsets of the constituent LF/LH lists of an RI
// record. The caller fetches and decodes each sub-list.
func DecodeRIList(b []byte) ([]uint32, error) {
	if len(b) < ListHeaderSize {
		return nil, fmt.Errorf("ri list: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:SignatureSize], RISignature) {
		return nil, fmt.Errorf("ri list: %w", ErrSignatureMismatch)
	}
	count := int(buf.U16LE(b[SignatureSize:ListHeaderSize]))
	if _, err := buf.CheckListBounds(len(b), ListHeaderSize, count, OffsetFieldSize); err != nil {
		return nil, fmt.Errorf("ri list: %w", err)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = buf.U32LE(b[ListHeaderSize+i*OffsetFieldSize:])
	}
	return out, nil
}

// DecodeValueList decodes a value list: count VK cell offsets.
func DecodeValueList(b []byte, count uint32) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	if _, err := buf.CheckListBounds(len(b), 0, int(count), OffsetFieldSize); err != nil {
		return nil, fmt.Errorf("value list: %w", err)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = buf.U32LE(b[i*OffsetFieldSize:])
	}
	return out, nil
}
