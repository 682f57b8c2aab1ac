package format

import (
	"bytes"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// NKRecord carries the key-node fields used for traversal. Offsets of the
// full structure are documented in format.go; parent, security, class and
// max-length fields are decoded past, not retained.
type NKRecord struct {
	Flags            uint16
	SubkeyCount      uint32
	SubkeyListOffset uint32
	ValueCount       uint32
	ValueListOffset  uint32
	NameLength       uint16
	NameRaw          []byte
}

// NameIsCompressed reports whether the name is stored as Windows-1252 bytes
// rather than UTF-16LE.
func (nk NKRecord) NameIsCompressed() bool {
	return nk.Flags&NKFlagCompressedName != 0
}

// DecodeNK decodes an NK record payload.
func DecodeNK(b []byte) (NKRecord, error) {
	if len(b) < NKMinSize {
		return NKRecord{}, fmt.Errorf("nk: %w (have %d, need %d)", ErrTruncated, len(b), NKMinSize)
	}
	if !bytes.Equal(b[:SignatureSize], NKSignature) {
		return NKRecord{}, fmt.Errorf("nk: %w", ErrSignatureMismatch)
	}

	flags, err := CheckedReadU16(b, NKFlagsOffset)
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk flags: %w", err)
	}
	subkeyCount, err := CheckedReadU32(b, NKSubkeyCountOffset)
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk subkey count: %w", err)
	}
	if subkeyCount > MaxSubkeyCount {
		return NKRecord{}, fmt.Errorf("nk subkey count %d: %w", subkeyCount, ErrSanityLimit)
	}
	subkeyListOff, err := CheckedReadU32(b, NKSubkeyListOffset)
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk subkey list: %w", err)
	}
	valueCount, err := CheckedReadU32(b, NKValueCountOffset)
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk value count: %w", err)
	}
	if valueCount > MaxValueCount {
		return NKRecord{}, fmt.Errorf("nk value count %d: %w", valueCount, ErrSanityLimit)
	}
	valueListOff, err := CheckedReadU32(b, NKValueListOffset)
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk value list: %w", err)
	}
	nameLen, err := CheckedReadU16(b, NKNameLenOffset)
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk name len: %w", err)
	}
	if int(nameLen) > MaxNameLen {
		return NKRecord{}, fmt.Errorf("nk name len %d: %w", nameLen, ErrSanityLimit)
	}

	name, ok := buf.Slice(b, NKNameOffset, int(nameLen))
	if !ok {
		return NKRecord{}, fmt.Errorf("nk name: %w (need %d bytes at %d, have %d)",
			ErrTruncated, nameLen, NKNameOffset, len(b))
	}

	return NKRecord{
		Flags:            flags,
		SubkeyCount:      subkeyCount,
		SubkeyListOffset: subkeyListOff,
		ValueCount:       valueCount,
		ValueListOffset:  valueListOff,
		NameLength:       nameLen,
		NameRaw:          name,
	}, nil
}
