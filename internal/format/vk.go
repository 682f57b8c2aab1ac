package format

import (
	"bytes"
	"fmt"

	"github.com/davidbalzan/bluetooth-sync/internal/buf"
)

// VKRecord is a decoded value cell header. The data payload lives either
// inline in the DataOffset field (bit 31 of DataLength set) or in the cell
// the offset references.
type VKRecord struct {
	NameLength uint16
	DataLength uint32
	DataOffset uint32
	Type       uint32
	Flags      uint16
	NameRaw    []byte
}

// NameIsASCII reports whether the name is stored as Windows-1252 bytes.
func (vk VKRecord) NameIsASCII() bool {
	return vk.Flags&VKFlagASCIIName != 0
}

// DataInline reports whether the data is embedded in the DataOffset field.
func (vk VKRecord) DataInline() bool {
	return vk.DataLength&VKDataInlineBit != 0
}

// DataLen returns the declared payload length with the inline bit masked.
func (vk VKRecord) DataLen() int {
	return int(vk.DataLength & VKDataLengthMask)
}

// DecodeVK decodes a VK record payload.
func DecodeVK(b []byte) (VKRecord, error) {
	if len(b) < VKMinSize {
		return VKRecord{}, fmt.Errorf("vk: %w (have %d, need %d)", ErrTruncated, len(b), VKMinSize)
	}
	if !bytes.Equal(b[:SignatureSize], VKSignature) {
		return VKRecord{}, fmt.Errorf("vk: %w", ErrSignatureMismatch)
	}

	nameLen, err := CheckedReadU16(b, VKNameLenOffset)
	if err != nil {
		return VKRecord{}, fmt.Errorf("vk name len: %w", err)
	}
	if int(nameLen) > MaxNameLen {
		return VKRecord{}, fmt.Errorf("vk name len %d: %w", nameLen, ErrSanityLimit)
	}
	dataLen, err := CheckedReadU32(b, VKDataLenOffset)
	if err != nil {
		return VKRecord{}, fmt.Errorf("vk data len: %w", err)
	}
	if dataLen&VKDataLengthMask > MaxValueDataLen {
		return VKRecord{}, fmt.Errorf("vk data len %d: %w", dataLen&VKDataLengthMask, ErrSanityLimit)
	}
	dataOff, err := CheckedReadU32(b, VKDataOffOffset)
	if err != nil {
		return VKRecord{}, fmt.Errorf("vk data off: %w", err)
	}
	valType, err := CheckedReadU32(b, VKTypeOffset)
	if err != nil {
		return VKRecord{}, fmt.Errorf("vk type: %w", err)
	}
	flags, err := CheckedReadU16(b, VKFlagsOffset)
	if err != nil {
		return VKRecord{}, fmt.Errorf("vk flags: %w", err)
	}

	name, ok := buf.Slice(b, VKNameOffset, int(nameLen))
	if !ok {
		return VKRecord{}, fmt.Errorf("vk name: %w (need %d bytes at %d, have %d)",
			ErrTruncated, nameLen, VKNameOffset, len(b))
	}

	return VKRecord{
		NameLength: nameLen,
		DataLength: dataLen,
		DataOffset: dataOff,
		Type:       valType,
		Flags:      flags,
		NameRaw:    name,
	}, nil
}
