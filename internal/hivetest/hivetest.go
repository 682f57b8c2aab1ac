// Package hivetest assembles small synthetic hive images for tests: a
// declarative key tree rendered into a valid regf file with one hive bin,
// correct cell layout, and a stamped header checksum. Names must be ASCII,
// which keeps them on the compressed-name path real SYSTEM hives use.
package hivetest

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/davidbalzan/bluetooth-sync/internal/format"
)

// Key describes one registry key in a synthetic hive.
type Key struct {
	Name    string
	Values  []Value
	Subkeys []Key
}

// Value describes one registry value.
type Value struct {
	Name string
	Type uint32
	Data []byte
}

// DWORDValue builds a REG_DWORD value.
func DWORDValue(name string, v uint32) Value {
	data := make([]byte, format.DWORDSize)
	binary.LittleEndian.PutUint32(data, v)
	return Value{Name: name, Type: format.RegDword, Data: data}
}

// SZValue builds a NUL-terminated UTF-16LE REG_SZ value.
func SZValue(name, s string) Value {
	units := utf16.Encode([]rune(s))
	data := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(data[i*2:], u)
	}
	return Value{Name: name, Type: format.RegSZ, Data: data}
}

// BinaryValue builds a REG_BINARY value.
func BinaryValue(name string, data []byte) Value {
	return Value{Name: name, Type: format.RegBinary, Data: data}
}

// dbBlockDataSize is how much payload each big-data block carries; values
// beyond one block are split the way Windows splits them.
const dbBlockDataSize = 16344

// Build renders the key tree into a complete hive image. It panics on
// inputs a test should never produce (non-ASCII names, oversized names).
func Build(root Key) []byte {
	b := &builder{}
	rootOff := b.writeKey(root)

	binSize := format.AlignHBIN(format.HBINHeaderSize + len(b.cells))
	image := make([]byte, format.HeaderSize+binSize)

	// Hive bin header, then cells, then one free cell covering the slack.
	copy(image[format.HeaderSize:], format.HBINSignature)
	format.PutU32(image, format.HeaderSize+format.HBINFileOffsetField, 0)
	format.PutU32(image, format.HeaderSize+format.HBINSizeOffset, uint32(binSize))
	copy(image[format.HeaderSize+format.HBINHeaderSize:], b.cells)
	padStart := format.HeaderSize + format.HBINHeaderSize + len(b.cells)
	if pad := format.HeaderSize + binSize - padStart; pad > 0 {
		format.PutI32(image, padStart, int32(pad))
	}

	copy(image, format.REGFSignature)
	format.PutU32(image, format.REGFPrimarySeqOffset, 1)
	format.PutU32(image, format.REGFSecondarySeqOffset, 1)
	format.PutU32(image, format.REGFMajorVersionOffset, 1)
	format.PutU32(image, format.REGFMinorVersionOffset, 5)
	format.PutU32(image, format.REGFTypeOffset, 0)
	format.PutU32(image, format.REGFRootCellOffset, rootOff)
	format.PutU32(image, format.REGFDataSizeOffset, uint32(binSize))
	format.PutU32(image, format.REGFChecksumOffset, format.Checksum(image))
	return image
}

type builder struct {
	cells []byte
}

// alloc appends an allocated cell with room for payload bytes and returns
// its bin-relative offset together with the payload slice to fill in.
func (b *builder) alloc(payload int) (uint32, []byte) {
	total := format.Align8(format.CellHeaderSize + payload)
	off := format.HBINHeaderSize + len(b.cells)
	b.cells = append(b.cells, make([]byte, total)...)
	cell := b.cells[off-format.HBINHeaderSize:]
	format.PutI32(cell, 0, int32(-total))
	return uint32(off), cell[format.CellHeaderSize:total]
}

// writeKey serializes the key's subtree bottom-up and returns the NK offset.
func (b *builder) writeKey(k Key) uint32 {
	name := asciiName(k.Name)

	childOffs := make([]uint32, len(k.Subkeys))
	for i, sub := range k.Subkeys {
		childOffs[i] = b.writeKey(sub)
	}
	valueOffs := make([]uint32, len(k.Values))
	for i, v := range k.Values {
		valueOffs[i] = b.writeValue(v)
	}

	subkeyListOff := uint32(format.InvalidOffset)
	if len(childOffs) > 0 {
		var lf []byte
		subkeyListOff, lf = b.alloc(format.ListHeaderSize + len(childOffs)*format.LFEntrySize)
		copy(lf, format.LFSignature)
		format.PutU16(lf, format.SignatureSize, uint16(len(childOffs)))
		for i, off := range childOffs {
			entry := format.ListHeaderSize + i*format.LFEntrySize
			format.PutU32(lf, entry, off)
			// LF hint: first four name bytes.
			var hint [4]byte
			copy(hint[:], k.Subkeys[i].Name)
			copy(lf[entry+format.OffsetFieldSize:], hint[:])
		}
	}

	valueListOff := uint32(format.InvalidOffset)
	if len(valueOffs) > 0 {
		var vl []byte
		valueListOff, vl = b.alloc(len(valueOffs) * format.OffsetFieldSize)
		for i, off := range valueOffs {
			format.PutU32(vl, i*format.OffsetFieldSize, off)
		}
	}

	nkOff, nk := b.alloc(format.NKFixedHeaderSize + len(name))
	copy(nk, format.NKSignature)
	format.PutU16(nk, format.NKFlagsOffset, format.NKFlagCompressedName)
	format.PutU32(nk, format.NKSubkeyCountOffset, uint32(len(childOffs)))
	format.PutU32(nk, format.NKSubkeyListOffset, subkeyListOff)
	format.PutU32(nk, format.NKValueCountOffset, uint32(len(valueOffs)))
	format.PutU32(nk, format.NKValueListOffset, valueListOff)
	format.PutU16(nk, format.NKNameLenOffset, uint16(len(name)))
	copy(nk[format.NKNameOffset:], name)
	return nkOff
}

// writeValue serializes a VK cell and its data, inline for payloads that
// fit the offset field, big-data blocks for payloads beyond one cell.
func (b *builder) writeValue(v Value) uint32 {
	name := asciiName(v.Name)

	dataLen := uint32(len(v.Data))
	var dataOff uint32
	switch {
	case len(v.Data) <= format.VKInlineDataLimit:
		dataLen |= format.VKDataInlineBit
		var field [format.OffsetFieldSize]byte
		copy(field[:], v.Data)
		dataOff = binary.LittleEndian.Uint32(field[:])
	case len(v.Data) <= dbBlockDataSize:
		var cell []byte
		dataOff, cell = b.alloc(len(v.Data))
		copy(cell, v.Data)
	default:
		dataOff = b.writeBigData(v.Data)
	}

	vkOff, vk := b.alloc(format.VKMinSize + len(name))
	copy(vk, format.VKSignature)
	format.PutU16(vk, format.VKNameLenOffset, uint16(len(name)))
	format.PutU32(vk, format.VKDataLenOffset, dataLen)
	format.PutU32(vk, format.VKDataOffOffset, dataOff)
	format.PutU32(vk, format.VKTypeOffset, v.Type)
	format.PutU16(vk, format.VKFlagsOffset, format.VKFlagASCIIName)
	copy(vk[format.VKNameOffset:], name)
	return vkOff
}

// writeBigData splits data into blocks behind a db record and returns the
// db cell offset. Every block cell carries the trailing padding readers
// trim during reassembly.
func (b *builder) writeBigData(data []byte) uint32 {
	var blockOffs []uint32
	for start := 0; start < len(data); start += dbBlockDataSize {
		end := start + dbBlockDataSize
		if end > len(data) {
			end = len(data)
		}
		off, cell := b.alloc(end - start + format.DBBlockPadding)
		copy(cell, data[start:end])
		blockOffs = append(blockOffs, off)
	}

	listOff, list := b.alloc(len(blockOffs) * format.OffsetFieldSize)
	for i, off := range blockOffs {
		format.PutU32(list, i*format.OffsetFieldSize, off)
	}

	dbOff, db := b.alloc(format.DBMinSize)
	copy(db, format.DBSignature)
	format.PutU16(db, format.DBCountOffset, uint16(len(blockOffs)))
	format.PutU32(db, format.DBListOffset, listOff)
	return dbOff
}

func asciiName(name string) []byte {
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			panic(fmt.Sprintf("hivetest: name %q is not ASCII", name))
		}
	}
	if len(name) > 0xFFFF {
		panic(fmt.Sprintf("hivetest: name %q too long", name))
	}
	return []byte(name)
}
