// Package format decodes the on-disk structures of Windows registry hive
// files (regf): the base block, hive bins, cells, and the NK/VK/list/db
// records they carry. Parsing stays low-level and allocation-light so the
// reader package can expose the hive as a navigable tree without copying.
//
// Only the read path is implemented. Hives are consumed, never produced;
// the Put* encoders exist for constructing synthetic hives in tests.
package format

// Record signatures.
var (
	// REGFSignature opens every hive file.
	REGFSignature = []byte{'r', 'e', 'g', 'f'}

	// HBINSignature opens every hive bin.
	HBINSignature = []byte{'h', 'b', 'i', 'n'}

	// NKSignature identifies a key node cell.
	NKSignature = []byte{'n', 'k'}

	// VKSignature identifies a value cell.
	VKSignature = []byte{'v', 'k'}

	// LFSignature, LHSignature and LISignature identify subkey list
	// variants. LF/LH entries carry a name hint/hash, LI entries do not.
	LFSignature = []byte{'l', 'f'}
	LHSignature = []byte{'l', 'h'}
	LISignature = []byte{'l', 'i'}

	// RISignature identifies an indirect subkey list whose entries point
	// at further LF/LH lists.
	RISignature = []byte{'r', 'i'}

	// DBSignature identifies a big-data record for values above ~16 KiB.
	DBSignature = []byte{'d', 'b'}
)

// File geometry.
const (
	// HeaderSize is the size of the regf base block, one 4 KiB page.
	HeaderSize = 4096

	// HBINHeaderSize is the size of the header opening each hive bin.
	HBINHeaderSize = 0x20

	// CellHeaderSize is the signed-size prefix of every cell.
	CellHeaderSize = 4

	// HBINAlignment is the required alignment of hive bins.
	HBINAlignment = 0x1000

	// CellAlignment is the required alignment of cells within bins.
	CellAlignment = 8

	// SignatureSize is the record tag width (NK, VK, list tags).
	SignatureSize = 2

	// OffsetFieldSize is the width of a cell offset reference.
	OffsetFieldSize = 4

	// InvalidOffset marks unused offset fields (no referenced cell).
	InvalidOffset = 0xFFFFFFFF
)

// Base block field offsets. Cell offsets stored in the header and in
// records are relative to the first hive bin (file offset HeaderSize).
//
//	Offset  Size  Field
//	0x000   4     'r' 'e' 'g' 'f'
//	0x004   4     Primary sequence number
//	0x008   4     Secondary sequence number
//	0x00C   8     Last write timestamp (FILETIME, unused here)
//	0x014   4     Major version
//	0x018   4     Minor version
//	0x01C   4     File type (0 = primary)
//	0x024   4     Root cell offset
//	0x028   4     Hive bins data size
//	0x1FC   4     XOR-32 checksum of bytes 0x000..0x1FB
const (
	REGFSignatureSize      = 4
	REGFPrimarySeqOffset   = 0x004
	REGFSecondarySeqOffset = 0x008
	REGFMajorVersionOffset = 0x014
	REGFMinorVersionOffset = 0x018
	REGFTypeOffset         = 0x01C
	REGFRootCellOffset     = 0x024
	REGFDataSizeOffset     = 0x028
	REGFChecksumOffset     = 0x1FC

	// REGFChecksumRegionLen is the number of header bytes covered by the
	// checksum: 127 dwords.
	REGFChecksumRegionLen = 508
	REGFChecksumDwords    = 127
)

// HBIN header field offsets.
//
//	Offset  Size  Field
//	0x00    4     'h' 'b' 'i' 'n'
//	0x04    4     File offset of this bin relative to the first bin
//	0x08    4     Size of this bin, multiple of 0x1000
const (
	HBINFileOffsetField = 0x04
	HBINSizeOffset      = 0x08
)

// NK record field offsets, relative to the cell payload (the "nk" tag).
//
//	Offset  Size  Field
//	0x00    2     'n' 'k'
//	0x02    2     Flags (0x20 => name stored as Windows-1252)
//	0x04    8     Last write timestamp (ignored)
//	0x0C    4     Access bits (ignored)
//	0x10    4     Parent cell offset (ignored)
//	0x14    4     Subkey count
//	0x18    4     Volatile subkey count (ignored)
//	0x1C    4     Subkey list offset
//	0x20    4     Volatile subkey list offset (ignored)
//	0x24    4     Value count
//	0x28    4     Value list offset
//	0x2C    4     Security cell offset (ignored)
//	0x30    4     Class name cell offset (ignored)
//	0x34    16    Max name/class/value-name/value-data lengths (ignored)
//	0x44    4     Work var (ignored)
//	0x48    2     Name length, bytes
//	0x4A    2     Class name length, bytes
//	0x4C    n     Name
const (
	NKFlagsOffset        = 0x02
	NKLastWriteOffset    = 0x04
	NKParentOffset       = 0x10
	NKSubkeyCountOffset  = 0x14
	NKSubkeyListOffset   = 0x1C
	NKValueCountOffset   = 0x24
	NKValueListOffset    = 0x28
	NKSecurityOffset     = 0x2C
	NKClassNameOffset    = 0x30
	NKNameLenOffset      = 0x48
	NKClassLenOffset     = 0x4A
	NKNameOffset         = 0x4C
	NKFixedHeaderSize    = NKNameOffset
	NKMinSize            = NKFixedHeaderSize
	NKFlagCompressedName = 0x20
)

// VK record field offsets, relative to the cell payload.
//
//	Offset  Size  Field
//	0x00    2     'v' 'k'
//	0x02    2     Name length, bytes
//	0x04    4     Data length, bit 31 set => data inline in offset field
//	0x08    4     Data cell offset, or up to 4 inline bytes
//	0x0C    4     Value type
//	0x10    2     Flags (0x01 => name stored as Windows-1252)
//	0x12    2     Spare
//	0x14    n     Name
const (
	VKNameLenOffset   = 0x02
	VKDataLenOffset   = 0x04
	VKDataOffOffset   = 0x08
	VKTypeOffset      = 0x0C
	VKFlagsOffset     = 0x10
	VKNameOffset      = 0x14
	VKMinSize         = VKNameOffset
	VKFlagASCIIName   = 0x0001
	VKDataInlineBit   = 0x80000000
	VKDataLengthMask  = 0x7FFFFFFF
	VKInlineDataLimit = OffsetFieldSize
)

// Subkey list layout: 2-byte tag, 2-byte count, then entries. LI and RI
// entries are bare offsets; LF/LH entries pair an offset with a hint.
const (
	ListHeaderSize = 4
	LIEntrySize    = OffsetFieldSize
	LFEntrySize    = 8
)

// DB (big data) record layout, used when value data exceeds one cell.
//
//	Offset  Size  Field
//	0x00    2     'd' 'b'
//	0x02    2     Block count
//	0x04    4     Offset of the block list cell
const (
	DBCountOffset = 0x02
	DBListOffset  = 0x04
	DBMinSize     = 0x08

	// DBBlockPadding trails each data block: the next cell's header bytes,
	// excluded from value data during reassembly.
	DBBlockPadding = 4
)

// Registry value type codes, as defined by Windows.
const (
	RegNone     uint32 = 0
	RegSZ       uint32 = 1
	RegExpandSZ uint32 = 2
	RegBinary   uint32 = 3
	RegDword    uint32 = 4
	RegDwordBE  uint32 = 5
	RegLink     uint32 = 6
	RegMultiSZ  uint32 = 7
	RegQword    uint32 = 11

	// DWORDSize is the payload size of RegDword values.
	DWORDSize = 4
)

// Align8 rounds n up to the next cell boundary.
func Align8(n int) int {
	return (n + CellAlignment - 1) &^ (CellAlignment - 1)
}

// AlignHBIN rounds n up to the next hive bin boundary.
func AlignHBIN(n int) int {
	return (n + HBINAlignment - 1) &^ (HBINAlignment - 1)
}
