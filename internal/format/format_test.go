package format

import (
	"errors"
	"testing"
)

func validHeader() []byte {
	b := make([]byte, HeaderSize)
	copy(b, REGFSignature)
	PutU32(b, REGFPrimarySeqOffset, 7)
	PutU32(b, REGFSecondarySeqOffset, 7)
	PutU32(b, REGFMajorVersionOffset, 1)
	PutU32(b, REGFMinorVersionOffset, 5)
	PutU32(b, REGFRootCellOffset, HBINHeaderSize)
	PutU32(b, REGFDataSizeOffset, HBINAlignment)
	PutU32(b, REGFChecksumOffset, Checksum(b))
	return b
}

func TestParseHeader(t *testing.T) {
	fileSize := HeaderSize + HBINAlignment

	t.Run("valid", func(t *testing.T) {
		h, err := ParseHeader(validHeader(), fileSize)
		if err != nil {
			t.Fatalf("ParseHeader: %v", err)
		}
		if h.RootCellOffset != HBINHeaderSize {
			t.Fatalf("root offset = 0x%X, want 0x%X", h.RootCellOffset, HBINHeaderSize)
		}
		if h.HiveBinsDataSize != HBINAlignment {
			t.Fatalf("data size = 0x%X, want 0x%X", h.HiveBinsDataSize, HBINAlignment)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		if _, err := ParseHeader(make([]byte, 100), fileSize); !errors.Is(err, ErrTruncated) {
			t.Fatalf("err = %v, want ErrTruncated", err)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		b := validHeader()
		b[0] = 'x'
		if _, err := ParseHeader(b, fileSize); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("err = %v, want ErrSignatureMismatch", err)
		}
	})

	t.Run("bad checksum", func(t *testing.T) {
		b := validHeader()
		PutU32(b, REGFChecksumOffset, Checksum(b)+1)
		if _, err := ParseHeader(b, fileSize); err == nil {
			t.Fatal("expected checksum error")
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		b := validHeader()
		PutU32(b, REGFMinorVersionOffset, 9)
		PutU32(b, REGFChecksumOffset, Checksum(b))
		if _, err := ParseHeader(b, fileSize); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("err = %v, want ErrUnsupported", err)
		}
	})

	t.Run("reported length beyond file", func(t *testing.T) {
		b := validHeader()
		PutU32(b, REGFDataSizeOffset, 8*HBINAlignment)
		PutU32(b, REGFChecksumOffset, Checksum(b))
		if _, err := ParseHeader(b, fileSize); err == nil {
			t.Fatal("expected length error")
		}
	})

	t.Run("root outside data area", func(t *testing.T) {
		b := validHeader()
		PutU32(b, REGFRootCellOffset, HBINAlignment+8)
		PutU32(b, REGFChecksumOffset, Checksum(b))
		if _, err := ParseHeader(b, fileSize); err == nil {
			t.Fatal("expected root bounds error")
		}
	})
}

func TestChecksumRemapping(t *testing.T) {
	b := make([]byte, REGFChecksumRegionLen)
	if got := Checksum(b); got != 1 {
		t.Fatalf("zero region checksum = %d, want 1", got)
	}
	for i := range b {
		b[i] = 0xFF
	}
	// 127 dwords of 0xFFFFFFFF XOR to 0xFFFFFFFF.
	if got := Checksum(b); got != 0xFFFFFFFE {
		t.Fatalf("all-ones checksum = 0x%X, want 0xFFFFFFFE", got)
	}
}

func TestNextHBIN(t *testing.T) {
	b := make([]byte, 2*HBINAlignment)
	copy(b, HBINSignature)
	PutU32(b, HBINFileOffsetField, 0)
	PutU32(b, HBINSizeOffset, HBINAlignment)
	copy(b[HBINAlignment:], HBINSignature)
	PutU32(b, HBINAlignment+HBINFileOffsetField, HBINAlignment)
	PutU32(b, HBINAlignment+HBINSizeOffset, HBINAlignment)

	h, next, err := NextHBIN(b, 0)
	if err != nil {
		t.Fatalf("NextHBIN: %v", err)
	}
	if h.Size != HBINAlignment || next != HBINAlignment {
		t.Fatalf("got size=%d next=%d", h.Size, next)
	}
	h, next, err = NextHBIN(b, next)
	if err != nil {
		t.Fatalf("NextHBIN second: %v", err)
	}
	if h.FileOffset != HBINAlignment || next != len(b) {
		t.Fatalf("got fileOffset=%d next=%d", h.FileOffset, next)
	}

	bad := make([]byte, HBINAlignment)
	copy(bad, HBINSignature)
	PutU32(bad, HBINSizeOffset, 100) // not 4KiB-aligned
	if _, _, err := NextHBIN(bad, 0); err == nil {
		t.Fatal("expected size error")
	}
}

func TestParseCell(t *testing.T) {
	b := make([]byte, 32)
	PutI32(b, 0, -16) // allocated, 16 bytes total
	copy(b[CellHeaderSize:], NKSignature)

	cell, err := ParseCell(b)
	if err != nil {
		t.Fatalf("ParseCell: %v", err)
	}
	if cell.Free || cell.Size != 16 || len(cell.Data) != 12 {
		t.Fatalf("cell = %+v", cell)
	}
	if cell.Tag != [2]byte{'n', 'k'} {
		t.Fatalf("tag = %q", cell.Tag)
	}

	PutI32(b, 0, 16) // positive size => free
	cell, err = ParseCell(b)
	if err != nil {
		t.Fatalf("ParseCell free: %v", err)
	}
	if !cell.Free {
		t.Fatal("expected free cell")
	}

	PutI32(b, 0, -64) // extends past buffer
	if _, err := ParseCell(b); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}

	PutI32(b, 0, 0)
	if _, err := ParseCell(b); err == nil {
		t.Fatal("expected zero length error")
	}
}

func buildNK(name string, flags uint16) []byte {
	b := make([]byte, NKFixedHeaderSize+len(name))
	copy(b, NKSignature)
	PutU16(b, NKFlagsOffset, flags)
	PutU32(b, NKSubkeyCountOffset, 2)
	PutU32(b, NKSubkeyListOffset, 0x100)
	PutU32(b, NKValueCountOffset, 3)
	PutU32(b, NKValueListOffset, 0x200)
	PutU16(b, NKNameLenOffset, uint16(len(name)))
	copy(b[NKNameOffset:], name)
	return b
}

func TestDecodeNK(t *testing.T) {
	nk, err := DecodeNK(buildNK("Select", NKFlagCompressedName))
	if err != nil {
		t.Fatalf("DecodeNK: %v", err)
	}
	if !nk.NameIsCompressed() {
		t.Fatal("expected compressed name flag")
	}
	if nk.SubkeyCount != 2 || nk.SubkeyListOffset != 0x100 {
		t.Fatalf("subkeys = %d @%#x", nk.SubkeyCount, nk.SubkeyListOffset)
	}
	if nk.ValueCount != 3 || nk.ValueListOffset != 0x200 {
		t.Fatalf("values = %d @%#x", nk.ValueCount, nk.ValueListOffset)
	}
	if string(nk.NameRaw) != "Select" {
		t.Fatalf("name = %q", nk.NameRaw)
	}

	if _, err := DecodeNK([]byte("nk")); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short nk err = %v, want ErrTruncated", err)
	}
	bad := buildNK("X", 0)
	bad[0] = 'v'
	if _, err := DecodeNK(bad); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("bad sig err = %v, want ErrSignatureMismatch", err)
	}
	long := buildNK("Y", 0)
	PutU16(long, NKNameLenOffset, 9000) // larger than the cell
	if _, err := DecodeNK(long); !errors.Is(err, ErrTruncated) {
		t.Fatalf("name overrun err = %v, want ErrTruncated", err)
	}
	crazy := buildNK("Z", 0)
	PutU32(crazy, NKSubkeyCountOffset, MaxSubkeyCount+1)
	if _, err := DecodeNK(crazy); !errors.Is(err, ErrSanityLimit) {
		t.Fatalf("count err = %v, want ErrSanityLimit", err)
	}
}

func buildVK(name string, typ uint32, dataLen uint32, dataOff uint32) []byte {
	b := make([]byte, VKMinSize+len(name))
	copy(b, VKSignature)
	PutU16(b, VKNameLenOffset, uint16(len(name)))
	PutU32(b, VKDataLenOffset, dataLen)
	PutU32(b, VKDataOffOffset, dataOff)
	PutU32(b, VKTypeOffset, typ)
	PutU16(b, VKFlagsOffset, VKFlagASCIIName)
	copy(b[VKNameOffset:], name)
	return b
}

func TestDecodeVK(t *testing.T) {
	vk, err := DecodeVK(buildVK("Current", RegDword, VKDataInlineBit|4, 0x01020304))
	if err != nil {
		t.Fatalf("DecodeVK: %v", err)
	}
	if !vk.DataInline() || vk.DataLen() != 4 {
		t.Fatalf("inline=%v len=%d", vk.DataInline(), vk.DataLen())
	}
	if vk.Type != RegDword || !vk.NameIsASCII() {
		t.Fatalf("type=%d flags=%#x", vk.Type, vk.Flags)
	}
	if string(vk.NameRaw) != "Current" {
		t.Fatalf("name = %q", vk.NameRaw)
	}

	ext, err := DecodeVK(buildVK("LinkKey", RegBinary, 16, 0x300))
	if err != nil {
		t.Fatalf("DecodeVK external: %v", err)
	}
	if ext.DataInline() || ext.DataLen() != 16 || ext.DataOffset != 0x300 {
		t.Fatalf("ext = %+v", ext)
	}

	if _, err := DecodeVK([]byte("vk")); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short vk err = %v, want ErrTruncated", err)
	}
	bad := buildVK("N", RegSZ, 0, 0)
	bad[1] = 'x'
	if _, err := DecodeVK(bad); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("bad sig err = %v, want ErrSignatureMismatch", err)
	}
}

func buildList(sig []byte, entries []uint32, entrySize int) []byte {
	b := make([]byte, ListHeaderSize+len(entries)*entrySize)
	copy(b, sig)
	PutU16(b, SignatureSize, uint16(len(entries)))
	for i, off := range entries {
		PutU32(b, ListHeaderSize+i*entrySize, off)
	}
	return b
}

func TestDecodeSubkeyList(t *testing.T) {
	want := []uint32{0x20, 0xA0, 0x140}

	for _, tc := range []struct {
		name      string
		sig       []byte
		entrySize int
	}{
		{"lf", LFSignature, LFEntrySize},
		{"lh", LHSignature, LFEntrySize},
		{"li", LISignature, LIEntrySize},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeSubkeyList(buildList(tc.sig, want, tc.entrySize), 0)
			if err != nil {
				t.Fatalf("DecodeSubkeyList: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("entry %d = %#x, want %#x", i, got[i], want[i])
				}
			}
		})
	}

	t.Run("expected caps count", func(t *testing.T) {
		got, err := DecodeSubkeyList(buildList(LFSignature, want, LFEntrySize), 2)
		if err != nil {
			t.Fatalf("DecodeSubkeyList: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		if _, err := DecodeSubkeyList(buildList([]byte("zz"), want, LIEntrySize), 0); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("err = %v, want ErrUnsupported", err)
		}
	})

	t.Run("count beyond buffer", func(t *testing.T) {
		b := buildList(LISignature, want, LIEntrySize)
		PutU16(b, SignatureSize, 100)
		if _, err := DecodeSubkeyList(b, 0); err == nil {
			t.Fatal("expected bounds error")
		}
	})
}

func TestDecodeRIList(t *testing.T) {
	want := []uint32{0x1000, 0x2000}
	b := buildList(RISignature, want, OffsetFieldSize)
	if !IsRIList(b) {
		t.Fatal("IsRIList = false")
	}
	got, err := DecodeRIList(b)
	if err != nil {
		t.Fatalf("DecodeRIList: %v", err)
	}
	if len(got) != 2 || got[0] != 0x1000 || got[1] != 0x2000 {
		t.Fatalf("got = %#x", got)
	}
	if IsRIList(buildList(LFSignature, want, LFEntrySize)) {
		t.Fatal("IsRIList true for lf")
	}
}

func TestDecodeValueList(t *testing.T) {
	b := make([]byte, 12)
	PutU32(b, 0, 0x80)
	PutU32(b, 4, 0x90)
	PutU32(b, 8, 0xA0)

	got, err := DecodeValueList(b, 3)
	if err != nil {
		t.Fatalf("DecodeValueList: %v", err)
	}
	if len(got) != 3 || got[2] != 0xA0 {
		t.Fatalf("got = %#x", got)
	}
	if got, err := DecodeValueList(nil, 0); err != nil || got != nil {
		t.Fatalf("empty list = %v, %v", got, err)
	}
	if _, err := DecodeValueList(b, 8); err == nil {
		t.Fatal("expected bounds error")
	}
}

func TestDecodeDB(t *testing.T) {
	b := make([]byte, DBMinSize)
	copy(b, DBSignature)
	PutU16(b, DBCountOffset, 2)
	PutU32(b, DBListOffset, 0x5000)

	if !IsDBRecord(b) {
		t.Fatal("IsDBRecord = false")
	}
	db, err := DecodeDB(b)
	if err != nil {
		t.Fatalf("DecodeDB: %v", err)
	}
	if db.BlockCount != 2 || db.BlockListOffset != 0x5000 {
		t.Fatalf("db = %+v", db)
	}
	if _, err := DecodeDB(b[:4]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short db err = %v, want ErrTruncated", err)
	}
}

func TestAlign(t *testing.T) {
	for _, tc := range []struct{ in, want8, wantBin int }{
		{0, 0, 0},
		{1, 8, HBINAlignment},
		{8, 8, HBINAlignment},
		{9, 16, HBINAlignment},
		{HBINAlignment, HBINAlignment, HBINAlignment},
		{HBINAlignment + 1, HBINAlignment + 8, 2 * HBINAlignment},
	} {
		if got := Align8(tc.in); got != tc.want8 {
			t.Errorf("Align8(%d) = %d, want %d", tc.in, got, tc.want8)
		}
		if got := AlignHBIN(tc.in); got != tc.wantBin {
			t.Errorf("AlignHBIN(%d) = %d, want %d", tc.in, got, tc.wantBin)
		}
	}
}
