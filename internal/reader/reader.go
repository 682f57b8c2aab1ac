// Package reader implements types.Reader over a memory-mapped hive. The
// whole bin structure is validated at Open, so a reader that opens cleanly
// can be traversed without re-checking bin boundaries on every access.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/davidbalzan/bluetooth-sync/internal/format"
	"github.com/davidbalzan/bluetooth-sync/internal/mmfile"
	"github.com/davidbalzan/bluetooth-sync/internal/types"
)

// maxCellSize guards against absurd cell sizes in damaged hives. No real
// SYSTEM hive carries cells anywhere near this.
const maxCellSize = 64 << 20

// Reader is the mmap-backed types.Reader implementation.
type Reader struct {
	buf    []byte
	unmap  func() error
	head   format.Header
	hbins  []hbinExtent
	closed bool
}

var _ types.Reader = (*Reader)(nil)

// hbinExtent records one validated bin's absolute position, sorted by start.
type hbinExtent struct {
	start int // absolute file offset
	end   int // start + size
}

// Open maps the hive at path. The base block and every hive bin are
// validated before Open returns.
func Open(path string) (*Reader, error) {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, &types.Error{Kind: types.ErrKindState, Msg: "open hive", Err: err}
	}
	r, err := newReader(data, unmap)
	if err != nil {
		if unmap != nil {
			_ = unmap()
		}
		return nil, err
	}
	return r, nil
}

// OpenBytes creates a reader over an in-memory hive image.
func OpenBytes(buf []byte) (*Reader, error) {
	return newReader(buf, nil)
}

func newReader(buf []byte, unmap func() error) (*Reader, error) {
	head, err := format.ParseHeader(buf, len(buf))
	if err != nil {
		if errors.Is(err, format.ErrSignatureMismatch) {
			return nil, types.ErrNotHive
		}
		return nil, wrapFormatErr(err)
	}
	r := &Reader{buf: buf, unmap: unmap, head: head}
	if err := r.indexHBINs(); err != nil {
		return nil, err
	}
	return r, nil
}

// indexHBINs walks every bin in the data area, validating headers and
// recording extents for cell resolution.
func (r *Reader) indexHBINs() error {
	offset := format.HeaderSize
	dataEnd := format.HeaderSize + int(r.head.HiveBinsDataSize)
	if dataEnd > len(r.buf) {
		dataEnd = len(r.buf)
	}
	r.hbins = make([]hbinExtent, 0, 4)
	for offset < dataEnd {
		_, next, err := format.NextHBIN(r.buf, offset)
		if err != nil {
			return wrapFormatErr(fmt.Errorf("hbin at 0x%X: %w", offset, err))
		}
		r.hbins = append(r.hbins, hbinExtent{start: offset, end: next})
		offset = next
	}
	if len(r.hbins) == 0 {
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: "hive has no bins", Err: types.ErrCorrupt}
	}
	return nil
}

// Close unmaps the hive. Safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.unmap != nil {
		return r.unmap()
	}
	return nil
}

func (r *Reader) ensureOpen() error {
	if r.closed {
		return &types.Error{Kind: types.ErrKindState, Msg: "reader is closed"}
	}
	return nil
}

// Root returns the handle of the root key.
func (r *Reader) Root() types.NodeID {
	return types.NodeID(r.head.RootCellOffset)
}

// Info returns base block metadata.
func (r *Reader) Info() types.HiveInfo {
	return types.HiveInfo{
		PrimarySequence:   r.head.PrimarySequence,
		SecondarySequence: r.head.SecondarySequence,
		MajorVersion:      r.head.MajorVersion,
		MinorVersion:      r.head.MinorVersion,
		Type:              r.head.Type,
		RootCellOffset:    r.head.RootCellOffset,
		HiveBinsDataSize:  r.head.HiveBinsDataSize,
	}
}

// StatKey returns listing metadata for a key node.
func (r *Reader) StatKey(id types.NodeID) (types.KeyMeta, error) {
	if err := r.ensureOpen(); err != nil {
		return types.KeyMeta{}, err
	}
	nk, err := r.nk(id)
	if err != nil {
		return types.KeyMeta{}, err
	}
	name, err := DecodeKeyName(nk)
	if err != nil {
		return types.KeyMeta{}, &types.Error{Kind: types.ErrKindCorrupt, Msg: "key name", Err: err}
	}
	return types.KeyMeta{
		Name:    name,
		SubkeyN: int(nk.SubkeyCount),
		ValueN:  int(nk.ValueCount),
	}, nil
}

// KeyName returns the decoded name of a key node.
func (r *Reader) KeyName(id types.NodeID) (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	nk, err := r.nk(id)
	if err != nil {
		return "", err
	}
	name, err := DecodeKeyName(nk)
	if err != nil {
		return "", &types.Error{Kind: types.ErrKindCorrupt, Msg: "key name", Err: err}
	}
	return name, nil
}

// Subkeys returns the handles of a key's direct children.
func (r *Reader) Subkeys(id types.NodeID) ([]types.NodeID, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	nk, err := r.nk(id)
	if err != nil {
		return nil, err
	}
	if nk.SubkeyCount == 0 || nk.SubkeyListOffset == format.InvalidOffset {
		return nil, nil
	}
	list, err := r.subkeyList(nk.SubkeyListOffset, nk.SubkeyCount)
	if err != nil {
		return nil, err
	}
	out := make([]types.NodeID, len(list))
	for i, off := range list {
		out[i] = types.NodeID(off)
	}
	return out, nil
}

// Lookup finds a direct child key by name, case-insensitively. Children
// whose names fail to decode are skipped rather than aborting the search.
func (r *Reader) Lookup(parent types.NodeID, childName string) (types.NodeID, error) {
	children, err := r.Subkeys(parent)
	if err != nil {
		return 0, err
	}
	for _, child := range children {
		name, err := r.KeyName(child)
		if err != nil {
			continue
		}
		if strings.EqualFold(name, childName) {
			return child, nil
		}
	}
	return 0, &types.Error{
		Kind: types.ErrKindNotFound,
		Msg:  fmt.Sprintf("subkey %q not found", childName),
		Err:  types.ErrNotFound,
	}
}

// Values returns the handles of a key's values.
func (r *Reader) Values(id types.NodeID) ([]types.ValueID, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	nk, err := r.nk(id)
	if err != nil {
		return nil, err
	}
	if nk.ValueCount == 0 || nk.ValueListOffset == format.InvalidOffset {
		return nil, nil
	}
	return r.valueList(nk.ValueListOffset, nk.ValueCount)
}

// LookupValue finds a value by name, case-insensitively.
func (r *Reader) LookupValue(id types.NodeID, name string) (types.ValueID, error) {
	vals, err := r.Values(id)
	if err != nil {
		return 0, err
	}
	for _, v := range vals {
		vn, err := r.ValueName(v)
		if err != nil {
			continue
		}
		if strings.EqualFold(vn, name) {
			return v, nil
		}
	}
	return 0, &types.Error{
		Kind: types.ErrKindNotFound,
		Msg:  fmt.Sprintf("value %q not found", name),
		Err:  types.ErrNotFound,
	}
}

// StatValue returns metadata for a value from its VK header.
func (r *Reader) StatValue(id types.ValueID) (types.ValueMeta, error) {
	if err := r.ensureOpen(); err != nil {
		return types.ValueMeta{}, err
	}
	vk, err := r.vk(uint32(id))
	if err != nil {
		return types.ValueMeta{}, err
	}
	name, err := DecodeValueName(vk)
	if err != nil {
		return types.ValueMeta{}, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value name", Err: err}
	}
	return types.ValueMeta{
		Name:   name,
		Type:   types.RegType(vk.Type),
		Size:   vk.DataLen(),
		Inline: vk.DataInline(),
	}, nil
}

// ValueName returns the decoded name of a value.
func (r *Reader) ValueName(id types.ValueID) (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	vk, err := r.vk(uint32(id))
	if err != nil {
		return "", err
	}
	name, err := DecodeValueName(vk)
	if err != nil {
		return "", &types.Error{Kind: types.ErrKindCorrupt, Msg: "value name", Err: err}
	}
	return name, nil
}

// ValueBytes returns a copy of the value's data payload and its type.
func (r *Reader) ValueBytes(id types.ValueID) ([]byte, types.RegType, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, 0, err
	}
	vk, data, err := r.value(uint32(id))
	if err != nil {
		return nil, 0, err
	}
	if data == nil {
		return nil, types.RegType(vk.Type), nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, types.RegType(vk.Type), nil
}

// ValueString decodes a REG_SZ or REG_EXPAND_SZ payload.
func (r *Reader) ValueString(id types.ValueID) (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	vk, data, err := r.value(uint32(id))
	if err != nil {
		return "", err
	}
	switch types.RegType(vk.Type) {
	case types.REG_SZ, types.REG_EXPAND_SZ:
		s, err := DecodeUTF16(data)
		if err != nil {
			return "", &types.Error{Kind: types.ErrKindCorrupt, Msg: "string value", Err: err}
		}
		return s, nil
	default:
		return "", &types.Error{
			Kind: types.ErrKindType,
			Msg:  fmt.Sprintf("value is %s, not a string", types.RegType(vk.Type)),
			Err:  types.ErrTypeMismatch,
		}
	}
}

// ValueDWORD decodes a REG_DWORD or REG_DWORD_BE payload.
func (r *Reader) ValueDWORD(id types.ValueID) (uint32, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	vk, err := r.vk(uint32(id))
	if err != nil {
		return 0, err
	}
	regType := types.RegType(vk.Type)
	if regType != types.REG_DWORD && regType != types.REG_DWORD_BE {
		return 0, &types.Error{
			Kind: types.ErrKindType,
			Msg:  fmt.Sprintf("value is %s, not a DWORD", regType),
			Err:  types.ErrTypeMismatch,
		}
	}
	// DWORDs are almost always inline: the payload sits in the offset field,
	// already decoded little-endian.
	if vk.DataInline() {
		if vk.DataLen() < format.DWORDSize {
			return 0, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value too short for DWORD", Err: types.ErrCorrupt}
		}
		if regType == types.REG_DWORD_BE {
			return bits.ReverseBytes32(vk.DataOffset), nil
		}
		return vk.DataOffset, nil
	}
	_, data, err := r.value(uint32(id))
	if err != nil {
		return 0, err
	}
	if len(data) < format.DWORDSize {
		return 0, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value too short for DWORD", Err: types.ErrCorrupt}
	}
	if regType == types.REG_DWORD_BE {
		return binary.BigEndian.Uint32(data), nil
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Internal helpers ----------------------------------------------------------

func (r *Reader) nk(id types.NodeID) (format.NKRecord, error) {
	cell, err := r.cell(uint32(id))
	if err != nil {
		return format.NKRecord{}, err
	}
	nk, err := format.DecodeNK(cell.Data)
	if err != nil {
		return format.NKRecord{}, wrapFormatErr(err)
	}
	return nk, nil
}

func (r *Reader) vk(offset uint32) (format.VKRecord, error) {
	cell, err := r.cell(offset)
	if err != nil {
		return format.VKRecord{}, err
	}
	vk, err := format.DecodeVK(cell.Data)
	if err != nil {
		return format.VKRecord{}, wrapFormatErr(err)
	}
	return vk, nil
}

// subkeyList resolves a subkey list cell into child NK offsets, following
// one level of RI indirection for high fan-out keys.
func (r *Reader) subkeyList(offset, expected uint32) ([]uint32, error) {
	cell, err := r.cell(offset)
	if err != nil {
		return nil, err
	}
	if format.IsRIList(cell.Data) {
		sublists, err := format.DecodeRIList(cell.Data)
		if err != nil {
			return nil, wrapFormatErr(err)
		}
		var out []uint32
		for _, sub := range sublists {
			list, err := r.subkeyList(sub, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, list...)
		}
		return out, nil
	}
	list, err := format.DecodeSubkeyList(cell.Data, expected)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	return list, nil
}

func (r *Reader) valueList(offset, count uint32) ([]types.ValueID, error) {
	cell, err := r.cell(offset)
	if err != nil {
		return nil, err
	}
	list, err := format.DecodeValueList(cell.Data, count)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	out := make([]types.ValueID, len(list))
	for i, off := range list {
		out[i] = types.ValueID(off)
	}
	return out, nil
}

// value reads a VK record and its data payload. Inline payloads come out of
// the offset field; external payloads out of the data cell, reassembled from
// big-data blocks when the data cell is a db record.
func (r *Reader) value(offset uint32) (format.VKRecord, []byte, error) {
	vk, err := r.vk(offset)
	if err != nil {
		return format.VKRecord{}, nil, err
	}
	length := vk.DataLen()
	if vk.DataInline() {
		if length > format.VKInlineDataLimit {
			return format.VKRecord{}, nil, &types.Error{
				Kind: types.ErrKindCorrupt,
				Msg:  fmt.Sprintf("inline length %d exceeds field", length),
				Err:  types.ErrCorrupt,
			}
		}
		var field [format.OffsetFieldSize]byte
		binary.LittleEndian.PutUint32(field[:], vk.DataOffset)
		return vk, field[:length], nil
	}
	if length == 0 {
		return vk, nil, nil
	}
	dataCell, err := r.cell(vk.DataOffset)
	if err != nil {
		return format.VKRecord{}, nil, err
	}
	if format.IsDBRecord(dataCell.Data) {
		return r.valueDB(vk, dataCell.Data, length)
	}
	if len(dataCell.Data) < length {
		return format.VKRecord{}, nil, &types.Error{
			Kind: types.ErrKindCorrupt,
			Msg:  fmt.Sprintf("value data truncated: declared %d, cell holds %d", length, len(dataCell.Data)),
			Err:  types.ErrCorrupt,
		}
	}
	return vk, dataCell.Data[:length], nil
}

// valueDB reassembles a big-data value: the db record names a block list,
// the block list names data cells, and each block contributes its payload
// minus the trailing padding until expectedLen bytes are collected.
func (r *Reader) valueDB(vk format.VKRecord, dbData []byte, expectedLen int) (format.VKRecord, []byte, error) {
	db, err := format.DecodeDB(dbData)
	if err != nil {
		return format.VKRecord{}, nil, wrapFormatErr(err)
	}
	listCell, err := r.cell(db.BlockListOffset)
	if err != nil {
		return format.VKRecord{}, nil, fmt.Errorf("db block list: %w", err)
	}
	blockOffsets, err := format.DecodeValueList(listCell.Data, uint32(db.BlockCount))
	if err != nil {
		return format.VKRecord{}, nil, wrapFormatErr(err)
	}

	result := make([]byte, expectedLen)
	read := 0
	for i, blockOffset := range blockOffsets {
		if read >= expectedLen {
			break
		}
		blockCell, err := r.cell(blockOffset)
		if err != nil {
			return format.VKRecord{}, nil, fmt.Errorf("db block %d: %w", i, err)
		}
		block := blockCell.Data
		if len(block) > format.DBBlockPadding {
			block = block[:len(block)-format.DBBlockPadding]
		}
		if remaining := expectedLen - read; len(block) > remaining {
			block = block[:remaining]
		}
		copy(result[read:], block)
		read += len(block)
	}
	if read != expectedLen {
		return format.VKRecord{}, nil, &types.Error{
			Kind: types.ErrKindCorrupt,
			Msg:  fmt.Sprintf("big data short: expected %d bytes, got %d", expectedLen, read),
			Err:  types.ErrCorrupt,
		}
	}
	return vk, result, nil
}

// cell resolves a bin-relative offset to an allocated cell.
func (r *Reader) cell(offset uint32) (format.Cell, error) {
	abs := format.HeaderSize + int(offset)
	if abs < format.HeaderSize || abs >= len(r.buf) {
		return format.Cell{}, &types.Error{
			Kind: types.ErrKindFormat,
			Msg:  fmt.Sprintf("cell offset 0x%X out of range", offset),
			Err:  types.ErrCorrupt,
		}
	}
	data, err := r.cellBytes(abs)
	if err != nil {
		return format.Cell{}, err
	}
	cell, err := format.ParseCell(data)
	if err != nil {
		return format.Cell{}, wrapFormatErr(err)
	}
	if cell.Free {
		return format.Cell{}, wrapFormatErr(fmt.Errorf("cell at 0x%X: %w", offset, format.ErrFreeCell))
	}
	if cell.Size > maxCellSize {
		return format.Cell{}, &types.Error{Kind: types.ErrKindCorrupt, Msg: "cell size exceeds limit", Err: types.ErrCorrupt}
	}
	return cell, nil
}

// hbinFor locates the validated bin containing the absolute offset.
func (r *Reader) hbinFor(abs int) (hbinExtent, error) {
	i := sort.Search(len(r.hbins), func(i int) bool { return r.hbins[i].end > abs })
	if i < len(r.hbins) && abs >= r.hbins[i].start {
		return r.hbins[i], nil
	}
	return hbinExtent{}, &types.Error{
		Kind: types.ErrKindFormat,
		Msg:  fmt.Sprintf("offset 0x%X not inside any hive bin", abs),
		Err:  types.ErrCorrupt,
	}
}

// cellBytes returns the raw bytes of the cell starting at abs. Cells almost
// always sit inside a single bin and alias the mapping directly; a cell
// spilling past its bin is copied out with the intervening bin headers
// skipped.
func (r *Reader) cellBytes(abs int) ([]byte, error) {
	if abs+format.CellHeaderSize > len(r.buf) {
		return nil, &types.Error{Kind: types.ErrKindFormat, Msg: "cell header out of bounds", Err: types.ErrCorrupt}
	}
	raw := int32(binary.LittleEndian.Uint32(r.buf[abs:]))
	size := int(raw)
	if raw < 0 {
		size = -size
	}
	if size < format.CellHeaderSize {
		return nil, &types.Error{Kind: types.ErrKindFormat, Msg: "cell size too small", Err: types.ErrCorrupt}
	}

	bin, err := r.hbinFor(abs)
	if err != nil {
		return nil, err
	}
	if abs+size <= bin.end {
		return r.buf[abs : abs+size], nil
	}

	result := make([]byte, size)
	copied := 0
	cur := abs
	for copied < size {
		bin, err := r.hbinFor(cur)
		if err != nil {
			return nil, err
		}
		n := bin.end - cur
		if remaining := size - copied; n > remaining {
			n = remaining
		}
		if n <= 0 || cur+n > len(r.buf) {
			return nil, &types.Error{Kind: types.ErrKindFormat, Msg: "cell data out of bounds", Err: types.ErrCorrupt}
		}
		copy(result[copied:], r.buf[cur:cur+n])
		copied += n
		cur += n
		if copied < size && cur >= bin.end {
			cur = bin.end + format.HBINHeaderSize
		}
	}
	return result, nil
}

// wrapFormatErr maps low-level format errors onto the typed taxonomy.
func wrapFormatErr(err error) error {
	switch {
	case errors.Is(err, format.ErrSignatureMismatch):
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: "record signature mismatch", Err: err}
	case errors.Is(err, format.ErrUnsupported):
		return &types.Error{Kind: types.ErrKindUnsupported, Msg: err.Error(), Err: types.ErrUnsupported}
	case errors.Is(err, format.ErrTruncated):
		return &types.Error{Kind: types.ErrKindFormat, Msg: "hive truncated", Err: err}
	case errors.Is(err, format.ErrFreeCell):
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: "cell marked free", Err: err}
	default:
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: err.Error(), Err: err}
	}
}
