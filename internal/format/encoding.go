package format

import "encoding/binary"

// Little-endian encoders for assembling hive structures. Production code
// only reads hives; tests build synthetic ones with these.

// PutU16 writes v at off in little-endian order.
func PutU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

// PutU32 writes v at off in little-endian order.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// PutI32 writes v at off in little-endian order. Cell sizes are negative
// when the cell is allocated.
func PutI32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:off+4], uint32(v))
}
