// Package types defines the public surface of the hive reading layer:
// typed errors with stable categories, small copyable handles for key and
// value records, and the Reader interface the extraction code consumes.
//
// This package has no dependencies beyond the standard library.
package types

import "fmt"

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindFormat      ErrKind = iota // malformed headers/signatures (e.g. bad "regf")
	ErrKindCorrupt                    // structural corruption (bad sizes/offsets/tags)
	ErrKindUnsupported                // valid hive feature this reader does not handle
	ErrKindNotFound                   // missing key/value/path
	ErrKindType                       // requested decode does not match the value type
	ErrKindState                      // file IO failure or use after Close
)

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels returned by the reader. Match with errors.Is; each carries its
// kind for callers that branch on categories instead.
var (
	// ErrNotHive indicates the file lacks a valid "regf" header.
	ErrNotHive = &Error{Kind: ErrKindFormat, Msg: "not a registry hive (bad regf header)"}
	// ErrCorrupt indicates non-recoverable structural inconsistency.
	ErrCorrupt = &Error{Kind: ErrKindCorrupt, Msg: "corrupt hive structure"}
	// ErrUnsupported indicates a recognized but unsupported feature or variant.
	ErrUnsupported = &Error{Kind: ErrKindUnsupported, Msg: "unsupported hive feature"}
	// ErrNotFound indicates a missing key, value, or path.
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: "not found"}
	// ErrTypeMismatch indicates the requested decode does not match the value type.
	ErrTypeMismatch = &Error{Kind: ErrKindType, Msg: "registry value has different type"}
)

// NodeID and ValueID are small copyable handles referring to NK/VK records.
// The reader encodes cell offsets relative to the first hive bin, the same
// form hive structures store, which keeps traversal allocation-light.
type (
	NodeID  uint32
	ValueID uint32
)

// RegType enumerates Windows registry value types. The numbers align with
// the Windows definitions.
type RegType uint32

const (
	REG_NONE      RegType = 0
	REG_SZ        RegType = 1
	REG_EXPAND_SZ RegType = 2
	REG_BINARY    RegType = 3
	REG_DWORD     RegType = 4
	REG_DWORD_BE  RegType = 5
	REG_LINK      RegType = 6
	REG_MULTI_SZ  RegType = 7
	REG_QWORD     RegType = 11
)

// String implements the Stringer interface for RegType.
func (t RegType) String() string {
	switch t {
	case REG_NONE:
		return "REG_NONE"
	case REG_SZ:
		return "REG_SZ"
	case REG_EXPAND_SZ:
		return "REG_EXPAND_SZ"
	case REG_BINARY:
		return "REG_BINARY"
	case REG_DWORD:
		return "REG_DWORD"
	case REG_DWORD_BE:
		return "REG_DWORD_BE"
	case REG_LINK:
		return "REG_LINK"
	case REG_MULTI_SZ:
		return "REG_MULTI_SZ"
	case REG_QWORD:
		return "REG_QWORD"
	default:
		return fmt.Sprintf("UNKNOWN_TYPE_%d", int32(t))
	}
}

// KeyMeta exposes cheap NK-level information useful for listings.
type KeyMeta struct {
	Name    string // key name as UTF-8
	SubkeyN int    // number of subkeys
	ValueN  int    // number of values
}

// ValueMeta describes a value from its VK header alone, without decoding
// the data payload.
type ValueMeta struct {
	Name   string  // value name ("" for the default value)
	Type   RegType // declared registry type
	Size   int     // logical payload size
	Inline bool    // data embedded in the VK record itself
}

// HiveInfo exposes regf base block metadata.
type HiveInfo struct {
	PrimarySequence   uint32 // primary sequence number
	SecondarySequence uint32 // secondary sequence number, differs after unclean shutdown
	MajorVersion      uint32
	MinorVersion      uint32
	Type              uint32 // 0 = primary, 1 = alternate
	RootCellOffset    uint32
	HiveBinsDataSize  uint32
}

// Reader is a read-only view over a loaded hive. Implementations must never
// panic on malformed input; every structural problem surfaces as a typed
// error. Returned byte slices are copies and stay valid after Close.
type Reader interface {
	// Root returns the handle of the root key.
	Root() NodeID

	// Info returns base block metadata.
	Info() HiveInfo

	// StatKey returns metadata for the key node.
	StatKey(id NodeID) (KeyMeta, error)

	// KeyName returns the decoded name of the key node.
	KeyName(id NodeID) (string, error)

	// Subkeys returns handles of the key's children.
	Subkeys(id NodeID) ([]NodeID, error)

	// Lookup finds a direct child by name, case-insensitively, as the
	// Windows configuration manager does. Returns ErrNotFound when no
	// child matches.
	Lookup(id NodeID, name string) (NodeID, error)

	// Values returns handles of the key's values.
	Values(id NodeID) ([]ValueID, error)

	// LookupValue finds a value by name, case-insensitively. Returns
	// ErrNotFound when the key has no value of that name.
	LookupValue(id NodeID, name string) (ValueID, error)

	// StatValue returns metadata for the value.
	StatValue(id ValueID) (ValueMeta, error)

	// ValueName returns the decoded name of the value.
	ValueName(id ValueID) (string, error)

	// ValueBytes returns the raw data payload and its declared type.
	ValueBytes(id ValueID) ([]byte, RegType, error)

	// ValueString decodes a REG_SZ or REG_EXPAND_SZ payload from UTF-16LE,
	// trimming the trailing NUL terminator. Returns ErrTypeMismatch for
	// other types.
	ValueString(id ValueID) (string, error)

	// ValueDWORD decodes a REG_DWORD payload. Returns ErrTypeMismatch for
	// other types.
	ValueDWORD(id ValueID) (uint32, error)

	// Close releases the underlying mapping. The reader must not be used
	// afterwards.
	Close() error
}
