package format

import "errors"

var (
	// ErrSignatureMismatch indicates a structure had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrFreeCell indicates a cell marked free was encountered where an
	// allocated cell was required.
	ErrFreeCell = errors.New("format: cell not in use")
	// ErrUnsupported indicates a recognized structure this package does not decode.
	ErrUnsupported = errors.New("format: unsupported structure")
	// ErrSanityLimit indicates a count or length field exceeded the caps in
	// sanity.go; crafted hives use absurd values to force huge allocations.
	ErrSanityLimit = errors.New("format: sanity limit exceeded")
)
