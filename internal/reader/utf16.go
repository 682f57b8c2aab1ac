package reader

import (
	"errors"
	"strings"
)

// DecodeUTF16 decodes a UTF-16LE registry string payload, trimming the
// trailing NUL terminator when present.
func DecodeUTF16(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if len(data)%2 != 0 {
		return "", errors.New("utf16 string has odd length")
	}
	if data[len(data)-2] == 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-2]
	}
	return decodeUTF16LE(data), nil
}

// decodeUTF16LE converts UTF-16LE bytes to a UTF-8 string. Registry names
// are overwhelmingly ASCII, so that case skips rune decoding entirely.
func decodeUTF16LE(data []byte) string {
	allASCII := len(data)%2 == 0
	if allASCII {
		for i := 0; i < len(data); i += 2 {
			if data[i+1] != 0 || data[i] >= 0x80 {
				allASCII = false
				break
			}
		}
	}
	if allASCII {
		var b strings.Builder
		b.Grow(len(data) / 2)
		for i := 0; i < len(data); i += 2 {
			b.WriteByte(data[i])
		}
		return b.String()
	}

	var b strings.Builder
	b.Grow(len(data))
	for i := 0; i+1 < len(data); i += 2 {
		r := rune(data[i]) | rune(data[i+1])<<8
		// Combine surrogate pairs; a lone surrogate falls through and is
		// replaced by WriteRune.
		if r >= 0xD800 && r <= 0xDBFF && i+3 < len(data) {
			r2 := rune(data[i+2]) | rune(data[i+3])<<8
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				r = 0x10000 + ((r-0xD800)<<10 | (r2 - 0xDC00))
				i += 2
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
