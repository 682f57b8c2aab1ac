package reader

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/davidbalzan/bluetooth-sync/internal/format"
)

// DecodeKeyName converts the NK name encoding into UTF-8. Compressed names
// are Windows-1252; ASCII bytes pass through untouched since they encode
// identically. Uncompressed names are UTF-16LE.
func DecodeKeyName(nk format.NKRecord) (string, error) {
	if nk.NameLength == 0 {
		return "", nil
	}
	if nk.NameIsCompressed() {
		return decode1252(nk.NameRaw)
	}
	if len(nk.NameRaw)%2 != 0 {
		return "", errors.New("nk name has odd length")
	}
	return decodeUTF16LE(nk.NameRaw), nil
}

// DecodeValueName converts the raw name stored in a VK record into UTF-8.
// VK names follow the same compression rules as NK names.
func DecodeValueName(vk format.VKRecord) (string, error) {
	if vk.NameLength == 0 {
		return "", nil
	}
	if vk.NameIsASCII() {
		return decode1252(vk.NameRaw)
	}
	if len(vk.NameRaw)%2 != 0 {
		return "", errors.New("vk name has odd length")
	}
	return decodeUTF16LE(vk.NameRaw), nil
}

func decode1252(data []byte) (string, error) {
	if isASCII(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode Windows-1252 name: %w", err)
	}
	return string(decoded), nil
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
