// Package btaddr normalizes Bluetooth device addresses. Windows stores
// addresses as bare hex registry key names; BlueZ names its directories
// XX:XX:XX:XX:XX:XX.
package btaddr

import "strings"

var stripSeparators = strings.NewReplacer(":", "", "-", "", " ", "")

// FormatAddress canonicalizes an address into colon-separated uppercase
// form. Inputs that do not reduce to exactly twelve hex digits are
// returned unchanged.
func FormatAddress(raw string) string {
	clean := strings.ToUpper(stripSeparators.Replace(raw))
	if len(clean) != 12 || !isHex(clean) {
		return raw
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < len(clean); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(clean[i : i+2])
	}
	return b.String()
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
