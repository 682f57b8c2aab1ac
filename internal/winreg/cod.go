package winreg

// Major service class bits of the Bluetooth class-of-device field, as
// assigned by the Bluetooth SIG. Bits 14 and 15 are reserved.
var serviceClassBits = []struct {
	bit  uint
	name string
}{
	{13, "Limited Discoverable"},
	{16, "Positioning"},
	{17, "Networking"},
	{18, "Rendering"},
	{19, "Capturing"},
	{20, "Object Transfer"},
	{21, "Audio"},
	{22, "Telephony"},
	{23, "Information"},
}

// ServiceClassNames decodes the major service class bits of a raw
// class-of-device value. Returns nil when no bits are set.
func ServiceClassNames(cod uint32) []string {
	var names []string
	for _, sc := range serviceClassBits {
		if cod&(1<<sc.bit) != 0 {
			names = append(names, sc.name)
		}
	}
	return names
}
