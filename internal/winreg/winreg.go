// Package winreg knows the SYSTEM-hive layout that matters for pairing
// migration: where the hive lives on a mounted Windows volume, how the
// active control set is resolved, and how the BTHPORT key tree maps to
// paired devices.
package winreg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrHiveNotFound indicates no SYSTEM hive exists under the mount point.
var ErrHiveNotFound = errors.New("winreg: SYSTEM hive not found")

// PairedDevice is one Bluetooth pairing recovered from the hive. Values
// are final once extracted; the merger consumes them read-only.
type PairedDevice struct {
	Name           string   // display name, or the raw registry key name when absent
	Address        string   // canonical XX:XX:XX:XX:XX:XX form
	LinkKey        string   // uppercase hex, no separators
	Class          uint32   // raw class-of-device, 0 when the hive does not expose it
	ServiceClasses []string // decoded from Class, nil when absent
}

// hivePaths are the case variants Windows installs have been seen to use.
var hivePaths = []string{
	"Windows/System32/config/SYSTEM",
	"WINDOWS/System32/config/SYSTEM",
	"windows/system32/config/SYSTEM",
}

// LocateHive probes the mounted volume for the SYSTEM hive. The first
// existing regular file wins.
func LocateHive(mountPoint string) (string, error) {
	for _, rel := range hivePaths {
		path := filepath.Join(mountPoint, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w under %s", ErrHiveNotFound, mountPoint)
}
