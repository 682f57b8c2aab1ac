package bluez

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Credential is one recovered pairing, ready to be written into the store.
type Credential struct {
	Name    string // display name
	Address string // canonical XX:XX:XX:XX:XX:XX form
	Key     string // uppercase hex link key
}

// Merge writes every credential under every local adapter. Which Windows
// adapter a device was paired against is not mapped to a Linux adapter;
// writing under all of them is the documented simplification. A failure on
// one device is logged and flips the returned flag to false, but the rest
// of the set is still attempted. The second return value lists the
// addresses that failed on at least one adapter, sorted.
func (s *Store) Merge(adapters []string, devices []Credential) (bool, []string) {
	failed := make(map[string]bool)
	for _, adapter := range adapters {
		for _, dev := range devices {
			if err := s.mergeOne(adapter, dev); err != nil {
				s.log.Warn("failed to update device record",
					"adapter", adapter, "device", dev.Address, "err", err)
				failed[dev.Address] = true
				continue
			}
			s.log.Info("updated device record",
				"adapter", adapter, "device", dev.Address, "name", dev.Name)
		}
	}
	if len(failed) == 0 {
		return true, nil
	}
	addrs := make([]string, 0, len(failed))
	for addr := range failed {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return false, addrs
}

// mergeOne overlays the pairing fields onto one device record, preserving
// everything else already present, and rewrites the file atomically. An
// unchanged record is left untouched.
func (s *Store) mergeOne(adapter string, dev Credential) error {
	dir := filepath.Join(s.dir, adapter, dev.Address)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("bluez: creating device dir: %w", err)
	}
	infoPath := filepath.Join(dir, "info")

	var existing []byte
	switch data, err := os.ReadFile(infoPath); {
	case err == nil:
		existing = data
	case !os.IsNotExist(err):
		s.log.Warn("cannot read existing record, starting fresh", "path", infoPath, "err", err)
	}

	rec, err := ParseRecord(bytes.NewReader(existing))
	if err != nil {
		s.log.Warn("cannot parse existing record, starting fresh", "path", infoPath, "err", err)
		rec = &Record{}
	}

	rec.Set("General", "Name", dev.Name)
	rec.Set("General", "Trusted", "true")
	rec.Set("General", "Blocked", "false")
	rec.Set("LinkKey", "Key", dev.Key)
	rec.Set("LinkKey", "Type", "4") // combination key
	rec.Set("LinkKey", "PINLength", "0")

	out := rec.Marshal()
	if bytes.Equal(out, existing) {
		return nil
	}
	if len(existing) > 0 {
		s.log.Debug("rewriting device record", "path", infoPath,
			"diff", lineDiff(string(existing), string(out)))
	}
	return writeFileAtomic(infoPath, out, 0o600)
}
