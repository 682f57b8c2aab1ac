package bluez

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
)

var adapterNameRE = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)

// Store is the local BlueZ configuration tree, normally /var/lib/bluetooth.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Dir returns the root of the configuration tree.
func (s *Store) Dir() string { return s.dir }

// Adapters lists the local adapter directories, identified by their
// colon-separated MAC names, in sorted order.
func (s *Store) Adapters() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("bluez: reading %s: %w", s.dir, err)
	}

	var adapters []string
	for _, e := range entries {
		if !e.IsDir() || !adapterNameRE.MatchString(e.Name()) {
			continue
		}
		s.log.Info("found local Bluetooth adapter", "adapter", e.Name())
		adapters = append(adapters, e.Name())
	}
	return adapters, nil
}
