package bluez

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Backup copies the whole configuration tree into a timestamped directory
// under backupRoot and returns its path. A store tree that does not exist
// yet is not an error; nothing is copied and the path comes back empty.
func (s *Store) Backup(backupRoot string) (string, error) {
	if _, err := os.Stat(s.dir); err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("no local Bluetooth configuration to back up", "dir", s.dir)
			return "", nil
		}
		return "", fmt.Errorf("bluez: stat %s: %w", s.dir, err)
	}
	if err := os.MkdirAll(backupRoot, 0o755); err != nil {
		return "", fmt.Errorf("bluez: creating backup root: %w", err)
	}

	dest := filepath.Join(backupRoot, "bluetooth_backup_"+time.Now().Format("20060102_150405"))
	if err := copyTree(s.dir, dest); err != nil {
		return "", fmt.Errorf("bluez: copying configuration tree: %w", err)
	}
	s.log.Info("backed up Bluetooth configuration", "dest", dest)
	return dest, nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}
