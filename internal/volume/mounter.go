package volume

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Mounter acquires and releases a read-only mount of one volume. It only
// ever unmounts what it mounted itself; pre-existing system mounts are left
// alone.
type Mounter struct {
	run    Runner
	log    *slog.Logger
	prefix string

	dir   string
	owned bool
}

// NewMounter returns a Mounter whose scratch directories are created with
// the given name prefix.
func NewMounter(run Runner, log *slog.Logger, prefix string) *Mounter {
	return &Mounter{run: run, log: log, prefix: prefix}
}

// Mount makes the volume's contents reachable and fills in v.MountPoint. A
// volume the OS already has mounted is used in place without remounting. On
// failure no scratch directory is left behind.
func (m *Mounter) Mount(ctx context.Context, v *Volume) error {
	if v.MountPoint != "" {
		m.log.Info("volume already mounted", "device", v.Device, "mountpoint", v.MountPoint)
		v.Mounted = true
		return nil
	}

	dir, err := os.MkdirTemp("", m.prefix)
	if err != nil {
		return fmt.Errorf("volume: cannot create mount dir: %w", err)
	}
	if _, err := m.run.Run(ctx, "mount", "-r", v.Device, dir); err != nil {
		os.Remove(dir)
		return fmt.Errorf("volume: mount %s failed: %w", v.Device, err)
	}

	v.MountPoint = dir
	v.Mounted = true
	m.dir = dir
	m.owned = true
	m.log.Info("mounted volume read-only", "device", v.Device, "mountpoint", dir)
	return nil
}

// Release unmounts the scratch mount if this process created it, and removes
// the scratch directory. Calling it again, or after a Mount that reused a
// pre-existing mount, is a no-op.
func (m *Mounter) Release(ctx context.Context) error {
	if !m.owned {
		return nil
	}
	m.owned = false

	if _, err := m.run.Run(ctx, "umount", m.dir); err != nil {
		return fmt.Errorf("volume: unmount %s failed: %w", m.dir, err)
	}
	if err := os.Remove(m.dir); err != nil {
		m.log.Warn("failed to remove mount dir", "dir", m.dir, "err", err)
	}
	m.log.Info("released volume mount", "mountpoint", m.dir)
	m.dir = ""
	return nil
}
