// Package volume finds the Windows partition on a dual-boot machine and
// manages a read-only mount of it. Block-device enumeration and mounting go
// through external utilities (lsblk, file, blkid, mount, umount) behind the
// Runner seam.
package volume

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem kinds a candidate volume can carry.
const (
	FSNTFS = "ntfs"
	FSVFAT = "vfat"
)

// Volume is a partition that plausibly holds a Windows installation.
type Volume struct {
	Device     string // /dev/... node
	Filesystem string // FSNTFS or FSVFAT
	MountPoint string // non-empty when the OS already has it mounted
	Mounted    bool
}

type lsblkOutput struct {
	BlockDevices []blockDevice `json:"blockdevices"`
}

type blockDevice struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Fstype     string        `json:"fstype"`
	Size       string        `json:"size"`
	Mountpoint string        `json:"mountpoint"`
	Children   []blockDevice `json:"children"`
}

// windowsIndicators are directories whose presence marks a Windows system
// volume. Both common case spellings are probed.
var windowsIndicators = []string{
	"Windows/System32",
	"Program Files",
	"Users",
	"WINDOWS/system32",
}

// Locator scans the block-device tree for Windows partitions.
type Locator struct {
	run Runner
	log *slog.Logger
}

func NewLocator(run Runner, log *slog.Logger) *Locator {
	return &Locator{run: run, log: log}
}

// FindCandidates enumerates partitions and returns those that plausibly hold
// a Windows installation, in discovery order. Partitions confirmed to carry
// Windows system directories are accepted outright; NTFS partitions that
// cannot be confirmed are still accepted, since NTFS is almost always
// Windows on a dual-boot machine.
func (l *Locator) FindCandidates(ctx context.Context) ([]Volume, error) {
	out, err := l.run.Run(ctx, "lsblk", "-J", "-o", "NAME,TYPE,FSTYPE,SIZE,MOUNTPOINT")
	if err != nil {
		return nil, fmt.Errorf("volume: lsblk failed: %w", err)
	}
	var listing lsblkOutput
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, fmt.Errorf("volume: cannot parse lsblk output: %w", err)
	}

	var found []Volume
	var walk func(dev blockDevice)
	walk = func(dev blockDevice) {
		if dev.Type == "part" {
			if v, ok := l.inspect(ctx, dev); ok {
				found = append(found, v)
			}
		}
		for _, child := range dev.Children {
			walk(child)
		}
	}
	for _, dev := range listing.BlockDevices {
		walk(dev)
	}

	l.log.Info("partition scan complete", "candidates", len(found))
	return found, nil
}

// inspect decides whether one partition is a Windows candidate. Failures of
// individual detection methods are logged and treated as "not detected";
// they never abort the scan.
func (l *Locator) inspect(ctx context.Context, dev blockDevice) (Volume, bool) {
	device := "/dev/" + dev.Name

	var fs string
	switch dev.Fstype {
	case FSNTFS, FSVFAT:
		fs = dev.Fstype
		l.log.Info("found partition", "device", device, "fstype", fs)
	case "":
		fs = l.probeFile(ctx, device)
	}
	if fs == "" {
		fs = l.probeBlkid(ctx, device)
	}
	if fs == "" {
		if !looksLikeOSPartition(dev) {
			return Volume{}, false
		}
		l.log.Info("large partition that might be Windows", "device", device, "size", dev.Size)
		if !l.confirmWindows(ctx, device, dev.Mountpoint) {
			return Volume{}, false
		}
		l.log.Info("confirmed Windows partition", "device", device)
		fs = FSNTFS
	} else if !l.confirmWindows(ctx, device, dev.Mountpoint) {
		if fs != FSNTFS {
			return Volume{}, false
		}
		l.log.Info("adding NTFS partition without confirmation", "device", device)
	}

	return Volume{
		Device:     device,
		Filesystem: fs,
		MountPoint: dev.Mountpoint,
		Mounted:    dev.Mountpoint != "",
	}, true
}

// probeFile reads the filesystem signature with file -s. Used only when
// lsblk reported no filesystem type.
func (l *Locator) probeFile(ctx context.Context, device string) string {
	out, err := l.run.Run(ctx, "file", "-s", device)
	if err != nil {
		l.log.Debug("file probe failed", "device", device, "err", err)
		return ""
	}
	s := strings.ToLower(string(out))
	switch {
	case strings.Contains(s, "ntfs"):
		l.log.Info("detected NTFS via file signature", "device", device)
		return FSNTFS
	case strings.Contains(s, "fat"):
		l.log.Info("detected FAT via file signature", "device", device)
		return FSVFAT
	}
	return ""
}

func (l *Locator) probeBlkid(ctx context.Context, device string) string {
	out, err := l.run.Run(ctx, "blkid", "-o", "value", "-s", "TYPE", device)
	if err != nil {
		l.log.Debug("blkid probe failed", "device", device, "err", err)
		return ""
	}
	switch fs := strings.ToLower(strings.TrimSpace(string(out))); fs {
	case FSNTFS, FSVFAT:
		l.log.Info("detected filesystem via blkid", "device", device, "fstype", fs)
		return fs
	}
	return ""
}

// Large partitions late in the partition table are where Windows usually
// lives on OEM dual-boot layouts.
func looksLikeOSPartition(dev blockDevice) bool {
	if !strings.ContainsAny(dev.Size, "GT") {
		return false
	}
	return strings.HasSuffix(dev.Name, "2") || strings.HasSuffix(dev.Name, "3")
}

// confirmWindows reports whether the partition carries Windows system
// directories. Unmounted partitions are mounted read-only onto a scratch
// directory for the check and released before returning.
func (l *Locator) confirmWindows(ctx context.Context, device, mountPoint string) bool {
	if mountPoint != "" {
		return hasWindowsDirs(mountPoint)
	}

	scratch, err := os.MkdirTemp("", "bt_sync_check_")
	if err != nil {
		l.log.Debug("cannot create scratch mount dir", "err", err)
		return false
	}
	if _, err := l.run.Run(ctx, "mount", "-r", device, scratch); err != nil {
		l.log.Debug("probe mount failed", "device", device, "err", err)
		os.Remove(scratch)
		return false
	}
	confirmed := hasWindowsDirs(scratch)
	if _, err := l.run.Run(ctx, "umount", scratch); err != nil {
		l.log.Warn("failed to unmount scratch dir", "dir", scratch, "err", err)
	} else {
		os.Remove(scratch)
	}
	return confirmed
}

func hasWindowsDirs(root string) bool {
	for _, dir := range windowsIndicators {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir))); err == nil {
			return true
		}
	}
	return false
}
