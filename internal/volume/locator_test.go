package volume

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records every invocation and delegates behavior to a per-test
// handler. A nil handler succeeds with empty output.
type fakeRunner struct {
	calls  []string
	handle func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	if f.handle == nil {
		return nil, nil
	}
	return f.handle(name, args)
}

func (f *fakeRunner) callsTo(name string) []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, name+" ") || c == name {
			out = append(out, c)
		}
	}
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lsblkJSON(t *testing.T, devs ...blockDevice) []byte {
	t.Helper()
	out, err := json.Marshal(lsblkOutput{BlockDevices: devs})
	require.NoError(t, err)
	return out
}

// windowsTree builds a directory that passes the indicator check.
func windowsTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Windows", "System32"), 0o755))
	return root
}

func TestFindCandidatesByFstype(t *testing.T) {
	listing := lsblkJSON(t, blockDevice{
		Name: "sda",
		Type: "disk",
		Children: []blockDevice{
			{Name: "sda1", Type: "part", Fstype: "vfat", Size: "512M"},
			{Name: "sda2", Type: "part", Fstype: "ntfs", Size: "200G"},
			{Name: "sda3", Type: "part", Fstype: "ext4", Size: "250G"},
		},
	})
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		switch name {
		case "lsblk":
			return listing, nil
		case "blkid":
			return []byte("ext4\n"), nil
		default:
			return nil, nil
		}
	}}

	got, err := NewLocator(run, discard()).FindCandidates(context.Background())
	require.NoError(t, err)

	// The unconfirmed vfat partition is dropped, the unconfirmed ntfs one
	// is kept leniently, and ext4 never qualifies.
	require.Len(t, got, 1)
	assert.Equal(t, Volume{Device: "/dev/sda2", Filesystem: FSNTFS}, got[0])

	require.NotEmpty(t, run.calls)
	assert.Equal(t, "lsblk -J -o NAME,TYPE,FSTYPE,SIZE,MOUNTPOINT", run.calls[0])
}

func TestFindCandidatesMountedAndConfirmed(t *testing.T) {
	root := windowsTree(t)
	listing := lsblkJSON(t, blockDevice{
		Name: "nvme0n1",
		Type: "disk",
		Children: []blockDevice{
			{Name: "nvme0n1p3", Type: "part", Fstype: "ntfs", Size: "450G", Mountpoint: root},
		},
	})
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		return listing, nil
	}}

	got, err := NewLocator(run, discard()).FindCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Volume{
		Device:     "/dev/nvme0n1p3",
		Filesystem: FSNTFS,
		MountPoint: root,
		Mounted:    true,
	}, got[0])

	// Already mounted: the confirmation check must not mount anything.
	assert.Empty(t, run.callsTo("mount"))
	assert.Empty(t, run.callsTo("umount"))
}

func TestFindCandidatesFileProbe(t *testing.T) {
	listing := lsblkJSON(t, blockDevice{
		Name: "sdb",
		Type: "disk",
		Children: []blockDevice{
			{Name: "sdb1", Type: "part", Size: "120G"},
		},
	})
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		switch name {
		case "lsblk":
			return listing, nil
		case "file":
			return []byte("/dev/sdb1: DOS/MBR boot sector, NTFS, OEM-ID \"NTFS    \""), nil
		default:
			return nil, nil
		}
	}}

	got, err := NewLocator(run, discard()).FindCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, FSNTFS, got[0].Filesystem)
	assert.Equal(t, []string{"file -s /dev/sdb1"}, run.callsTo("file"))
}

func TestFindCandidatesBlkidProbe(t *testing.T) {
	listing := lsblkJSON(t, blockDevice{
		Name: "sdc",
		Type: "disk",
		Children: []blockDevice{
			{Name: "sdc2", Type: "part", Size: "300G"},
		},
	})
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		switch name {
		case "lsblk":
			return listing, nil
		case "file":
			return nil, errors.New("file: command not found")
		case "blkid":
			return []byte("ntfs\n"), nil
		default:
			return nil, nil
		}
	}}

	got, err := NewLocator(run, discard()).FindCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, FSNTFS, got[0].Filesystem)
	assert.Equal(t, []string{"blkid -o value -s TYPE /dev/sdc2"}, run.callsTo("blkid"))
}

func TestFindCandidatesSizeHeuristic(t *testing.T) {
	root := windowsTree(t)
	listing := lsblkJSON(t, blockDevice{
		Name: "nvme0n1",
		Type: "disk",
		Children: []blockDevice{
			// No filesystem type from any probe, but large, in a
			// typical Windows slot, and already mounted somewhere
			// that carries the indicator dirs.
			{Name: "nvme0n1p3", Type: "part", Size: "476G", Mountpoint: root},
			// Small first partition never triggers the heuristic.
			{Name: "nvme0n1p1", Type: "part", Size: "100M"},
		},
	})
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		switch name {
		case "lsblk":
			return listing, nil
		default:
			return nil, errors.New("probe failed")
		}
	}}

	got, err := NewLocator(run, discard()).FindCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/dev/nvme0n1p3", got[0].Device)
	assert.Equal(t, FSNTFS, got[0].Filesystem)
}

func TestFindCandidatesEnumerationFailure(t *testing.T) {
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		return nil, errors.New("lsblk: not found")
	}}
	_, err := NewLocator(run, discard()).FindCandidates(context.Background())
	require.Error(t, err)

	run = &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		return []byte("not json"), nil
	}}
	_, err = NewLocator(run, discard()).FindCandidates(context.Background())
	require.Error(t, err)
}
