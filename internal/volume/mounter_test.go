package volume

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountPreMountedVolume(t *testing.T) {
	run := &fakeRunner{}
	m := NewMounter(run, discard(), "btsync_test_")

	v := Volume{Device: "/dev/sda2", Filesystem: FSNTFS, MountPoint: "/mnt/win", Mounted: true}
	require.NoError(t, m.Mount(context.Background(), &v))
	assert.Equal(t, "/mnt/win", v.MountPoint)
	assert.Empty(t, run.calls, "reusing a system mount must not invoke anything")

	// Releasing must not unmount a volume we did not mount.
	require.NoError(t, m.Release(context.Background()))
	assert.Empty(t, run.callsTo("umount"))
}

func TestMountAndRelease(t *testing.T) {
	run := &fakeRunner{}
	m := NewMounter(run, discard(), "btsync_test_")

	v := Volume{Device: "/dev/sda2", Filesystem: FSNTFS}
	require.NoError(t, m.Mount(context.Background(), &v))
	require.NotEmpty(t, v.MountPoint)
	assert.True(t, v.Mounted)
	assert.Contains(t, v.MountPoint, "btsync_test_")

	mounts := run.callsTo("mount")
	require.Len(t, mounts, 1)
	assert.Equal(t, "mount -r /dev/sda2 "+v.MountPoint, mounts[0])

	_, err := os.Stat(v.MountPoint)
	require.NoError(t, err, "scratch dir must exist while mounted")

	require.NoError(t, m.Release(context.Background()))
	assert.Equal(t, []string{"umount " + v.MountPoint}, run.callsTo("umount"))
	_, err = os.Stat(v.MountPoint)
	assert.True(t, os.IsNotExist(err), "scratch dir must be removed on release")

	// Release is idempotent.
	calls := len(run.calls)
	require.NoError(t, m.Release(context.Background()))
	assert.Equal(t, calls, len(run.calls))
}

func TestMountFailureLeavesNoScratchDir(t *testing.T) {
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		if name == "mount" {
			return nil, errors.New("mount: unknown filesystem type 'ntfs'")
		}
		return nil, nil
	}}
	m := NewMounter(run, discard(), "btsync_test_")

	v := Volume{Device: "/dev/sdb1", Filesystem: FSNTFS}
	err := m.Mount(context.Background(), &v)
	require.Error(t, err)
	assert.Empty(t, v.MountPoint)

	mounts := run.callsTo("mount")
	require.Len(t, mounts, 1)
	dir := strings.Fields(mounts[0])[3]
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "failed mount must remove its scratch dir")

	// Nothing was acquired, so nothing to release.
	require.NoError(t, m.Release(context.Background()))
	assert.Empty(t, run.callsTo("umount"))
}
