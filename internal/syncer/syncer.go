// Package syncer drives one credential-migration run end to end: find the
// Windows partition, mount it read-only, pull the pairing keys out of its
// SYSTEM hive, and merge them into the local BlueZ tree. The run is a
// strict sequence of states; cleanup (mount release, service restart) is
// guaranteed on every exit path.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/davidbalzan/bluetooth-sync/internal/bluez"
	"github.com/davidbalzan/bluetooth-sync/internal/config"
	"github.com/davidbalzan/bluetooth-sync/internal/journal"
	"github.com/davidbalzan/bluetooth-sync/internal/volume"
	"github.com/davidbalzan/bluetooth-sync/internal/winreg"
)

// State tracks the run's progress. Transitions are strictly forward;
// Aborted is reachable from anywhere and CleanedUp is always last.
type State int

const (
	StateInit State = iota
	StatePartitionFound
	StateMounted
	StateHiveLocated
	StateDevicesExtracted
	StateBackedUp
	StateMerged
	StateServiceRestarted
	StateDone
	StateAborted
	StateCleanedUp
)

func (s State) String() string {
	names := [...]string{
		"Init", "PartitionFound", "Mounted", "HiveLocated",
		"DevicesExtracted", "BackedUp", "Merged", "ServiceRestarted",
		"Done", "Aborted", "CleanedUp",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PrivilegeError reports that the process lacks the rights to mount volumes
// and rewrite system configuration. It aborts the run before any side
// effect.
type PrivilegeError struct {
	EUID int
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("syncer: must run as root, not euid %d", e.EUID)
}

// Runner is the shared exec seam; volume.ExecRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Syncer runs the migration.
type Syncer struct {
	cfg config.Config
	run Runner
	log *slog.Logger

	state State

	// replaceable in tests
	geteuid  func() int
	lookPath func(file string) (string, error)
}

func New(cfg config.Config, run Runner, log *slog.Logger) *Syncer {
	return &Syncer{
		cfg:      cfg,
		run:      run,
		log:      log,
		geteuid:  os.Geteuid,
		lookPath: exec.LookPath,
	}
}

// State reports the current run state.
func (s *Syncer) State() State { return s.state }

// Run executes one migration. A nil return means the run finished and the
// local store reflects every recovered device (including the valid case of
// zero devices); any error means the run failed after cleanup.
func (s *Syncer) Run(ctx context.Context) (err error) {
	s.transition(StateInit)
	started := time.Now()

	defer func() {
		if err != nil {
			s.transition(StateAborted)
		}
		s.transition(StateCleanedUp)
	}()

	if err := s.preflight(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("syncer: cancelled before start: %w", err)
	}

	jnl := s.openJournal()
	if jnl != nil {
		defer jnl.Close()
		if last, ok, err := jnl.LastRun(); err == nil && ok {
			s.log.Debug("previous run",
				"started", last.StartedAt, "devices", last.Devices, "success", last.Success)
		}
	}

	candidates, err := volume.NewLocator(s.run, s.log).FindCandidates(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.New("syncer: no Windows partition found")
	}
	// First candidate wins; selecting among several installations is a
	// known limitation.
	vol := candidates[0]
	s.log.Info("using Windows partition", "device", vol.Device, "fstype", vol.Filesystem)
	s.transition(StatePartitionFound)

	mounter := volume.NewMounter(s.run, s.log, s.cfg.MountPrefix)
	if err := mounter.Mount(ctx, &vol); err != nil {
		return err
	}
	defer func() {
		if relErr := mounter.Release(context.Background()); relErr != nil {
			s.log.Warn("failed to release mount", "err", relErr)
		}
	}()
	s.transition(StateMounted)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("syncer: cancelled after mount: %w", err)
	}

	hivePath, err := winreg.LocateHive(vol.MountPoint)
	if err != nil {
		return err
	}
	s.log.Info("located SYSTEM hive", "path", hivePath)
	s.transition(StateHiveLocated)

	devices, err := winreg.ExtractDevices(hivePath, s.log)
	if err != nil {
		// A hive whose control set cannot be resolved holds no readable
		// pairings; that is the valid no-devices outcome, not a failure.
		if !errors.Is(err, winreg.ErrNoControlSet) {
			return err
		}
		s.log.Warn("cannot resolve a control set in the hive, treating as no pairings", "err", err)
		devices = nil
	}
	s.transition(StateDevicesExtracted)

	summary := journal.RunSummary{
		StartedAt: started,
		Volume:    vol.Device,
		HivePath:  hivePath,
		Devices:   len(devices),
	}

	if len(devices) == 0 {
		s.log.Info("no Bluetooth pairings found in the Windows registry")
		summary.Success = true
		s.recordRun(jnl, summary, nil, nil, false)
		s.transition(StateDone)
		return nil
	}

	store := bluez.NewStore(s.cfg.BluezDir, s.log)
	adapters, err := store.Adapters()
	if err != nil {
		s.recordRun(jnl, summary, devices, nil, false)
		return err
	}
	if len(adapters) == 0 {
		s.recordRun(jnl, summary, devices, nil, false)
		return fmt.Errorf("syncer: no local Bluetooth adapters under %s", s.cfg.BluezDir)
	}

	backupDir, err := store.Backup(s.cfg.BackupRoot)
	if err != nil {
		s.log.Warn("backup failed, merging without one", "err", err)
	}
	summary.BackupDir = backupDir
	s.transition(StateBackedUp)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("syncer: cancelled before merge: %w", err)
	}

	creds := make([]bluez.Credential, 0, len(devices))
	for _, d := range devices {
		creds = append(creds, bluez.Credential{Name: d.Name, Address: d.Address, Key: d.LinkKey})
	}

	svc := bluez.NewServiceController(s.run, s.log, s.cfg.Service)
	if err := svc.Stop(ctx); err != nil {
		s.recordRun(jnl, summary, devices, nil, false)
		return err
	}
	mergeOK, failed, err := s.mergeThenRestart(store, svc, adapters, creds)
	if err != nil {
		s.recordRun(jnl, summary, devices, failed, true)
		return err
	}
	s.transition(StateMerged)
	s.transition(StateServiceRestarted)

	summary.Success = mergeOK
	s.recordRun(jnl, summary, devices, failed, true)

	if !mergeOK {
		return errors.New("syncer: completed with merge errors")
	}
	s.transition(StateDone)
	return nil
}

// preflight verifies privileges and external tools before any side effect.
func (s *Syncer) preflight() error {
	if euid := s.geteuid(); euid != 0 {
		return &PrivilegeError{EUID: euid}
	}
	for _, tool := range []string{"lsblk", "mount", "umount", "systemctl"} {
		if _, err := s.lookPath(tool); err != nil {
			return fmt.Errorf("syncer: required tool %q not found: %w", tool, err)
		}
	}
	for _, tool := range []string{"file", "blkid"} {
		if _, err := s.lookPath(tool); err != nil {
			s.log.Debug("optional tool missing, detection will skip it", "tool", tool)
		}
	}
	return nil
}

// mergeThenRestart runs the merge with a guaranteed service restart: the
// caller already stopped the service, and the restart happens no matter how
// the merge went. A stopped Bluetooth service is worse than any merge
// failure, so the restart ignores caller cancellation.
func (s *Syncer) mergeThenRestart(store *bluez.Store, svc *bluez.ServiceController, adapters []string, creds []bluez.Credential) (mergeOK bool, failed []string, err error) {
	defer func() {
		if startErr := svc.Start(context.Background()); startErr != nil {
			s.log.Error("failed to restart Bluetooth service", "err", startErr)
			if err == nil {
				err = startErr
			}
		}
	}()

	mergeOK, failed = store.Merge(adapters, creds)
	return mergeOK, failed, nil
}

// openJournal opens the run journal under the backup root. Journal problems
// never fail the run; a nil journal simply drops the bookkeeping.
func (s *Syncer) openJournal() *journal.Journal {
	if err := os.MkdirAll(s.cfg.BackupRoot, 0o755); err != nil {
		s.log.Warn("cannot create backup root, skipping journal", "err", err)
		return nil
	}
	jnl, err := journal.Open(s.cfg.JournalPath())
	if err != nil {
		s.log.Warn("cannot open run journal", "err", err)
		return nil
	}
	return jnl
}

// recordRun writes the run summary and per-device outcomes. mergeRan marks
// whether the merge phase was reached at all.
func (s *Syncer) recordRun(jnl *journal.Journal, sum journal.RunSummary, devices []winreg.PairedDevice, failed []string, mergeRan bool) {
	if jnl == nil {
		return
	}
	key, err := jnl.RecordRun(sum)
	if err != nil {
		s.log.Warn("cannot record run in journal", "err", err)
		return
	}
	failedSet := make(map[string]bool, len(failed))
	for _, addr := range failed {
		failedSet[addr] = true
	}
	for _, d := range devices {
		outcome := journal.DeviceOutcome{
			Address: d.Address,
			Name:    d.Name,
			Merged:  mergeRan && !failedSet[d.Address],
		}
		if err := jnl.RecordDevice(key, outcome); err != nil {
			s.log.Warn("cannot record device in journal", "device", d.Address, "err", err)
			return
		}
	}
}

func (s *Syncer) transition(next State) {
	s.log.Debug("state transition", "from", s.state, "to", next)
	s.state = next
}
