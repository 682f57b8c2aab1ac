package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidbalzan/bluetooth-sync/internal/config"
	"github.com/davidbalzan/bluetooth-sync/internal/logging"
	"github.com/davidbalzan/bluetooth-sync/internal/syncer"
	"github.com/davidbalzan/bluetooth-sync/internal/volume"
)

var rootCmd = &cobra.Command{
	Use:   "btsync",
	Short: "Migrate Bluetooth pairings from Windows to Linux",
	Long: `btsync copies Bluetooth pairing credentials from the Windows
installation on a dual-boot machine into the local BlueZ configuration, so
devices paired under Windows reconnect under Linux without re-pairing.

It finds the Windows partition, mounts it read-only, reads the link keys
from the SYSTEM registry hive, and merges them into the BlueZ tree. The
tree is backed up first and the Bluetooth service is restarted afterwards.
Must run as root.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if os.Getenv("BTSYNC_DEBUG") != "" {
		level = slog.LevelDebug
	}
	log, logPath := logging.Init(logging.Options{Paths: cfg.LogPaths, Level: level})
	log.Info("btsync starting", "version", version, "commit", commit, "built", date)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := syncer.New(cfg, volume.ExecRunner{}, log).Run(ctx); err != nil {
		log.Error("sync failed", "err", err)
		fmt.Fprintf(os.Stderr, "\nSync failed. Details in %s\n", logPath)
		return err
	}

	fmt.Printf("\nSync complete. Devices paired under Windows should now connect.\nLog: %s\n", logPath)
	return nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
