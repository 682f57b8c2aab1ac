// Package config carries the run settings. Every field has a built-in
// default; an optional HCL file can override individual values. The file is
// looked up at $BTSYNC_CONFIG, /etc/btsync/btsync.hcl, then
// ~/.config/btsync/btsync.hcl; the first hit wins and a missing file is not
// an error. A file that exists but does not parse is fatal.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

const envConfigPath = "BTSYNC_CONFIG"

// Config is the resolved run configuration.
type Config struct {
	BluezDir    string   // local BlueZ configuration tree
	Service     string   // systemd unit stopped around the merge
	BackupRoot  string   // backups and the run journal live here
	JournalFile string   // journal database name under BackupRoot
	MountPrefix string   // scratch mount directory prefix
	LogPaths    []string // candidate log files in preference order
}

// JournalPath is the full path of the run journal database.
func (c Config) JournalPath() string {
	return filepath.Join(c.BackupRoot, c.JournalFile)
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		BluezDir:    "/var/lib/bluetooth",
		Service:     "bluetooth",
		BackupRoot:  filepath.Join(home, ".bt_sync_backup"),
		JournalFile: "journal.db",
		MountPrefix: "bt_sync_mount_",
		LogPaths: []string{
			"/tmp/bt_sync.log",
			filepath.Join(home, "bt_sync.log"),
			"bt_sync.log",
			"/var/log/bt_sync.log",
		},
	}
}

// fileConfig mirrors Config for decoding; all attributes are optional.
type fileConfig struct {
	BluezDir    *string  `hcl:"bluez_dir,optional"`
	Service     *string  `hcl:"service,optional"`
	BackupRoot  *string  `hcl:"backup_root,optional"`
	JournalFile *string  `hcl:"journal_file,optional"`
	MountPrefix *string  `hcl:"mount_prefix,optional"`
	LogPaths    []string `hcl:"log_paths,optional"`
}

// Load resolves the configuration: defaults overlaid with the first config
// file found. Missing files are fine; a malformed file is an error.
func Load() (Config, error) {
	if path := os.Getenv(envConfigPath); path != "" {
		return LoadFile(path)
	}
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return Default(), nil
}

// LoadFile reads one HCL config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, diags)
	}
	var fc fileConfig
	if diags := gohcl.DecodeBody(f.Body, nil, &fc); diags.HasErrors() {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, diags)
	}

	if fc.BluezDir != nil {
		cfg.BluezDir = *fc.BluezDir
	}
	if fc.Service != nil {
		cfg.Service = *fc.Service
	}
	if fc.BackupRoot != nil {
		cfg.BackupRoot = *fc.BackupRoot
	}
	if fc.JournalFile != nil {
		cfg.JournalFile = *fc.JournalFile
	}
	if fc.MountPrefix != nil {
		cfg.MountPrefix = *fc.MountPrefix
	}
	if fc.LogPaths != nil {
		cfg.LogPaths = fc.LogPaths
	}
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{"/etc/btsync/btsync.hcl"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "btsync", "btsync.hcl"))
	}
	return paths
}
