// Package journal keeps a history of sync runs in a small bbolt database
// under the backup root, so past runs can be inspected after the fact.
// Journal failures never affect the outcome of a run; callers log and move
// on.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	runsBucket    = []byte("runs")    // run key -> RunSummary
	devicesBucket = []byte("devices") // run key + "/" + address -> DeviceOutcome
)

// RunSummary is the per-run record.
type RunSummary struct {
	StartedAt time.Time `json:"started_at"`
	Volume    string    `json:"volume"`
	HivePath  string    `json:"hive_path"`
	Devices   int       `json:"devices"`
	BackupDir string    `json:"backup_dir,omitempty"`
	Success   bool      `json:"success"`
}

// DeviceOutcome records what happened to one device in one run.
type DeviceOutcome struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Merged  bool   `json:"merged"`
}

// Journal is an open run journal.
type Journal struct {
	db *bolt.DB
}

// Open opens or creates the journal database and ensures its buckets. The
// timeout keeps a stale flock from a crashed run from hanging us forever.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: opening database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, devicesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("journal: creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Key formats a run's start time into its bucket key. The fixed-width
// fraction keeps the lexical bucket order chronological.
func Key(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// RecordRun stores the run summary keyed by its start time and returns the
// key under which device outcomes should be linked.
func (j *Journal) RecordRun(run RunSummary) (string, error) {
	key := Key(run.StartedAt)
	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("journal: encoding run: %w", err)
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("journal: writing run: %w", err)
	}
	return key, nil
}

// RecordDevice stores one device outcome under the given run key.
func (j *Journal) RecordDevice(runKey string, dev DeviceOutcome) error {
	data, err := json.Marshal(dev)
	if err != nil {
		return fmt.Errorf("journal: encoding device: %w", err)
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(devicesBucket).Put([]byte(runKey+"/"+dev.Address), data)
	})
	if err != nil {
		return fmt.Errorf("journal: writing device: %w", err)
	}
	return nil
}

// LastRun returns the most recent run summary; ok is false when the journal
// holds no runs yet.
func (j *Journal) LastRun() (RunSummary, bool, error) {
	var run RunSummary
	var found bool
	err := j.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(runsBucket).Cursor().Last()
		if k == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &run)
	})
	if err != nil {
		return RunSummary{}, false, fmt.Errorf("journal: reading last run: %w", err)
	}
	return run, found, nil
}

// Devices returns the outcomes recorded under one run key, in address
// order.
func (j *Journal) Devices(key string) ([]DeviceOutcome, error) {
	var out []DeviceOutcome
	prefix := []byte(key + "/")
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(devicesBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var dev DeviceOutcome
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			out = append(out, dev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: reading devices: %w", err)
	}
	return out, nil
}
