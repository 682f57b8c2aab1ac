// Package logging builds the run logger: structured text to stderr, mirrored
// into the first log file location that accepts a write. Runs as root on
// some machines and as a user on others, so the candidate list ranges from
// /tmp to /var/log.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options configures Init.
type Options struct {
	Paths []string   // candidate log files in preference order
	Level slog.Level // minimum level, LevelInfo when zero
}

// Init returns the logger and the log file path it managed to open; the
// path is empty when every candidate was unwritable and only stderr is
// used. The file is truncated so each run starts a fresh log.
func Init(opts Options) (*slog.Logger, string) {
	var out io.Writer = os.Stderr
	var chosen string

	for _, path := range opts.Paths {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		out = io.MultiWriter(os.Stderr, f)
		chosen = path
		break
	}

	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level}))
	return log, chosen
}
