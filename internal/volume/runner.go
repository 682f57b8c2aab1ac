package volume

import (
	"context"
	"os/exec"
)

// Runner abstracts the external block-device and mount utilities so the
// locator and mounter can be exercised without touching real devices.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local system. It captures stdout only;
// stderr from a failed command is available through *exec.ExitError.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
