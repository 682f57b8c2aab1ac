package bluez

import (
	"context"
	"fmt"
	"log/slog"
)

// Runner is the exec seam for systemctl; volume.ExecRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ServiceController stops and starts the local Bluetooth service around a
// merge, so the daemon does not rewrite records underneath us.
type ServiceController struct {
	run     Runner
	log     *slog.Logger
	service string
}

func NewServiceController(run Runner, log *slog.Logger, service string) *ServiceController {
	return &ServiceController{run: run, log: log, service: service}
}

func (c *ServiceController) Stop(ctx context.Context) error {
	if _, err := c.run.Run(ctx, "systemctl", "stop", c.service); err != nil {
		return fmt.Errorf("bluez: stopping %s: %w", c.service, err)
	}
	c.log.Info("stopped service", "service", c.service)
	return nil
}

func (c *ServiceController) Start(ctx context.Context) error {
	if _, err := c.run.Run(ctx, "systemctl", "start", c.service); err != nil {
		return fmt.Errorf("bluez: starting %s: %w", c.service, err)
	}
	c.log.Info("started service", "service", c.service)
	return nil
}
