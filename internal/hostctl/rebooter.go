// Package hostctl performs host-level actions requested by the controller.
package hostctl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/mysnode/internal/infrastructure/config"
	"github.com/nerrad567/mysnode/internal/infrastructure/logging"
)

// ErrRebootDenied is returned when the reboot policy refuses a request.
var ErrRebootDenied = errors.New("hostctl: reboot denied")

// startFunc launches argv without waiting for it to finish.
type startFunc func(argv []string) error

// Rebooter runs the configured reboot command.
//
// Requests are refused unless reboot is enabled in configuration, and a
// request arriving within MinInterval of the last honoured one is dropped.
// Safe for concurrent use.
type Rebooter struct {
	cfg    config.RebootConfig
	logger *logging.Logger
	start  startFunc
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewRebooter returns a Rebooter for cfg.
func NewRebooter(cfg config.RebootConfig, logger *logging.Logger) *Rebooter {
	return &Rebooter{
		cfg:    cfg,
		logger: logger.Component("hostctl"),
		start:  startDetached,
		now:    time.Now,
	}
}

// Reboot starts the reboot command and returns without waiting for it.
func (r *Rebooter) Reboot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !r.cfg.Enabled {
		r.logger.Warn("reboot request ignored", "reason", "disabled")
		return fmt.Errorf("%w: disabled by configuration", ErrRebootDenied)
	}
	if len(r.cfg.Command) == 0 {
		return fmt.Errorf("%w: no reboot command configured", ErrRebootDenied)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	minInterval := time.Duration(r.cfg.MinInterval) * time.Second
	if !r.last.IsZero() && minInterval > 0 && now.Sub(r.last) < minInterval {
		r.logger.Warn("reboot request ignored",
			"reason", "rate_limited",
			"last", r.last,
			"min_interval", minInterval,
		)
		return fmt.Errorf("%w: last reboot request %v ago", ErrRebootDenied, now.Sub(r.last).Round(time.Second))
	}

	r.logger.Info("rebooting host", "command", r.cfg.Command)
	if err := r.start(r.cfg.Command); err != nil {
		return fmt.Errorf("starting reboot command: %w", err)
	}
	r.last = now

	return nil
}

// startDetached starts argv in its own process group and reaps it in the
// background so the caller never blocks on it.
func startDetached(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator's config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck // exit status is irrelevant once started

	return nil
}
