package hostctl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mysnode/internal/infrastructure/config"
	"github.com/nerrad567/mysnode/internal/infrastructure/logging"
)

// recorder stands in for process start.
type recorder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recorder) start(argv []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, argv)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestRebooter(cfg config.RebootConfig) (*Rebooter, *recorder, *time.Time) {
	rec := &recorder{}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRebooter(cfg, logging.Discard())
	r.start = rec.start
	r.now = func() time.Time { return clock }
	return r, rec, &clock
}

func TestReboot_Disabled(t *testing.T) {
	r, rec, _ := newTestRebooter(config.RebootConfig{
		Enabled: false,
		Command: []string{"sudo", "reboot"},
	})

	err := r.Reboot(context.Background())
	if !errors.Is(err, ErrRebootDenied) {
		t.Errorf("Reboot() error = %v, want ErrRebootDenied", err)
	}
	if rec.count() != 0 {
		t.Error("command started while disabled")
	}
}

func TestReboot_Enabled(t *testing.T) {
	r, rec, _ := newTestRebooter(config.RebootConfig{
		Enabled: true,
		Command: []string{"sudo", "reboot"},
	})

	if err := r.Reboot(context.Background()); err != nil {
		t.Fatalf("Reboot() error = %v", err)
	}
	if rec.count() != 1 || rec.calls[0][0] != "sudo" || rec.calls[0][1] != "reboot" {
		t.Errorf("calls = %v, want [[sudo reboot]]", rec.calls)
	}
}

func TestReboot_MinInterval(t *testing.T) {
	r, rec, clock := newTestRebooter(config.RebootConfig{
		Enabled:     true,
		Command:     []string{"reboot"},
		MinInterval: 300,
	})
	ctx := context.Background()

	if err := r.Reboot(ctx); err != nil {
		t.Fatalf("first Reboot() error = %v", err)
	}

	*clock = clock.Add(time.Minute)
	if err := r.Reboot(ctx); !errors.Is(err, ErrRebootDenied) {
		t.Errorf("repeat Reboot() error = %v, want ErrRebootDenied", err)
	}

	*clock = clock.Add(5 * time.Minute)
	if err := r.Reboot(ctx); err != nil {
		t.Errorf("Reboot() after interval error = %v", err)
	}

	if rec.count() != 2 {
		t.Errorf("command started %d times, want 2", rec.count())
	}
}

func TestReboot_StartFailureNotRateLimited(t *testing.T) {
	r, rec, _ := newTestRebooter(config.RebootConfig{
		Enabled:     true,
		Command:     []string{"missing-binary"},
		MinInterval: 300,
	})
	rec.err = errors.New("executable file not found")

	if err := r.Reboot(context.Background()); err == nil || errors.Is(err, ErrRebootDenied) {
		t.Fatalf("Reboot() error = %v, want start failure", err)
	}

	rec.err = nil
	if err := r.Reboot(context.Background()); err != nil {
		t.Errorf("retry after failed start error = %v", err)
	}
}

func TestReboot_CancelledContext(t *testing.T) {
	r, rec, _ := newTestRebooter(config.RebootConfig{Enabled: true, Command: []string{"reboot"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Reboot(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Reboot() error = %v, want context.Canceled", err)
	}
	if rec.count() != 0 {
		t.Error("command started with cancelled context")
	}
}

func TestStartDetached(t *testing.T) {
	if err := startDetached([]string{"true"}); err != nil {
		t.Errorf("startDetached(true) error = %v", err)
	}
	if err := startDetached([]string{"/nonexistent/mysnode-binary"}); err == nil {
		t.Error("startDetached() expected error for missing binary")
	}
}
