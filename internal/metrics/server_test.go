package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServer_Health(t *testing.T) {
	var (
		mu     sync.Mutex
		status = errors.New("session connecting, not ready")
	)
	health := func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return status
	}

	srv := NewServer("127.0.0.1:0", "", prometheus.NewRegistry(), health)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	client := &http.Client{Timeout: 5 * time.Second}
	get := func() (int, string) {
		t.Helper()
		resp, err := client.Get("http://" + srv.Addr() + "/health")
		if err != nil {
			t.Fatalf("GET /health error = %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get()
	if code != http.StatusServiceUnavailable {
		t.Errorf("/health status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body != "session connecting, not ready" {
		t.Errorf("/health body = %q", body)
	}

	mu.Lock()
	status = nil
	mu.Unlock()

	code, body = get()
	if code != http.StatusOK || body != "OK" {
		t.Errorf("/health = %d %q, want 200 \"OK\"", code, body)
	}
}

func TestServer_HealthDeadline(t *testing.T) {
	deadlines := make(chan bool, 1)
	health := func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadlines <- ok
		return nil
	}

	srv := NewServer("127.0.0.1:0", "/scrape", prometheus.NewRegistry(), health)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}
	if !<-deadlines {
		t.Error("health check context has no deadline")
	}
}
