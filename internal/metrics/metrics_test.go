package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var testStates = []string{"disconnected", "connecting", "ready"}

// value returns the value of the series name{label=labelValue}; an empty
// label matches an unlabelled series.
func value(t *testing.T, reg *prometheus.Registry, name, label, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && !hasLabel(m, label, labelValue) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, testStates)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.MessageReceived("config")
	m.MessageReceived("config")
	m.MessagePublished("set")
	m.DecodeError()
	m.IdentityRequested()
	m.IdentityTimedOut()
	m.ConfigQuery("timeout")
	m.RebootRequest("denied")

	tests := []struct {
		name, label, labelValue string
		want                    float64
	}{
		{"mysnode_mqtt_messages_received_total", "kind", "config", 2},
		{"mysnode_mqtt_messages_published_total", "command", "set", 1},
		{"mysnode_mqtt_decode_errors_total", "", "", 1},
		{"mysnode_identity_requests_total", "", "", 1},
		{"mysnode_identity_timeouts_total", "", "", 1},
		{"mysnode_session_config_queries_total", "result", "timeout", 1},
		{"mysnode_host_reboot_requests_total", "result", "denied", 1},
		{"mysnode_identity_node_id", "", "", 255},
	}
	for _, tt := range tests {
		if got := value(t, reg, tt.name, tt.label, tt.labelValue); got != tt.want {
			t.Errorf("%s{%s=%q} = %v, want %v", tt.name, tt.label, tt.labelValue, got, tt.want)
		}
	}

	m.SetNodeID(12)
	if got := value(t, reg, "mysnode_identity_node_id", "", ""); got != 12 {
		t.Errorf("node_id = %v, want 12", got)
	}
}

func TestMetrics_State(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, testStates)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.SetState("connecting")
	m.SetState("ready")

	if got := value(t, reg, "mysnode_session_state", "state", "ready"); got != 1 {
		t.Errorf("state{ready} = %v, want 1", got)
	}
	if got := value(t, reg, "mysnode_session_state", "state", "connecting"); got != 0 {
		t.Errorf("state{connecting} = %v, want 0", got)
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg, testStates); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := New(reg, testStates); err == nil {
		t.Error("second New() on the same registry expected error")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.MessageReceived("config")
	m.MessagePublished("set")
	m.DecodeError()
	m.IdentityRequested()
	m.IdentityTimedOut()
	m.SetNodeID(1)
	m.ConfigQuery("ok")
	m.RebootRequest("accepted")
	m.SetState("ready")
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, testStates)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.MessagePublished("presentation")

	srv := NewServer("127.0.0.1:0", "", reg, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	if err := srv.Start(); err == nil {
		t.Error("second Start() expected error")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), `mysnode_mqtt_messages_published_total{command="presentation"} 1`) {
		t.Errorf("scrape output missing published counter:\n%s", body)
	}

	resp, err = client.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
