// Package metrics exposes node session counters to Prometheus.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mysnode"

// Metrics holds the node's Prometheus collectors.
type Metrics struct {
	// Inbound messages by route kind (id_response, reboot, config, command, unrouted).
	messagesReceived *prometheus.CounterVec
	// Outbound messages by command (presentation, set, internal).
	messagesPublished *prometheus.CounterVec
	decodeErrors      prometheus.Counter

	identityRequests prometheus.Counter
	identityTimeouts prometheus.Counter
	nodeID           prometheus.Gauge

	configQueries *prometheus.CounterVec // result: ok, timeout
	rebootRequest *prometheus.CounterVec // result: accepted, denied, failed

	sessionState *prometheus.GaugeVec // 1 for the current state, 0 otherwise
	states       []string
}

// New creates the collectors and registers them with reg.
//
// states lists every session state name so the state gauge can be zeroed
// on each transition.
func New(reg prometheus.Registerer, states []string) (*Metrics, error) {
	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_received_total",
			Help:      "Inbound MySensors messages by route kind",
		}, []string{"kind"}),

		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_published_total",
			Help:      "Outbound MySensors messages by command",
		}, []string{"command"}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "decode_errors_total",
			Help:      "Inbound messages whose topic or payload could not be decoded",
		}),

		identityRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "requests_total",
			Help:      "ID requests published to the controller",
		}),

		identityTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "timeouts_total",
			Help:      "Negotiations that ran out of attempts",
		}),

		nodeID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "node_id",
			Help:      "Node id in use (255 while unassigned)",
		}),

		configQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "config_queries_total",
			Help:      "Unit system queries by result",
		}, []string{"result"}),

		rebootRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "reboot_requests_total",
			Help:      "Controller reboot requests by result",
		}, []string{"result"}),

		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (1 = active)",
		}, []string{"state"}),

		states: states,
	}

	for _, c := range []prometheus.Collector{
		m.messagesReceived,
		m.messagesPublished,
		m.decodeErrors,
		m.identityRequests,
		m.identityTimeouts,
		m.nodeID,
		m.configQueries,
		m.rebootRequest,
		m.sessionState,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	m.nodeID.Set(255)
	return m, nil
}

// MessageReceived counts an inbound message dispatched to kind.
func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(kind).Inc()
}

// MessagePublished counts an outbound message.
func (m *Metrics) MessagePublished(command string) {
	if m == nil {
		return
	}
	m.messagesPublished.WithLabelValues(command).Inc()
}

// DecodeError counts an undecodable inbound message.
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// IdentityRequested counts a published ID request.
func (m *Metrics) IdentityRequested() {
	if m == nil {
		return
	}
	m.identityRequests.Inc()
}

// IdentityTimedOut counts a negotiation that gave up.
func (m *Metrics) IdentityTimedOut() {
	if m == nil {
		return
	}
	m.identityTimeouts.Inc()
}

// SetNodeID records the node id in use.
func (m *Metrics) SetNodeID(id uint8) {
	if m == nil {
		return
	}
	m.nodeID.Set(float64(id))
}

// ConfigQuery counts a unit-system query outcome ("ok" or "timeout").
func (m *Metrics) ConfigQuery(result string) {
	if m == nil {
		return
	}
	m.configQueries.WithLabelValues(result).Inc()
}

// RebootRequest counts a reboot request outcome.
func (m *Metrics) RebootRequest(result string) {
	if m == nil {
		return
	}
	m.rebootRequest.WithLabelValues(result).Inc()
}

// SetState marks state as the current session state.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range m.states {
		m.sessionState.WithLabelValues(s).Set(0)
	}
	m.sessionState.WithLabelValues(state).Set(1)
}
