package node

import (
	"errors"
	"sync"

	"github.com/nerrad567/mysnode/internal/infrastructure/logging"
	"github.com/nerrad567/mysnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/mysnode/internal/metrics"
	"github.com/nerrad567/mysnode/internal/mysensors"
)

// RouteKind identifies which internal command a route handles.
type RouteKind int

// Route kinds.
const (
	RouteIDResponse RouteKind = iota
	RouteReboot
	RouteConfig
	RouteCommand
)

var routeKindNames = map[RouteKind]string{
	RouteIDResponse: "id_response",
	RouteReboot:     "reboot",
	RouteConfig:     "config",
	RouteCommand:    "command",
}

// String returns the snake_case name used in logs and metrics.
func (k RouteKind) String() string {
	if name, ok := routeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// unroutedKind labels messages that reached the default handler.
const unroutedKind = "unrouted"

// Handler processes one decoded inbound message.
type Handler func(msg mysensors.Message) error

type route struct {
	kind    RouteKind
	handler Handler
}

// Dispatcher maps topic filters to typed handlers on top of the transport.
//
// Every routed message is decoded with mysensors.ParseTopic before its
// handler runs. Decode and handler failures are logged here and never
// propagate back into the transport.
type Dispatcher struct {
	transport Transport
	logger    *logging.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	routes map[string]route
}

// NewDispatcher installs the default handler on transport and returns a
// dispatcher with no routes.
func NewDispatcher(transport Transport, logger *logging.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		logger:    logger,
		metrics:   m,
		routes:    make(map[string]route),
	}
	transport.SetDefaultHandler(d.handleDefault)
	return d
}

// Register routes messages matching pattern to handler.
//
// Registering a pattern again replaces its handler; the transport route is
// only installed once.
func (d *Dispatcher) Register(pattern string, kind RouteKind, handler Handler) error {
	d.mu.Lock()
	_, exists := d.routes[pattern]
	d.routes[pattern] = route{kind: kind, handler: handler}
	d.mu.Unlock()

	if exists {
		return nil
	}

	if err := d.transport.Route(pattern, func(msg mqtt.Message) error {
		d.dispatch(pattern, msg)
		return nil
	}); err != nil {
		d.mu.Lock()
		delete(d.routes, pattern)
		d.mu.Unlock()
		return err
	}

	d.logger.Debug("route registered", "pattern", pattern, "kind", kind.String())
	return nil
}

// Routes returns a copy of the registered pattern table.
func (d *Dispatcher) Routes() map[string]RouteKind {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]RouteKind, len(d.routes))
	for pattern, r := range d.routes {
		out[pattern] = r.kind
	}
	return out
}

func (d *Dispatcher) dispatch(pattern string, raw mqtt.Message) {
	d.mu.RLock()
	r, ok := d.routes[pattern]
	d.mu.RUnlock()
	if !ok {
		return
	}

	d.metrics.MessageReceived(r.kind.String())

	topic, err := mysensors.ParseTopic(raw.Topic)
	if err != nil {
		d.metrics.DecodeError()
		d.logger.Warn("dropping undecodable message",
			"kind", r.kind.String(),
			"topic", raw.Topic,
			"error", err,
		)
		return
	}

	err = r.handler(mysensors.Message{
		Topic:   topic,
		Payload: raw.Payload,
		QoS:     raw.QoS,
	})
	switch {
	case err == nil:
	case errors.Is(err, mysensors.ErrProtocolDecode):
		d.metrics.DecodeError()
		d.logger.Warn("dropping malformed message",
			"kind", r.kind.String(),
			"topic", raw.Topic,
			"payload", string(raw.Payload),
			"error", err,
		)
	default:
		d.logger.Warn("handler failed",
			"kind", r.kind.String(),
			"topic", raw.Topic,
			"error", err,
		)
	}
}

// handleDefault logs messages no route claimed.
func (d *Dispatcher) handleDefault(msg mqtt.Message) error {
	d.metrics.MessageReceived(unroutedKind)
	d.logger.Info("received message without handler",
		"topic", msg.Topic,
		"payload", string(msg.Payload),
		"qos", msg.QoS,
	)
	return nil
}
