package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/mysnode/internal/hostctl"
	"github.com/nerrad567/mysnode/internal/identity"
	"github.com/nerrad567/mysnode/internal/infrastructure/logging"
	"github.com/nerrad567/mysnode/internal/metrics"
	"github.com/nerrad567/mysnode/internal/mysensors"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

// Session states.
const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingIdentity
	StatePresenting
	StateReady
	StateFailed
)

var sessionStateNames = []string{
	StateDisconnected:     "disconnected",
	StateConnecting:       "connecting",
	StateAwaitingIdentity: "awaiting_identity",
	StatePresenting:       "presenting",
	StateReady:            "ready",
	StateFailed:           "failed",
}

// String returns the state name used in logs and metrics.
func (s SessionState) String() string {
	if s >= 0 && int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return fmt.Sprintf("state_%d", int(s))
}

// StateNames lists every session state name, for metrics.New.
func StateNames() []string {
	out := make([]string, len(sessionStateNames))
	copy(out, sessionStateNames)
	return out
}

// Defaults applied by NewSession to zero Options fields.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultConfigTimeout  = 5 * time.Second
	DefaultMaxAttempts    = 3
)

// batteryLevel is reported after presentation. The node is mains powered.
const batteryLevel = "100"

// Options configures a Session. Transport and Store are required.
type Options struct {
	Transport   Transport
	Store       identity.Store
	HostControl HostControl // nil ignores reboot requests
	Recorder    Recorder    // nil disables the reading mirror

	Topics        mysensors.Topics
	SketchName    string
	SketchVersion string

	Logger  *logging.Logger
	Metrics *metrics.Metrics

	RequestTimeout time.Duration
	ConfigTimeout  time.Duration
	MaxAttempts    int
}

// Sensor is a child sensor presented to the controller.
type Sensor struct {
	ID    uint8
	Type  mysensors.SensorType
	Value mysensors.ValueType
}

// Request is a set or req command sent by the controller to one of this
// node's sensors.
type Request struct {
	SensorID uint8
	Command  mysensors.Command
	Value    mysensors.ValueType
	Ack      bool
	Payload  string
}

// CommandHandler receives controller commands. A returned error is logged.
type CommandHandler func(req Request) error

// configurationReply is the controller's answer to a config query.
type configurationReply struct {
	received bool
	unit     mysensors.UnitSystem
	done     chan struct{} // closed on the first reply after a query
}

// Session runs one MySensors node over a Transport.
//
// Connect drives the node from Disconnected through identity negotiation
// and presentation to Ready. Public methods are called from the
// application goroutine; inbound messages are handled on the transport's
// delivery goroutines. All shared state is guarded by mutexes.
type Session struct {
	transport  Transport
	host       HostControl
	recorder   Recorder
	topics     mysensors.Topics
	logger     *logging.Logger
	metrics    *metrics.Metrics
	dispatcher *Dispatcher
	negotiator *Negotiator

	sketchName    string
	sketchVersion string
	configTimeout time.Duration
	attempts      int

	mu            sync.Mutex
	state         SessionState
	everReady     bool
	closed        bool
	sensors       []Sensor
	sensorIndex   map[uint8]int
	onCommand     CommandHandler
	onStateChange func(from, to SessionState)
	scope         string // node scope currently subscribed

	replyMu sync.Mutex
	reply   configurationReply

	// presentMu serialises presentation between Connect and reconnects.
	presentMu sync.Mutex
}

// NewSession validates opts and wires the session to its transport.
// It does not connect.
func NewSession(opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, errors.New("node: transport is required")
	}
	if opts.Store == nil {
		return nil, errors.New("node: identity store is required")
	}
	if opts.Topics == (mysensors.Topics{}) {
		opts.Topics = mysensors.DefaultTopics()
	}
	if err := opts.Topics.Validate(); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ConfigTimeout <= 0 {
		opts.ConfigTimeout = DefaultConfigTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	s := &Session{
		transport:     opts.Transport,
		host:          opts.HostControl,
		recorder:      opts.Recorder,
		topics:        opts.Topics,
		logger:        opts.Logger.Component("session"),
		metrics:       opts.Metrics,
		sketchName:    opts.SketchName,
		sketchVersion: opts.SketchVersion,
		configTimeout: opts.ConfigTimeout,
		attempts:      opts.MaxAttempts,
		state:         StateDisconnected,
		sensorIndex:   make(map[uint8]int),
	}

	s.dispatcher = NewDispatcher(opts.Transport, opts.Logger.Component("dispatcher"), opts.Metrics)
	s.negotiator = NewNegotiator(NegotiatorConfig{
		Transport:  opts.Transport,
		Dispatcher: s.dispatcher,
		Store:      opts.Store,
		Topics:     opts.Topics,
		Logger:     opts.Logger.Component("identity"),
		Metrics:    opts.Metrics,
		Timeout:    opts.RequestTimeout,
		Attempts:   opts.MaxAttempts,
	})

	opts.Transport.SetOnDisconnect(s.handleDisconnect)
	opts.Transport.SetOnConnect(s.handleReconnect)
	s.metrics.SetState(StateDisconnected.String())

	return s, nil
}

// RegisterSensor adds a sensor to the presentation sequence.
//
// Sensors are presented in registration order. Registration is closed once
// the session has started presenting.
func (s *Session) RegisterSensor(id uint8, sensorType mysensors.SensorType, valueType mysensors.ValueType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.everReady || s.state == StatePresenting || s.state == StateReady {
		return fmt.Errorf("%w: cannot register sensor %d while %s", ErrInvalidState, id, s.state)
	}
	if _, ok := s.sensorIndex[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateSensor, id)
	}

	s.sensorIndex[id] = len(s.sensors)
	s.sensors = append(s.sensors, Sensor{ID: id, Type: sensorType, Value: valueType})
	return nil
}

// OnCommand sets the handler for set and req commands addressed to this
// node. It must be called before the session is Ready.
func (s *Session) OnCommand(handler CommandHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.everReady || s.state == StateReady {
		return fmt.Errorf("%w: command handler set while %s", ErrInvalidState, s.state)
	}
	s.onCommand = handler
	return nil
}

// SetOnStateChange sets a callback invoked after every state transition.
// The callback must not block.
func (s *Session) SetOnStateChange(callback func(from, to SessionState)) {
	s.mu.Lock()
	s.onStateChange = callback
	s.mu.Unlock()
}

// Connect brings the session to Ready.
//
// Errors:
//   - ErrTransportConnect: broker unavailable, state Failed.
//   - ErrIdentityTimeout or ctx expiry while negotiating: state stays
//     AwaitingIdentity and Connect may be called again.
//   - ErrInvalidState: the session is already connecting or connected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateDisconnected, StateFailed, StateAwaitingIdentity:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}
	s.closed = false
	s.mu.Unlock()

	s.setState(StateConnecting)

	if !s.transport.IsConnected() {
		if err := s.transport.Connect(ctx); err != nil {
			s.setState(StateFailed)
			return fmt.Errorf("%w: %w", ErrTransportConnect, err)
		}
	}

	s.setState(StateAwaitingIdentity)

	nodeID, err := s.negotiator.Negotiate(ctx)
	if err != nil {
		if errors.Is(err, ErrIdentityTimeout) || ctx.Err() != nil {
			return err
		}
		s.setState(StateFailed)
		return err
	}

	if err := s.subscribeNode(nodeID); err != nil {
		s.setState(StateFailed)
		return err
	}

	if err := s.presentAndReady(nodeID); err != nil {
		s.setState(StateFailed)
		return err
	}

	return nil
}

// subscribeNode installs the steady-state routes and subscribes the node
// scope for nodeID.
func (s *Session) subscribeNode(nodeID uint8) error {
	routes := []struct {
		pattern string
		kind    RouteKind
		handler Handler
	}{
		{
			pattern: s.topics.Inbound(nodeID, 0, mysensors.CommandInternal, uint8(mysensors.InternalReboot), false).
				Filter(mysensors.FieldSensor, mysensors.FieldAck),
			kind:    RouteReboot,
			handler: s.handleReboot,
		},
		{
			pattern: s.topics.Inbound(nodeID, 0, mysensors.CommandInternal, uint8(mysensors.InternalConfig), false).
				Filter(mysensors.FieldSensor, mysensors.FieldAck),
			kind:    RouteConfig,
			handler: s.handleConfig,
		},
		{
			pattern: s.topics.Inbound(nodeID, 0, mysensors.CommandSet, 0, false).
				Filter(mysensors.FieldSensor, mysensors.FieldAck, mysensors.FieldType),
			kind:    RouteCommand,
			handler: s.handleCommand,
		},
		{
			pattern: s.topics.Inbound(nodeID, 0, mysensors.CommandReq, 0, false).
				Filter(mysensors.FieldSensor, mysensors.FieldAck, mysensors.FieldType),
			kind:    RouteCommand,
			handler: s.handleCommand,
		},
	}

	for _, r := range routes {
		if err := s.dispatcher.Register(r.pattern, r.kind, r.handler); err != nil {
			return fmt.Errorf("registering %s route: %w", r.kind, err)
		}
	}

	scope := s.topics.NodeScope(nodeID)

	s.mu.Lock()
	previous := s.scope
	s.mu.Unlock()

	if previous != "" && previous != scope {
		if err := s.transport.Unsubscribe(previous); err != nil {
			s.logger.Warn("failed to drop previous node scope", "scope", previous, "error", err)
		}
	}
	if err := s.transport.Subscribe(scope); err != nil {
		return fmt.Errorf("subscribing to node scope: %w", err)
	}

	s.mu.Lock()
	s.scope = scope
	s.mu.Unlock()
	return nil
}

// presentAndReady publishes the presentation sequence and marks the
// session Ready.
func (s *Session) presentAndReady(nodeID uint8) error {
	s.presentMu.Lock()
	defer s.presentMu.Unlock()

	s.setState(StatePresenting)
	if err := s.present(nodeID); err != nil {
		return err
	}

	s.mu.Lock()
	s.everReady = true
	s.mu.Unlock()
	s.setState(StateReady)

	s.logger.Info("node ready", "node_id", nodeID, "sensors", len(s.Sensors()))
	return nil
}

// present publishes sketch name, sketch version, every sensor and the
// battery level.
func (s *Session) present(nodeID uint8) error {
	internal := func(typ mysensors.InternalType) mysensors.Topic {
		return s.topics.Outbound(nodeID, mysensors.NodeChildID, mysensors.CommandInternal, uint8(typ), false)
	}

	if err := s.publish(internal(mysensors.InternalSketchName), s.sketchName); err != nil {
		return err
	}
	if err := s.publish(internal(mysensors.InternalSketchVersion), s.sketchVersion); err != nil {
		return err
	}

	for _, sensor := range s.Sensors() {
		topic := s.topics.Outbound(nodeID, sensor.ID, mysensors.CommandPresentation, uint8(sensor.Type), false)
		if err := s.publish(topic, ""); err != nil {
			return err
		}
	}

	return s.publish(internal(mysensors.InternalBatteryLevel), batteryLevel)
}

// QueryUnitSystem asks the controller for its unit system.
//
// Each query waits up to the configured config timeout and is re-sent up to
// the configured number of attempts before ErrConfigTimeout is returned.
func (s *Session) QueryUnitSystem(ctx context.Context) (mysensors.UnitSystem, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateReady {
		return mysensors.Metric, fmt.Errorf("%w: config query while %s", ErrInvalidState, state)
	}

	done := make(chan struct{})
	s.replyMu.Lock()
	s.reply = configurationReply{done: done}
	s.replyMu.Unlock()

	query := s.topics.Outbound(s.NodeID(), mysensors.NodeChildID,
		mysensors.CommandInternal, uint8(mysensors.InternalConfig), false)

	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := s.publish(query, ""); err != nil {
			return mysensors.Metric, err
		}

		timer := time.NewTimer(s.configTimeout)
		select {
		case <-done:
			timer.Stop()
			s.replyMu.Lock()
			unit := s.reply.unit
			s.replyMu.Unlock()
			s.metrics.ConfigQuery("ok")
			return unit, nil
		case <-ctx.Done():
			timer.Stop()
			return mysensors.Metric, fmt.Errorf("waiting for config reply: %w", ctx.Err())
		case <-timer.C:
			s.logger.Warn("no config reply from controller", "attempt", attempt)
		}
	}

	s.metrics.ConfigQuery("timeout")
	return mysensors.Metric, fmt.Errorf("%w after %d attempts", ErrConfigTimeout, s.attempts)
}

// SendDebug publishes a log message for sensorID.
func (s *Session) SendDebug(sensorID uint8, text string) error {
	nodeID, _, err := s.target(sensorID)
	if err != nil {
		return err
	}
	topic := s.topics.Outbound(nodeID, sensorID, mysensors.CommandInternal, uint8(mysensors.InternalLogMessage), false)
	return s.publish(topic, text)
}

// SendFloat publishes a reading with six fractional digits.
func (s *Session) SendFloat(sensorID uint8, value float64) error {
	nodeID, sensor, err := s.target(sensorID)
	if err != nil {
		return err
	}
	topic := s.topics.Outbound(nodeID, sensorID, mysensors.CommandSet, uint8(sensor.Value), false)
	if err := s.publish(topic, mysensors.FormatFloat(value)); err != nil {
		return err
	}
	s.record(nodeID, sensor, value)
	return nil
}

// SendInt publishes an integer reading.
func (s *Session) SendInt(sensorID uint8, value int64) error {
	nodeID, sensor, err := s.target(sensorID)
	if err != nil {
		return err
	}
	topic := s.topics.Outbound(nodeID, sensorID, mysensors.CommandSet, uint8(sensor.Value), false)
	if err := s.publish(topic, mysensors.FormatInt(value)); err != nil {
		return err
	}
	s.record(nodeID, sensor, float64(value))
	return nil
}

// target resolves sensorID for an outbound data message.
func (s *Session) target(sensorID uint8) (uint8, Sensor, error) {
	s.mu.Lock()
	idx, ok := s.sensorIndex[sensorID]
	var sensor Sensor
	if ok {
		sensor = s.sensors[idx]
	}
	state := s.state
	s.mu.Unlock()

	if !ok {
		return 0, Sensor{}, fmt.Errorf("%w: %d", ErrUnknownSensor, sensorID)
	}
	if state != StateReady {
		return 0, Sensor{}, fmt.Errorf("%w: send while %s", ErrInvalidState, state)
	}
	return s.NodeID(), sensor, nil
}

func (s *Session) record(nodeID uint8, sensor Sensor, value float64) {
	if s.recorder == nil {
		return
	}
	s.recorder.WriteReading(nodeID, sensor.ID, sensor.Value.String(), value)
}

func (s *Session) publish(topic mysensors.Topic, payload string) error {
	if err := s.transport.Publish(topic.String(), []byte(payload)); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	s.metrics.MessagePublished(strings.ToLower(strings.TrimPrefix(topic.Command.String(), "C_")))
	return nil
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NodeID returns the assigned node id, or 255 before assignment.
func (s *Session) NodeID() uint8 {
	return s.negotiator.NodeID()
}

// IdentityState returns the state of node id negotiation.
func (s *Session) IdentityState() IdentityState {
	return s.negotiator.State()
}

// Sensors returns the registered sensors in presentation order.
func (s *Session) Sensors() []Sensor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sensor, len(s.sensors))
	copy(out, s.sensors)
	return out
}

// Routes returns the dispatcher's pattern table.
func (s *Session) Routes() map[string]RouteKind {
	return s.dispatcher.Routes()
}

// ResetIdentity forgets the persisted node id. Only allowed while the
// session is not connected.
func (s *Session) ResetIdentity(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateDisconnected && state != StateFailed {
		return fmt.Errorf("%w: reset identity while %s", ErrInvalidState, state)
	}
	return s.negotiator.Reset(ctx)
}

// Close disconnects the transport. The session may be connected again.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.transport.Close()
	s.setState(StateDisconnected)
	return err
}

func (s *Session) setState(next SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	callback := s.onStateChange
	s.mu.Unlock()

	if prev == next {
		return
	}

	s.metrics.SetState(next.String())
	s.logger.Debug("session state changed", "from", prev.String(), "to", next.String())
	if callback != nil {
		callback(prev, next)
	}
}

// handleDisconnect is called by the transport when the broker link drops.
func (s *Session) handleDisconnect(err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	s.logger.Warn("transport disconnected", "error", err)
	s.setState(StateDisconnected)
}

// handleReconnect re-presents the node after the transport reconnected on
// its own. Initial connects are driven by Connect and ignored here.
func (s *Session) handleReconnect() {
	s.mu.Lock()
	resume := s.everReady && !s.closed && s.state == StateDisconnected
	s.mu.Unlock()
	if !resume {
		return
	}

	nodeID := s.NodeID()
	s.logger.Info("transport reconnected, presenting again", "node_id", nodeID)
	if err := s.presentAndReady(nodeID); err != nil {
		s.logger.Error("re-presentation failed", "error", err)
		s.setState(StateDisconnected)
	}
}

// handleReboot passes a controller reboot request to the host.
func (s *Session) handleReboot(msg mysensors.Message) error {
	if s.host == nil {
		s.metrics.RebootRequest("denied")
		s.logger.Warn("reboot requested but host control is not configured", "topic", msg.Topic.String())
		return nil
	}

	err := s.host.Reboot(context.Background())
	switch {
	case err == nil:
		s.metrics.RebootRequest("accepted")
		s.logger.Warn("rebooting host on controller request", "topic", msg.Topic.String())
		return nil
	case errors.Is(err, hostctl.ErrRebootDenied):
		s.metrics.RebootRequest("denied")
		s.logger.Info("reboot request denied", "reason", err)
		return nil
	default:
		s.metrics.RebootRequest("failed")
		return fmt.Errorf("rebooting host: %w", err)
	}
}

// handleConfig records the controller's unit system and releases a
// waiting QueryUnitSystem.
func (s *Session) handleConfig(msg mysensors.Message) error {
	unit := mysensors.ParseUnitSystem(msg.Payload)

	s.replyMu.Lock()
	defer s.replyMu.Unlock()

	s.reply.unit = unit
	if !s.reply.received {
		s.reply.received = true
		if s.reply.done != nil {
			close(s.reply.done)
		}
	}
	s.logger.Debug("config reply", "unit_system", unit.String())
	return nil
}

// handleCommand forwards set and req commands to the application.
func (s *Session) handleCommand(msg mysensors.Message) error {
	s.mu.Lock()
	handler := s.onCommand
	s.mu.Unlock()

	if handler == nil {
		s.logger.Debug("no command handler, dropping", "topic", msg.Topic.String())
		return nil
	}

	return handler(Request{
		SensorID: msg.Topic.SensorID,
		Command:  msg.Topic.Command,
		Value:    mysensors.ValueType(msg.Topic.Type),
		Ack:      msg.Topic.Ack,
		Payload:  string(msg.Payload),
	})
}
