package node

import (
	"context"
	"strings"
	"sync"

	"github.com/nerrad567/mysnode/internal/identity"
	"github.com/nerrad567/mysnode/internal/infrastructure/mqtt"
)

// MockTransport implements Transport for testing.
//
// Messages passed to SimulateMessage are only delivered when a
// subscription matches, like a real broker.
type MockTransport struct {
	mu             sync.Mutex
	connected      bool
	connectErr     error
	connectCalls   int
	published      []mockPublish
	subscriptions  map[string]bool
	subscribeLog   []string
	unsubscribeLog []string
	routes         map[string]mqtt.MessageHandler
	defaultHandler mqtt.MessageHandler
	onConnect      func()
	onDisconnect   func(err error)

	// onPublish runs after a publish is recorded, outside the lock. Tests
	// use it to play the controller.
	onPublish func(topic string, payload []byte)
}

type mockPublish struct {
	Topic   string
	Payload string
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		subscriptions: make(map[string]bool),
		routes:        make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockTransport) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connectCalls++
	if m.connectErr != nil {
		err := m.connectErr
		m.mu.Unlock()
		return err
	}
	m.connected = true
	callback := m.onConnect
	m.mu.Unlock()

	if callback != nil {
		callback()
	}
	return nil
}

func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockTransport) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: string(payload)})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (m *MockTransport) Subscribe(pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[pattern] = true
	m.subscribeLog = append(m.subscribeLog, pattern)
	return nil
}

func (m *MockTransport) Unsubscribe(pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, pattern)
	m.unsubscribeLog = append(m.unsubscribeLog, pattern)
	return nil
}

func (m *MockTransport) Route(pattern string, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[pattern] = handler
	return nil
}

func (m *MockTransport) SetDefaultHandler(handler mqtt.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultHandler = handler
}

func (m *MockTransport) SetOnConnect(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = callback
}

func (m *MockTransport) SetOnDisconnect(callback func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = callback
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// SetOnPublish installs the controller stand-in.
func (m *MockTransport) SetOnPublish(hook func(topic string, payload []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPublish = hook
}

// SimulateMessage delivers a message to every matching route, or to the
// default handler when none matches. It reports whether the message got
// past the subscription check.
func (m *MockTransport) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	subscribed := false
	for pattern := range m.subscriptions {
		if topicMatches(pattern, topic) {
			subscribed = true
			break
		}
	}
	var handlers []mqtt.MessageHandler
	for pattern, handler := range m.routes {
		if topicMatches(pattern, topic) {
			handlers = append(handlers, handler)
		}
	}
	fallback := m.defaultHandler
	m.mu.Unlock()

	if !subscribed {
		return false
	}

	msg := mqtt.Message{Topic: topic, Payload: payload}
	if len(handlers) == 0 && fallback != nil {
		fallback(msg)
	}
	for _, handler := range handlers {
		handler(msg)
	}
	return true
}

// SimulateDisconnect plays a lost broker connection.
func (m *MockTransport) SimulateDisconnect(err error) {
	m.mu.Lock()
	m.connected = false
	callback := m.onDisconnect
	m.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// SimulateReconnect plays an automatic reconnect.
func (m *MockTransport) SimulateReconnect() {
	m.mu.Lock()
	m.connected = true
	callback := m.onConnect
	m.mu.Unlock()

	if callback != nil {
		callback()
	}
}

func (m *MockTransport) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// PublishedTo returns the payloads published on topic.
func (m *MockTransport) PublishedTo(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

func (m *MockTransport) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

func (m *MockTransport) IsSubscribed(pattern string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[pattern]
}

func (m *MockTransport) SubscribeLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscribeLog...)
}

func (m *MockTransport) UnsubscribeLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribeLog...)
}

// topicMatches applies MQTT filter matching with + and #.
func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, level := range f {
		if level == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// MemoryStore implements identity.Store in memory.
type MemoryStore struct {
	mu      sync.Mutex
	current identity.Identity
	saves   []identity.Identity
	loadErr error
	saveErr error
}

func NewMemoryStore(nodeID uint8) *MemoryStore {
	return &MemoryStore{current: identity.Identity{NodeID: nodeID}}
}

func (s *MemoryStore) Load(ctx context.Context) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return identity.Identity{}, s.loadErr
	}
	return s.current, nil
}

func (s *MemoryStore) Save(ctx context.Context, id identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.current = id
	s.saves = append(s.saves, id)
	return nil
}

func (s *MemoryStore) Saves() []identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.Identity(nil), s.saves...)
}

// MockHost implements HostControl.
type MockHost struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *MockHost) Reboot(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.err
}

func (h *MockHost) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// MockRecorder implements Recorder.
type MockRecorder struct {
	mu       sync.Mutex
	readings []mockReading
}

type mockReading struct {
	NodeID    uint8
	SensorID  uint8
	ValueType string
	Value     float64
}

func (r *MockRecorder) WriteReading(nodeID, sensorID uint8, valueType string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, mockReading{nodeID, sensorID, valueType, value})
}

func (r *MockRecorder) Readings() []mockReading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mockReading(nil), r.readings...)
}
