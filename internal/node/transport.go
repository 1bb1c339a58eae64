package node

import (
	"context"

	"github.com/nerrad567/mysnode/internal/infrastructure/mqtt"
)

// Transport is the broker connection the session drives.
// *mqtt.Client satisfies it.
type Transport interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Publish(topic string, payload []byte) error
	Subscribe(pattern string) error
	Unsubscribe(pattern string) error
	Route(pattern string, handler mqtt.MessageHandler) error
	SetDefaultHandler(handler mqtt.MessageHandler)
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	Close() error
}

// HostControl performs host-level actions on behalf of the controller.
type HostControl interface {
	Reboot(ctx context.Context) error
}

// Recorder mirrors outbound readings somewhere durable.
type Recorder interface {
	WriteReading(nodeID, sensorID uint8, valueType string, value float64)
}
