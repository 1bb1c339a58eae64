package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads. MySensors payloads are tiny; this
// only guards against accidental misuse.
const maxPayloadSize = 1 << 20

// Publish sends a non-retained message at the configured QoS.
//
// Example:
//
//	err := client.Publish("mys-in/12/1/1/0/0", []byte("21.500000"))
func (c *Client) Publish(topic string, payload []byte) error {
	return c.publish(topic, payload, c.qos, false)
}

func (c *Client) publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
