package mqtt

import (
	"fmt"
)

// Route registers handler for messages whose topic matches pattern.
//
// Routes are independent of broker subscriptions: a route only fires for
// messages the broker actually sends, and it survives reconnects. Multiple
// routes may match one message; each is invoked.
func (c *Client) Route(pattern string, handler MessageHandler) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	c.client.AddRoute(pattern, c.wrapHandler(handler))
	return nil
}

// Subscribe asks the broker for messages matching pattern at the
// configured QoS. Delivery goes through routes and the default handler.
//
// The subscription is restored automatically after a reconnect.
func (c *Client) Subscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if c.qos > maxQoS {
		return ErrInvalidQoS
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[pattern] = c.qos
	c.subMu.Unlock()

	token := c.client.Subscribe(pattern, c.qos, nil)
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(pattern)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(pattern)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe cancels a broker subscription made with Subscribe.
//
// Messages already in flight may still be delivered.
func (c *Client) Unsubscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidTopic
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(pattern)

	token := c.client.Unsubscribe(pattern)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

func (c *Client) forget(pattern string) {
	c.subMu.Lock()
	delete(c.subscriptions, pattern)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether pattern is currently subscribed.
// This is an exact string comparison, not wildcard matching.
func (c *Client) HasSubscription(pattern string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[pattern]
	return exists
}
