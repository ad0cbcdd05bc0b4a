package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the given topic pattern.
//
// The capacity feed uses the single-level wildcard to watch every zone's
// occupancy at once: "templegate/occupancy/temple-001/+" delivers each
// zone's count with the zone id in the expanded topic.
//
// The subscription is tracked so it is restored on reconnect, and the
// handler runs wrapped with panic recovery (see wrapHandler). If the
// broker rejects the subscription, tracking is rolled back so a reconnect
// does not retry a subscription that never took.
//
// Parameters:
//   - topic: Topic pattern, may contain + and # wildcards
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback invoked for each message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track before subscribing so a reconnect racing this call still
	// restores the subscription; roll back on failure.
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.untrack(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.untrack(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

func (c *Client) untrack(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of tracked subscriptions. The
// capacity feed subscribes its occupancy and weather topics once at
// startup; the count surfaces in debugging whether restore-on-reconnect
// kept them.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}
