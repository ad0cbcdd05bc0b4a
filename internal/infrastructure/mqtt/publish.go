package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound messages at 1MB. Capacity state snapshots
// are a few KB; anything larger indicates a serialisation bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends a message to the given topic.
//
// The capacity feed publishes state snapshots retained, so a display board
// that connects between evaluations still receives the current figures
// immediately. Override and threshold notifications go out unretained.
//
// Parameters:
//   - topic: Destination topic (e.g. Topics{}.CapacityState("temple-001"))
//   - payload: Message payload, typically JSON, max 1MB
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker keeps the message for late subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
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
