package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Delivery is first attempted at QoS 1 (at least once). If that fails the
// same payload is sent once more at QoS 0 (at most once); if the fallback
// fails too its error is returned, wrapped in ErrPublishFailed. There are
// no further retries.
//
// Publishes on one Connection are serialised. Messages are never retained.
//
// Parameters:
//   - ctx: Bounds both attempts
//   - topic: Concrete topic to publish to (no wildcards)
//   - payload: Message payload (max 1MB)
//
// Example:
//
//	err := conn.Publish(ctx, "node/1/cmd", []byte(`{"op":"stop","op_value":{}}`))
func (c *Connection) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	err := c.transport.Publish(ctx, topic, QoSAtLeastOnce, payload)
	if err == nil {
		c.logger.Debug("MQTT publish succeeded",
			"client_id", c.clientID,
			"topic", topic,
			"qos", QoSAtLeastOnce,
		)
		return nil
	}

	c.logger.Warn("MQTT at-least-once publish failed, falling back to at-most-once",
		"client_id", c.clientID,
		"topic", topic,
		"error", err,
	)

	fallbackErr := c.transport.Publish(ctx, topic, QoSAtMostOnce, payload)
	if fallbackErr == nil {
		c.logger.Debug("MQTT publish succeeded",
			"client_id", c.clientID,
			"topic", topic,
			"qos", QoSAtMostOnce,
		)
		return nil
	}

	c.logger.Error("MQTT at-most-once publish failed",
		"client_id", c.clientID,
		"topic", topic,
		"error", fallbackErr,
	)
	return fmt.Errorf("%w: %w", ErrPublishFailed, fallbackErr)
}

// PublishString is a convenience method that publishes a string payload.
//
// This is equivalent to calling Publish with []byte(payload).
func (c *Connection) PublishString(ctx context.Context, topic string, payload string) error {
	return c.Publish(ctx, topic, []byte(payload))
}
