package mqtt

import (
	"context"
	"fmt"
)

// Subscribe asks the broker to deliver messages matching topic to this
// connection's callbacks.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "node/+/state" matches any node
//   - # (multi-level): "node/#" matches everything below node/
//
// Failures are logged and returned; they are not retried. A failed
// subscription does not stop the connection's poller.
//
// Parameters:
//   - ctx: Bounds the wait for the broker's SUBACK
//   - topic: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
func (c *Connection) Subscribe(ctx context.Context, topic string, qos byte) error {
	if err := ValidateSubscribeTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if err := c.transport.Subscribe(ctx, topic, qos); err != nil {
		c.logger.Error("MQTT subscribe failed",
			"client_id", c.clientID,
			"topic", topic,
			"qos", qos,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.logger.Debug("MQTT subscribed",
		"client_id", c.clientID,
		"topic", topic,
		"qos", qos,
	)
	return nil
}
