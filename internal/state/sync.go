package state

import (
	"fmt"
)

// SyncHandler returns the callback that keeps store in step with the state
// topic. Payloads are decoded with Decode and applied; a payload matching
// no known shape is logged and dropped and its error returned to the
// connection, which logs it too.
//
// The returned function has the mqtt.MessageHandler signature.
func SyncHandler(store *Store, logger Logger) func(topic string, payload []byte) error {
	if logger == nil {
		logger = noopLogger{}
	}

	return func(topic string, payload []byte) error {
		msg, err := Decode(payload)
		if err != nil {
			logger.Error("state message decode failed",
				"topic", topic,
				"payload", string(payload),
				"error", err,
			)
			return fmt.Errorf("decoding state message on %q: %w", topic, err)
		}

		if err := store.Apply(msg); err != nil {
			return err
		}

		logger.Debug("state message applied", "topic", topic, "kind", msg.Kind())
		return nil
	}
}
