// Package receiver maps inbound topics to dedicated MQTT connections.
//
// Each Receiver owns one mqtt.Connection subscribed to exactly one topic at
// QoS 2, with its own callback list. Callbacks for a message run
// concurrently and the receiver does not poll its next message until all
// of them have returned.
//
// The Registry is an explicit object, constructed once and handed to every
// consumer; there is no package-level state.
//
// Registering a topic that already has a receiver replaces the registry
// entry. The previous receiver is not closed: its connection keeps running
// until its own poller fails.
package receiver
