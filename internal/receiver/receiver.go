package receiver

import (
	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
)

// Receiver is a dedicated subscription endpoint for one topic.
type Receiver struct {
	topic string
	conn  *mqtt.Connection
}

// Topic returns the topic the receiver is subscribed to.
func (r *Receiver) Topic() string {
	return r.topic
}

// AddCallback appends a callback invoked for every message on the topic.
func (r *Receiver) AddCallback(cb mqtt.MessageHandler) {
	r.conn.AddCallback(cb)
}

// Connection returns the receiver's underlying connection.
func (r *Receiver) Connection() *mqtt.Connection {
	return r.conn
}

// Done returns a channel closed once the receiver's poller has exited.
func (r *Receiver) Done() <-chan struct{} {
	return r.conn.Done()
}

// Close disconnects the receiver's connection.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
