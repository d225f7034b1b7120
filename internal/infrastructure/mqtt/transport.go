package mqtt

import "context"

// Quality of service levels.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2
)

// maxQoS is the maximum QoS level supported.
const maxQoS = QoSExactlyOnce

// DefaultClientID is used when a caller does not supply a client identifier.
const DefaultClientID = "dt_command_client"

// Credentials holds broker authentication. Empty values mean anonymous.
type Credentials struct {
	Username string
	Password string
}

// EventKind identifies what an EventLoop produced.
type EventKind int

// Event kinds delivered by an EventLoop.
const (
	// EventConnected is emitted once the broker acknowledged the connection.
	EventConnected EventKind = iota + 1

	// EventPublish carries an incoming application message.
	EventPublish
)

// String returns a readable name for logging.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventPublish:
		return "publish"
	default:
		return "unknown"
	}
}

// Event is one item produced by an EventLoop.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
}

// Transport is the outbound half of a broker client.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	// Publish sends payload to topic at the given QoS and waits for the
	// delivery acknowledgement appropriate to that level.
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error

	// Subscribe asks the broker to route topic to this client. Matching
	// messages arrive through the paired EventLoop.
	Subscribe(ctx context.Context, topic string, qos byte) error

	// Disconnect closes the client. The paired EventLoop returns
	// ErrConnectionClosed from then on.
	Disconnect()
}

// EventLoop is the inbound half of a broker client.
type EventLoop interface {
	// Poll blocks until the next event is available. Once Poll returns an
	// error the loop is dead and every later call returns an error too.
	Poll(ctx context.Context) (Event, error)
}

// Dialer builds a client handle and its event loop. It must not block on
// the network: connection failures surface on the first Poll.
type Dialer func(address string, creds Credentials, clientID string) (Transport, EventLoop)
