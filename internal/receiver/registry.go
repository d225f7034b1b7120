package receiver

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
)

// DefaultClientIDPrefix prefixes each receiver's generated client identifier.
const DefaultClientIDPrefix = "dt_receiver"

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures NewRegistry.
type Options struct {
	// Dialer builds transports. mqtt.Dial when nil.
	Dialer mqtt.Dialer

	// ClientIDPrefix is followed by "_<uuid>". DefaultClientIDPrefix when empty.
	ClientIDPrefix string

	// SettleDelay is passed to each connection (see mqtt.ConnectionOptions).
	SettleDelay time.Duration

	// Logger is optional.
	Logger Logger
}

// Registry maps topic names to their Receivers.
//
// All public methods are thread-safe. The topic map lock is never held
// while dialling or subscribing.
type Registry struct {
	receivers map[string]*Receiver
	mu        sync.Mutex

	dialer mqtt.Dialer
	prefix string
	settle time.Duration
	logger Logger
	newID  func() string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	prefix := opts.ClientIDPrefix
	if prefix == "" {
		prefix = DefaultClientIDPrefix
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Registry{
		receivers: make(map[string]*Receiver),
		dialer:    opts.Dialer,
		prefix:    prefix,
		settle:    opts.SettleDelay,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Register creates a dedicated connection, subscribes it to topic at QoS 2
// and stores it under topic, replacing any previous receiver.
//
// A subscribe failure is logged and returned, but the receiver is still
// registered and returned: it stays in the registry and will simply never
// receive anything.
//
// Parameters:
//   - ctx: Bounds the connection settle period and the SUBACK wait
//   - topic: Topic filter to subscribe to
//   - address: Broker in "host:port" form
//   - creds: Broker credentials
func (r *Registry) Register(ctx context.Context, topic, address string, creds mqtt.Credentials) (*Receiver, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	conn := mqtt.NewConnection(ctx, mqtt.ConnectionOptions{
		Address:     address,
		Credentials: creds,
		ClientID:    fmt.Sprintf("%s_%s", r.prefix, r.newID()),
		Dispatch:    mqtt.DispatchConcurrent,
		Dialer:      r.dialer,
		SettleDelay: r.settle,
		Logger:      r.logger,
	})
	rcv := &Receiver{topic: topic, conn: conn}

	subErr := conn.Subscribe(ctx, topic, mqtt.QoSExactlyOnce)

	r.mu.Lock()
	previous, replaced := r.receivers[topic]
	r.receivers[topic] = rcv
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("receiver replaced, previous connection left running",
			"topic", topic,
			"previous_client_id", previous.conn.ClientID(),
			"client_id", conn.ClientID(),
		)
	}

	if subErr != nil {
		return rcv, fmt.Errorf("registering receiver for %q: %w", topic, subErr)
	}

	r.logger.Info("receiver registered",
		"topic", topic,
		"client_id", conn.ClientID(),
	)
	return rcv, nil
}

// AddCallback appends cb to the receiver registered for topic.
func (r *Registry) AddCallback(topic string, cb mqtt.MessageHandler) error {
	rcv, ok := r.Get(topic)
	if !ok {
		return fmt.Errorf("%w: %q", ErrReceiverNotFound, topic)
	}
	rcv.AddCallback(cb)
	return nil
}

// Get returns the receiver registered for topic.
func (r *Registry) Get(topic string) (*Receiver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rcv, ok := r.receivers[topic]
	return rcv, ok
}

// Topics returns the registered topics in sorted order.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	topics := make([]string, 0, len(r.receivers))
	for topic := range r.receivers {
		topics = append(topics, topic)
	}
	r.mu.Unlock()

	slices.Sort(topics)
	return topics
}

// Len returns the number of registered receivers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.receivers)
}

// Close closes every registered receiver and empties the registry.
// Receivers that were replaced earlier are not reachable and not closed.
func (r *Registry) Close() error {
	r.mu.Lock()
	receivers := r.receivers
	r.receivers = make(map[string]*Receiver)
	r.mu.Unlock()

	for _, rcv := range receivers {
		_ = rcv.Close()
	}
	return nil
}
