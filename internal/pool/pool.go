package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
)

// DefaultClientIDPrefix prefixes the client identifier of each pooled connection.
const DefaultClientIDPrefix = "dt_client"

// Logger defines the logging interface used by the Pool.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures New.
type Options struct {
	// Address is the broker in "host:port" form.
	Address string

	// Credentials for every pooled connection.
	Credentials mqtt.Credentials

	// Size is the number of connections and of admission permits. Must be >= 1.
	Size int

	// ClientIDPrefix names the connections <prefix>_0 .. <prefix>_<Size-1>.
	// DefaultClientIDPrefix when empty.
	ClientIDPrefix string

	// SettleDelay is passed to each connection (see mqtt.ConnectionOptions).
	SettleDelay time.Duration

	// Dialer builds transports. mqtt.Dial when nil.
	Dialer mqtt.Dialer

	// Logger is optional.
	Logger Logger
}

// Pool is a fixed-size set of outbound connections.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Pool struct {
	connections []*mqtt.Connection
	gate        *semaphore.Weighted

	// next is the rotation cursor, always in [0, len(connections)).
	next   int
	nextMu sync.Mutex

	closed atomic.Bool
}

// New builds Size connections sequentially, each with a distinct client
// identifier. Every connection is given its settle period before the next
// one is dialled, so New blocks for roughly Size × SettleDelay.
//
// Unreachable brokers do not make New fail; the affected connections
// terminate in the background and sends routed to them return errors.
func New(ctx context.Context, opts Options) (*Pool, error) {
	if opts.Size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, opts.Size)
	}
	prefix := opts.ClientIDPrefix
	if prefix == "" {
		prefix = DefaultClientIDPrefix
	}

	var connLogger mqtt.Logger
	if opts.Logger != nil {
		connLogger = opts.Logger
	}

	p := &Pool{
		connections: make([]*mqtt.Connection, 0, opts.Size),
		gate:        semaphore.NewWeighted(int64(opts.Size)),
	}

	for i := 0; i < opts.Size; i++ {
		conn := mqtt.NewConnection(ctx, mqtt.ConnectionOptions{
			Address:     opts.Address,
			Credentials: opts.Credentials,
			ClientID:    fmt.Sprintf("%s_%d", prefix, i),
			Dispatch:    mqtt.DispatchSequential,
			Dialer:      opts.Dialer,
			SettleDelay: opts.SettleDelay,
			Logger:      connLogger,
		})
		p.connections = append(p.connections, conn)
	}

	if opts.Logger != nil {
		opts.Logger.Info("MQTT connection pool ready",
			"broker", opts.Address,
			"size", opts.Size,
			"client_id_prefix", prefix,
		)
	}

	return p, nil
}

// Send publishes payload through the next connection in rotation.
//
// It first acquires an admission permit, blocking while Size sends are
// already in flight or until ctx is done. The permit is released when Send
// returns. Publish errors (both QoS attempts failed) are returned as is.
func (p *Pool) Send(ctx context.Context, topic string, payload []byte) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	if err := p.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for send permit: %w", err)
	}
	defer p.gate.Release(1)

	return p.pick().Publish(ctx, topic, payload)
}

// pick advances the cursor and returns the connection at the old position.
func (p *Pool) pick() *mqtt.Connection {
	p.nextMu.Lock()
	defer p.nextMu.Unlock()

	conn := p.connections[p.next]
	p.next = (p.next + 1) % len(p.connections)
	return conn
}

// Subscribe subscribes the first pooled connection to topic. Messages are
// delivered to callbacks added with AddCallback.
func (p *Pool) Subscribe(ctx context.Context, topic string, qos byte) error {
	return p.connections[0].Subscribe(ctx, topic, qos)
}

// AddCallback attaches a callback to the first pooled connection, the one
// used by Subscribe.
func (p *Pool) AddCallback(cb mqtt.MessageHandler) {
	p.connections[0].AddCallback(cb)
}

// Size returns the number of pooled connections.
func (p *Pool) Size() int {
	return len(p.connections)
}

// Connection returns the i-th pooled connection.
func (p *Pool) Connection(i int) *mqtt.Connection {
	return p.connections[i]
}

// Alive returns the number of connections whose poller is still running.
func (p *Pool) Alive() int {
	n := 0
	for _, c := range p.connections {
		if c.Alive() {
			n++
		}
	}
	return n
}

// Close disconnects every pooled connection. Later sends return ErrPoolClosed.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, c := range p.connections {
		_ = c.Close()
	}
	return nil
}
