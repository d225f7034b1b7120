package mqtt

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
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

// MessageHandler is the callback signature for received messages.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload, guaranteed to be valid UTF-8
//
// Returns:
//   - error: Logged; never stops delivery to other callbacks or later messages
type MessageHandler func(topic string, payload []byte) error

// DispatchMode selects how one inbound message is fanned out to callbacks.
type DispatchMode int

const (
	// DispatchSequential invokes callbacks one after another, in insertion
	// order, on the loop goroutine.
	DispatchSequential DispatchMode = iota

	// DispatchConcurrent invokes every callback on its own goroutine and
	// waits for all of them before polling the next event.
	DispatchConcurrent
)

// ConnectionOptions configures NewConnection.
type ConnectionOptions struct {
	// Address is the broker in "host:port" form.
	Address string

	// Credentials for the broker; empty for anonymous access.
	Credentials Credentials

	// ClientID identifies the client to the broker. DefaultClientID when empty.
	ClientID string

	// Dispatch selects the callback fan-out policy.
	Dispatch DispatchMode

	// Dialer builds the transport. Dial when nil.
	Dialer Dialer

	// SettleDelay is how long NewConnection waits after starting the loop.
	// Zero selects the default (100ms); negative disables the wait.
	SettleDelay time.Duration

	// Logger receives publish, dispatch and loop diagnostics. Optional.
	Logger Logger
}

// Connection owns one transport and the goroutine polling its event loop.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks may be added while messages are being delivered; a message
//     is delivered to the callbacks registered when it was dequeued.
type Connection struct {
	clientID  string
	transport Transport
	loop      EventLoop
	dispatch  DispatchMode
	logger    Logger

	callbacks []MessageHandler
	cbMu      sync.RWMutex

	// sendMu keeps one publish in flight per connection.
	sendMu sync.Mutex

	cancel context.CancelFunc
	closed atomic.Bool
	done   chan struct{}
	err    error
}

// NewConnection dials the broker and starts the background poller.
//
// The call returns after the settle delay whether or not the broker is
// reachable; connect failures terminate the poller and are only logged.
// ctx bounds the settle wait only. The poller runs until its event loop
// errors or Close is called.
func NewConnection(ctx context.Context, opts ConnectionOptions) *Connection {
	dial := opts.Dialer
	if dial == nil {
		dial = Dial
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	transport, loop := dial(opts.Address, opts.Credentials, clientID)

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		clientID:  clientID,
		transport: transport,
		loop:      loop,
		dispatch:  opts.Dispatch,
		logger:    logger,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.run(loopCtx)

	settle(ctx, opts.SettleDelay)
	return c
}

// settle sleeps for the configured settle delay or until ctx is done.
func settle(ctx context.Context, d time.Duration) {
	if d == 0 {
		d = defaultSettleDelay
	}
	if d < 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// run polls the event loop until it fails.
func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	for {
		ev, err := c.loop.Poll(ctx)
		if err != nil {
			if c.closed.Load() {
				c.err = ErrConnectionClosed
				c.logger.Info("MQTT connection closed", "client_id", c.clientID)
				return
			}
			c.err = err
			c.logger.Error("MQTT event loop terminated",
				"client_id", c.clientID,
				"error", err,
			)
			return
		}

		switch ev.Kind {
		case EventPublish:
			c.deliver(ev.Topic, ev.Payload)
		case EventConnected:
			c.logger.Debug("MQTT connected", "client_id", c.clientID)
		}
	}
}

// deliver fans one message out to every registered callback and returns
// once all of them have finished.
func (c *Connection) deliver(topic string, payload []byte) {
	if !utf8.Valid(payload) {
		c.logger.Debug("dropping non-UTF-8 payload", "client_id", c.clientID, "topic", topic)
		return
	}

	c.cbMu.RLock()
	callbacks := slices.Clone(c.callbacks)
	c.cbMu.RUnlock()

	if c.dispatch != DispatchConcurrent {
		for _, cb := range callbacks {
			_ = c.invoke(cb, topic, payload)
		}
		return
	}

	var g errgroup.Group
	for _, cb := range callbacks {
		cb := cb
		g.Go(func() error {
			return c.invoke(cb, topic, payload)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Debug("callback dispatch finished with errors",
			"client_id", c.clientID,
			"topic", topic,
			"first_error", err,
		)
	}
}

// invoke runs one callback with panic recovery.
func (c *Connection) invoke(cb MessageHandler, topic string, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("MQTT callback panic recovered",
				"client_id", c.clientID,
				"topic", topic,
				"panic", r,
			)
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()

	if err = cb(topic, payload); err != nil {
		c.logger.Warn("MQTT callback returned error",
			"client_id", c.clientID,
			"topic", topic,
			"error", err,
		)
	}
	return err
}

// AddCallback appends a callback. Duplicates are allowed and each copy is
// invoked. A nil callback is ignored.
func (c *Connection) AddCallback(cb MessageHandler) {
	if cb == nil {
		return
	}
	c.cbMu.Lock()
	c.callbacks = append(c.callbacks, cb)
	c.cbMu.Unlock()
}

// CallbackCount returns the number of registered callbacks.
func (c *Connection) CallbackCount() int {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	return len(c.callbacks)
}

// ClientID returns the identifier the connection was dialled with.
func (c *Connection) ClientID() string {
	return c.clientID
}

// Done returns a channel closed when the background poller has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Alive reports whether the background poller is still running.
func (c *Connection) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Err returns the error that terminated the poller, or nil while it runs.
func (c *Connection) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close disconnects the transport and waits for the poller to exit.
// It is safe to call more than once.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		<-c.done
		return nil
	}

	c.transport.Disconnect()
	c.cancel()
	<-c.done
	return nil
}
