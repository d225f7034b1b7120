package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// pahoClient adapts paho.mqtt.golang to the Transport interface.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type pahoClient struct {
	client  pahomqtt.Client
	connect pahomqtt.Token
	loop    *eventLoop
}

// Dial builds a paho client for address and starts connecting in the
// background. It never blocks: a refused or timed-out connect is reported
// as the first error returned by the EventLoop.
//
// Inbound messages for every subscription on the client are routed through
// the paho default publish handler into the returned EventLoop.
//
// Parameters:
//   - address: Broker location in "host:port" form (port defaults to 1883)
//   - creds: Username and password, empty for anonymous access
//   - clientID: Client identifier, DefaultClientID when empty
func Dial(address string, creds Credentials, clientID string) (Transport, EventLoop) {
	opts := buildClientOptions(ParseAddress(address), creds, clientID)
	loop := newEventLoop(eventBuffer)

	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		loop.push(Event{Kind: EventPublish, Topic: msg.Topic(), Payload: msg.Payload()})
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		loop.push(Event{Kind: EventConnected})
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		loop.fail(fmt.Errorf("%w: %w", ErrConnectionClosed, err))
	})

	c := &pahoClient{
		client: pahomqtt.NewClient(opts),
		loop:   loop,
	}
	c.connect = c.client.Connect()

	go func() {
		<-c.connect.Done()
		if err := c.connect.Error(); err != nil {
			loop.fail(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
		}
	}()

	return c, loop
}

// Publish implements Transport.
func (c *pahoClient) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if err := c.awaitConnect(ctx); err != nil {
		return err
	}
	return waitToken(ctx, c.client.Publish(topic, qos, false, payload))
}

// Subscribe implements Transport.
//
// A nil callback routes matching messages to the default publish handler,
// i.e. into the EventLoop.
func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos byte) error {
	if err := c.awaitConnect(ctx); err != nil {
		return err
	}
	return waitToken(ctx, c.client.Subscribe(topic, qos, nil))
}

// Disconnect implements Transport.
func (c *pahoClient) Disconnect() {
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.loop.fail(ErrConnectionClosed)
}

// awaitConnect waits for the pending CONNECT to resolve. Requests issued
// before the CONNACK are held here rather than rejected by paho.
func (c *pahoClient) awaitConnect(ctx context.Context) error {
	select {
	case <-c.connect.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.connect.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// waitToken waits for a paho token, bounded by ctx and defaultOperationTimeout.
func waitToken(ctx context.Context, token pahomqtt.Token) error {
	timer := time.NewTimer(defaultOperationTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: after %v", ErrTimeout, defaultOperationTimeout)
	}
}

// eventLoop is a bounded queue of inbound events terminated by a sticky error.
type eventLoop struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
	err    error
}

func newEventLoop(buffer int) *eventLoop {
	return &eventLoop{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// push queues an event, blocking while the buffer is full. Events offered
// after the loop failed are discarded.
func (l *eventLoop) push(ev Event) {
	select {
	case <-l.done:
		return
	default:
	}

	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// fail terminates the loop. Only the first error is kept.
func (l *eventLoop) fail(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.done)
	})
}

// Poll implements EventLoop. Events queued before a failure are still
// returned, in order, before the error.
func (l *eventLoop) Poll(ctx context.Context) (Event, error) {
	select {
	case ev := <-l.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-l.events:
		return ev, nil
	case <-l.done:
		return Event{}, l.err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
