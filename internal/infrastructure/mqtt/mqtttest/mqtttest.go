// Package mqtttest provides in-memory mqtt.Transport and mqtt.EventLoop
// implementations for tests that must not depend on a running broker.
package mqtttest

import (
	"context"
	"slices"
	"sync"

	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
)

// Publication records one publish attempt.
type Publication struct {
	Topic   string
	QoS     byte
	Payload []byte
	Err     error
}

// Subscription records one subscribe request.
type Subscription struct {
	Topic string
	QoS   byte
}

// Loop is a scriptable mqtt.EventLoop.
type Loop struct {
	events chan mqtt.Event
	done   chan struct{}
	once   sync.Once
	err    error
}

// NewLoop returns a loop with room for buffer undelivered events.
func NewLoop(buffer int) *Loop {
	return &Loop{
		events: make(chan mqtt.Event, buffer),
		done:   make(chan struct{}),
	}
}

// Deliver queues an inbound publish. It blocks while the buffer is full.
func (l *Loop) Deliver(topic string, payload []byte) {
	l.Push(mqtt.Event{Kind: mqtt.EventPublish, Topic: topic, Payload: payload})
}

// Push queues an arbitrary event.
func (l *Loop) Push(ev mqtt.Event) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// Fail makes every later Poll return err once queued events are drained.
func (l *Loop) Fail(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.done)
	})
}

// Poll implements mqtt.EventLoop.
func (l *Loop) Poll(ctx context.Context) (mqtt.Event, error) {
	select {
	case ev := <-l.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-l.events:
		return ev, nil
	case <-l.done:
		return mqtt.Event{}, l.err
	case <-ctx.Done():
		return mqtt.Event{}, ctx.Err()
	}
}

// Transport is a recording mqtt.Transport.
type Transport struct {
	Address     string
	Credentials mqtt.Credentials
	ClientID    string
	Loop        *Loop

	mu            sync.Mutex
	publishFunc   func(topic string, qos byte, payload []byte) error
	subscribeErr  error
	publications  []Publication
	subscriptions []Subscription
	disconnected  bool
}

// NewTransport returns a transport paired with a fresh Loop.
func NewTransport(clientID string) *Transport {
	return &Transport{
		ClientID: clientID,
		Loop:     NewLoop(16),
	}
}

// SetPublishFunc installs a hook deciding the outcome of each publish attempt.
func (t *Transport) SetPublishFunc(fn func(topic string, qos byte, payload []byte) error) {
	t.mu.Lock()
	t.publishFunc = fn
	t.mu.Unlock()
}

// SetSubscribeError makes every subscribe request fail with err.
func (t *Transport) SetSubscribeError(err error) {
	t.mu.Lock()
	t.subscribeErr = err
	t.mu.Unlock()
}

// Publish implements mqtt.Transport.
func (t *Transport) Publish(_ context.Context, topic string, qos byte, payload []byte) error {
	t.mu.Lock()
	fn := t.publishFunc
	t.mu.Unlock()

	var err error
	if fn != nil {
		err = fn(topic, qos, payload)
	}

	t.mu.Lock()
	t.publications = append(t.publications, Publication{
		Topic:   topic,
		QoS:     qos,
		Payload: slices.Clone(payload),
		Err:     err,
	})
	t.mu.Unlock()
	return err
}

// Subscribe implements mqtt.Transport.
func (t *Transport) Subscribe(_ context.Context, topic string, qos byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subscribeErr != nil {
		return t.subscribeErr
	}
	t.subscriptions = append(t.subscriptions, Subscription{Topic: topic, QoS: qos})
	return nil
}

// Disconnect implements mqtt.Transport.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.disconnected = true
	t.mu.Unlock()
	t.Loop.Fail(mqtt.ErrConnectionClosed)
}

// Publications returns every publish attempt so far, failed ones included.
func (t *Transport) Publications() []Publication {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.publications)
}

// Subscriptions returns every successful subscribe request so far.
func (t *Transport) Subscriptions() []Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.subscriptions)
}

// Disconnected reports whether Disconnect was called.
func (t *Transport) Disconnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnected
}

// Dialer hands out Transports and remembers them in dial order.
type Dialer struct {
	// Configure, when set, is applied to each transport before it is returned.
	Configure func(*Transport)

	mu         sync.Mutex
	transports []*Transport
}

// Dial satisfies mqtt.Dialer.
func (d *Dialer) Dial(address string, creds mqtt.Credentials, clientID string) (mqtt.Transport, mqtt.EventLoop) {
	t := NewTransport(clientID)
	t.Address = address
	t.Credentials = creds
	if d.Configure != nil {
		d.Configure(t)
	}

	d.mu.Lock()
	d.transports = append(d.transports, t)
	d.mu.Unlock()
	return t, t.Loop
}

// Transports returns the dialled transports in order.
func (d *Dialer) Transports() []*Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.transports)
}

// Transport returns the most recent transport dialled with clientID, or nil.
func (d *Dialer) Transport(clientID string) *Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.transports) - 1; i >= 0; i-- {
		if d.transports[i].ClientID == clientID {
			return d.transports[i]
		}
	}
	return nil
}
