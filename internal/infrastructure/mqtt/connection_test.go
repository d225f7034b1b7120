package mqtt_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt/mqtttest"
)

// newTestConnection builds a connection on an in-memory transport.
func newTestConnection(t *testing.T, mode mqtt.DispatchMode) (*mqtt.Connection, *mqtttest.Transport) {
	t.Helper()

	dialer := &mqtttest.Dialer{}
	conn := mqtt.NewConnection(context.Background(), mqtt.ConnectionOptions{
		Address:     "127.0.0.1:1883",
		ClientID:    "test-client",
		Dispatch:    mode,
		Dialer:      dialer.Dial,
		SettleDelay: -1,
	})
	return conn, dialer.Transport("test-client")
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish_AtLeastOnceSucceeds(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	if err := conn.Publish(context.Background(), "node/1/cmd", []byte(`{"op":"go"}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	pubs := transport.Publications()
	if len(pubs) != 1 {
		t.Fatalf("publish attempts = %d, want 1", len(pubs))
	}
	if pubs[0].QoS != mqtt.QoSAtLeastOnce {
		t.Errorf("QoS = %d, want %d", pubs[0].QoS, mqtt.QoSAtLeastOnce)
	}
}

func TestPublish_FallsBackToAtMostOnce(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	transport.SetPublishFunc(func(_ string, qos byte, _ []byte) error {
		if qos == mqtt.QoSAtLeastOnce {
			return errors.New("puback lost")
		}
		return nil
	})

	if err := conn.Publish(context.Background(), "node/1/cmd", []byte("x")); err != nil {
		t.Fatalf("Publish() error = %v, want nil after fallback", err)
	}

	pubs := transport.Publications()
	if len(pubs) != 2 {
		t.Fatalf("publish attempts = %d, want 2", len(pubs))
	}
	if pubs[0].QoS != mqtt.QoSAtLeastOnce || pubs[1].QoS != mqtt.QoSAtMostOnce {
		t.Errorf("QoS sequence = %d,%d, want 1,0", pubs[0].QoS, pubs[1].QoS)
	}
	if string(pubs[1].Payload) != "x" {
		t.Errorf("fallback payload = %q, want %q", pubs[1].Payload, "x")
	}
}

func TestPublish_BothAttemptsFailReturnsSecondError(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	first := errors.New("qos1 failed")
	second := errors.New("qos0 failed")
	transport.SetPublishFunc(func(_ string, qos byte, _ []byte) error {
		if qos == mqtt.QoSAtLeastOnce {
			return first
		}
		return second
	})

	err := conn.Publish(context.Background(), "node/1/cmd", []byte("x"))
	if !errors.Is(err, second) {
		t.Errorf("Publish() error = %v, want %v", err, second)
	}
	if errors.Is(err, first) {
		t.Errorf("Publish() error = %v, should not carry the first error", err)
	}
	if !errors.Is(err, mqtt.ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
	if n := len(transport.Publications()); n != 2 {
		t.Errorf("publish attempts = %d, want 2 (no further retries)", n)
	}
}

func TestPublish_InvalidTopic(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	for _, topic := range []string{"", "node/+/cmd"} {
		if err := conn.Publish(context.Background(), topic, nil); !errors.Is(err, mqtt.ErrInvalidTopic) {
			t.Errorf("Publish(%q) error = %v, want ErrInvalidTopic", topic, err)
		}
	}
	if n := len(transport.Publications()); n != 0 {
		t.Errorf("publish attempts = %d, want 0", n)
	}
}

func TestPublish_PayloadTooLarge(t *testing.T) {
	conn, _ := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	err := conn.Publish(context.Background(), "node/1/cmd", make([]byte, 1<<20+1))
	if !errors.Is(err, mqtt.ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublish_SerialisedPerConnection(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	var inFlight, maxInFlight atomic.Int32
	transport.SetPublishFunc(func(string, byte, []byte) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Publish(context.Background(), "node/1/cmd", []byte("x"))
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent publishes = %d, want 1", got)
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribe(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	if err := conn.Subscribe(context.Background(), "server/0", mqtt.QoSExactlyOnce); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	subs := transport.Subscriptions()
	if len(subs) != 1 || subs[0].Topic != "server/0" || subs[0].QoS != mqtt.QoSExactlyOnce {
		t.Errorf("Subscriptions() = %+v, want [{server/0 2}]", subs)
	}
}

func TestSubscribe_Errors(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	if err := conn.Subscribe(context.Background(), "server/0", 3); !errors.Is(err, mqtt.ErrInvalidQoS) {
		t.Errorf("Subscribe(qos=3) error = %v, want ErrInvalidQoS", err)
	}
	if err := conn.Subscribe(context.Background(), "a/#/b", 1); !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("Subscribe(a/#/b) error = %v, want ErrInvalidTopic", err)
	}

	brokerErr := errors.New("not authorised")
	transport.SetSubscribeError(brokerErr)
	err := conn.Subscribe(context.Background(), "server/0", 1)
	if !errors.Is(err, mqtt.ErrSubscribeFailed) || !errors.Is(err, brokerErr) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed wrapping %v", err, brokerErr)
	}
	if !conn.Alive() {
		t.Error("subscribe failure must not stop the poller")
	}
}

// =============================================================================
// Delivery Tests
// =============================================================================

func TestDelivery_SequentialInInsertionOrder(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	var mu sync.Mutex
	var order []string
	record := func(name string) mqtt.MessageHandler {
		return func(topic string, payload []byte) error {
			mu.Lock()
			order = append(order, name+":"+topic+":"+string(payload))
			mu.Unlock()
			return nil
		}
	}
	first := record("a")
	conn.AddCallback(first)
	conn.AddCallback(record("b"))
	conn.AddCallback(first)

	transport.Loop.Deliver("server/0", []byte("hi"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	want := []string{"a:server/0:hi", "b:server/0:hi", "a:server/0:hi"}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestDelivery_ConcurrentBarrier(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchConcurrent)
	defer conn.Close()

	release := make(chan struct{})
	var started, finished atomic.Int32
	blocking := func(string, []byte) error {
		started.Add(1)
		<-release
		finished.Add(1)
		return nil
	}
	conn.AddCallback(blocking)
	conn.AddCallback(blocking)

	transport.Loop.Deliver("server/0", []byte("one"))
	transport.Loop.Deliver("server/0", []byte("two"))

	// Both callbacks for the first message run together...
	waitFor(t, func() bool { return started.Load() == 2 })

	// ...and the second message is held back until they finish.
	time.Sleep(30 * time.Millisecond)
	if got := started.Load(); got != 2 {
		t.Fatalf("started = %d before release, want 2", got)
	}

	close(release)
	waitFor(t, func() bool { return finished.Load() == 4 })
}

func TestDelivery_InvalidUTF8Dropped(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	var calls atomic.Int32
	conn.AddCallback(func(string, []byte) error {
		calls.Add(1)
		return nil
	})

	transport.Loop.Deliver("server/0", []byte{0xff, 0xfe})
	transport.Loop.Deliver("server/0", []byte("ok"))

	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback calls = %d, want 1", got)
	}
}

func TestDelivery_CallbackErrorAndPanicDoNotStopLoop(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchConcurrent)
	defer conn.Close()

	var good atomic.Int32
	conn.AddCallback(func(string, []byte) error { return errors.New("bad payload") })
	conn.AddCallback(func(string, []byte) error { panic("boom") })
	conn.AddCallback(func(string, []byte) error {
		good.Add(1)
		return nil
	})

	transport.Loop.Deliver("server/0", []byte("1"))
	transport.Loop.Deliver("server/0", []byte("2"))

	waitFor(t, func() bool { return good.Load() == 2 })
	if !conn.Alive() {
		t.Error("poller stopped after callback failure")
	}
}

func TestDelivery_OtherEventsIgnored(t *testing.T) {
	conn, transport := newTestConnection(t, mqtt.DispatchSequential)
	defer conn.Close()

	var calls atomic.Int32
	conn.AddCallback(func(string, []byte) error {
		calls.Add(1)
		return nil
	})

	transport.Loop.Push(mqtt.Event{Kind: mqtt.EventConnected})
	transport.Loop.Deliver("server/0", []byte("x"))

	waitFor(t, func() bool { return calls.Load() == 1 })
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestPollError_TerminatesConnection(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn, transport := newTestConnection(t, mqtt.DispatchSequential)

	var calls atomic.Int32
	conn.AddCallback(func(string, []byte) error {
		calls.Add(1)
		return nil
	})

	lost := errors.New("keepalive timeout")
	transport.Loop.Fail(lost)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after poll error")
	}

	if conn.Alive() {
		t.Error("Alive() = true after poll error")
	}
	if !errors.Is(conn.Err(), lost) {
		t.Errorf("Err() = %v, want %v", conn.Err(), lost)
	}

	transport.Loop.Deliver("server/0", []byte("late"))
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback calls after termination = %d, want 0", got)
	}
}

func TestClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn, transport := newTestConnection(t, mqtt.DispatchConcurrent)

	if conn.Err() != nil {
		t.Errorf("Err() = %v before close, want nil", conn.Err())
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !transport.Disconnected() {
		t.Error("transport not disconnected")
	}
	if !errors.Is(conn.Err(), mqtt.ErrConnectionClosed) {
		t.Errorf("Err() = %v, want ErrConnectionClosed", conn.Err())
	}
}

func TestNewConnection_Defaults(t *testing.T) {
	dialer := &mqtttest.Dialer{}
	conn := mqtt.NewConnection(context.Background(), mqtt.ConnectionOptions{
		Address:     "onlyhost",
		Credentials: mqtt.Credentials{Username: "u", Password: "p"},
		Dialer:      dialer.Dial,
		SettleDelay: time.Millisecond,
	})
	defer conn.Close()

	if conn.ClientID() != mqtt.DefaultClientID {
		t.Errorf("ClientID() = %q, want %q", conn.ClientID(), mqtt.DefaultClientID)
	}
	transports := dialer.Transports()
	if len(transports) != 1 {
		t.Fatalf("dials = %d, want 1", len(transports))
	}
	if transports[0].Address != "onlyhost" || transports[0].Credentials.Username != "u" {
		t.Errorf("dial args = %q/%+v", transports[0].Address, transports[0].Credentials)
	}

	conn.AddCallback(nil)
	if conn.CallbackCount() != 0 {
		t.Errorf("CallbackCount() = %d after nil callback, want 0", conn.CallbackCount())
	}
}
