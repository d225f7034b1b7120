// Package mqtt provides the broker transport and connection primitives for nodebus.
//
// This package manages:
//   - Parsing "host:port" broker addresses (default port 1883)
//   - Building paho client handles plus their event loops (Dial)
//   - Connections: one transport, one background polling goroutine,
//     an ordered callback list, publish with QoS fallback
//
// # Architecture
//
// A Connection owns exactly one Transport and one EventLoop. The loop is
// polled by a dedicated goroutine for the lifetime of the Connection:
//
//	paho client → EventLoop.Poll → Connection loop → callbacks
//
// Incoming publishes are fanned out to every registered callback, either
// sequentially on the loop goroutine (DispatchSequential) or as a
// scatter/join group (DispatchConcurrent). The next event is not polled
// until every callback for the current one has returned.
//
// # Failure Model
//
// There is no reconnection. Auto-reconnect and connect-retry are disabled
// on the paho client; the first poll error (failed connect, lost
// connection, keep-alive timeout) terminates the loop and the Connection
// stays inert until it is replaced by its owner.
//
// # Usage
//
//	conn := mqtt.NewConnection(ctx, mqtt.ConnectionOptions{
//	    Address:  "127.0.0.1:1883",
//	    ClientID: "dt_client_0",
//	    Dialer:   mqtt.Dial,
//	    Logger:   log,
//	})
//	conn.AddCallback(func(topic string, payload []byte) error {
//	    log.Info("received", "topic", topic, "bytes", len(payload))
//	    return nil
//	})
//	if err := conn.Subscribe(ctx, "server/0", mqtt.QoSExactlyOnce); err != nil {
//	    return err
//	}
//	err := conn.Publish(ctx, "node/1/cmd", []byte(`{"op":"stop","op_value":{}}`))
package mqtt
