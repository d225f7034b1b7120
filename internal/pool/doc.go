// Package pool provides the outbound MQTT connection pool for nodebus.
//
// A Pool owns a fixed number of mqtt.Connections built once at startup.
// Every Send passes an admission gate of Size permits and is routed to the
// next connection in round-robin order.
//
// # Admission and Routing
//
// The gate is a global cap: at most Size sends are in flight across the
// whole pool. The permit a caller holds is not tied to the connection it
// is routed to; two callers can land on the same connection, in which case
// the connection's own publish lock serialises them.
//
// # Failure Model
//
// Connections are never removed or replaced. A connection whose poller has
// died keeps its slot in the rotation and sends routed to it fail.
//
// # Usage
//
//	p, err := pool.New(ctx, pool.Options{
//	    Address: "127.0.0.1:1883",
//	    Size:    10,
//	    Logger:  log,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	err = p.Send(ctx, "node/1/cmd", payload)
package pool
