// Package influxdb records node state history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every state message
// applied to the store can be written as one point of the "node_state"
// measurement, tagged with the node id and message kind, with one string
// field per key that was written.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteStateChange("n1", "state_change", map[string]string{"battery": "80"})
//
// # Error Handling
//
// Writes are non-blocking and batched; their errors are delivered to the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
