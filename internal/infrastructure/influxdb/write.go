package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and tag names used for node state history.
const (
	MeasurementNodeState = "node_state"

	TagNodeID = "node_id"
	TagKind   = "kind"
)

// StatePoint builds the point recorded for one applied state message.
//
// Each value becomes a string field named after its key. Returns nil when
// values is empty, since a point without fields is not valid line protocol.
func StatePoint(nodeID, kind string, values map[string]string, ts time.Time) *write.Point {
	if len(values) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}

	tags := map[string]string{TagKind: kind}
	if nodeID != "" {
		tags[TagNodeID] = nodeID
	}

	return write.NewPoint(MeasurementNodeState, tags, fields, ts)
}

// WriteStateChange records the keys written by one state message.
// The write is non-blocking; messages that wrote nothing are skipped.
//
// Example:
//
//	client.WriteStateChange("n1", "state_change", map[string]string{"battery": "80"})
func (c *Client) WriteStateChange(nodeID, kind string, values map[string]string) {
	if !c.IsConnected() {
		return
	}

	point := StatePoint(nodeID, kind, values, time.Now())
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}
