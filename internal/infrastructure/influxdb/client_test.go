package influxdb_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/nodebus/internal/infrastructure/config"
	"github.com/nerrad567/nodebus/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "nodebus-dev-token",
		Org:           "nodebus",
		Bucket:        "state",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test unless RUN_INTEGRATION is set and a server answers.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("RUN_INTEGRATION not set, skipping integration test")
	}
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	client.Close()
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client while disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestStatePoint(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)

	point := influxdb.StatePoint("n1", "state_change", map[string]string{
		"battery": "80",
		"mode":    "idle",
	}, ts)
	if point == nil {
		t.Fatal("StatePoint() = nil")
	}

	line := write.PointToLineProtocol(point, time.Nanosecond)
	want := `node_state,kind=state_change,node_id=n1 battery="80",mode="idle" 1700000000000000000`
	if strings.TrimSpace(line) != want {
		t.Errorf("line protocol = %q, want %q", strings.TrimSpace(line), want)
	}
}

func TestStatePoint_NoNodeID(t *testing.T) {
	point := influxdb.StatePoint("", "register", map[string]string{"mode": "idle"}, time.Unix(1, 0))
	if point == nil {
		t.Fatal("StatePoint() = nil")
	}
	for _, tag := range point.TagList() {
		if tag.Key == influxdb.TagNodeID {
			t.Errorf("node_id tag present with empty node id")
		}
	}
}

func TestStatePoint_Empty(t *testing.T) {
	if point := influxdb.StatePoint("n1", "state_change", nil, time.Now()); point != nil {
		t.Error("StatePoint() with no values should be nil")
	}
}

func TestWriteStateChange(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteStateChange("n1", "state_change", map[string]string{"battery": "80"})
	client.Flush()

	mu.Lock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
	mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteStateChange_AfterClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	client.WriteStateChange("n1", "state_change", map[string]string{"battery": "80"})
	client.Flush()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}
