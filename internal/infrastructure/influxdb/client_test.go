package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/templegate/capacity-core/internal/capacity"
	"github.com/templegate/capacity-core/internal/infrastructure/config"
	"github.com/templegate/capacity-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "templegate-dev-token",
		Org:           "templegate",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// errCapture collects async write errors race-safely.
type errCapture struct {
	mu  sync.Mutex
	err error
}

func (c *errCapture) set(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *errCapture) get() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ─── Connection ──────────────────────────────────────────────────────────────

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_NoServer(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when no server answers")
	}
}

func TestConnect_BatchSettingsNormalised(t *testing.T) {
	skipIfNoInfluxDB(t)

	// Zero and negative batch settings fall back to package defaults.
	for _, batch := range []int{0, -5} {
		cfg := testConfig()
		cfg.BatchSize = batch
		cfg.FlushInterval = batch

		client, err := influxdb.Connect(cfg)
		if err != nil {
			t.Fatalf("Connect() with batch size %d error = %v", batch, err)
		}
		if !client.IsConnected() {
			t.Errorf("IsConnected() = false with batch size %d", batch)
		}
		client.Close()
	}
}

// ─── HealthCheck ─────────────────────────────────────────────────────────────

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// ─── Recording ───────────────────────────────────────────────────────────────

func TestRecordSnapshot(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	capture := &errCapture{}
	client.SetOnError(capture.set)

	state := &capacity.State{
		SiteID:            "test-site",
		Timestamp:         time.Now(),
		TotalCapacity:     500,
		CurrentOccupancy:  180,
		AvailableCapacity: 320,
		UtilisationRate:   36,
		Zones: map[string]*capacity.ZoneState{
			"main-hall": {
				ZoneID:            "main-hall",
				BaseCapacity:      300,
				AdjustedCapacity:  300,
				CurrentOccupancy:  120,
				AvailableCapacity: 180,
				UtilisationRate:   40,
			},
		},
		Slots: map[string]*capacity.TimeSlotState{
			"2026-09-01|09:00-10:00": {
				Slot:              "09:00-10:00",
				Date:              "2026-09-01",
				BaseCapacity:      50,
				AdjustedCapacity:  50,
				BookedCapacity:    20,
				AvailableCapacity: 30,
				Bookable:          true,
			},
		},
	}

	client.RecordSnapshot(state)
	client.Flush()

	// Give a moment for the error callback
	time.Sleep(100 * time.Millisecond)

	if err := capture.get(); err != nil {
		t.Errorf("write error = %v", err)
	}
}

func TestRecordSnapshot_Nil(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Must not panic or write anything
	client.RecordSnapshot(nil)
	client.Flush()
}

func TestRecordEvaluationMetric(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	capture := &errCapture{}
	client.SetOnError(capture.set)

	client.RecordEvaluationMetric("test-site", 12, 3)
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	if err := capture.get(); err != nil {
		t.Errorf("write error = %v", err)
	}
}

// ─── Close ───────────────────────────────────────────────────────────────────

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// A point buffered before Close must still flush
	client.RecordEvaluationMetric("close-test", 1, 0)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Flush after Close is a no-op, not a panic
	client.Flush()
}
