// Package influxdb provides InfluxDB connectivity for Templegate Capacity
// Core.
//
// It wraps the official influxdb-client-go v2 library with Templegate-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Evaluated capacity snapshots (site, zone and slot level)
//   - Evaluation timing metrics
//   - Occupancy and utilisation history for trend analysis
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "templegate",
//	    Bucket: "capacity",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record an evaluated snapshot
//	client.RecordSnapshot(state)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps evaluation latency independent of the analytics sink.
package influxdb
