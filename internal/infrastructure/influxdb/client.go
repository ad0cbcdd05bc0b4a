package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/templegate/capacity-core/internal/infrastructure/config"
)

// Timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000

	// Batching defaults applied when config.yaml leaves them zero. A
	// scheduler-paced service writes a handful of points per evaluation,
	// so small batches flushed every few seconds keep the data fresh
	// without per-point HTTP round-trips.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client is the analytics sink for evaluated capacity snapshots.
//
// Every evaluation produces a site point, a point per zone and a point
// per slot (see RecordSnapshot); Grafana dashboards chart utilisation and
// rule activity from those series. Writes are non-blocking and batched,
// so a slow or absent InfluxDB never delays an evaluation.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	// onError receives async write failures, set via SetOnError.
	onError func(err error)
}

// Connect creates the analytics sink and verifies the server answers a
// ping. Returns ErrDisabled when the influxdb section of config.yaml is
// switched off; cmd/capacityd treats that as "run without analytics".
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}

	// The write API reports failures on a channel, not as return values.
	go c.handleWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// writeOptions builds batching options from config, falling back to the
// package defaults for unset values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- both values normalised to positive above
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval) * millisecondsPerSecond)
}

// ping verifies the server is up and healthy.
func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}
	return nil
}

// handleWriteErrors forwards async write errors to the configured
// callback. The channel closes when the client closes.
func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending points and shuts the connection down. Snapshot
// points buffered at shutdown still reach the bucket.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()

	return nil
}

// HealthCheck pings the server, for the service-level health aggregation
// in cmd/capacityd.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	return ping(checkCtx, c.client)
}

// IsConnected returns the last known connection state. For a live answer
// use HealthCheck, which pings.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback for async write failures. Writes never
// block, so this is the only place a failed snapshot write surfaces.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until all buffered points are written. Safe to call on a
// closed client (no-op). Used by tests to force batched points out.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
