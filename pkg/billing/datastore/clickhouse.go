// Package datastore wraps the ClickHouse client used as the columnar
// analytics sink for buffered compute-unit usage samples. It is a
// best-effort boundary: a nil *Client, or one that never connected, makes
// every Insert a silent no-op; an error from a live connection is returned
// to the caller — callers must never let an
// unavailable analytics store block or fail the Redis-side accounting path.
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// UsageRecord is one buffered API-call sample destined for the api_usage
// table. Field names mirror the JSON keys the usage tracker buffers in
// Redis, so a record round-trips through json.Marshal/Unmarshal unchanged.
type UsageRecord struct {
	ProjectID      string    `json:"project_id"`
	APIKeyID       *string   `json:"api_key_id,omitempty"`
	ChainID        int64     `json:"chain_id"`
	Network        string    `json:"network"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	ComputeUnits   int64     `json:"compute_units"`
	ResponseTimeMs int       `json:"response_time_ms"`
	StatusCode     int       `json:"status_code"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	Timestamp      time.Time `json:"timestamp"`
}

// SchemaSQL is the DDL this client assumes is already provisioned; Bootnode
// does not run ClickHouse migrations at startup, matching the analytics
// schemas this table is modeled after.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS api_usage (
	project_id        String,
	api_key_id        String,
	chain_id          Int64,
	network           String,
	endpoint          String,
	method            String,
	compute_units     Int64,
	response_time_ms  UInt32,
	status_code       UInt16,
	ip_address        String,
	user_agent        String,
	timestamp         DateTime64(3)
)
ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (project_id, timestamp)
TTL toDate(timestamp) + INTERVAL 395 DAY
SETTINGS index_granularity = 8192
`

// Client is a best-effort ClickHouse sink for buffered usage samples.
type Client struct {
	conn      driver.Conn
	connected bool
}

// Connect dials ClickHouse at dsn and pings it once. Callers that cannot
// tolerate startup failure on an analytics-only dependency should run with
// a nil *Client instead of propagating a Connect error.
func Connect(ctx context.Context, dsn string) (*Client, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	return &Client{conn: conn, connected: true}, nil
}

// IsConnected reports whether c is usable. A nil receiver is always
// unconnected, so callers can hold a nil *Client when no DSN is configured.
func (c *Client) IsConnected() bool {
	return c != nil && c.connected
}

// InsertUsage bulk-inserts records into api_usage in a single batch. A
// disconnected client makes this a silent no-op — the caller already has
// its durable counters in Redis and must not fail on analytics loss.
func (c *Client) InsertUsage(ctx context.Context, records []UsageRecord) error {
	if !c.IsConnected() {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO api_usage")
	if err != nil {
		return fmt.Errorf("preparing usage batch: %w", err)
	}

	for _, r := range records {
		var apiKeyID string
		if r.APIKeyID != nil {
			apiKeyID = *r.APIKeyID
		}
		if err := batch.Append(
			r.ProjectID, apiKeyID, r.ChainID, r.Network, r.Endpoint, r.Method,
			r.ComputeUnits, uint32(r.ResponseTimeMs), uint16(r.StatusCode),
			r.IPAddress, r.UserAgent, r.Timestamp,
		); err != nil {
			return fmt.Errorf("appending usage record: %w", err)
		}
	}

	return batch.Send()
}

// Close releases the underlying connection. Safe to call on a nil Client.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
