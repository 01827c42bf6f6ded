// Package usage tracks compute-unit consumption and request rate in Redis
// for real-time quota and rate-limit decisions, buffers a per-project
// "unsynced" delta that the usage sync worker periodically reports to
// Commerce, and batches a sample of every call into the columnar analytics
// store.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hanzoai/bootnode/internal/telemetry"
	"github.com/hanzoai/bootnode/pkg/billing/datastore"
	"github.com/hanzoai/bootnode/pkg/billing/tiers"
)

const (
	cuUsageKeyFmt   = "cu:usage:%s:%s" // project_id, period (YYYY-MM)
	rateLimitKeyFmt = "rate:%s:%d"     // project_id, unix second window
	unsyncedKeyFmt  = "billing:unsync:cu:%s"
	bufferKeyFmt    = "cu:buffer:%s" // project_id
	bufferKeyPrefix = "cu:buffer:"

	// flushBatchSize is the buffer length at which Track triggers a flush.
	flushBatchSize = 100
	// scanCount is the SCAN COUNT hint used by FlushAll.
	scanCount = 100
)

// Tracker records compute-unit usage, enforces per-project rate limits, and
// buffers call samples for the columnar analytics store. ds may be nil —
// Flush then silently drops the buffered samples rather than blocking the
// hot accounting path on an unavailable analytics store.
type Tracker struct {
	redis  *redis.Client
	ds     *datastore.Client
	logger *slog.Logger
}

// NewTracker creates a usage Tracker backed by the given Redis client and
// an optional columnar datastore client (pass nil to disable analytics
// buffering entirely).
func NewTracker(rdb *redis.Client, ds *datastore.Client, logger *slog.Logger) *Tracker {
	return &Tracker{redis: rdb, ds: ds, logger: logger}
}

func periodKey(projectID uuid.UUID) string {
	return fmt.Sprintf(cuUsageKeyFmt, projectID, time.Now().UTC().Format("2006-01"))
}

func rateKey(projectID uuid.UUID) string {
	return fmt.Sprintf(rateLimitKeyFmt, projectID, time.Now().Unix())
}

func bufferKey(projectID uuid.UUID) string {
	return fmt.Sprintf(bufferKeyFmt, projectID)
}

// TrackParams describes one API call to account for. ComputeUnits overrides
// the catalog lookup for Method when non-nil — batched/bulk calls that have
// already summed their own cost via BulkComputeUnits should set it.
type TrackParams struct {
	ProjectID      uuid.UUID
	Method         string
	ComputeUnits   *int64
	APIKeyID       *uuid.UUID
	ChainID        int64
	Network        string
	ResponseTimeMs int
	StatusCode     int
	IPAddress      string
	UserAgent      string
}

// Track accounts for one API call: resolves its CU cost, increments the
// monthly counter (the durability boundary), and buffers a JSON sample for
// the columnar store, flushing once the buffer reaches flushBatchSize.
// Buffering failures are logged, never returned — the counter increment
// above has already happened and must not be undone by an analytics hiccup.
func (t *Tracker) Track(ctx context.Context, p TrackParams) error {
	cu := computeUnitsFor(p.Method)
	if p.ComputeUnits != nil {
		cu = *p.ComputeUnits
	}

	pKey := periodKey(p.ProjectID)
	pipe := t.redis.Pipeline()
	pipe.IncrBy(ctx, pKey, cu)
	pipe.Expire(ctx, pKey, 35*24*time.Hour) // covers billing period + grace

	uKey := fmt.Sprintf(unsyncedKeyFmt, p.ProjectID)
	pipe.IncrBy(ctx, uKey, cu)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tracking usage: %w", err)
	}
	telemetry.CUTrackedTotal.Add(float64(cu))

	if err := t.buffer(ctx, p, cu); err != nil && t.logger != nil {
		t.logger.Error("buffering usage sample", "error", err, "project_id", p.ProjectID)
	}
	return nil
}

// buffer appends a JSON usage sample to the project's buffer list and
// triggers a flush once it reaches flushBatchSize.
func (t *Tracker) buffer(ctx context.Context, p TrackParams, cu int64) error {
	var apiKeyID *string
	if p.APIKeyID != nil {
		s := p.APIKeyID.String()
		apiKeyID = &s
	}

	raw, err := json.Marshal(datastore.UsageRecord{
		ProjectID:      p.ProjectID.String(),
		APIKeyID:       apiKeyID,
		ChainID:        p.ChainID,
		Network:        p.Network,
		Endpoint:       "/rpc/" + p.Network,
		Method:         p.Method,
		ComputeUnits:   cu,
		ResponseTimeMs: p.ResponseTimeMs,
		StatusCode:     p.StatusCode,
		IPAddress:      p.IPAddress,
		UserAgent:      p.UserAgent,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling usage record: %w", err)
	}

	key := bufferKey(p.ProjectID)
	pipe := t.redis.Pipeline()
	pipe.RPush(ctx, key, raw)
	llen := pipe.LLen(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("buffering usage record: %w", err)
	}

	if llen.Val() >= flushBatchSize {
		return t.Flush(ctx, p.ProjectID)
	}
	return nil
}

// Flush atomically drains a project's buffered usage samples and
// bulk-inserts them into the columnar store. If the store is unavailable
// the buffer is drained anyway — the samples are dropped, not the
// already-durable Redis-side CU counters.
func (t *Tracker) Flush(ctx context.Context, projectID uuid.UUID) error {
	key := bufferKey(projectID)

	pipe := t.redis.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("draining usage buffer: %w", err)
	}

	raw := rangeCmd.Val()
	if len(raw) == 0 || !t.ds.IsConnected() {
		return nil
	}

	records := make([]datastore.UsageRecord, 0, len(raw))
	for _, s := range raw {
		var rec datastore.UsageRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue // a malformed buffered sample is dropped, not fatal
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil
	}

	if err := t.ds.InsertUsage(ctx, records); err != nil {
		return fmt.Errorf("flushing usage buffer: %w", err)
	}
	return nil
}

// FlushAll scans every project's buffer key and flushes it. Intended for
// worker shutdown, so buffered samples for low-traffic projects don't wait
// on their next track call to reach flushBatchSize.
func (t *Tracker) FlushAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := t.redis.Scan(ctx, cursor, bufferKeyPrefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("scanning usage buffers: %w", err)
		}

		for _, key := range keys {
			projectID, err := uuid.Parse(strings.TrimPrefix(key, bufferKeyPrefix))
			if err != nil {
				continue
			}
			if err := t.Flush(ctx, projectID); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// CurrentUsage returns the CU consumed so far in the current billing period.
func (t *Tracker) CurrentUsage(ctx context.Context, projectID uuid.UUID) (int64, error) {
	v, err := t.redis.Get(ctx, periodKey(projectID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("reading current usage: %w", err)
	}
	return v, nil
}

// CheckQuota reports whether the project is within its monthly CU quota.
// Unlimited tiers (MonthlyCU == 0) always pass.
func (t *Tracker) CheckQuota(ctx context.Context, projectID uuid.UUID, tier tiers.Tier) (bool, error) {
	limits := tiers.Get(tier)
	if limits.MonthlyCU == 0 {
		return true, nil
	}

	current, err := t.CurrentUsage(ctx, projectID)
	if err != nil {
		return false, err
	}
	return current < limits.MonthlyCU, nil
}

// CheckRateLimit enforces the tier's per-second request budget using a
// fixed 1-second Redis window (INCR + EXPIRE). Returns whether the request
// is allowed and how many requests remain in the current window.
func (t *Tracker) CheckRateLimit(ctx context.Context, projectID uuid.UUID, tier tiers.Tier) (allowed bool, remaining int, err error) {
	limits := tiers.Get(tier)
	key := rateKey(projectID)

	pipe := t.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Second)
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		// Fail open: a Redis hiccup should not block legitimate traffic.
		return true, limits.RateLimitPerSecond, nil
	}

	count := int(incr.Val())
	if count > limits.RateLimitPerSecond {
		return false, 0, nil
	}
	return true, limits.RateLimitPerSecond - count, nil
}

// Stats is the derived usage read-model for a project.
type Stats struct {
	CurrentCU          int64   `json:"current_cu"`
	LimitCU            int64   `json:"limit_cu"`
	RemainingCU        *int64  `json:"remaining_cu,omitempty"`
	PercentageUsed     float64 `json:"percentage_used"`
	RateLimitPerSecond int     `json:"rate_limit_per_second"`
	Tier               string  `json:"tier"`
}

// GetUsageStats computes the current-usage read-model for a project.
func (t *Tracker) GetUsageStats(ctx context.Context, projectID uuid.UUID, tier tiers.Tier) (Stats, error) {
	limits := tiers.Get(tier)
	current, err := t.CurrentUsage(ctx, projectID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		CurrentCU:          current,
		LimitCU:            limits.MonthlyCU,
		RateLimitPerSecond: limits.RateLimitPerSecond,
		Tier:               string(tier),
	}

	if limits.MonthlyCU > 0 {
		remaining := limits.MonthlyCU - current
		if remaining < 0 {
			remaining = 0
		}
		stats.RemainingCU = &remaining
		stats.PercentageUsed = float64(current) / float64(limits.MonthlyCU) * 100
	}

	return stats, nil
}

// UnsyncedUsage returns the unsynced CU delta buffered for a project since
// the last successful sync.
func (t *Tracker) UnsyncedUsage(ctx context.Context, projectID uuid.UUID) (int64, error) {
	v, err := t.redis.Get(ctx, fmt.Sprintf(unsyncedKeyFmt, projectID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("reading unsynced usage: %w", err)
	}
	return v, nil
}

// MarkSynced decrements the unsynced buffer by the amount just reported to
// Commerce. If concurrent tracking caused the buffer to go negative, it is
// clamped back to zero rather than carrying a negative balance forward —
// this biases toward slightly over-reporting usage rather than losing CU
// that was actually consumed.
func (t *Tracker) MarkSynced(ctx context.Context, projectID uuid.UUID, amount int64) error {
	key := fmt.Sprintf(unsyncedKeyFmt, projectID)
	v, err := t.redis.DecrBy(ctx, key, amount).Result()
	if err != nil {
		return fmt.Errorf("marking synced: %w", err)
	}
	if v < 0 {
		if err := t.redis.Set(ctx, key, 0, 0).Err(); err != nil {
			return fmt.Errorf("clamping unsynced buffer: %w", err)
		}
	}
	return nil
}
