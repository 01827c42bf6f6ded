package usage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hanzoai/bootnode/pkg/billing/tiers"
)

// newTestTracker starts an in-memory miniredis server and returns a Tracker
// wired to it. The columnar datastore client is left nil, exercising the
// "flush skips silently when the analytics store is unavailable" path that
// every other test in this file relies on.
func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTracker(rdb, nil, nil)
}

func TestTrackIncrementsCurrentUsage(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_getBalance"}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_getBalance"}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	current, err := tr.CurrentUsage(ctx, projectID)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if current != 10 {
		t.Errorf("CurrentUsage = %d, want 10 (2 x eth_getBalance at 5 CU)", current)
	}
}

func TestTrackComputeUnitsOverride(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	override := int64(1234)
	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_call", ComputeUnits: &override}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	current, err := tr.CurrentUsage(ctx, projectID)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if current != override {
		t.Errorf("CurrentUsage = %d, want override %d", current, override)
	}
}

// TestS4FreeQuotaBoundary mirrors the scenario of a free-tier project with
// 29,999,990 monthly CU already used: two eth_getBalance calls (5 CU each)
// should push the counter to exactly the 30M cap, and the next quota check
// must then fail.
func TestS4FreeQuotaBoundary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	seed := int64(29_999_990)
	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_call", ComputeUnits: &seed}); err != nil {
		t.Fatalf("seeding usage: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_getBalance"}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}

	current, err := tr.CurrentUsage(ctx, projectID)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if current != 30_000_000 {
		t.Fatalf("CurrentUsage = %d, want 30,000,000", current)
	}

	within, err := tr.CheckQuota(ctx, projectID, tiers.Free)
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if within {
		t.Error("CheckQuota should be false once the free-tier cap is reached")
	}
}

func TestCheckQuotaUnlimitedTierAlwaysPasses(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	huge := int64(1_000_000_000)
	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_call", ComputeUnits: &huge}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	within, err := tr.CheckQuota(ctx, projectID, tiers.PayAsYouGo)
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if !within {
		t.Error("CheckQuota should always pass for an unlimited (monthly_cu=0) tier")
	}
}

// TestCheckRateLimitBoundary mirrors the §8 invariant: invoking check_rate
// rate_per_second+1 times within the same window, the last call is denied.
func TestCheckRateLimitBoundary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()
	limit := tiers.Get(tiers.Free).RateLimitPerSecond

	for i := 0; i < limit; i++ {
		allowed, _, err := tr.CheckRateLimit(ctx, projectID, tiers.Free)
		if err != nil {
			t.Fatalf("CheckRateLimit: %v", err)
		}
		if !allowed {
			t.Fatalf("call %d/%d should be allowed", i+1, limit)
		}
	}

	allowed, remaining, err := tr.CheckRateLimit(ctx, projectID, tiers.Free)
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if allowed {
		t.Error("call limit+1 should be denied")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0 on denial", remaining)
	}
}

func TestTrackBuffersAndFlushTriggersAtBatchSize(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	for i := 0; i < flushBatchSize; i++ {
		if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_getBalance"}); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
	}

	// A nil datastore client means Flush drains the buffer without
	// inserting anywhere; the list must be empty once the batch threshold
	// triggered the automatic flush.
	n, err := tr.redis.LLen(ctx, bufferKey(projectID)).Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if n != 0 {
		t.Errorf("buffer length = %d, want 0 after auto-flush at batch size %d", n, flushBatchSize)
	}

	// The monthly counter is the durability boundary and must be unaffected
	// by the analytics store being unavailable.
	current, err := tr.CurrentUsage(ctx, projectID)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if want := int64(flushBatchSize) * 5; current != want {
		t.Errorf("CurrentUsage = %d, want %d", current, want)
	}
}

func TestFlushDrainsBufferBelowBatchSize(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_getBalance"}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	n, err := tr.redis.LLen(ctx, bufferKey(projectID)).Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if n != 1 {
		t.Fatalf("buffer length = %d, want 1 before explicit flush", n)
	}

	if err := tr.Flush(ctx, projectID); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	n, err = tr.redis.LLen(ctx, bufferKey(projectID)).Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if n != 0 {
		t.Errorf("buffer length = %d, want 0 after Flush", n)
	}
}

func TestFlushAllDrainsEveryProjectBuffer(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectA, projectB := uuid.New(), uuid.New()

	for _, p := range []uuid.UUID{projectA, projectB} {
		if err := tr.Track(ctx, TrackParams{ProjectID: p, Method: "eth_getBalance"}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}

	if err := tr.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	for _, p := range []uuid.UUID{projectA, projectB} {
		n, err := tr.redis.LLen(ctx, bufferKey(p)).Result()
		if err != nil {
			t.Fatalf("LLen: %v", err)
		}
		if n != 0 {
			t.Errorf("project %s buffer length = %d, want 0 after FlushAll", p, n)
		}
	}
}

func TestUnsyncedUsageTrackedAndMarkedSynced(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	projectID := uuid.New()

	if err := tr.Track(ctx, TrackParams{ProjectID: projectID, Method: "eth_getBalance"}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	unsynced, err := tr.UnsyncedUsage(ctx, projectID)
	if err != nil {
		t.Fatalf("UnsyncedUsage: %v", err)
	}
	if unsynced != 5 {
		t.Fatalf("UnsyncedUsage = %d, want 5", unsynced)
	}

	if err := tr.MarkSynced(ctx, projectID, unsynced); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	unsynced, err = tr.UnsyncedUsage(ctx, projectID)
	if err != nil {
		t.Fatalf("UnsyncedUsage: %v", err)
	}
	if unsynced != 0 {
		t.Errorf("UnsyncedUsage after MarkSynced = %d, want 0", unsynced)
	}
}
