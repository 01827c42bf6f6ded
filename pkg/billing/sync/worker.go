// Package sync runs the periodic Usage Sync Worker: it reports each PAYG
// project's buffered, unsynced compute-unit usage to Commerce so invoices
// stay current between billing-cycle boundaries.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hanzoai/bootnode/internal/telemetry"
	"github.com/hanzoai/bootnode/pkg/billing/commerce"
	"github.com/hanzoai/bootnode/pkg/billing/subscription"
	"github.com/hanzoai/bootnode/pkg/billing/usage"
)

const (
	lockKey   = "billing:sync:lock"
	lastKey   = "billing:sync:last"
)

// Worker periodically reports unsynced usage for every PAYG subscription to
// Commerce, guarded by a Redis distributed lock so only one worker replica
// runs a pass at a time.
type Worker struct {
	redis    *redis.Client
	subs     *subscription.Store
	tracker  *usage.Tracker
	commerce *commerce.Client
	logger   *slog.Logger

	interval time.Duration
	lockTTL  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a usage sync Worker.
func NewWorker(rdb *redis.Client, subs *subscription.Store, tracker *usage.Tracker, commerceClient *commerce.Client, logger *slog.Logger, interval, lockTTL time.Duration) *Worker {
	return &Worker{
		redis:    rdb,
		subs:     subs,
		tracker:  tracker,
		commerce: commerceClient,
		logger:   logger,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

// Start launches the worker's run loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.done = make(chan struct{})
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		w.run(runCtx)
	}()
}

// Stop signals the worker to exit and waits for the current pass to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// run loops SyncAll on the configured interval until ctx is cancelled. It
// also listens on a pub/sub control channel so an operator can trigger an
// immediate pass across every worker replica without waiting for the next
// tick; this has no bearing on correctness, only latency.
func (w *Worker) run(ctx context.Context) {
	pubsub := w.redis.Subscribe(ctx, "bootnode:sync:control")
	defer pubsub.Close()
	ctrlCh := pubsub.Channel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.SyncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ctrlCh:
			w.logger.Debug("received sync control message", "payload", msg.Payload)
			if msg.Payload == "run_now" {
				w.SyncAll(ctx)
			}
		case <-ticker.C:
			w.SyncAll(ctx)
		}
	}
}

// SyncAll acquires the distributed lock, reports usage for every PAYG
// subscription, and releases the lock. If the lock is already held by
// another replica, SyncAll returns immediately without doing work.
func (w *Worker) SyncAll(ctx context.Context) {
	acquired, err := w.acquireLock(ctx)
	if err != nil {
		w.logger.Error("acquiring sync lock", "error", err)
		return
	}
	if !acquired {
		w.logger.Debug("sync lock held by another worker, skipping pass")
		return
	}
	defer w.releaseLock(ctx)

	subs, err := w.subs.ListPAYGWithCommerceID(ctx)
	if err != nil {
		w.logger.Error("listing payg subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if err := w.SyncProject(ctx, sub.ProjectID); err != nil {
			w.logger.Error("syncing project usage", "error", err, "project_id", sub.ProjectID)
		}
	}

	if err := w.redis.Set(ctx, lastKey, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		w.logger.Warn("recording last sync time", "error", err)
	}
}

// SyncProject reports a single project's unsynced usage to Commerce. It is
// exposed for on-demand sync (e.g. right before showing a usage page).
func (w *Worker) SyncProject(ctx context.Context, projectID uuid.UUID) error {
	sub, err := w.subs.GetByProjectID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("looking up subscription: %w", err)
	}
	if sub.HanzoSubscriptionID == nil {
		return nil
	}

	unsynced, err := w.tracker.UnsyncedUsage(ctx, projectID)
	if err != nil {
		return fmt.Errorf("reading unsynced usage: %w", err)
	}
	if unsynced <= 0 {
		return nil
	}

	idempotencyKey := fmt.Sprintf("%s:%s", projectID, time.Now().UTC().Format("2006-01-02-15"))
	if err := w.commerce.ReportUsage(ctx, *sub.HanzoSubscriptionID, unsynced, idempotencyKey); err != nil {
		telemetry.SyncReportsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("reporting usage to commerce: %w", err)
	}

	if err := w.tracker.MarkSynced(ctx, projectID, unsynced); err != nil {
		return fmt.Errorf("marking usage synced: %w", err)
	}

	telemetry.SyncReportsTotal.WithLabelValues("ok").Inc()
	w.logger.Info("synced project usage", "project_id", projectID, "compute_units", unsynced)
	return nil
}

// Status reports the worker's current run state, for the worker process's
// own health endpoint.
type Status struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	LastSync string        `json:"last_sync,omitempty"`
	LockHeld bool          `json:"lock_held"`
}

// GetStatus returns the worker's current run state.
func (w *Worker) GetStatus(ctx context.Context) Status {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	last, _ := w.redis.Get(ctx, lastKey).Result()
	lockHeld, _ := w.redis.Exists(ctx, lockKey).Result()

	return Status{
		Running:  running,
		Interval: w.interval,
		LastSync: last,
		LockHeld: lockHeld > 0,
	}
}

func (w *Worker) acquireLock(ctx context.Context) (bool, error) {
	ok, err := w.redis.SetNX(ctx, lockKey, uuid.New().String(), w.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setting lock: %w", err)
	}
	return ok, nil
}

func (w *Worker) releaseLock(ctx context.Context) {
	if err := w.redis.Del(ctx, lockKey).Err(); err != nil {
		w.logger.Warn("releasing sync lock", "error", err)
	}
}
