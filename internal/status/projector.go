// Package status projects queue and sync state into a display-ready
// snapshot. It owns none of the underlying truth: the queue store owns the
// pending items, the sync engine owns the in-flight flag and the network
// monitor owns the online flag.
package status

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bissquit/crisiskit/internal/netmon"
	"github.com/bissquit/crisiskit/internal/queue"
	syncengine "github.com/bissquit/crisiskit/internal/sync"
)

// ErrOffline is returned by SyncNow while the monitor reports no
// connectivity.
var ErrOffline = errors.New("offline, sync not started")

// Snapshot is the display-ready projection handed to the UI layer.
type Snapshot struct {
	IsOnline       bool               `json:"is_online"`
	PendingCount   int                `json:"pending_count"`
	IsSyncing      bool               `json:"is_syncing"`
	LastSyncResult *syncengine.Result `json:"last_sync_result,omitempty"`
}

// Config contains projector configuration.
type Config struct {
	// RefreshInterval is the safety-net poll of the queue depth, covering
	// any missed event wiring.
	RefreshInterval time.Duration
}

// DefaultConfig returns default projector configuration.
func DefaultConfig() Config {
	return Config{RefreshInterval: 30 * time.Second}
}

// Projector merges sync outcomes and queue depth into observable state.
type Projector struct {
	config  Config
	store   queue.Store
	engine  *syncengine.Engine
	monitor *netmon.Monitor

	pending     atomic.Int64
	lastResult  atomic.Pointer[syncengine.Result]
	unsubscribe func()
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewProjector creates a projector over the given store, engine and monitor.
func NewProjector(config Config, store queue.Store, engine *syncengine.Engine, monitor *netmon.Monitor) *Projector {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultConfig().RefreshInterval
	}
	return &Projector{
		config:  config,
		store:   store,
		engine:  engine,
		monitor: monitor,
		stopCh:  make(chan struct{}),
	}
}

// Snapshot returns the current display state.
func (p *Projector) Snapshot() Snapshot {
	return Snapshot{
		IsOnline:       p.monitor.Online(),
		PendingCount:   int(p.pending.Load()),
		IsSyncing:      p.engine.InProgress(),
		LastSyncResult: p.lastResult.Load(),
	}
}

// RefreshCount re-reads the queue depth from the store.
func (p *Projector) RefreshCount(ctx context.Context) {
	count, err := p.store.Count(ctx)
	if err != nil {
		slog.Error("failed to refresh queue count", "error", err)
		return
	}
	p.pending.Store(int64(count))
	syncengine.RecordQueueDepth(count)
}

// SyncNow triggers one drain. It is a no-op when offline or when a drain is
// already running; the rejected call returns immediately without queueing a
// follow-up.
func (p *Projector) SyncNow(ctx context.Context) (*syncengine.Result, error) {
	if !p.monitor.Online() {
		return nil, ErrOffline
	}

	result, err := p.engine.SyncAll(ctx)
	if err != nil {
		// Leaves the last result untouched; in-progress is not a failure.
		return nil, err
	}

	p.lastResult.Store(&result)
	p.RefreshCount(ctx)

	if result.TotalAttempted > 0 {
		slog.Info("background sync finished",
			"success", result.SuccessCount,
			"failed", result.FailedCount,
			"total", result.TotalAttempted,
		)
	}
	return &result, nil
}

// AutoSync is the settled online-transition trigger: it drains only when the
// queue holds at least one item still below the retry cap. Wired into the
// network monitor at startup.
func (p *Projector) AutoSync(ctx context.Context) {
	p.RefreshCount(ctx)
	if p.pending.Load() == 0 {
		return
	}

	retryable, err := p.store.HasRetryable(ctx, p.engine.MaxRetries())
	if err != nil {
		slog.Error("failed to check for retryable items", "error", err)
		return
	}
	if !retryable {
		return
	}

	if _, err := p.SyncNow(ctx); err != nil &&
		!errors.Is(err, syncengine.ErrSyncInProgress) && !errors.Is(err, ErrOffline) {
		slog.Error("automatic sync failed", "error", err)
	}
}

// Start primes the queue count, subscribes to connectivity transitions and
// launches the periodic refresh loop.
func (p *Projector) Start(ctx context.Context) {
	p.RefreshCount(ctx)

	p.unsubscribe = p.monitor.OnChange(func(bool) {
		p.RefreshCount(ctx)
	})

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop halts the refresh loop.
func (p *Projector) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Projector) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.RefreshCount(ctx)
		}
	}
}
