// Package netmon tracks connectivity to the remote crisis store and is the
// single source of truth for the online flag.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober answers whether the remote store is currently reachable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) bool

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

// Config contains monitor configuration.
type Config struct {
	// ProbeInterval is how often connectivity is re-checked.
	ProbeInterval time.Duration
	// SettleDelay is the pause after a connectivity-restored signal before
	// the sync trigger fires, to avoid reacting to transient flapping.
	SettleDelay time.Duration
}

// DefaultConfig returns default monitor configuration.
func DefaultConfig() Config {
	return Config{
		ProbeInterval: 15 * time.Second,
		SettleDelay:   1 * time.Second,
	}
}

// Monitor polls a Prober, records connectivity transitions and notifies
// subscribers. On a transition to online it fires the configured trigger
// exactly once, after the settle delay. It never fires overlapping triggers:
// repeated transitions inside the settle window collapse into one.
type Monitor struct {
	config  Config
	prober  Prober
	trigger func(ctx context.Context)

	mu       sync.Mutex
	online   bool
	settling bool
	nextSub  int
	subs     map[int]func(online bool)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor over the given prober. The sync trigger is
// wired separately with SetTrigger before Start.
func NewMonitor(config Config, prober Prober) *Monitor {
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = DefaultConfig().ProbeInterval
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultConfig().SettleDelay
	}
	return &Monitor{
		config: config,
		prober: prober,
		subs:   make(map[int]func(online bool)),
		stopCh: make(chan struct{}),
	}
}

// SetTrigger sets the function fired after a settled online transition.
// Must be called before Start.
func (m *Monitor) SetTrigger(trigger func(ctx context.Context)) {
	m.trigger = trigger
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange subscribes to connectivity transitions. The callback runs on the
// monitor goroutine and must not block. The returned function unsubscribes.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Start probes connectivity once synchronously, then launches the poll loop.
func (m *Monitor) Start(ctx context.Context) {
	online := m.prober.Probe(ctx)
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()

	slog.Info("network monitor started",
		"online", online,
		"probe_interval", m.config.ProbeInterval,
		"settle_delay", m.config.SettleDelay,
	)

	m.wg.Add(1)
	go m.run(ctx)
}

// Stop stops the poll loop and waits for in-flight settle timers.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	slog.Info("network monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.setOnline(ctx, m.prober.Probe(ctx))
		}
	}
}

// setOnline applies a connectivity observation. Observations matching the
// current state are dropped, so duplicate platform events collapse.
func (m *Monitor) setOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online

	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}

	startSettle := online && !m.settling
	if startSettle {
		m.settling = true
	}
	m.mu.Unlock()

	if online {
		slog.Info("network restored")
	} else {
		slog.Info("network lost, entering offline mode")
	}

	for _, fn := range subs {
		fn(online)
	}

	if startSettle {
		m.wg.Add(1)
		go m.settleAndTrigger(ctx)
	}
}

func (m *Monitor) settleAndTrigger(ctx context.Context) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.settling = false
		m.mu.Unlock()
	}()

	select {
	case <-time.After(m.config.SettleDelay):
	case <-ctx.Done():
		return
	case <-m.stopCh:
		return
	}

	m.mu.Lock()
	online := m.online
	m.mu.Unlock()

	// Connection did not survive the settle window.
	if !online {
		return
	}

	if m.trigger != nil {
		m.trigger(ctx)
	}
}
