package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/praghav/modelgate/pkg/models"
)

// ewmaAlpha weights new latency observations against the running average.
const ewmaAlpha = 0.3

const probeTimeout = 5 * time.Second

// Monitor maintains a ProviderSnapshot per registered provider: a health
// flag refreshed by periodic concurrent probes and an average latency
// updated from observed attempts. The router reads snapshots; it never
// probes or mutates them itself.
type Monitor struct {
	registry *Registry
	interval time.Duration

	mu    sync.RWMutex
	snaps map[string]models.ProviderSnapshot
}

// NewMonitor seeds a snapshot per provider. seedLatencyMs supplies the
// latency estimate used before any attempts have been observed; providers
// missing from it start at zero. Cost is derived from EstimateCost(1000).
func NewMonitor(registry *Registry, seedLatencyMs map[string]float64, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m := &Monitor{
		registry: registry,
		interval: interval,
		snaps:    make(map[string]models.ProviderSnapshot, registry.Len()),
	}
	for _, p := range registry.All() {
		m.snaps[p.Name()] = models.ProviderSnapshot{
			Name:         p.Name(),
			Healthy:      true,
			AvgLatencyMs: seedLatencyMs[p.Name()],
			CostPer1K:    p.EstimateCost(1000),
		}
	}
	return m
}

// Run probes on the configured interval until ctx is cancelled. Meant to be
// launched in its own goroutine at startup.
func (m *Monitor) Run(ctx context.Context) {
	m.ProbeAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll checks every provider concurrently and updates health flags.
func (m *Monitor) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range m.registry.All() {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			healthy := p.IsHealthy(probeCtx)

			m.mu.Lock()
			snap := m.snaps[p.Name()]
			if snap.Healthy != healthy {
				slog.Info("provider health changed", "provider", p.Name(), "healthy", healthy)
			}
			snap.Healthy = healthy
			m.snaps[p.Name()] = snap
			m.mu.Unlock()
		}(p)
	}
	wg.Wait()
}

// Observe folds an attempt latency into the provider's running average.
func (m *Monitor) Observe(name string, latencyMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snaps[name]
	if !ok {
		return
	}
	if snap.AvgLatencyMs == 0 {
		snap.AvgLatencyMs = latencyMs
	} else {
		snap.AvgLatencyMs = ewmaAlpha*latencyMs + (1-ewmaAlpha)*snap.AvgLatencyMs
	}
	m.snaps[name] = snap
}

// MarkUnhealthy records a failed attempt immediately rather than waiting for
// the next probe cycle.
func (m *Monitor) MarkUnhealthy(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap, ok := m.snaps[name]; ok {
		snap.Healthy = false
		m.snaps[name] = snap
	}
}

// Snapshots returns a copy of all snapshots in registration order.
func (m *Monitor) Snapshots() []models.ProviderSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ProviderSnapshot, 0, len(m.snaps))
	for _, name := range m.registry.Names() {
		out = append(out, m.snaps[name])
	}
	return out
}
