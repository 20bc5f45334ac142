package storage

import (
	"context"
	"sync"
	"time"

	"github.com/yairfalse/apidrift/internal/retry"
	"github.com/yairfalse/apidrift/pkg/types"
	"golang.org/x/sync/errgroup"
)

// healthRegistry holds the last observation per backend. Writers race
// between the background prober and in-flight operations, so an update
// only lands if it was observed no earlier than the stored one.
type healthRegistry struct {
	mu      sync.RWMutex
	entries map[string]types.StorageHealth
}

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{entries: make(map[string]types.StorageHealth)}
}

func (r *healthRegistry) get(name string) (types.StorageHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.entries[name]
	return h, ok
}

// update stores h unless a newer observation is already present and
// reports whether it was applied
func (r *healthRegistry) update(h types.StorageHealth) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[h.Backend]; ok && h.LastCheck.Before(current.LastCheck) {
		return false
	}
	r.entries[h.Backend] = h
	return true
}

// probe runs one bounded health check against b and records the result
func (m *Manager) probe(ctx context.Context, b Backend) types.StorageHealth {
	observedAt := m.now()

	pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	err := retry.Do(pctx, retry.Policy{
		Attempts:  2,
		BaseDelay: m.opts.RetryDelay,
	}, b.HealthCheck)

	h := types.StorageHealth{
		Backend:   b.Name(),
		Kind:      b.Kind().String(),
		Healthy:   err == nil,
		LastCheck: observedAt,
		Latency:   m.now().Sub(observedAt),
	}
	if err != nil {
		h.Error = err.Error()
		m.log.WithField("backend", b.Name()).Warn("Health check failed: " + err.Error())
	}

	m.health.update(h)
	return h
}

// CheckHealth probes every backend concurrently and returns the
// resulting health in failover order
func (m *Manager) CheckHealth(ctx context.Context) []types.StorageHealth {
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range m.backends {
		b := b
		g.Go(func() error {
			m.probe(gctx, b)
			return nil
		})
	}
	_ = g.Wait()

	return m.Health()
}

// Health returns the cached health of every backend in failover order.
// Backends never probed are reported unhealthy with a zero LastCheck.
func (m *Manager) Health() []types.StorageHealth {
	out := make([]types.StorageHealth, 0, len(m.backends))
	for _, b := range m.backends {
		h, ok := m.health.get(b.Name())
		if !ok {
			h = types.StorageHealth{
				Backend: b.Name(),
				Kind:    b.Kind().String(),
				Error:   "not checked yet",
			}
		}
		out = append(out, h)
	}
	return out
}

// Start launches the background prober. The first probe runs after the
// warm-up delay, then every health check interval until Stop is called
// or ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.shutdown = make(chan struct{})

	m.wg.Add(1)
	go m.healthCheckLoop(ctx, m.shutdown)
}

// Stop halts the background prober and waits for it to exit
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.shutdown)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) healthCheckLoop(ctx context.Context, shutdown <-chan struct{}) {
	defer m.wg.Done()

	warmup := time.NewTimer(m.opts.HealthCheckWarmup)
	defer warmup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-shutdown:
		return
	case <-warmup.C:
		m.CheckHealth(ctx)
	}

	ticker := time.NewTicker(m.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		case <-ticker.C:
			m.CheckHealth(ctx)
		}
	}
}
