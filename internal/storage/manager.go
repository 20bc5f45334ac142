package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/internal/retry"
	"github.com/yairfalse/apidrift/pkg/config"
	"github.com/yairfalse/apidrift/pkg/types"
)

// ManagerOptions controls failover and health probing
type ManagerOptions struct {
	HealthCheckInterval time.Duration
	HealthCheckWarmup   time.Duration
	ProbeTimeout        time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
	OperationTimeout    time.Duration
	Logger              logger.Logger
	Now                 func() time.Time
}

// OptionsFromConfig maps storage configuration onto manager options
func OptionsFromConfig(cfg config.StorageConfig, log logger.Logger) ManagerOptions {
	return ManagerOptions{
		HealthCheckInterval: cfg.HealthCheckInterval,
		HealthCheckWarmup:   cfg.HealthCheckWarmup,
		ProbeTimeout:        cfg.ProbeTimeout,
		RetryAttempts:       cfg.RetryAttempts,
		RetryDelay:          cfg.RetryDelay,
		OperationTimeout:    cfg.OperationTimeout,
		Logger:              log,
	}
}

// Manager routes snapshot operations across an ordered list of backends.
// Each operation is tried on the first healthy backend with retries, then
// fails over to the next one in order.
type Manager struct {
	backends []Backend
	opts     ManagerOptions
	health   *healthRegistry
	log      logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a manager over backends in failover order
func NewManager(backends []Backend, opts ManagerOptions) *Manager {
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 5 * time.Minute
	}
	if opts.HealthCheckWarmup <= 0 {
		opts.HealthCheckWarmup = 5 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDiscard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		backends: backends,
		opts:     opts,
		health:   newHealthRegistry(),
		log:      opts.Logger.WithField("component", "storage-manager"),
		now:      opts.Now,
	}
}

// Backends returns the managed backends in failover order
func (m *Manager) Backends() []Backend {
	return m.backends
}

// Store writes the snapshot to the first backend that accepts it
func (m *Manager) Store(ctx context.Context, packageName, snapshotPath string, meta types.SnapshotMetadata) (string, error) {
	var location string
	err := m.execute(ctx, "store", func(ctx context.Context, b Backend) error {
		loc, err := b.Store(ctx, packageName, snapshotPath, meta)
		if err != nil {
			return err
		}
		location = loc
		return nil
	})
	return location, err
}

// Retrieve downloads a snapshot from the first healthy backend. A backend
// that answers "not found" ends the search.
func (m *Manager) Retrieve(ctx context.Context, packageName, commitHash string) (string, error) {
	var filePath string
	err := m.execute(ctx, "retrieve", func(ctx context.Context, b Backend) error {
		p, err := b.Retrieve(ctx, packageName, commitHash)
		if err != nil {
			return err
		}
		filePath = p
		return nil
	})
	return filePath, err
}

// GetBaseline returns the newest snapshot for the branch, or nil when the
// first healthy backend has none
func (m *Manager) GetBaseline(ctx context.Context, packageName, branch string) (*types.BaselineSnapshot, error) {
	var baseline *types.BaselineSnapshot
	err := m.execute(ctx, "get-baseline", func(ctx context.Context, b Backend) error {
		bs, err := b.GetBaseline(ctx, packageName, branch)
		if err != nil {
			return err
		}
		baseline = bs
		return nil
	})
	return baseline, err
}

// ListSnapshots returns an empty list when no backend can answer
func (m *Manager) ListSnapshots(ctx context.Context, packageName string, opts ListOptions) []types.SnapshotMetadata {
	var snapshots []types.SnapshotMetadata
	err := m.execute(ctx, "list", func(ctx context.Context, b Backend) error {
		s, err := b.ListSnapshots(ctx, packageName, opts)
		if err != nil {
			return err
		}
		snapshots = s
		return nil
	})
	if err != nil {
		m.log.WithField("package", packageName).Warn("Listing snapshots failed on every backend: " + err.Error())
		return []types.SnapshotMetadata{}
	}
	if snapshots == nil {
		snapshots = []types.SnapshotMetadata{}
	}
	return snapshots
}

// Cleanup is a no-op returning zero when no backend can answer
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) int {
	var removed int
	err := m.execute(ctx, "cleanup", func(ctx context.Context, b Backend) error {
		n, err := b.Cleanup(ctx, retentionDays)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		m.log.Warn("Cleanup failed on every backend: " + err.Error())
		return 0
	}
	return removed
}

// Stats returns zeroed stats when no backend can answer
func (m *Manager) Stats(ctx context.Context) types.StorageStats {
	var stats types.StorageStats
	err := m.execute(ctx, "stats", func(ctx context.Context, b Backend) error {
		s, err := b.Stats(ctx)
		if err != nil {
			return err
		}
		stats = s
		return nil
	})
	if err != nil {
		m.log.Warn("Stats failed on every backend: " + err.Error())
		return types.StorageStats{}
	}
	return stats
}

// Close stops the prober and releases every backend
func (m *Manager) Close() error {
	m.Stop()

	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// execute runs fn against backends in order until one succeeds. The
// whole loop is bounded by the operation timeout.
func (m *Manager) execute(ctx context.Context, operation string, fn func(ctx context.Context, b Backend) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.OperationTimeout)
	defer cancel()

	var failures []BackendFailure

	for _, b := range m.backends {
		log := m.log.WithFields(map[string]interface{}{
			"backend":   b.Name(),
			"operation": operation,
		})

		if err := ctx.Err(); err != nil {
			failures = append(failures, BackendFailure{Backend: b.Name(), Err: err})
			continue
		}

		if h := m.currentHealth(ctx, b); !h.Healthy {
			log.Debug("Skipping unhealthy backend")
			failures = append(failures, BackendFailure{
				Backend: b.Name(),
				Err:     fmt.Errorf("%w: %s", ErrBackendUnhealthy, h.Error),
			})
			continue
		}

		started := m.now()
		attempts := 0
		err := retry.Do(ctx, retry.Policy{
			Attempts:  m.opts.RetryAttempts,
			BaseDelay: m.opts.RetryDelay,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.WithFields(map[string]interface{}{
					"attempt":  attempt,
					"attempts": m.opts.RetryAttempts,
					"backoff":  wait.String(),
				}).Warn("Storage operation failed, retrying: " + err.Error())
			},
		}, func(ctx context.Context) error {
			attempts++
			return fn(ctx, b)
		})

		if err == nil {
			m.record(b, started, nil)
			return nil
		}

		// a caller-side deadline says nothing about the backend itself
		if ctx.Err() == nil {
			m.record(b, started, err)
		}
		log.WithField("attempt", attempts).Error("Storage operation failed, failing over", err)
		failures = append(failures, BackendFailure{Backend: b.Name(), Err: err})
	}

	return &AllBackendsFailedError{Operation: operation, Failures: failures}
}

// currentHealth returns cached health, probing synchronously when the
// entry is missing or stale
func (m *Manager) currentHealth(ctx context.Context, b Backend) types.StorageHealth {
	if h, ok := m.health.get(b.Name()); ok && !h.IsStale(m.now(), m.opts.HealthCheckInterval) {
		return h
	}
	return m.probe(ctx, b)
}

func (m *Manager) record(b Backend, observedAt time.Time, err error) {
	h := types.StorageHealth{
		Backend:   b.Name(),
		Kind:      b.Kind().String(),
		Healthy:   err == nil,
		LastCheck: observedAt,
		Latency:   m.now().Sub(observedAt),
	}
	if err != nil {
		h.Error = err.Error()
	}
	m.health.update(h)
}
