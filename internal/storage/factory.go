package storage

import (
	"context"
	"fmt"

	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/pkg/config"
)

// NewBackend constructs the backend described by cfg. Each backend owns
// its SDK client for its whole lifetime.
func NewBackend(ctx context.Context, cfg config.BackendConfig, log logger.Logger) (Backend, error) {
	var (
		store ObjectStore
		kind  BackendKind
		err   error
	)

	switch cfg.Type {
	case config.BackendS3:
		kind = CloudKind(config.BackendS3)
		store, err = NewS3Store(ctx, cfg)
	case config.BackendGCS:
		kind = CloudKind(config.BackendGCS)
		store, err = NewGCSStore(ctx, cfg)
	case config.BackendAzure:
		kind = CloudKind(config.BackendAzure)
		store, err = NewAzureStore(cfg)
	case config.BackendLocal:
		kind = LocalCacheKind()
		store, err = NewLocalStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return NewObjectBackend(store, ObjectBackendOptions{
		Name:            cfg.Name,
		Kind:            kind,
		Prefix:          cfg.Prefix,
		NativeLifecycle: cfg.NativeLifecycle,
		Logger:          log,
	}), nil
}

// NewBackends constructs backends in failover order. Backends that fail
// to construct are reported and left out; it is an error only when none
// remain.
func NewBackends(ctx context.Context, cfgs []config.BackendConfig, log logger.Logger) ([]Backend, error) {
	var (
		backends []Backend
		failures []BackendFailure
	)

	for _, cfg := range cfgs {
		b, err := NewBackend(ctx, cfg, log)
		if err != nil {
			log.WithField("backend", cfg.Name).Error("Failed to initialize storage backend", err)
			failures = append(failures, BackendFailure{Backend: cfg.Name, Err: err})
			continue
		}
		backends = append(backends, b)
	}

	if len(backends) == 0 {
		return nil, &AllBackendsFailedError{Operation: "initialize", Failures: failures}
	}
	return backends, nil
}
