package storage

import (
	"context"
	"time"

	"github.com/yairfalse/apidrift/pkg/types"
)

// Backend persists API snapshots and their metadata
type Backend interface {
	// Store uploads the snapshot file and its metadata record and returns
	// the stored location
	Store(ctx context.Context, packageName, snapshotPath string, meta types.SnapshotMetadata) (string, error)
	// Retrieve downloads a stored snapshot to a local temp file. A missing
	// snapshot yields an empty path and a nil error.
	Retrieve(ctx context.Context, packageName, commitHash string) (string, error)
	// GetBaseline returns the newest snapshot recorded for the branch, or
	// nil when there is none
	GetBaseline(ctx context.Context, packageName, branch string) (*types.BaselineSnapshot, error)
	// ListSnapshots returns metadata for a package, newest first
	ListSnapshots(ctx context.Context, packageName string, opts ListOptions) ([]types.SnapshotMetadata, error)
	// Cleanup deletes snapshots older than the retention window and
	// returns how many were removed
	Cleanup(ctx context.Context, retentionDays int) (int, error)
	// HealthCheck verifies the backend can write, read and delete
	HealthCheck(ctx context.Context) error
	Stats(ctx context.Context) (types.StorageStats, error)
	Name() string
	Kind() BackendKind
	Close() error
}

// ListOptions narrows a snapshot listing. Filters are applied to the
// metadata records client-side.
type ListOptions struct {
	// Limit caps the number of results; zero means unlimited
	Limit  int
	Branch string
}

// KindTag distinguishes remote object stores from the shared local cache
type KindTag string

const (
	KindCloud      KindTag = "cloud"
	KindLocalCache KindTag = "local-cache"
)

// BackendKind is fixed at construction and never inferred from the
// concrete type
type BackendKind struct {
	Tag      KindTag
	Provider string
}

// CloudKind describes an object store backend
func CloudKind(provider string) BackendKind {
	return BackendKind{Tag: KindCloud, Provider: provider}
}

// LocalCacheKind describes the filesystem cache backend
func LocalCacheKind() BackendKind {
	return BackendKind{Tag: KindLocalCache, Provider: "local"}
}

func (k BackendKind) String() string {
	return string(k.Tag) + "/" + k.Provider
}

// ObjectInfo describes one listed object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the minimal blob API the snapshot layout is built on
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrObjectNotFound when the key does not exist
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Location renders a key for logs and error messages
	Location(key string) string
	Close() error
}
