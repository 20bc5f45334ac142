package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/internal/retry"
	"github.com/yairfalse/apidrift/pkg/types"
	"golang.org/x/sync/errgroup"
)

const (
	contentSuffix  = ".api.json"
	metadataSuffix = ".meta.json"

	defaultFanout = 8
)

// ObjectBackendOptions configures an ObjectBackend
type ObjectBackendOptions struct {
	Name            string
	Kind            BackendKind
	Prefix          string
	NativeLifecycle bool
	// TempDir receives retrieved snapshots; empty uses os.TempDir
	TempDir string
	// Fanout bounds concurrent metadata downloads
	Fanout int
	Logger logger.Logger
	Now    func() time.Time
}

// ObjectBackend implements Backend on top of any ObjectStore. Snapshots
// are laid out as <prefix>/snapshots/<package>/<commit>.api.json with a
// sibling <commit>.meta.json record.
type ObjectBackend struct {
	store           ObjectStore
	name            string
	kind            BackendKind
	prefix          string
	nativeLifecycle bool
	tempDir         string
	fanout          int
	log             logger.Logger
	now             func() time.Time
}

// NewObjectBackend wraps an object store with the snapshot layout
func NewObjectBackend(store ObjectStore, opts ObjectBackendOptions) *ObjectBackend {
	b := &ObjectBackend{
		store:           store,
		name:            opts.Name,
		kind:            opts.Kind,
		prefix:          strings.Trim(opts.Prefix, "/"),
		nativeLifecycle: opts.NativeLifecycle,
		tempDir:         opts.TempDir,
		fanout:          opts.Fanout,
		log:             opts.Logger,
		now:             opts.Now,
	}
	if b.fanout <= 0 {
		b.fanout = defaultFanout
	}
	if b.log == nil {
		b.log = logger.NewDiscard()
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.log = b.log.WithFields(map[string]interface{}{
		"backend": b.name,
		"kind":    b.kind.String(),
	})
	return b
}

func (b *ObjectBackend) Name() string      { return b.name }
func (b *ObjectBackend) Kind() BackendKind { return b.kind }
func (b *ObjectBackend) Close() error      { return b.store.Close() }

func (b *ObjectBackend) snapshotsRoot() string {
	return path.Join(b.prefix, "snapshots") + "/"
}

func (b *ObjectBackend) packagePrefix(packageName string) string {
	return b.snapshotsRoot() + url.PathEscape(packageName) + "/"
}

func (b *ObjectBackend) contentKey(packageName, commitHash string) string {
	return b.packagePrefix(packageName) + url.PathEscape(commitHash) + contentSuffix
}

func (b *ObjectBackend) metadataKey(packageName, commitHash string) string {
	return b.packagePrefix(packageName) + url.PathEscape(commitHash) + metadataSuffix
}

// Store uploads the snapshot and its metadata concurrently. If either
// upload fails both objects are removed again.
func (b *ObjectBackend) Store(ctx context.Context, packageName, snapshotPath string, meta types.SnapshotMetadata) (string, error) {
	werr := func(err error) error {
		return &StorageWriteError{Backend: b.name, Package: packageName, Commit: meta.CommitHash, Err: err}
	}

	content, err := os.ReadFile(snapshotPath)
	if err != nil {
		// a missing local file will not appear on retry
		return "", retry.Permanent(werr(fmt.Errorf("failed to read snapshot file: %w", err)))
	}

	sum := sha256.Sum256(content)
	meta.PackageName = packageName
	meta.FileSize = int64(len(content))
	meta.Checksum = hex.EncodeToString(sum[:])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = b.now().UTC()
	}
	if err := meta.Validate(); err != nil {
		return "", retry.Permanent(werr(err))
	}

	record, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", retry.Permanent(werr(fmt.Errorf("failed to encode metadata: %w", err)))
	}

	contentKey := b.contentKey(packageName, meta.CommitHash)
	metaKey := b.metadataKey(packageName, meta.CommitHash)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.store.Put(gctx, contentKey, content) })
	g.Go(func() error { return b.store.Put(gctx, metaKey, record) })

	if err := g.Wait(); err != nil {
		b.rollback(ctx, contentKey, metaKey)
		return "", werr(err)
	}

	b.log.WithFields(map[string]interface{}{
		"package": packageName,
		"commit":  meta.CommitHash,
		"size":    meta.FileSize,
	}).Debug("Stored snapshot")
	return b.store.Location(contentKey), nil
}

func (b *ObjectBackend) rollback(ctx context.Context, keys ...string) {
	// the caller's context may already be done
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for _, key := range keys {
		if err := b.store.Delete(cctx, key); err != nil {
			b.log.WithField("key", b.store.Location(key)).Warn(fmt.Sprintf("Failed to roll back partial upload: %v", err))
		}
	}
}

// Retrieve downloads the snapshot to a temp file after verifying its
// checksum against the metadata record
func (b *ObjectBackend) Retrieve(ctx context.Context, packageName, commitHash string) (string, error) {
	metaKey := b.metadataKey(packageName, commitHash)
	contentKey := b.contentKey(packageName, commitHash)

	raw, err := b.store.Get(ctx, metaKey)
	if errors.Is(err, ErrObjectNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &StorageReadError{Backend: b.name, Key: b.store.Location(metaKey), Err: err}
	}

	var meta types.SnapshotMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", &StorageReadError{Backend: b.name, Key: b.store.Location(metaKey), Err: fmt.Errorf("malformed metadata: %w", err)}
	}

	content, err := b.store.Get(ctx, contentKey)
	if errors.Is(err, ErrObjectNotFound) {
		b.log.WithField("package", packageName).Warn(fmt.Sprintf("Metadata without content for commit %s", commitHash))
		return "", nil
	}
	if err != nil {
		return "", &StorageReadError{Backend: b.name, Key: b.store.Location(contentKey), Err: err}
	}

	if meta.Checksum != "" {
		sum := sha256.Sum256(content)
		if got := hex.EncodeToString(sum[:]); got != meta.Checksum {
			return "", retry.Permanent(&StorageReadError{
				Backend: b.name,
				Key:     b.store.Location(contentKey),
				Err:     fmt.Errorf("checksum mismatch: expected %s, got %s", meta.Checksum, got),
			})
		}
	}

	f, err := os.CreateTemp(b.tempDir, "apidrift-baseline-*"+contentSuffix)
	if err != nil {
		return "", &StorageReadError{Backend: b.name, Key: b.store.Location(contentKey), Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", &StorageReadError{Backend: b.name, Key: b.store.Location(contentKey), Err: fmt.Errorf("failed to write temp file: %w", err)}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", &StorageReadError{Backend: b.name, Key: b.store.Location(contentKey), Err: err}
	}

	return f.Name(), nil
}

// GetBaseline retrieves the newest snapshot stored for the branch
func (b *ObjectBackend) GetBaseline(ctx context.Context, packageName, branch string) (*types.BaselineSnapshot, error) {
	snapshots, err := b.ListSnapshots(ctx, packageName, ListOptions{Branch: branch, Limit: 1})
	if err != nil {
		return nil, err
	}

	for _, meta := range snapshots {
		filePath, err := b.Retrieve(ctx, packageName, meta.CommitHash)
		if err != nil {
			return nil, err
		}
		if filePath == "" {
			return nil, nil
		}

		return &types.BaselineSnapshot{
			PackageName: packageName,
			FilePath:    filePath,
			Metadata:    meta,
		}, nil
	}

	return nil, nil
}

// ListSnapshots returns the package's metadata records, newest first
func (b *ObjectBackend) ListSnapshots(ctx context.Context, packageName string, opts ListOptions) ([]types.SnapshotMetadata, error) {
	records, err := b.loadRecords(ctx, b.packagePrefix(packageName))
	if err != nil {
		return nil, err
	}

	snapshots := make([]types.SnapshotMetadata, 0, len(records))
	for _, r := range records {
		if opts.Branch != "" && r.meta.Branch != opts.Branch {
			continue
		}
		snapshots = append(snapshots, r.meta)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		if !snapshots[i].Timestamp.Equal(snapshots[j].Timestamp) {
			return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
		}
		return snapshots[i].CommitHash < snapshots[j].CommitHash
	})

	if opts.Limit > 0 && len(snapshots) > opts.Limit {
		snapshots = snapshots[:opts.Limit]
	}
	return snapshots, nil
}

// Cleanup removes snapshots older than retentionDays. Backends whose
// bucket lifecycle rules handle expiry skip this entirely.
func (b *ObjectBackend) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if b.nativeLifecycle {
		b.log.Info("Retention is handled by bucket lifecycle rules, skipping cleanup")
		return 0, nil
	}
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}

	records, err := b.loadRecords(ctx, b.snapshotsRoot())
	if err != nil {
		return 0, err
	}

	cutoff := b.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed := 0
	var errs []error

	for _, r := range records {
		if !r.meta.Timestamp.Before(cutoff) {
			continue
		}

		contentKey := strings.TrimSuffix(r.key, metadataSuffix) + contentSuffix
		if err := b.store.Delete(ctx, contentKey); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", b.store.Location(contentKey), err))
			continue
		}
		if err := b.store.Delete(ctx, r.key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", b.store.Location(r.key), err))
			continue
		}
		removed++
	}

	b.log.WithFields(map[string]interface{}{
		"removed":        removed,
		"retention_days": retentionDays,
	}).Info("Snapshot cleanup finished")

	return removed, errors.Join(errs...)
}

// HealthCheck writes, reads back and deletes a probe object
func (b *ObjectBackend) HealthCheck(ctx context.Context) error {
	key := path.Join(b.prefix, ".health", uuid.NewString())
	payload := []byte(b.now().UTC().Format(time.RFC3339Nano))

	if err := b.store.Put(ctx, key, payload); err != nil {
		return fmt.Errorf("health probe write to %s failed: %w", b.store.Location(key), err)
	}

	got, err := b.store.Get(ctx, key)
	if err != nil {
		b.rollback(ctx, key)
		return fmt.Errorf("health probe read from %s failed: %w", b.store.Location(key), err)
	}
	if !bytes.Equal(got, payload) {
		b.rollback(ctx, key)
		return fmt.Errorf("health probe read back different content from %s", b.store.Location(key))
	}

	if err := b.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("health probe delete of %s failed: %w", b.store.Location(key), err)
	}
	return nil
}

// Stats aggregates every metadata record held by the backend
func (b *ObjectBackend) Stats(ctx context.Context) (types.StorageStats, error) {
	var stats types.StorageStats

	records, err := b.loadRecords(ctx, b.snapshotsRoot())
	if err != nil {
		return stats, err
	}
	for _, r := range records {
		stats.Add(r.meta)
	}
	return stats, nil
}

type metadataRecord struct {
	key  string
	meta types.SnapshotMetadata
}

// loadRecords downloads every metadata object under prefix with bounded
// concurrency. Malformed or vanished records are logged and skipped.
func (b *ObjectBackend) loadRecords(ctx context.Context, prefix string) ([]metadataRecord, error) {
	objects, err := b.store.List(ctx, prefix)
	if err != nil {
		return nil, &StorageReadError{Backend: b.name, Key: b.store.Location(prefix), Err: err}
	}

	var keys []string
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, metadataSuffix) {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)

	results := make([]*metadataRecord, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.fanout)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			raw, err := b.store.Get(gctx, key)
			if errors.Is(err, ErrObjectNotFound) {
				return nil
			}
			if err != nil {
				return &StorageReadError{Backend: b.name, Key: b.store.Location(key), Err: err}
			}

			var meta types.SnapshotMetadata
			if err := json.Unmarshal(raw, &meta); err != nil {
				b.log.WithField("key", b.store.Location(key)).Warn(fmt.Sprintf("Skipping malformed metadata: %v", err))
				return nil
			}
			if err := meta.Validate(); err != nil {
				b.log.WithField("key", b.store.Location(key)).Warn(fmt.Sprintf("Skipping invalid metadata: %v", err))
				return nil
			}

			results[i] = &metadataRecord{key: key, meta: meta}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]metadataRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}
