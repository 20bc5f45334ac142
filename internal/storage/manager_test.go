package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/apidrift/pkg/types"
)

// fakeBackend counts calls and fails on demand
type fakeBackend struct {
	name       string
	kind       BackendKind
	healthErr  error
	opErr      error
	baseline   *types.BaselineSnapshot
	snapshots  []types.SnapshotMetadata
	stats      types.StorageStats
	storeCalls atomic.Int32
	probes     atomic.Int32
	closed     bool
}

func newFake(name string) *fakeBackend {
	return &fakeBackend{name: name, kind: CloudKind("s3")}
}

func (f *fakeBackend) Store(ctx context.Context, packageName, snapshotPath string, meta types.SnapshotMetadata) (string, error) {
	f.storeCalls.Add(1)
	if f.opErr != nil {
		return "", f.opErr
	}
	return f.name + "://" + packageName + "/" + meta.CommitHash, nil
}

func (f *fakeBackend) Retrieve(ctx context.Context, packageName, commitHash string) (string, error) {
	if f.opErr != nil {
		return "", f.opErr
	}
	return "", nil
}

func (f *fakeBackend) GetBaseline(ctx context.Context, packageName, branch string) (*types.BaselineSnapshot, error) {
	if f.opErr != nil {
		return nil, f.opErr
	}
	return f.baseline, nil
}

func (f *fakeBackend) ListSnapshots(ctx context.Context, packageName string, opts ListOptions) ([]types.SnapshotMetadata, error) {
	if f.opErr != nil {
		return nil, f.opErr
	}
	return f.snapshots, nil
}

func (f *fakeBackend) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if f.opErr != nil {
		return 0, f.opErr
	}
	return 3, nil
}

func (f *fakeBackend) HealthCheck(ctx context.Context) error {
	f.probes.Add(1)
	return f.healthErr
}

func (f *fakeBackend) Stats(ctx context.Context) (types.StorageStats, error) {
	if f.opErr != nil {
		return types.StorageStats{}, f.opErr
	}
	return f.stats, nil
}

func (f *fakeBackend) Name() string      { return f.name }
func (f *fakeBackend) Kind() BackendKind { return f.kind }
func (f *fakeBackend) Close() error      { f.closed = true; return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(clock *fakeClock, backends ...Backend) *Manager {
	return NewManager(backends, ManagerOptions{
		HealthCheckInterval: time.Minute,
		ProbeTimeout:        time.Second,
		RetryAttempts:       3,
		RetryDelay:          time.Millisecond,
		OperationTimeout:    5 * time.Second,
		Now:                 clock.Now,
	})
}

func TestManager_StoreFailsOverToFallback(t *testing.T) {
	clock := &fakeClock{now: testNow}
	primary := newFake("primary")
	primary.opErr = errors.New("503 slow down")
	fallback := newFake("fallback")
	m := newTestManager(clock, primary, fallback)

	loc, err := m.Store(context.Background(), "core", "/tmp/core.api.json", meta("abc", "main", testNow))
	require.NoError(t, err)
	assert.Equal(t, "fallback://core/abc", loc)
	assert.Equal(t, int32(3), primary.storeCalls.Load(), "primary gets every retry")
	assert.Equal(t, int32(1), fallback.storeCalls.Load())

	health := m.Health()
	require.Len(t, health, 2)
	assert.Equal(t, "primary", health[0].Backend)
	assert.False(t, health[0].Healthy)
	assert.Contains(t, health[0].Error, "503 slow down")
	assert.True(t, health[1].Healthy)
}

func TestManager_FirstSuccessWins(t *testing.T) {
	clock := &fakeClock{now: testNow}
	primary := newFake("primary")
	fallback := newFake("fallback")
	m := newTestManager(clock, primary, fallback)

	_, err := m.Store(context.Background(), "core", "/tmp/x", meta("abc", "main", testNow))
	require.NoError(t, err)
	assert.Equal(t, int32(1), primary.storeCalls.Load())
	assert.Zero(t, fallback.storeCalls.Load())
	assert.Zero(t, fallback.probes.Load(), "later backends are not even probed")
}

func TestManager_AllBackendsFailed(t *testing.T) {
	clock := &fakeClock{now: testNow}
	primary := newFake("primary")
	primary.healthErr = errors.New("no route to host")
	fallback := newFake("fallback")
	fallback.opErr = errors.New("access denied")
	m := newTestManager(clock, primary, fallback)
	ctx := context.Background()

	_, err := m.Store(ctx, "core", "/tmp/x", meta("abc", "main", testNow))
	var all *AllBackendsFailedError
	require.ErrorAs(t, err, &all)
	assert.Equal(t, "store", all.Operation)
	require.Len(t, all.Failures, 2)
	assert.ErrorIs(t, all.Failures[0].Err, ErrBackendUnhealthy)
	assert.Zero(t, primary.storeCalls.Load(), "unhealthy backend is skipped")

	_, err = m.Retrieve(ctx, "core", "abc")
	assert.ErrorAs(t, err, &all)
	_, err = m.GetBaseline(ctx, "core", "main")
	assert.ErrorAs(t, err, &all)
}

func TestManager_GracefulDegradation(t *testing.T) {
	clock := &fakeClock{now: testNow}
	primary := newFake("primary")
	primary.healthErr = errors.New("down")
	fallback := newFake("fallback")
	fallback.healthErr = errors.New("down")
	m := newTestManager(clock, primary, fallback)
	ctx := context.Background()

	snapshots := m.ListSnapshots(ctx, "core", ListOptions{})
	assert.NotNil(t, snapshots)
	assert.Empty(t, snapshots)
	assert.Zero(t, m.Cleanup(ctx, 30))
	assert.Equal(t, types.StorageStats{}, m.Stats(ctx))

	_, err := m.Store(ctx, "core", "/tmp/x", meta("abc", "main", testNow))
	var all *AllBackendsFailedError
	assert.ErrorAs(t, err, &all)
}

func TestManager_HealthyResultsPassThrough(t *testing.T) {
	clock := &fakeClock{now: testNow}
	b := newFake("primary")
	b.snapshots = []types.SnapshotMetadata{{PackageName: "core", CommitHash: "c1"}}
	b.stats = types.StorageStats{SnapshotCount: 7}
	b.baseline = &types.BaselineSnapshot{PackageName: "core", FilePath: "/tmp/b"}
	m := newTestManager(clock, b)
	ctx := context.Background()

	assert.Len(t, m.ListSnapshots(ctx, "core", ListOptions{}), 1)
	assert.Equal(t, 3, m.Cleanup(ctx, 30))
	assert.Equal(t, 7, m.Stats(ctx).SnapshotCount)

	baseline, err := m.GetBaseline(ctx, "core", "main")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b", baseline.FilePath)

	path, err := m.Retrieve(ctx, "core", "missing")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestManager_StaleHealthIsReprobed(t *testing.T) {
	clock := &fakeClock{now: testNow}
	b := newFake("primary")
	m := newTestManager(clock, b)
	ctx := context.Background()

	_, err := m.Retrieve(ctx, "core", "abc")
	require.NoError(t, err)
	assert.Equal(t, int32(1), b.probes.Load(), "first use probes")

	clock.Advance(90 * time.Second)
	_, err = m.Retrieve(ctx, "core", "abc")
	require.NoError(t, err)
	assert.Equal(t, int32(1), b.probes.Load(), "fresh entry is trusted")

	clock.Advance(3 * time.Minute)
	b.healthErr = errors.New("expired token")
	_, err = m.Retrieve(ctx, "core", "abc")
	require.Error(t, err)
	assert.GreaterOrEqual(t, b.probes.Load(), int32(2), "stale entry triggers a synchronous probe")
	assert.False(t, m.Health()[0].Healthy)
}

func TestManager_UnhealthyBackendRecoversAfterProbe(t *testing.T) {
	clock := &fakeClock{now: testNow}
	b := newFake("primary")
	b.healthErr = errors.New("down")
	m := newTestManager(clock, b)
	ctx := context.Background()

	m.CheckHealth(ctx)
	assert.False(t, m.Health()[0].Healthy)

	b.healthErr = nil
	clock.Advance(time.Second)
	health := m.CheckHealth(ctx)
	assert.True(t, health[0].Healthy)

	_, err := m.Store(ctx, "core", "/tmp/x", meta("abc", "main", testNow))
	assert.NoError(t, err)
}

func TestHealthRegistry_IgnoresOlderObservations(t *testing.T) {
	r := newHealthRegistry()

	assert.True(t, r.update(types.StorageHealth{Backend: "s3", Healthy: true, LastCheck: testNow}))
	assert.False(t, r.update(types.StorageHealth{Backend: "s3", Healthy: false, LastCheck: testNow.Add(-time.Second)}))

	h, ok := r.get("s3")
	require.True(t, ok)
	assert.True(t, h.Healthy)

	assert.True(t, r.update(types.StorageHealth{Backend: "s3", Healthy: false, LastCheck: testNow.Add(time.Second)}))
	h, _ = r.get("s3")
	assert.False(t, h.Healthy)
}

func TestManager_HealthBeforeAnyProbe(t *testing.T) {
	m := newTestManager(&fakeClock{now: testNow}, newFake("primary"))

	health := m.Health()
	require.Len(t, health, 1)
	assert.False(t, health[0].Healthy)
	assert.True(t, health[0].LastCheck.IsZero())
	assert.Equal(t, "cloud/s3", health[0].Kind)
}

func TestManager_BackgroundProber(t *testing.T) {
	b := newFake("primary")
	m := NewManager([]Backend{b}, ManagerOptions{
		HealthCheckInterval: 10 * time.Millisecond,
		HealthCheckWarmup:   time.Millisecond,
		RetryDelay:          time.Millisecond,
	})

	m.Start(context.Background())
	m.Start(context.Background())

	assert.Eventually(t, func() bool { return b.probes.Load() >= 2 }, time.Second, 5*time.Millisecond)

	m.Stop()
	after := b.probes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, b.probes.Load(), "no probes after Stop")

	require.NoError(t, m.Close())
	assert.True(t, b.closed)
}

func TestManager_CancelledContextDoesNotMarkUnhealthy(t *testing.T) {
	clock := &fakeClock{now: testNow}
	b := newFake("primary")
	m := newTestManager(clock, b)
	m.CheckHealth(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Store(ctx, "core", "/tmp/x", meta("abc", "main", testNow))
	assert.Error(t, err)
	assert.True(t, m.Health()[0].Healthy)
}
