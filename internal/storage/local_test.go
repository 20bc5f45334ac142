package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "snapshots/core/abc.api.json", []byte("{}")))

	data, err := store.Get(ctx, "snapshots/core/abc.api.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.NoError(t, store.Delete(ctx, "snapshots/core/abc.api.json"))
	_, err = store.Get(ctx, "snapshots/core/abc.api.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.NoError(t, store.Delete(ctx, "snapshots/core/abc.api.json"), "deleting twice is fine")
}

func TestLocalStore_KeysStayInsideBaseDir(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "../../escape.json", []byte("x")))
	_, err = os.Stat(filepath.Join(base, "escape.json"))
	assert.NoError(t, err)
}

func TestLocalStore_List(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base)
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{
		"snapshots/core/a.meta.json",
		"snapshots/core/a.api.json",
		"snapshots/core-utils/b.meta.json",
		".health/probe",
	} {
		require.NoError(t, store.Put(ctx, key, []byte("{}")))
	}
	// leftover from an interrupted write
	require.NoError(t, os.WriteFile(filepath.Join(base, "snapshots", "core", "c.meta.json.tmp.deadbeef"), []byte("{"), 0644))

	objects, err := store.List(ctx, "snapshots/core/")
	require.NoError(t, err)

	var keys []string
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"snapshots/core/a.meta.json", "snapshots/core/a.api.json"}, keys)

	none, err := store.List(ctx, "snapshots/unknown/")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalBackend_EndToEnd(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	b := NewObjectBackend(store, ObjectBackendOptions{Name: "cache", Kind: LocalCacheKind(), TempDir: t.TempDir()})
	ctx := context.Background()

	require.NoError(t, b.HealthCheck(ctx))

	_, err = b.Store(ctx, "@acme/ui", writeSnapshot(t, `{"members":[]}`), meta("f00d", "main", testNow))
	require.NoError(t, err)

	baseline, err := b.GetBaseline(ctx, "@acme/ui", "main")
	require.NoError(t, err)
	require.NotNil(t, baseline)
	assert.Equal(t, "f00d", baseline.Metadata.CommitHash)

	require.NoError(t, baseline.Cleanup())
	_, err = os.Stat(baseline.FilePath)
	assert.True(t, os.IsNotExist(err))
}
