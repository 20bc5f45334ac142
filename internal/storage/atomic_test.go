package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriter_WriteAndRead(t *testing.T) {
	w := NewAtomicWriter()
	target := filepath.Join(t.TempDir(), "nested", "dir", "core.api.json")

	require.NoError(t, w.WriteFile(target, []byte("first"), 0644))
	require.NoError(t, w.WriteFile(target, []byte("second"), 0644))

	data, err := w.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAtomicWriter_ConcurrentWrites(t *testing.T) {
	w := NewAtomicWriter()
	target := filepath.Join(t.TempDir(), "meta.json")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.WriteFile(target, []byte(fmt.Sprintf("payload-%02d", i)), 0644))
		}(i)
	}
	wg.Wait()

	data, err := w.ReadFile(target)
	require.NoError(t, err)
	assert.Len(t, data, len("payload-00"), "file always holds one complete payload")
}

func TestAtomicWriter_RemoveMissing(t *testing.T) {
	w := NewAtomicWriter()
	assert.NoError(t, w.Remove(filepath.Join(t.TempDir(), "absent")))
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, isTempFile("/x/core.api.json.tmp.1a2b3c4d"))
	assert.False(t, isTempFile("/x/core.api.json"))
}
