package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageLevel(t *testing.T) {
	assert.Equal(t, LevelCmd, packageLevel("cmd/apidrift/commands"))
	assert.Equal(t, LevelOrchestration, packageLevel("internal/detector"))
	assert.Equal(t, LevelConfig, packageLevel("pkg/config"))
	assert.Equal(t, LevelTypes, packageLevel("pkg/types"))
	assert.Equal(t, Level(0), packageLevel("internal/detectorx"))
}

func TestCheck_ModuleIsLayered(t *testing.T) {
	checked, violations, err := check(filepath.Join("..", ".."))
	require.NoError(t, err)
	assert.Greater(t, checked, 0)
	assert.Empty(t, violations)
}

func TestCheck_ReportsUpwardImport(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	write("go.mod", "module example.com/drift\n\ngo 1.24\n")
	write("pkg/types/types.go", "package types\n\nimport _ \"example.com/drift/internal/differ\"\n")
	write("internal/differ/differ.go", "package differ\n\nimport _ \"example.com/drift/pkg/types\"\n")

	checked, violations, err := check(root)
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	require.Len(t, violations, 1)
	assert.Equal(t, "pkg/types", violations[0].FromPackage)
	assert.Equal(t, "internal/differ", violations[0].ToPackage)

	var out bytes.Buffer
	report(&out, checked, violations)
	assert.Contains(t, out.String(), "TYPES (Level 6) -> DOMAIN (Level 3)")
}
