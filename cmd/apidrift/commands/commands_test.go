package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/apidrift/pkg/types"
)

type workspace struct {
	dir       string
	config    string
	snapshots string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		dir:       dir,
		config:    filepath.Join(dir, "apidrift.yaml"),
		snapshots: filepath.Join(dir, "snapshots"),
	}
	require.NoError(t, os.MkdirAll(w.snapshots, 0755))

	cfg := fmt.Sprintf(`storage:
  primary:
    name: local-primary
    type: local
    path: %s
  retry_attempts: 1
detector:
  packages_file: %s
  snapshot_dir: %s
  baseline_branch: main
logging:
  level: error
`, filepath.Join(dir, "cache"), filepath.Join(dir, "packages.yaml"), w.snapshots)
	require.NoError(t, os.WriteFile(w.config, []byte(cfg), 0644))

	manifest := "packages:\n  - name: \"@acme/core\"\n    version: 1.0.0\n    path: packages/core\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packages.yaml"), []byte(manifest), 0644))
	return w
}

func (w *workspace) writeSnapshot(t *testing.T, functions ...string) {
	t.Helper()
	var members []map[string]interface{}
	for _, name := range functions {
		members = append(members, map[string]interface{}{
			"kind":          "Function",
			"name":          name,
			"excerptTokens": []map[string]string{{"kind": "Content", "text": "export declare function " + name + "(): void;"}},
		})
	}
	model := map[string]interface{}{
		"kind": "Package",
		"name": "@acme/core",
		"members": []map[string]interface{}{
			{"kind": "EntryPoint", "name": "", "members": members},
		},
	}
	data, err := json.Marshal(model)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(w.snapshots, "acme-core.api.json"), data, 0644))
}

func (w *workspace) run(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", w.config}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeResult(t *testing.T, out string) types.AnalysisResult {
	t.Helper()
	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return result
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.4.0", "abc123", "", "")

	var stdout bytes.Buffer
	cmd := NewRootCommand(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"version", "--short"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "1.4.0\n", stdout.String())

	stdout.Reset()
	cmd = NewRootCommand(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "apidrift version 1.4.0")
	assert.Contains(t, stdout.String(), "commit: abc123")
}

func TestCheckCommand_FirstRunReportsAdditions(t *testing.T) {
	w := newWorkspace(t)
	w.writeSnapshot(t, "parse", "render")

	out, err := w.run("check", "-o", "json", "--commit", "c1", "--branch", "feature")
	require.NoError(t, err)

	result := decodeResult(t, out)
	require.Len(t, result.Packages, 1)
	assert.Equal(t, 2, result.Summary.Additions)
	assert.False(t, result.Summary.CIShouldFail)
}

func TestCheckCommand_BreakingChangeAgainstStoredBaseline(t *testing.T) {
	w := newWorkspace(t)
	w.writeSnapshot(t, "parse", "render")

	_, err := w.run("check", "-o", "json", "--commit", "c1", "--branch", "main", "--update-baselines")
	require.NoError(t, err)

	out, err := w.run("baseline", "list", "@acme/core", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"commitHash": "c1"`)

	w.writeSnapshot(t, "render")
	out, err = w.run("check", "-o", "json", "--commit", "c2", "--branch", "feature")
	assert.ErrorIs(t, err, ErrChecksFailed)

	result := decodeResult(t, out)
	require.Len(t, result.Packages, 1)
	pkg := result.Packages[0]
	assert.Equal(t, "c1", pkg.BaselineCommit)
	require.Len(t, pkg.Changes, 1)
	assert.Equal(t, types.ChangeBreaking, pkg.Changes[0].Type)
	assert.Equal(t, "parse", pkg.Changes[0].ItemName)
	assert.True(t, result.Summary.CIShouldFail)

	out, err = w.run("check", "-o", "json", "--commit", "c2", "--branch", "feature", "--fail-on-breaking=false", "--check-version-bump=false")
	require.NoError(t, err)
	assert.False(t, decodeResult(t, out).Summary.CIShouldFail)
}

func TestCheckCommand_UnknownPackage(t *testing.T) {
	w := newWorkspace(t)
	w.writeSnapshot(t, "parse")

	_, err := w.run("check", "@acme/missing", "--commit", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@acme/missing")
}

func TestBaselineStoreAndStats(t *testing.T) {
	w := newWorkspace(t)
	w.writeSnapshot(t, "parse")

	out, err := w.run("baseline", "store", "@acme/core", "--commit", "c9", "--branch", "main", "--version", "1.0.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored @acme/core")

	out, err = w.run("baseline", "stats", "-o", "json")
	require.NoError(t, err)
	var stats types.StorageStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.SnapshotCount)
}

func TestHealthCommand_LocalBackend(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run("health", "-o", "json")
	require.NoError(t, err)

	var health []types.StorageHealth
	require.NoError(t, json.Unmarshal([]byte(out), &health))
	require.Len(t, health, 1)
	assert.Equal(t, "local-primary", health[0].Backend)
	assert.True(t, health[0].Healthy)
}
