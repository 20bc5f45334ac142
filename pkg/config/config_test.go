package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/yairfalse/apidrift/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apidrift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalize()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendLocal, cfg.Storage.Primary.Type)
	assert.Equal(t, 3, cfg.Storage.RetryAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Storage.HealthCheckInterval)
	assert.Equal(t, "main", cfg.Detector.BaselineBranch)
	assert.True(t, cfg.Detector.FailOnBreaking)
}

func TestLoad_FileWithFallbacks(t *testing.T) {
	path := writeConfig(t, `
storage:
  primary:
    type: s3
    bucket: api-snapshots
    region: eu-west-1
    prefix: ci
  fallback:
    - type: gcs
      bucket: api-snapshots-dr
    - name: cache
      type: local
      path: /tmp/apidrift-cache
  retry_attempts: 5
  retry_delay: 250ms
detector:
  branch: feature/x
  commit_hash: abc123
  fail_on_breaking: false
output:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	backends := cfg.Storage.Backends()
	require.Len(t, backends, 3)
	assert.Equal(t, "s3-primary", backends[0].Name)
	assert.Equal(t, "api-snapshots", backends[0].Bucket)
	assert.Equal(t, "ci", backends[0].Prefix)
	assert.Equal(t, "gcs-fallback-1", backends[1].Name)
	assert.Equal(t, "cache", backends[2].Name)

	assert.Equal(t, 5, cfg.Storage.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.RetryDelay)
	assert.Equal(t, 2*time.Minute, cfg.Storage.OperationTimeout, "unset keys keep defaults")
	assert.False(t, cfg.Detector.FailOnBreaking)
	assert.Equal(t, "feature/x", cfg.Detector.Branch)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
detector:
  branch: main
  commit_hash: abc123
`)
	t.Setenv("APIDRIFT_LOGGING_LEVEL", "debug")
	t.Setenv("APIDRIFT_DETECTOR_BASELINE_BRANCH", "release")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "release", cfg.Detector.BaselineBranch)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Primary = BackendConfig{Name: "p", Type: BackendS3} },
			wantErr: "bucket is required",
		},
		{
			name: "s3 with half a key pair",
			mutate: func(c *Config) {
				c.Storage.Primary = BackendConfig{Name: "p", Type: BackendS3, Bucket: "b", AccessKeyID: "id"}
			},
			wantErr: "must be set together",
		},
		{
			name: "azure without credentials",
			mutate: func(c *Config) {
				c.Storage.Primary = BackendConfig{Name: "p", Type: BackendAzure, AccountName: "acct", Container: "snaps"}
			},
			wantErr: "account_key or sas_token",
		},
		{
			name:    "unknown type",
			mutate:  func(c *Config) { c.Storage.Primary = BackendConfig{Name: "p", Type: "ftp"} },
			wantErr: "unknown backend type",
		},
		{
			name: "duplicate names",
			mutate: func(c *Config) {
				c.Storage.Fallback = []BackendConfig{{Name: c.Storage.Primary.Name, Type: BackendLocal, Path: "/tmp/x"}}
			},
			wantErr: "used twice",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Storage.RetryAttempts = 0 },
			wantErr: "storage.retry_attempts",
		},
		{
			name:    "bad output format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: "unsupported format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Normalize()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 78, apierrors.GetExitCode(err))
		})
	}
}

func TestExpandPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Storage.Primary.Path = "~/snapshots"
	cfg.Suppressions.File = "~"
	cfg.Storage.Fallback = []BackendConfig{{Type: BackendGCS, CredentialsFile: "~/sa.json"}}

	require.NoError(t, cfg.ExpandPaths())
	assert.Equal(t, filepath.Join(home, "snapshots"), cfg.Storage.Primary.Path)
	assert.Equal(t, home, cfg.Suppressions.File)
	assert.Equal(t, filepath.Join(home, "sa.json"), cfg.Storage.Fallback[0].CredentialsFile)
}

func TestDefaultsManager_DefaultCachePath(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "package.json"), []byte("{}"), 0644))

	dm := &DefaultsManager{workingDir: project, homeDir: "/home/ci", getenv: func(string) string { return "" }}
	assert.Equal(t, filepath.Join(project, ".apidrift", "cache"), dm.DefaultCachePath())

	dm.workingDir = t.TempDir()
	assert.Equal(t, filepath.Join("/home/ci", ".apidrift", "cache"), dm.DefaultCachePath())
}

func TestDefaultsManager_AvailableCredentials(t *testing.T) {
	env := map[string]string{
		"AWS_ACCESS_KEY_ID":     "id",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AZURE_STORAGE_ACCOUNT": "acct",
	}
	dm := &DefaultsManager{workingDir: t.TempDir(), homeDir: t.TempDir(), getenv: func(k string) string { return env[k] }}

	creds := dm.AvailableCredentials()
	assert.True(t, creds[BackendS3])
	assert.False(t, creds[BackendGCS])
	assert.False(t, creds[BackendAzure], "account without key or SAS token")
}

func TestCIDetector_Detect(t *testing.T) {
	noGit := func(args ...string) (string, error) { return "", os.ErrNotExist }

	tests := []struct {
		name     string
		env      map[string]string
		git      func(args ...string) (string, error)
		expected CIContext
	}{
		{
			name: "github pull request",
			env: map[string]string{
				"GITHUB_ACTIONS":  "true",
				"GITHUB_SHA":      "deadbeef",
				"GITHUB_HEAD_REF": "feature/login",
				"GITHUB_REF_NAME": "42/merge",
			},
			git:      noGit,
			expected: CIContext{Provider: "github-actions", CommitHash: "deadbeef", Branch: "feature/login"},
		},
		{
			name: "azure pipelines strips refs/heads",
			env: map[string]string{
				"TF_BUILD":                        "True",
				"BUILD_SOURCEVERSION":             "cafe",
				"SYSTEM_PULLREQUEST_SOURCEBRANCH": "refs/heads/topic",
			},
			git:      noGit,
			expected: CIContext{Provider: "azure-pipelines", CommitHash: "cafe", Branch: "topic"},
		},
		{
			name: "local checkout falls back to git",
			env:  map[string]string{},
			git: func(args ...string) (string, error) {
				if len(args) == 2 {
					return "0123abc", nil
				}
				return "main", nil
			},
			expected: CIContext{Provider: "local", CommitHash: "0123abc", Branch: "main"},
		},
		{
			name: "detached head leaves branch empty",
			env:  map[string]string{},
			git: func(args ...string) (string, error) {
				if len(args) == 2 {
					return "0123abc", nil
				}
				return "HEAD", nil
			},
			expected: CIContext{Provider: "local", CommitHash: "0123abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &CIDetector{getenv: func(k string) string { return tt.env[k] }, git: tt.git}
			assert.Equal(t, tt.expected, d.Detect())
		})
	}
}
