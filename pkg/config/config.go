package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	apierrors "github.com/yairfalse/apidrift/internal/errors"
)

// Backend type names accepted in configuration
const (
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
	BackendLocal = "local"
)

// Config represents the complete apidrift configuration
type Config struct {
	Storage      StorageConfig      `mapstructure:"storage"`
	Detector     DetectorConfig     `mapstructure:"detector"`
	Suppressions SuppressionsConfig `mapstructure:"suppressions"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Output       OutputConfig       `mapstructure:"output"`
}

// StorageConfig describes the snapshot backends and their failover policy
type StorageConfig struct {
	Primary             BackendConfig   `mapstructure:"primary"`
	Fallback            []BackendConfig `mapstructure:"fallback"`
	HealthCheckInterval time.Duration   `mapstructure:"health_check_interval"`
	HealthCheckWarmup   time.Duration   `mapstructure:"health_check_warmup"`
	ProbeTimeout        time.Duration   `mapstructure:"probe_timeout"`
	RetryAttempts       int             `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration   `mapstructure:"retry_delay"`
	OperationTimeout    time.Duration   `mapstructure:"operation_timeout"`
	RetentionDays       int             `mapstructure:"retention_days"`
}

// BackendConfig configures one snapshot backend. Only the fields of the
// selected type are read.
type BackendConfig struct {
	Name            string `mapstructure:"name"`
	Type            string `mapstructure:"type"`
	Prefix          string `mapstructure:"prefix"`
	NativeLifecycle bool   `mapstructure:"native_lifecycle"`

	// s3
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`

	// gcs
	CredentialsFile string `mapstructure:"credentials_file"`

	// azure
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	SASToken    string `mapstructure:"sas_token"`

	// local
	Path string `mapstructure:"path"`
}

// DetectorConfig controls a detection run
type DetectorConfig struct {
	Branch           string        `mapstructure:"branch"`
	BaselineBranch   string        `mapstructure:"baseline_branch"`
	CommitHash       string        `mapstructure:"commit_hash"`
	FailOnBreaking   bool          `mapstructure:"fail_on_breaking"`
	CheckVersionBump bool          `mapstructure:"check_version_bump"`
	UpdateBaselines  bool          `mapstructure:"update_baselines"`
	SnapshotDir      string        `mapstructure:"snapshot_dir"`
	PackagesFile     string        `mapstructure:"packages_file"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// SuppressionsConfig points at the suppression rule file
type SuppressionsConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	dm := NewDefaultsManager()
	return &Config{
		Storage: StorageConfig{
			Primary: BackendConfig{
				Type: BackendLocal,
				Path: dm.DefaultCachePath(),
			},
			HealthCheckInterval: 5 * time.Minute,
			HealthCheckWarmup:   5 * time.Second,
			ProbeTimeout:        10 * time.Second,
			RetryAttempts:       3,
			RetryDelay:          time.Second,
			OperationTimeout:    2 * time.Minute,
			RetentionDays:       90,
		},
		Detector: DetectorConfig{
			BaselineBranch:   "main",
			FailOnBreaking:   true,
			CheckVersionBump: true,
			SnapshotDir:      "temp/api-snapshots",
			PackagesFile:     "apidrift.packages.json",
			Timeout:          15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "summary",
		},
	}
}

// Load loads configuration from the config file, APIDRIFT_ environment
// variables and defaults, in that order of precedence.
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.New(), cfgFile)
}

// LoadWith loads configuration through an existing viper instance, so
// callers can bind command-line flags before loading.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	config := DefaultConfig()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("apidrift")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".apidrift"))
		}
	}

	v.SetEnvPrefix("APIDRIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{
		"logging.level", "logging.format", "output.format", "output.no_color",
		"detector.branch", "detector.baseline_branch", "detector.commit_hash",
		"detector.fail_on_breaking", "detector.check_version_bump", "detector.update_baselines",
		"storage.primary.access_key_id", "storage.primary.secret_access_key",
		"storage.primary.account_key", "storage.primary.sas_token",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Normalize()
	return config, nil
}

// Backends returns the primary followed by the fallbacks, in failover order
func (s *StorageConfig) Backends() []BackendConfig {
	backends := make([]BackendConfig, 0, 1+len(s.Fallback))
	backends = append(backends, s.Primary)
	backends = append(backends, s.Fallback...)
	return backends
}

// Normalize fills derived values such as default backend names
func (c *Config) Normalize() {
	if c.Storage.Primary.Name == "" {
		c.Storage.Primary.Name = defaultBackendName(c.Storage.Primary, "primary")
	}
	for i := range c.Storage.Fallback {
		if c.Storage.Fallback[i].Name == "" {
			c.Storage.Fallback[i].Name = defaultBackendName(c.Storage.Fallback[i], fmt.Sprintf("fallback-%d", i+1))
		}
	}
	if c.Detector.Branch == "" || c.Detector.CommitHash == "" {
		ci := NewCIDetector().Detect()
		if c.Detector.Branch == "" {
			c.Detector.Branch = ci.Branch
		}
		if c.Detector.CommitHash == "" {
			c.Detector.CommitHash = ci.CommitHash
		}
	}
}

func defaultBackendName(b BackendConfig, role string) string {
	if b.Type == "" {
		return role
	}
	return b.Type + "-" + role
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.HealthCheckInterval <= 0 {
		return apierrors.ConfigError("storage.health_check_interval", "must be positive")
	}
	if c.Storage.RetryAttempts < 1 {
		return apierrors.ConfigError("storage.retry_attempts", "must be at least 1")
	}
	if c.Storage.RetryDelay < 0 {
		return apierrors.ConfigError("storage.retry_delay", "must not be negative")
	}
	if c.Storage.OperationTimeout <= 0 {
		return apierrors.ConfigError("storage.operation_timeout", "must be positive")
	}

	seen := make(map[string]bool)
	for _, b := range c.Storage.Backends() {
		if err := b.Validate(); err != nil {
			return err
		}
		if seen[b.Name] {
			return apierrors.ConfigError("storage.fallback", fmt.Sprintf("backend name %q is used twice", b.Name))
		}
		seen[b.Name] = true
	}

	if c.Detector.BaselineBranch == "" {
		return apierrors.ConfigError("detector.baseline_branch", "is required")
	}
	if c.Detector.Timeout <= 0 {
		return apierrors.ConfigError("detector.timeout", "must be positive")
	}

	switch c.Output.Format {
	case "summary", "json":
	default:
		return apierrors.ConfigError("output.format", fmt.Sprintf("unsupported format %q (summary, json)", c.Output.Format))
	}

	return nil
}

// Validate checks that the fields the backend type needs are present
func (b *BackendConfig) Validate() error {
	switch b.Type {
	case BackendS3:
		if b.Bucket == "" {
			return apierrors.BackendConfigError(apierrors.BackendS3, b.Name, "bucket is required")
		}
		if (b.AccessKeyID == "") != (b.SecretAccessKey == "") {
			return apierrors.BackendConfigError(apierrors.BackendS3, b.Name, "access_key_id and secret_access_key must be set together")
		}
	case BackendGCS:
		if b.Bucket == "" {
			return apierrors.BackendConfigError(apierrors.BackendGCS, b.Name, "bucket is required")
		}
	case BackendAzure:
		if b.AccountName == "" || b.Container == "" {
			return apierrors.BackendConfigError(apierrors.BackendAzure, b.Name, "account_name and container are required")
		}
		if b.AccountKey == "" && b.SASToken == "" {
			return apierrors.BackendConfigError(apierrors.BackendAzure, b.Name, "account_key or sas_token is required")
		}
	case BackendLocal:
		if b.Path == "" {
			return apierrors.BackendConfigError(apierrors.BackendLocal, b.Name, "path is required")
		}
	default:
		return apierrors.ConfigError("storage.*.type", fmt.Sprintf("unknown backend type %q for %q (s3, gcs, azure, local)", b.Type, b.Name))
	}
	return nil
}

// ExpandPaths expands home directory paths
func (c *Config) ExpandPaths() error {
	var err error
	for _, b := range []*BackendConfig{&c.Storage.Primary} {
		if b.Path, err = expandPath(b.Path); err != nil {
			return fmt.Errorf("failed to expand storage path: %w", err)
		}
	}
	for i := range c.Storage.Fallback {
		if c.Storage.Fallback[i].Path, err = expandPath(c.Storage.Fallback[i].Path); err != nil {
			return fmt.Errorf("failed to expand storage path: %w", err)
		}
		if c.Storage.Fallback[i].CredentialsFile, err = expandPath(c.Storage.Fallback[i].CredentialsFile); err != nil {
			return fmt.Errorf("failed to expand credentials path: %w", err)
		}
	}
	if c.Storage.Primary.CredentialsFile, err = expandPath(c.Storage.Primary.CredentialsFile); err != nil {
		return fmt.Errorf("failed to expand credentials path: %w", err)
	}
	if c.Suppressions.File, err = expandPath(c.Suppressions.File); err != nil {
		return fmt.Errorf("failed to expand suppressions path: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path, err
	}

	if len(path) == 1 {
		return home, nil
	}

	return filepath.Join(home, path[1:]), nil
}
