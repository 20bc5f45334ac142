package output

import (
	"github.com/yairfalse/apidrift/pkg/types"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	FormatSummary OutputFormat = "summary"
	FormatJSON    OutputFormat = "json"
)

// Formatter renders run results and storage views
type Formatter interface {
	FormatResult(result *types.AnalysisResult) ([]byte, error)
	FormatSnapshotList(packageName string, snapshots []types.SnapshotMetadata) ([]byte, error)
	FormatHealth(health []types.StorageHealth) ([]byte, error)
	FormatStats(stats types.StorageStats) ([]byte, error)
}

// Config holds output configuration
type Config struct {
	NoColor bool

	// Timestamp format
	TimeFormat string
}

// DefaultConfig returns colored output with zone-qualified timestamps
func DefaultConfig() Config {
	return Config{TimeFormat: "2006-01-02 15:04:05Z07:00"}
}
