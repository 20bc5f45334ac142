package output

import (
	"encoding/json"

	"github.com/yairfalse/apidrift/pkg/types"
)

// JSONFormatter handles JSON output formatting
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// FormatResult formats a run result as JSON
func (j *JSONFormatter) FormatResult(result *types.AnalysisResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// FormatSnapshotList formats stored snapshot metadata as JSON
func (j *JSONFormatter) FormatSnapshotList(packageName string, snapshots []types.SnapshotMetadata) ([]byte, error) {
	if snapshots == nil {
		snapshots = []types.SnapshotMetadata{}
	}
	return json.MarshalIndent(struct {
		Package   string                   `json:"package"`
		Snapshots []types.SnapshotMetadata `json:"snapshots"`
	}{packageName, snapshots}, "", "  ")
}

// FormatHealth formats backend health as JSON
func (j *JSONFormatter) FormatHealth(health []types.StorageHealth) ([]byte, error) {
	if health == nil {
		health = []types.StorageHealth{}
	}
	return json.MarshalIndent(health, "", "  ")
}

// FormatStats formats storage statistics as JSON
func (j *JSONFormatter) FormatStats(stats types.StorageStats) ([]byte, error) {
	return json.MarshalIndent(stats, "", "  ")
}
