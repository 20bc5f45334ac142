package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yairfalse/apidrift/pkg/types"
)

// ErrSnapshotNotGenerated means the extractor produced no snapshot for a package
var ErrSnapshotNotGenerated = errors.New("current API snapshot was not generated")

// SnapshotSource yields the path of a package's current API snapshot
type SnapshotSource interface {
	Snapshot(ctx context.Context, pkg types.PackageInfo) (string, error)
}

// DirectorySource reads snapshots the extractor wrote to one directory as
// <dir>/<sanitized package name>.api.json
type DirectorySource struct {
	Dir string
}

// NewDirectorySource creates a source rooted at dir
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{Dir: dir}
}

// Snapshot returns the snapshot path, or ErrSnapshotNotGenerated when the
// file is missing or empty
func (s *DirectorySource) Snapshot(ctx context.Context, pkg types.PackageInfo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.Dir, SnapshotFileName(pkg.Name))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotNotGenerated, path)
		}
		return "", fmt.Errorf("failed to stat snapshot %s: %w", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrSnapshotNotGenerated, path)
	}
	return path, nil
}

// SnapshotFileName maps a package name such as "@acme/widgets" to
// "acme-widgets.api.json"
func SnapshotFileName(packageName string) string {
	name := strings.TrimPrefix(packageName, "@")
	name = strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(name)
	return name + ".api.json"
}
