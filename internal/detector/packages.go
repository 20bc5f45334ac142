package detector

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/apidrift/pkg/types"
)

type manifest struct {
	Packages []types.PackageInfo `yaml:"packages"`
}

// LoadPackages reads the package manifest, either a list of packages or a
// mapping with a "packages" list, in YAML or JSON
func LoadPackages(path string) ([]types.PackageInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	var packages []types.PackageInfo
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-") {
		err = yaml.Unmarshal([]byte(trimmed), &packages)
	} else {
		var m manifest
		err = yaml.Unmarshal([]byte(trimmed), &m)
		packages = m.Packages
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse package manifest %s: %w", path, err)
	}

	seen := make(map[string]bool, len(packages))
	for i, p := range packages {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("package %d in %s has no name", i+1, path)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("package %s is listed twice in %s", p.Name, path)
		}
		seen[p.Name] = true
	}
	return packages, nil
}
