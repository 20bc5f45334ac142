package analyzer

import (
	"fmt"

	"github.com/yairfalse/apidrift/pkg/types"
)

// InvalidVersionBumpError reports a package whose version moved by less
// than its API changes require. It is recorded on the result, never
// returned from a run.
type InvalidVersionBumpError struct {
	Package     string
	Recommended types.Bump
	Actual      types.Bump
}

func (e *InvalidVersionBumpError) Error() string {
	return fmt.Sprintf("%s: version bump %s is smaller than required %s", e.Package, e.Actual, e.Recommended)
}

// BumpError returns an *InvalidVersionBumpError for a validated analysis
// that failed, and nil otherwise
func BumpError(packageName string, b types.BumpAnalysis) error {
	if !b.Validated || b.IsValid {
		return nil
	}
	return &InvalidVersionBumpError{
		Package:     packageName,
		Recommended: b.RecommendedBump,
		Actual:      b.ActualBump,
	}
}
