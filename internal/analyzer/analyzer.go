package analyzer

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/yairfalse/apidrift/pkg/types"
)

// Analyzer recommends and validates semver bumps from classified changes
type Analyzer interface {
	Recommend(changes []types.Change) types.Bump
	Analyze(changes []types.Change, currentVersion, previousVersion string) types.BumpAnalysis
}

// StandardAnalyzer implements the Analyzer interface
type StandardAnalyzer struct{}

// NewStandardAnalyzer creates a new StandardAnalyzer
func NewStandardAnalyzer() *StandardAnalyzer {
	return &StandardAnalyzer{}
}

// Recommend returns major when any unsuppressed change is major, minor when
// anything else changed the surface, and patch otherwise. A suppressed
// major change still changed the API, so it counts as minor.
func (a *StandardAnalyzer) Recommend(changes []types.Change) types.Bump {
	recommended := types.BumpPatch
	for _, c := range changes {
		switch {
		case c.Severity == types.SeverityMajor && !c.IsSuppressed:
			return types.BumpMajor
		case c.Type == types.ChangeAddition, c.Type == types.ChangeNonBreaking, c.IsSuppressed:
			recommended = types.BumpMinor
		}
	}
	return recommended
}

// Analyze compares the recommended bump with the bump actually made
// between previousVersion and currentVersion
func (a *StandardAnalyzer) Analyze(changes []types.Change, currentVersion, previousVersion string) types.BumpAnalysis {
	result := types.BumpAnalysis{
		RecommendedBump: a.Recommend(changes),
		ActualBump:      types.BumpUnknown,
		Reasons:         reasonsFor(changes),
	}

	if previousVersion == "" {
		result.RecommendedBump = types.BumpMinor
		result.IsValid = true
		result.Reasons = append(result.Reasons, "no baseline version available, version bump not validated")
		return result
	}

	actual, err := ActualBump(currentVersion, previousVersion)
	if err != nil {
		result.IsValid = true
		result.Reasons = append(result.Reasons, fmt.Sprintf("version bump not validated: %v", err))
		return result
	}

	result.ActualBump = actual
	result.Validated = true

	if len(changes) == 0 {
		result.IsValid = true
		result.Reasons = append(result.Reasons, "no API changes, any version bump is acceptable")
		return result
	}

	result.IsValid = actual.AtLeast(result.RecommendedBump)
	if !result.IsValid {
		result.Reasons = append(result.Reasons, fmt.Sprintf("%s -> %s is a %s bump but the changes require %s",
			previousVersion, currentVersion, actual, result.RecommendedBump))
	}
	return result
}

// ActualBump classifies the increment from previous to current. Versions
// may omit the leading "v". A current version that does not move forward
// is BumpNone.
func ActualBump(currentVersion, previousVersion string) (types.Bump, error) {
	cur, prev := canonical(currentVersion), canonical(previousVersion)
	if !semver.IsValid(cur) {
		return types.BumpUnknown, fmt.Errorf("invalid current version %q", currentVersion)
	}
	if !semver.IsValid(prev) {
		return types.BumpUnknown, fmt.Errorf("invalid previous version %q", previousVersion)
	}

	switch {
	case semver.Compare(cur, prev) <= 0:
		return types.BumpNone, nil
	case semver.Major(cur) != semver.Major(prev):
		return types.BumpMajor, nil
	case semver.MajorMinor(cur) != semver.MajorMinor(prev):
		return types.BumpMinor, nil
	default:
		return types.BumpPatch, nil
	}
}

func canonical(version string) string {
	version = strings.TrimSpace(version)
	if version != "" && !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}

// reasonsFor summarizes which changes drove the recommendation
func reasonsFor(changes []types.Change) []string {
	var breaking, compatible, suppressed int
	for _, c := range changes {
		switch {
		case c.IsSuppressed:
			suppressed++
		case c.Severity == types.SeverityMajor:
			breaking++
		default:
			compatible++
		}
	}

	reasons := []string{}
	if breaking > 0 {
		reasons = append(reasons, fmt.Sprintf("%d breaking change(s) require a major bump", breaking))
	}
	if compatible > 0 {
		reasons = append(reasons, fmt.Sprintf("%d compatible change(s) require at least a minor bump", compatible))
	}
	if suppressed > 0 {
		reasons = append(reasons, fmt.Sprintf("%d suppressed change(s) counted as minor", suppressed))
	}
	return reasons
}
