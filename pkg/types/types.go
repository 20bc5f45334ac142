package types

import (
	"time"
)

// PackageInfo identifies one analyzed package
type PackageInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Path        string   `json:"path" yaml:"path"`
	Entrypoints []string `json:"entrypoints,omitempty" yaml:"entrypoints,omitempty"`
}

// SuppressionRule excludes one change id of one package from gating CI
type SuppressionRule struct {
	Package  string     `json:"package" yaml:"package"`
	ChangeID string     `json:"changeId" yaml:"changeId"`
	Reason   string     `json:"reason" yaml:"reason"`
	Expires  *time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// ActiveAt reports whether the rule is still in force at the given time
func (r *SuppressionRule) ActiveAt(now time.Time) bool {
	return r.Expires == nil || r.Expires.After(now)
}

// Bump is a semver increment
type Bump string

const (
	BumpNone    Bump = "none"
	BumpPatch   Bump = "patch"
	BumpMinor   Bump = "minor"
	BumpMajor   Bump = "major"
	BumpUnknown Bump = "unknown"
)

// Rank orders bumps: none < patch < minor < major
func (b Bump) Rank() int {
	switch b {
	case BumpPatch:
		return 1
	case BumpMinor:
		return 2
	case BumpMajor:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether b is the same or a larger increment than other
func (b Bump) AtLeast(other Bump) bool {
	return b.Rank() >= other.Rank()
}

// BumpAnalysis is the outcome of validating a package's version bump
type BumpAnalysis struct {
	RecommendedBump Bump     `json:"recommendedBump"`
	ActualBump      Bump     `json:"actualBump"`
	IsValid         bool     `json:"isValid"`
	Validated       bool     `json:"validated"`
	Reasons         []string `json:"reasons"`
}

// PackageAnalysis is the per-package result of a detector run
type PackageAnalysis struct {
	Package                PackageInfo `json:"package"`
	Changes                []Change    `json:"changes"`
	HasBreakingChanges     bool        `json:"hasBreakingChanges"`
	RecommendedVersionBump Bump        `json:"recommendedVersionBump"`
	ActualVersionBump      Bump        `json:"actualVersionBump"`
	IsValidBump            bool        `json:"isValidBump"`
	BumpValidated          bool        `json:"bumpValidated"`
	BumpReasons            []string    `json:"bumpReasons,omitempty"`
	IsNewPackage           bool        `json:"isNewPackage"`
	BaselineCommit         string      `json:"baselineCommit,omitempty"`
}

// HasGatingChanges reports whether an unsuppressed major change is present
func (p *PackageAnalysis) HasGatingChanges() bool {
	for i := range p.Changes {
		if p.Changes[i].Gating() {
			return true
		}
	}
	return false
}

// SkippedPackage records a package the run could not analyze
type SkippedPackage struct {
	Package string `json:"package"`
	Reason  string `json:"reason"`
}

// Summary rolls package results up to the repository
type Summary struct {
	TotalPackages       int  `json:"totalPackages"`
	PackagesWithChanges int  `json:"packagesWithChanges"`
	BreakingChanges     int  `json:"breakingChanges"`
	NonBreakingChanges  int  `json:"nonBreakingChanges"`
	Additions           int  `json:"additions"`
	SuppressedChanges   int  `json:"suppressedChanges"`
	HasBreakingChanges  bool `json:"hasBreakingChanges"`
	CIShouldFail        bool `json:"ciShouldFail"`
}

// AnalysisResult is the repository-wide outcome of one run
type AnalysisResult struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	CommitHash  string            `json:"commitHash,omitempty"`
	Branch      string            `json:"branch,omitempty"`
	Packages    []PackageAnalysis `json:"packages"`
	Skipped     []SkippedPackage  `json:"skipped,omitempty"`
	Summary     Summary           `json:"summary"`
}
