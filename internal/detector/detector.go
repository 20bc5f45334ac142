package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yairfalse/apidrift/internal/analyzer"
	"github.com/yairfalse/apidrift/internal/differ"
	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/internal/suppression"
	"github.com/yairfalse/apidrift/pkg/config"
	"github.com/yairfalse/apidrift/pkg/types"
)

// BaselineStore is the part of the storage manager a run needs
type BaselineStore interface {
	GetBaseline(ctx context.Context, packageName, branch string) (*types.BaselineSnapshot, error)
	Store(ctx context.Context, packageName, snapshotPath string, meta types.SnapshotMetadata) (string, error)
}

// Options controls one detection run
type Options struct {
	Branch           string
	BaselineBranch   string
	CommitHash       string
	FailOnBreaking   bool
	CheckVersionBump bool
	UpdateBaselines  bool
	Timeout          time.Duration
	Logger           logger.Logger
	Now              func() time.Time
}

// OptionsFromConfig maps detector configuration onto run options
func OptionsFromConfig(cfg config.DetectorConfig, log logger.Logger) Options {
	return Options{
		Branch:           cfg.Branch,
		BaselineBranch:   cfg.BaselineBranch,
		CommitHash:       cfg.CommitHash,
		FailOnBreaking:   cfg.FailOnBreaking,
		CheckVersionBump: cfg.CheckVersionBump,
		UpdateBaselines:  cfg.UpdateBaselines,
		Timeout:          cfg.Timeout,
		Logger:           log,
	}
}

// BaselineStoreError is returned when a baseline update fails. It is the
// only per-package failure that aborts a run.
type BaselineStoreError struct {
	Package string
	Err     error
}

func (e *BaselineStoreError) Error() string {
	return fmt.Sprintf("failed to store baseline for %s: %v", e.Package, e.Err)
}

func (e *BaselineStoreError) Unwrap() error {
	return e.Err
}

// Detector walks packages through snapshot, baseline, diff, suppression
// and version bump analysis
type Detector struct {
	store        BaselineStore
	source       SnapshotSource
	differ       differ.Differ
	bumps        analyzer.Analyzer
	suppressions *suppression.Manager
	opts         Options
	log          logger.Logger
}

// New creates a detector. A nil suppression manager suppresses nothing.
func New(store BaselineStore, source SnapshotSource, suppressions *suppression.Manager, opts Options) *Detector {
	if opts.Logger == nil {
		opts.Logger = logger.NewDiscard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BaselineBranch == "" {
		opts.BaselineBranch = "main"
	}
	if suppressions == nil {
		suppressions = suppression.NewManager(nil)
	}

	return &Detector{
		store:        store,
		source:       source,
		differ:       differ.NewDifferEngine(opts.Logger),
		bumps:        analyzer.NewStandardAnalyzer(),
		suppressions: suppressions,
		opts:         opts,
		log:          opts.Logger.WithField("component", "detector"),
	}
}

// Run analyzes every package. Packages that cannot be analyzed are skipped
// with a warning; only a failed baseline update is returned as an error.
func (d *Detector) Run(ctx context.Context, packages []types.PackageInfo) (*types.AnalysisResult, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	result := &types.AnalysisResult{
		GeneratedAt: d.opts.Now().UTC(),
		CommitHash:  d.opts.CommitHash,
		Branch:      d.opts.Branch,
		Packages:    []types.PackageAnalysis{},
	}

	d.log.WithFields(map[string]interface{}{
		"packages":        len(packages),
		"baseline_branch": d.opts.BaselineBranch,
	}).Info("Starting API drift detection")

	for _, pkg := range packages {
		analysis, err := d.AnalyzePackage(ctx, pkg)
		if err != nil {
			var storeErr *BaselineStoreError
			if errors.As(err, &storeErr) {
				return result, err
			}
			d.log.WithField("package", pkg.Name).Warn("Skipping package: " + err.Error())
			result.Skipped = append(result.Skipped, types.SkippedPackage{Package: pkg.Name, Reason: err.Error()})
			continue
		}
		result.Packages = append(result.Packages, *analysis)
	}

	result.Summary = d.summarize(result.Packages)
	result.Summary.TotalPackages = len(packages)

	d.log.WithFields(map[string]interface{}{
		"analyzed":       len(result.Packages),
		"skipped":        len(result.Skipped),
		"breaking":       result.Summary.BreakingChanges,
		"ci_should_fail": result.Summary.CIShouldFail,
	}).Info("API drift detection complete")

	return result, nil
}

// AnalyzePackage runs the full pipeline for one package
func (d *Detector) AnalyzePackage(ctx context.Context, pkg types.PackageInfo) (*types.PackageAnalysis, error) {
	log := d.log.WithField("package", pkg.Name)

	currentPath, err := d.source.Snapshot(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("snapshot unavailable: %w", err)
	}

	baseline, err := d.store.GetBaseline(ctx, pkg.Name, d.opts.BaselineBranch)
	if err != nil {
		return nil, fmt.Errorf("baseline lookup failed: %w", err)
	}
	defer func() {
		if err := baseline.Cleanup(); err != nil {
			log.Warn("Failed to remove baseline copy: " + err.Error())
		}
	}()

	analysis := &types.PackageAnalysis{Package: pkg, IsNewPackage: baseline == nil}

	var baselinePath, previousVersion string
	if baseline != nil {
		baselinePath = baseline.FilePath
		previousVersion = baseline.Metadata.Version
		analysis.BaselineCommit = baseline.Metadata.CommitHash
	} else {
		log.Info("No baseline found, analyzing as new package")
	}

	changes, err := d.differ.Compare(currentPath, baselinePath, pkg.Name)
	if err != nil {
		return nil, fmt.Errorf("diff failed: %w", err)
	}

	if n := d.suppressions.Apply(pkg.Name, changes); n > 0 {
		log.WithField("suppressed", n).Info("Applied suppressions")
	}

	bump := d.bumps.Analyze(changes, pkg.Version, previousVersion)
	if err := analyzer.BumpError(pkg.Name, bump); err != nil {
		log.Warn(err.Error())
	}

	analysis.Changes = changes
	analysis.RecommendedVersionBump = bump.RecommendedBump
	analysis.ActualVersionBump = bump.ActualBump
	analysis.IsValidBump = bump.IsValid
	analysis.BumpValidated = bump.Validated
	analysis.BumpReasons = bump.Reasons
	for i := range changes {
		if changes[i].IsBreaking() {
			analysis.HasBreakingChanges = true
			break
		}
	}

	if d.opts.UpdateBaselines {
		meta := types.SnapshotMetadata{
			PackageName: pkg.Name,
			CommitHash:  d.opts.CommitHash,
			Branch:      d.opts.Branch,
			Version:     pkg.Version,
			Timestamp:   d.opts.Now().UTC(),
		}
		location, err := d.store.Store(ctx, pkg.Name, currentPath, meta)
		if err != nil {
			return nil, &BaselineStoreError{Package: pkg.Name, Err: err}
		}
		log.WithField("location", location).Info("Stored baseline snapshot")
	}

	log.WithFields(map[string]interface{}{
		"changes":     len(changes),
		"breaking":    analysis.HasBreakingChanges,
		"recommended": string(bump.RecommendedBump),
	}).Debug("Package analyzed")

	return analysis, nil
}

func (d *Detector) summarize(packages []types.PackageAnalysis) types.Summary {
	var s types.Summary
	for i := range packages {
		p := &packages[i]
		if len(p.Changes) > 0 {
			s.PackagesWithChanges++
		}
		if p.HasBreakingChanges {
			s.HasBreakingChanges = true
		}
		for _, c := range p.Changes {
			switch c.Type {
			case types.ChangeBreaking:
				s.BreakingChanges++
			case types.ChangeNonBreaking:
				s.NonBreakingChanges++
			case types.ChangeAddition:
				s.Additions++
			}
			if c.IsSuppressed {
				s.SuppressedChanges++
			}
		}

		if d.opts.FailOnBreaking && p.HasGatingChanges() {
			s.CIShouldFail = true
		}
		if d.opts.CheckVersionBump && p.BumpValidated && !p.IsValidBump {
			s.CIShouldFail = true
		}
	}
	return s
}
