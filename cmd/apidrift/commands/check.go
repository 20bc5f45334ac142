package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/apidrift/internal/detector"
	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/output"
	"github.com/yairfalse/apidrift/internal/suppression"
	"github.com/yairfalse/apidrift/pkg/config"
	"github.com/yairfalse/apidrift/pkg/types"
)

func newCheckCommand(a *app) *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "check [package...]",
		Short: "Compare current API snapshots against stored baselines",
		Long: `Check loads the package manifest, reads each package's current API snapshot
from the snapshot directory, fetches its baseline and reports every change.
With arguments only the named packages are checked.

Exit status is 1 when breaking changes are not suppressed or a version bump
is smaller than the changes require.`,
		Example: `  # Check every package in apidrift.packages.json
  apidrift check

  # Check one package against the release branch and print JSON
  apidrift check @acme/core --baseline-branch release -o json

  # On main, store the new snapshots as baselines after checking
  apidrift check --update-baselines`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, a, args)
		},
	}

	flags := cmd.Flags()
	flags.String("packages", defaults.Detector.PackagesFile, "package manifest (JSON or YAML)")
	flags.String("snapshot-dir", defaults.Detector.SnapshotDir, "directory holding <package>.api.json snapshots")
	flags.String("branch", "", "current branch (detected from CI or git when empty)")
	flags.String("baseline-branch", defaults.Detector.BaselineBranch, "branch whose snapshots are baselines")
	flags.String("commit", "", "current commit (detected from CI or git when empty)")
	flags.Bool("fail-on-breaking", defaults.Detector.FailOnBreaking, "fail when unsuppressed breaking changes are found")
	flags.Bool("check-version-bump", defaults.Detector.CheckVersionBump, "fail when a version bump is too small")
	flags.Bool("update-baselines", defaults.Detector.UpdateBaselines, "store current snapshots as baselines")
	flags.String("suppressions", "", "suppression rules file (YAML or JSON)")
	flags.Duration("timeout", defaults.Detector.Timeout, "timeout for the whole run")

	a.bindFlag("detector.packages_file", flags, "packages")
	a.bindFlag("detector.snapshot_dir", flags, "snapshot-dir")
	a.bindFlag("detector.branch", flags, "branch")
	a.bindFlag("detector.baseline_branch", flags, "baseline-branch")
	a.bindFlag("detector.commit_hash", flags, "commit")
	a.bindFlag("detector.fail_on_breaking", flags, "fail-on-breaking")
	a.bindFlag("detector.check_version_bump", flags, "check-version-bump")
	a.bindFlag("detector.update_baselines", flags, "update-baselines")
	a.bindFlag("suppressions.file", flags, "suppressions")
	a.bindFlag("detector.timeout", flags, "timeout")

	return cmd
}

func runCheck(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()

	if a.cfg.Detector.UpdateBaselines && a.cfg.Detector.CommitHash == "" {
		return apierrors.New(apierrors.ErrorTypeValidation, apierrors.BackendUnknown, "commit hash is required to update baselines").
			WithSolutions("Pass --commit explicitly", "Run inside a git checkout or a supported CI provider")
	}

	packages, err := detector.LoadPackages(a.cfg.Detector.PackagesFile)
	if err != nil {
		return apierrors.FileSystemError(a.cfg.Detector.PackagesFile, err)
	}
	if packages, err = selectPackages(packages, args); err != nil {
		return err
	}

	rules, err := suppression.LoadFile(a.cfg.Suppressions.File)
	if err != nil {
		return apierrors.New(apierrors.ErrorTypeValidation, apierrors.BackendUnknown, "invalid suppression file").WithErr(err)
	}
	suppressions := suppression.NewManager(rules, suppression.WithLogger(a.log))
	if active := suppressions.Active(); len(active) > 0 {
		a.log.WithField("rules", len(active)).Info("Loaded suppression rules")
	}

	mgr, err := a.newStorageManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()
	mgr.Start(ctx)

	det := detector.New(mgr,
		detector.NewDirectorySource(a.cfg.Detector.SnapshotDir),
		suppressions,
		detector.OptionsFromConfig(a.cfg.Detector, a.log))

	result, err := det.Run(ctx, packages)
	if err != nil {
		return err
	}

	if err := a.render(func(f output.Formatter) ([]byte, error) { return f.FormatResult(result) }); err != nil {
		return err
	}

	if result.Summary.CIShouldFail {
		return ErrChecksFailed
	}
	return nil
}

// selectPackages keeps the packages named on the command line, in manifest order
func selectPackages(packages []types.PackageInfo, names []string) ([]types.PackageInfo, error) {
	if len(names) == 0 {
		return packages, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var selected []types.PackageInfo
	for _, p := range packages {
		if wanted[p.Name] {
			selected = append(selected, p)
			delete(wanted, p.Name)
		}
	}
	for _, n := range names {
		if wanted[n] {
			return nil, apierrors.New(apierrors.ErrorTypeValidation, apierrors.BackendUnknown,
				fmt.Sprintf("package %s is not in the manifest", n))
		}
	}
	return selected, nil
}
