package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/apidrift/internal/detector"
	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/output"
	"github.com/yairfalse/apidrift/internal/storage"
	"github.com/yairfalse/apidrift/pkg/types"
)

func newBaselineCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "baseline",
		Aliases: []string{"baselines"},
		Short:   "Manage stored API baselines",
		Long: `Baseline stores, lists and prunes the API snapshots kept in the configured
storage backends.`,
	}

	cmd.AddCommand(newBaselineStoreCommand(a))
	cmd.AddCommand(newBaselineListCommand(a))
	cmd.AddCommand(newBaselineCleanupCommand(a))
	cmd.AddCommand(newBaselineStatsCommand(a))

	return cmd
}

func newBaselineStoreCommand(a *app) *cobra.Command {
	var version, commit, branch string

	cmd := &cobra.Command{
		Use:   "store <package> [snapshot]",
		Short: "Store a snapshot as the package's baseline",
		Long: `Store uploads an API snapshot for a package. When the snapshot path is
omitted the file in the configured snapshot directory is used. Commit and
branch default to what the CI environment or git checkout reports.`,
		Example: `  apidrift baseline store @acme/core
  apidrift baseline store @acme/core dist/core.api.json --version 2.1.0`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg := args[0]
			var path string
			if len(args) == 2 {
				path = args[1]
			} else {
				p, err := detector.NewDirectorySource(a.cfg.Detector.SnapshotDir).Snapshot(cmd.Context(), types.PackageInfo{Name: pkg})
				if err != nil {
					return apierrors.FileSystemError(a.cfg.Detector.SnapshotDir, err)
				}
				path = p
			}

			if commit == "" {
				commit = a.cfg.Detector.CommitHash
			}
			if branch == "" {
				branch = a.cfg.Detector.Branch
			}
			if commit == "" {
				return apierrors.New(apierrors.ErrorTypeValidation, apierrors.BackendUnknown, "commit hash could not be detected").
					WithSolutions("Pass --commit explicitly", "Run inside a git checkout or a supported CI provider")
			}

			mgr, err := a.newStorageManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			location, err := mgr.Store(cmd.Context(), pkg, path, types.SnapshotMetadata{
				PackageName: pkg,
				CommitHash:  commit,
				Branch:      branch,
				Version:     version,
				Timestamp:   time.Now().UTC(),
			})
			if err != nil {
				return err
			}

			a.log.WithFields(map[string]interface{}{
				"package":  pkg,
				"commit":   commit,
				"location": location,
			}).Info("Stored baseline snapshot")
			fmt.Fprintf(a.stdout, "Stored %s at %s\n", pkg, location)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "package version recorded with the snapshot")
	cmd.Flags().StringVar(&commit, "commit", "", "commit hash (detected when empty)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name (detected when empty)")

	return cmd
}

func newBaselineListCommand(a *app) *cobra.Command {
	var opts storage.ListOptions

	cmd := &cobra.Command{
		Use:   "list <package>",
		Short: "List stored snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.newStorageManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			snapshots := mgr.ListSnapshots(cmd.Context(), args[0], opts)
			return a.render(func(f output.Formatter) ([]byte, error) {
				return f.FormatSnapshotList(args[0], snapshots)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Branch, "branch", "", "only snapshots from this branch")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of snapshots (0 for all)")

	return cmd
}

func newBaselineCleanupCommand(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete snapshots older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = a.cfg.Storage.RetentionDays
			}

			mgr, err := a.newStorageManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			removed := mgr.Cleanup(cmd.Context(), days)
			fmt.Fprintf(a.stdout, "Removed %d snapshot(s) older than %d days\n", removed, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default from storage.retention_days)")

	return cmd
}

func newBaselineStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot counts and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.newStorageManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			stats := mgr.Stats(cmd.Context())
			return a.render(func(f output.Formatter) ([]byte, error) { return f.FormatStats(stats) })
		},
	}
}
