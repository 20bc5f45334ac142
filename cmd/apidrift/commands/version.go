package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	BuiltBy   = "unknown"
)

// SetVersionInfo updates the version variables with build-time information
func SetVersionInfo(version, commit, buildTime, builtBy string) {
	if version != "" {
		Version = version
	}
	if commit != "" {
		Commit = commit
	}
	if buildTime != "" {
		BuildTime = buildTime
	}
	if builtBy != "" {
		BuiltBy = builtBy
	}
}

func newVersionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, a)
		},
	}

	cmd.Flags().Bool("short", false, "show only version number")

	return cmd
}

func runVersion(cmd *cobra.Command, a *app) error {
	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Fprintln(a.stdout, Version)
		return nil
	}

	fmt.Fprintf(a.stdout, "apidrift version %s\n", Version)
	fmt.Fprintf(a.stdout, "  commit: %s\n", Commit)
	fmt.Fprintf(a.stdout, "  built: %s\n", BuildTime)
	fmt.Fprintf(a.stdout, "  built by: %s\n", BuiltBy)
	fmt.Fprintf(a.stdout, "  go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
