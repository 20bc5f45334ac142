package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/pkg/config"
)

// ErrChecksFailed signals that the run completed and CI should fail
var ErrChecksFailed = errors.New("API drift checks failed")

// app carries what every command needs once configuration is loaded
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	log     logger.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// NewRootCommand builds the command tree. Output goes to stdout and
// diagnostics to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "apidrift",
		Short: "Detect breaking changes in package public APIs",
		Long: `apidrift compares the public API model of each package in a repository
against the last baseline stored for it, classifies every difference as
breaking, non-breaking or an addition, and checks that version bumps match.

Baselines live in S3, GCS, Azure Blob or a local cache, with automatic
failover between the configured backends.

  apidrift check                      # analyze packages, fail CI on breaking changes
  apidrift check --update-baselines   # analyze, then store current snapshots
  apidrift baseline list @acme/core   # show stored baselines
  apidrift health                     # probe every storage backend`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				return runVersion(cmd, a)
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.initConfig()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./apidrift.yaml or $HOME/.apidrift/apidrift.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringP("output", "o", "summary", "output format (summary, json)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.Flags().Bool("version", false, "show version information")

	a.bindFlag("logging.level", rootCmd.PersistentFlags(), "log-level")
	a.bindFlag("logging.format", rootCmd.PersistentFlags(), "log-format")
	a.bindFlag("output.format", rootCmd.PersistentFlags(), "output")
	a.bindFlag("output.no_color", rootCmd.PersistentFlags(), "no-color")

	rootCmd.AddCommand(newCheckCommand(a))
	rootCmd.AddCommand(newBaselineCommand(a))
	rootCmd.AddCommand(newHealthCommand(a))
	rootCmd.AddCommand(newVersionCommand(a))

	return rootCmd
}

// Execute runs the CLI and exits with a code derived from the error
func Execute() {
	err := NewRootCommand(os.Stdout, os.Stderr).Execute()
	if err == nil {
		return
	}
	if errors.Is(err, ErrChecksFailed) {
		os.Exit(1)
	}
	apierrors.DisplayError(os.Stderr, err)
	os.Exit(apierrors.GetExitCode(err))
}

// initConfig loads configuration and builds the logger
func (a *app) initConfig() error {
	cfg, err := config.LoadWith(a.v, a.cfgFile)
	if err != nil {
		return apierrors.New(apierrors.ErrorTypeConfiguration, apierrors.BackendUnknown, "failed to load configuration").WithErr(err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return fmt.Errorf("failed to expand config paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: a.stderr,
	})
	if err != nil {
		return apierrors.ConfigError("logging", err.Error())
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// bindFlag lets a flag override the matching configuration key. Flag
// defaults mirror config.DefaultConfig so an unset flag changes nothing.
func (a *app) bindFlag(key string, flags *pflag.FlagSet, name string) {
	_ = a.v.BindPFlag(key, flags.Lookup(name))
}
