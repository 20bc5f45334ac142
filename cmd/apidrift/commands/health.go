package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/output"
	"github.com/yairfalse/apidrift/pkg/config"
	"github.com/yairfalse/apidrift/pkg/types"
)

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every configured storage backend",
		Long: `Health runs a write, read and delete probe against each storage backend
and reports which are usable. It fails only when no backend is healthy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.newStorageManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			health := mgr.CheckHealth(cmd.Context())
			if err := a.render(func(f output.Formatter) ([]byte, error) { return f.FormatHealth(health) }); err != nil {
				return err
			}

			credentialHints(a, health)

			for _, h := range health {
				if h.Healthy {
					return nil
				}
			}
			return apierrors.New(apierrors.ErrorTypeStorage, apierrors.BackendUnknown, "no storage backend is healthy").
				WithSolutions("Check credentials and bucket names in the storage section of the config").
				WithVerify("apidrift health --log-level debug")
		},
	}
}

// credentialHints warns about unhealthy cloud backends whose provider has
// no ambient credentials in the environment
func credentialHints(a *app, health []types.StorageHealth) {
	available := config.NewDefaultsManager().AvailableCredentials()
	for _, h := range health {
		if h.Healthy {
			continue
		}
		provider := h.Kind[strings.LastIndex(h.Kind, "/")+1:]
		if ok, known := available[provider]; known && !ok {
			apierrors.DisplayWarning(a.stderr, fmt.Sprintf("%s: no %s credentials found in the environment", h.Backend, provider))
		}
	}
}
