package commands

import (
	"context"
	"errors"

	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/output"
	"github.com/yairfalse/apidrift/internal/storage"
)

// newStorageManager builds every configured backend in failover order
func (a *app) newStorageManager(ctx context.Context) (*storage.Manager, error) {
	backends, err := storage.NewBackends(ctx, a.cfg.Storage.Backends(), a.log)
	if err != nil {
		// surface the first typed credential error, in failover order
		var apiErr *apierrors.APIDriftError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, apierrors.New(apierrors.ErrorTypeStorage, apierrors.BackendUnknown, "no storage backend could be initialized").
			WithErr(err).
			WithSolutions("Run 'apidrift health' to see which backends are misconfigured").
			WithHelp("apidrift health")
	}
	return storage.NewManager(backends, storage.OptionsFromConfig(a.cfg.Storage, a.log)), nil
}

func (a *app) formatter() (output.Formatter, error) {
	cfg := output.DefaultConfig()
	cfg.NoColor = a.cfg.Output.NoColor
	return output.NewFormatter(a.cfg.Output.Format, cfg)
}

// render formats with the configured formatter and writes to stdout
func (a *app) render(format func(output.Formatter) ([]byte, error)) error {
	f, err := a.formatter()
	if err != nil {
		return err
	}
	data, err := format(f)
	if err != nil {
		return err
	}
	return output.WriteTo(data, a.stdout)
}
