package storage

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

type resolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Lifecycle fx.Lifecycle
}

// registerProviderShutdown closes every storage provider when the application stops.
func registerProviderShutdown(p resolverParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result *multierror.Error
			for _, provider := range p.Providers {
				if err := provider.CloseAll(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			logger.Debugf("Closed %d storage providers.", len(p.Providers))
			return result.ErrorOrNil()
		},
	})
}

// Module provides the storage connection resolver and the source fetcher.
// Concrete providers (local, gcs) are contributed by their own modules.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConnectionResolver,
		fx.ParamTags(StorageProviderGroup, ``),
		fx.As(new(StorageConnectionResolver)),
	)),
	fx.Provide(fx.Annotate(
		NewSourceFetcher,
		fx.As(new(port.SourceFetcher)),
	)),
	fx.Invoke(registerProviderShutdown),
)
