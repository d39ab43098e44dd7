package gorm

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

type shutdownParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	DBProviders []database.DBProvider `group:"db_providers"`
}

func registerShutdown(p shutdownParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result *multierror.Error
			for _, provider := range p.DBProviders {
				if err := provider.CloseAll(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			logger.Debugf("Closed %d database providers.", len(p.DBProviders))
			return result.ErrorOrNil()
		},
	})
}

// Module provides the connection resolver and closes every provider on stop.
// Concrete providers come from the sqlite, postgres and mysql subpackages.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
	)),
	fx.Invoke(registerShutdown),
)
