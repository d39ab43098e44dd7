// Package app assembles the importer from the batch packages and runs it in the mode selected by the environment.
package app

import (
	"os"
	"strings"

	"go.uber.org/fx"

	storage "github.com/tigerroll/recipient-import/pkg/batch/adapter/storage"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/storage/local"
	database "github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm/sqlite"
	item "github.com/tigerroll/recipient-import/pkg/batch/component/item"
	reader "github.com/tigerroll/recipient-import/pkg/batch/component/step/reader"
	writer "github.com/tigerroll/recipient-import/pkg/batch/component/step/writer"
	migration "github.com/tigerroll/recipient-import/pkg/batch/component/tasklet/migration"
	usecase "github.com/tigerroll/recipient-import/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	stepitem "github.com/tigerroll/recipient-import/pkg/batch/engine/step/item"
	metrics "github.com/tigerroll/recipient-import/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/recipient-import/pkg/batch/infrastructure/remote"
	sqlrepo "github.com/tigerroll/recipient-import/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/recipient-import/pkg/batch/listener"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// DBProviderMap lists the database providers selectable through DB_ADAPTERS.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	postgres.ProviderType: postgres.NewProvider,
	mysql.ProviderType:    mysql.NewProvider,
	sqlite.ProviderType:   sqlite.NewProvider,
}

// DBProviderOptions registers the providers named in the comma-separated DB_ADAPTERS variable,
// or every provider when it is unset.
func DBProviderOptions() []fx.Option {
	adapters := os.Getenv("DB_ADAPTERS")
	if adapters == "" {
		adapters = strings.Join([]string{postgres.ProviderType, mysql.ProviderType, sqlite.ProviderType}, ",")
	}

	options := make([]fx.Option, 0)
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		provider, ok := DBProviderMap[name]
		if !ok {
			logger.Warnf("DB Provider '%s' is configured but not supported. Skipping.", name)
			continue
		}
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))))
		logger.Debugf("DB Provider '%s' selected and registered.", name)
	}
	return options
}

// Module wires every component the importer needs. Database providers are added separately by DBProviderOptions.
var Module = fx.Options(
	logger.Module,
	config.Module,

	storage.Module,
	local.Module,
	gcs.Module,
	gormadapter.Module,
	migration.Module,

	reader.Module,
	item.Module,
	writer.Module,
	sqlrepo.Module,
	remote.Module,

	metrics.Module,
	batchlistener.Module,

	stepitem.Module,
	usecase.Module,
)
