package writer

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/config"
	"github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

type batchWriterParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Resolver  database.DBConnectionResolver
}

// NewBatchWriter selects the recipient writer configured by import.writer.
func NewBatchWriter(p batchWriterParams) (port.BatchWriter, error) {
	imp := p.Config.Importer.Import
	if imp.Writer != config.WriterPgx {
		logger.Infof("Recipient writer: gorm upsert on connection '%s'.", imp.DatabaseRef)
		return NewGormRecipientWriter(p.Resolver, imp), nil
	}

	dbCfg, err := dbconfig.Decode(p.Config.Importer.Adapter.Database, imp.DatabaseRef)
	if err != nil {
		return nil, err
	}
	pool, err := OpenPgxPool(context.Background(), dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pgx pool for '%s': %w", imp.DatabaseRef, err)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	logger.Infof("Recipient writer: pgx COPY on connection '%s'.", imp.DatabaseRef)
	return NewPgxRecipientWriter(pool, imp), nil
}

// Module provides the configured port.BatchWriter and contributes the rejects archiver to the report sinks.
var Module = fx.Options(
	fx.Provide(NewBatchWriter),
	fx.Provide(fx.Annotate(
		NewParquetRejectsArchiver,
		fx.As(new(port.ReportSink)),
		fx.ResultTags(`group:"report_sinks"`),
	)),
)
