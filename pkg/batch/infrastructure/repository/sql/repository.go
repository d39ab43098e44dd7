// Package sql implements the status report store on the gorm database adapter.
package sql

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/recipient-import/pkg/batch/core/domain/repository"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const moduleName = "SQLStatusReportRepository"

// SQLStatusReportRepository stores one terminal report per list and reads back recipient counts.
type SQLStatusReportRepository struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

// NewSQLStatusReportRepository creates a repository on the connection named dbName.
func NewSQLStatusReportRepository(dbResolver database.DBConnectionResolver, dbName string) *SQLStatusReportRepository {
	return &SQLStatusReportRepository{dbResolver: dbResolver, dbName: dbName}
}

func (r *SQLStatusReportRepository) connection(ctx context.Context) (database.DBConnection, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("Failed to resolve DB connection '%s'", r.dbName), err, false, true)
	}
	return conn, nil
}

// SaveStatusReport upserts the report by list_id.
func (r *SQLStatusReportRepository) SaveStatusReport(ctx context.Context, report model.ImportStatusReport) error {
	conn, err := r.connection(ctx)
	if err != nil {
		return err
	}
	entity := fromDomainStatusReport(report)
	if _, err := conn.ExecuteUpsert(ctx, entity, entity.TableName(), []string{"list_id"}, statusReportUpdateColumns); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to save status report of list '%s'", report.ListID), err, false, true)
	}
	return nil
}

// Deliver implements port.ReportSink by saving the report.
func (r *SQLStatusReportRepository) Deliver(ctx context.Context, report model.ImportStatusReport) error {
	if err := r.SaveStatusReport(ctx, report); err != nil {
		return err
	}
	logger.Debugf("Stored %s report for list '%s'.", report.ImportStatus, report.ListID)
	return nil
}

// FindStatusReportByListID returns the stored report of a list.
func (r *SQLStatusReportRepository) FindStatusReportByListID(ctx context.Context, listID string) (*model.ImportStatusReport, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}
	var entity StatusReportEntity
	if err := conn.ExecuteQuery(ctx, &entity, map[string]interface{}{"list_id": listID}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrStatusReportNotFound
		}
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to find status report of list '%s'", listID), err, false, true)
	}
	return toDomainStatusReport(&entity), nil
}

// CountRecipients returns the number of recipients stored for a list.
func (r *SQLStatusReportRepository) CountRecipients(ctx context.Context, listID string) (int64, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return 0, err
	}
	n, err := conn.Count(ctx, &model.RecipientEntity{}, map[string]interface{}{"list_id": listID})
	if err != nil {
		return 0, exception.NewBatchError(moduleName, fmt.Sprintf("failed to count recipients of list '%s'", listID), err, false, true)
	}
	return n, nil
}

var (
	_ repository.StatusReportRepository = (*SQLStatusReportRepository)(nil)
	_ repository.RecipientRepository    = (*SQLStatusReportRepository)(nil)
	_ port.ReportSink                   = (*SQLStatusReportRepository)(nil)
)

// NewSQLStatusReportRepositoryProvider builds the repository on the connection named by database_ref.
func NewSQLStatusReportRepositoryProvider(resolver database.DBConnectionResolver, cfg config.ImportConfig) *SQLStatusReportRepository {
	return NewSQLStatusReportRepository(resolver, cfg.DatabaseRef)
}

// Module provides the repository under its repository interfaces and contributes it to the report sinks.
var Module = fx.Options(
	fx.Provide(NewSQLStatusReportRepositoryProvider),
	fx.Provide(func(r *SQLStatusReportRepository) repository.StatusReportRepository { return r }),
	fx.Provide(func(r *SQLStatusReportRepository) repository.RecipientRepository { return r }),
	fx.Provide(fx.Annotate(
		func(r *SQLStatusReportRepository) port.ReportSink { return r },
		fx.ResultTags(`group:"report_sinks"`),
	)),
)
