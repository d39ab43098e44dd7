package writer

import (
	"context"
	"fmt"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	"github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"

	"golang.org/x/time/rate"
)

var (
	// RecipientConflictColumns identify a recipient row.
	RecipientConflictColumns = []string{"list_id", "id"}
	// RecipientUpdateColumns are refreshed when a recipient is imported again.
	// status, is_confirmed and created_at keep their stored values.
	RecipientUpdateColumns = []string{"user_id", "email", "metadata"}
)

// GormRecipientWriter persists recipients with one upsert statement per batch.
type GormRecipientWriter struct {
	resolver       database.DBConnectionResolver
	connectionName string
	limiter        *rate.Limiter
}

// NewGormRecipientWriter creates a writer using the connection named by database_ref.
func NewGormRecipientWriter(resolver database.DBConnectionResolver, cfg config.ImportConfig) *GormRecipientWriter {
	return &GormRecipientWriter{
		resolver:       resolver,
		connectionName: cfg.DatabaseRef,
		limiter:        newThrottle(cfg.WritesPerSecond),
	}
}

// PersistBatch implements port.BatchWriter. The statement either writes every entity or fails,
// so Unwritten is always empty on success.
func (w *GormRecipientWriter) PersistBatch(ctx context.Context, entities []model.RecipientEntity) (port.BatchWriteResult, error) {
	if len(entities) == 0 {
		return port.BatchWriteResult{}, nil
	}
	if len(entities) > model.MaxChunkSize {
		return port.BatchWriteResult{}, exception.NewBatchErrorf(moduleName, "batch of %d recipients exceeds the limit of %d", len(entities), model.MaxChunkSize)
	}
	if err := waitThrottle(ctx, w.limiter, len(entities)); err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "write throttle interrupted", err, false, true)
	}

	conn, err := w.resolver.ResolveDBConnection(ctx, w.connectionName)
	if err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName,
			fmt.Sprintf("failed to resolve database connection '%s'", w.connectionName), err, false, true)
	}

	rows := dedupeByID(entities)
	affected, err := conn.ExecuteUpsert(ctx, &rows, model.RecipientEntity{}.TableName(), RecipientConflictColumns, RecipientUpdateColumns)
	if err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName,
			fmt.Sprintf("failed to upsert %d recipients", len(rows)), err, false, true)
	}
	logger.Debugf("GormRecipientWriter: upserted %d recipients (%d rows affected).", len(rows), affected)
	return port.BatchWriteResult{}, nil
}

var _ port.BatchWriter = (*GormRecipientWriter)(nil)
