package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	dbconfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/config"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// StagingTable is the session-local table recipients are copied into before the upsert.
const StagingTable = "recipients_staging"

// recipientColumns is the column order used by COPY and by the upsert.
var recipientColumns = []string{"id", "list_id", "user_id", "email", "metadata", "status", "is_confirmed", "created_at"}

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgxRecipientWriter copies a batch into a temporary staging table and merges it into recipients
// with INSERT ... ON CONFLICT. It only works against postgres.
type PgxRecipientWriter struct {
	db      TxBeginner
	limiter *rate.Limiter
}

// NewPgxRecipientWriter creates a writer over db.
func NewPgxRecipientWriter(db TxBeginner, cfg config.ImportConfig) *PgxRecipientWriter {
	return &PgxRecipientWriter{db: db, limiter: newThrottle(cfg.WritesPerSecond)}
}

// OpenPgxPool opens a pool for a postgres database configuration.
func OpenPgxPool(ctx context.Context, cfg dbconfig.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.Type != postgres.ProviderType {
		return nil, fmt.Errorf("the pgx writer requires a postgres database, got '%s'", cfg.Type)
	}
	poolCfg, err := pgxpool.ParseConfig(postgres.ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection settings: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.Pool.MaxOpenConns)
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// PersistBatch implements port.BatchWriter.
func (w *PgxRecipientWriter) PersistBatch(ctx context.Context, entities []model.RecipientEntity) (port.BatchWriteResult, error) {
	if len(entities) == 0 {
		return port.BatchWriteResult{}, nil
	}
	if len(entities) > model.MaxChunkSize {
		return port.BatchWriteResult{}, exception.NewBatchErrorf(moduleName, "batch of %d recipients exceeds the limit of %d", len(entities), model.MaxChunkSize)
	}
	if err := waitThrottle(ctx, w.limiter, len(entities)); err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "write throttle interrupted", err, false, true)
	}

	rows := dedupeByID(entities)
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "failed to begin transaction", err, false, true)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, CreateStagingSQL); err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "failed to create staging table", err, false, true)
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{StagingTable}, recipientColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return recipientRow(rows[i])
	}))
	if err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "failed to copy recipients into staging", err, false, true)
	}
	tag, err := tx.Exec(ctx, MergeStagingSQL)
	if err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "failed to merge staged recipients", err, false, true)
	}
	if err := tx.Commit(ctx); err != nil {
		return port.BatchWriteResult{}, exception.NewBatchError(moduleName, "failed to commit recipient batch", err, false, true)
	}
	logger.Debugf("PgxRecipientWriter: copied %d, merged %d recipients.", copied, tag.RowsAffected())
	return port.BatchWriteResult{}, nil
}

func recipientRow(e model.RecipientEntity) ([]any, error) {
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{e.ID, e.ListID, e.UserID, e.Email, metadata, string(e.Status), e.IsConfirmed, e.CreatedAt}, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode recipient metadata: %w", err)
	}
	return string(b), nil
}

// CreateStagingSQL creates the staging table for the current transaction.
var CreateStagingSQL = fmt.Sprintf(
	"CREATE TEMP TABLE IF NOT EXISTS %s (LIKE recipients INCLUDING DEFAULTS) ON COMMIT DROP", StagingTable)

// MergeStagingSQL upserts the staged rows into recipients.
var MergeStagingSQL = func() string {
	cols := strings.Join(recipientColumns, ", ")
	updates := make([]string, 0, len(RecipientUpdateColumns))
	for _, c := range RecipientUpdateColumns {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO recipients (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		cols, cols, StagingTable, strings.Join(RecipientConflictColumns, ", "), strings.Join(updates, ", "))
}()

var _ port.BatchWriter = (*PgxRecipientWriter)(nil)
