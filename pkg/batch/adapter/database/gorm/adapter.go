// Package gorm implements the database adapter on top of gorm: the connection adapter,
// a dialector registry that the sqlite, postgres and mysql subpackages register into,
// and the provider/resolver pair that hands out named connections.
package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/config"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db     *gorm.DB
	cfg    dbconfig.DatabaseConfig
	name   string
	reopen func() (*gorm.DB, error)
}

// NewGormDBAdapter creates a new GormDBAdapter. reopen, when not nil, is used by RefreshConnection.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string, reopen func() (*gorm.DB, error)) *GormDBAdapter {
	return &GormDBAdapter{db: db, cfg: cfg, name: name, reopen: reopen}
}

// GetGormDB returns the underlying *gorm.DB.
func (a *GormDBAdapter) GetGormDB() *gorm.DB { return a.db }

// Close closes the underlying pool.
func (a *GormDBAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	logger.Debugf("Closing DB connection '%s'.", a.name)
	return sqlDB.Close()
}

// Type returns the configured database type.
func (a *GormDBAdapter) Type() string { return a.cfg.Type }

// Name returns the connection name.
func (a *GormDBAdapter) Name() string { return a.name }

// RefreshConnection pings the database and reopens the pool when the ping fails.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err == nil {
		if err = sqlDB.PingContext(ctx); err == nil {
			return nil
		}
	}
	if a.reopen == nil {
		return fmt.Errorf("connection '%s' is not usable and cannot be reopened: %w", a.name, err)
	}
	logger.Warnf("DB connection '%s' failed ping (%v). Reopening.", a.name, err)
	db, err := a.reopen()
	if err != nil {
		return fmt.Errorf("failed to reopen connection '%s': %w", a.name, err)
	}
	a.db = db
	return nil
}

// Config returns the database configuration.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig { return a.cfg }

// GetSQLDB returns the underlying *sql.DB.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) { return a.db.DB() }

// ExecuteQuery loads the first row matching query into target.
func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	return a.db.WithContext(ctx).Where(query).First(target).Error
}

// Count counts the records of model matching query.
func (a *GormDBAdapter) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(model).Where(query).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExecuteUpsert performs INSERT ... ON CONFLICT. gorm translates the clause per dialect
// (ON DUPLICATE KEY UPDATE on mysql).
func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	db := a.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	if tableName != "" {
		db = db.Table(tableName)
	}
	result := db.Clauses(UpsertClause(conflictColumns, updateColumns)).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpsertClause builds the ON CONFLICT clause used by ExecuteUpsert.
func UpsertClause(conflictColumns []string, updateColumns []string) clause.OnConflict {
	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}
	return onConflict
}

var _ database.DBConnection = (*GormDBAdapter)(nil)
