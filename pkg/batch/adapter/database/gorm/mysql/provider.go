// Package mysql registers the MySQL dialector and provides the MySQL DBProvider.
package mysql

import (
	"fmt"

	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/recipient-import/pkg/batch/core/config"
)

// ProviderType is the database type handled by this package.
const ProviderType = "mysql"

func init() {
	gormadapter.RegisterDialector(ProviderType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the go-sql-driver DSN for MySQL.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	userInfo := c.User
	if c.Password != "" {
		userInfo += ":" + c.Password
	}
	if userInfo != "" {
		userInfo += "@"
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", userInfo, c.Host, c.Port, c.Database)
}

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, ProviderType)
}

// Module contributes the MySQL provider to the db_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewProvider,
		fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
	)),
)
