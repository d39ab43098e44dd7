package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/recipient-import/pkg/batch/component/tasklet/migration/filesystem"
)

// Module provides the migrator, the embedded migrations and the startup migration hook.
var Module = fx.Options(
	filesystem.Module,
	fx.Provide(NewMigratorProvider),
	fx.Provide(NewSchemaMigration),
	fx.Invoke(registerStartupMigration),
)
