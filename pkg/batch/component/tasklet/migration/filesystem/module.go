package filesystem

import (
	"go.uber.org/fx"
)

// MigrationsFSTag names the embedded migrations in the Fx graph.
const MigrationsFSTag = `name:"migrationsFS"`

// Module provides the embedded migrations FS.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		ProvideMigrationsFS,
		fx.ResultTags(MigrationsFSTag),
	)),
)
