// Package filesystem embeds the schema migrations of the importer, one directory per database type.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

//go:embed resource
var rawMigrationFS embed.FS

// ProvideMigrationsFS returns the migrations rooted at the dialect directories ("sqlite", "postgres", "mysql").
func ProvideMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for migration FS: %v", err)
	}
	return subFS
}
