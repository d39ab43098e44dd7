package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/storage"
)

// Module provides the GCS Provider to the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(storageAdapter.StorageProviderGroup),
	)),
)
