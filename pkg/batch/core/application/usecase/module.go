package usecase

import (
	"go.uber.org/fx"

	reader "github.com/tigerroll/recipient-import/pkg/batch/component/step/reader"
	item "github.com/tigerroll/recipient-import/pkg/batch/engine/step/item"
)

// Module is the Fx module for ImportLauncher and ImportExplorer.
var Module = fx.Options(
	fx.Provide(func(step *item.ContinuationStep) StepExecutor { return step }),
	fx.Provide(func(formats *reader.DecoderRegistry) item.FormatChecker { return formats }),
	fx.Provide(fx.Annotate(
		NewSimpleImportLauncher,
		fx.As(new(ImportLauncher)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleImportExplorer,
		fx.As(new(ImportExplorer)),
	)),
)
