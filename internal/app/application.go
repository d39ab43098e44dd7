package app

import (
	"context"
	"os"

	"go.uber.org/fx"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// Execution modes selected by IMPORTER_MODE.
const (
	ModeWorker = "worker"
	ModeRun    = "run"
	ModeStatus = "status"
)

// Mode returns the execution mode named by IMPORTER_MODE. Unset means worker.
func Mode() string {
	if mode := os.Getenv("IMPORTER_MODE"); mode != "" {
		return mode
	}
	return ModeWorker
}

// RunApplication builds the container and runs it until the selected mode finishes or a signal arrives.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, dbProviderOptions []fx.Option) {
	mode := Mode()
	logger.Infof("Starting recipient importer in %s mode.", mode)

	var modeOption fx.Option
	switch mode {
	case ModeWorker:
		modeOption = fx.Invoke(fx.Annotate(startWorker, fx.ParamTags(``, ``, ``, ``, ``, `name:"appCtx"`)))
	case ModeRun:
		modeOption = fx.Options(
			fx.Decorate(withoutMetricsEndpoint),
			fx.Invoke(fx.Annotate(startSingleRun, fx.ParamTags(``, ``, ``, `name:"appCtx"`))),
		)
	case ModeStatus:
		modeOption = fx.Options(
			fx.Decorate(readOnly),
			fx.Invoke(fx.Annotate(startStatusQuery, fx.ParamTags(``, ``, ``, `name:"appCtx"`))),
		)
	default:
		logger.Fatalf("IMPORTER_MODE %q is not supported (expected %s, %s or %s).", mode, ModeWorker, ModeRun, ModeStatus)
	}

	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		fx.Options(dbProviderOptions...),
		Module,
		modeOption,
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// withoutMetricsEndpoint disables the /metrics listener for one-shot modes.
func withoutMetricsEndpoint(cfg *config.Config) *config.Config {
	cfg.Importer.Metrics.ListenAddr = ""
	return cfg
}

// readOnly additionally skips migrations for the status query.
func readOnly(cfg *config.Config) *config.Config {
	cfg = withoutMetricsEndpoint(cfg)
	cfg.Importer.Import.SkipMigrations = true
	return cfg
}
